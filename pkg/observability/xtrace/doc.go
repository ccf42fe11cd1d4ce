// Package xtrace 提供 Span 的创建、上下文传播与采样。
//
// Provider 持有采样器、资源和 SpanSink；Tracer 按 instrumentation scope 创建 Span。
// Span 在打开期间可变，End 时生成不可变的 SpanData 交给 SpanSink
// （通常是 *xbatch.Processor[SpanData]），由批处理器异步导出。
//
//	tp := xtrace.NewProvider(
//	    xtrace.WithSink(spanProcessor),
//	    xtrace.WithSampler(xtrace.ParentBased(xtrace.AlwaysSample())),
//	)
//	ctx, span := tp.Tracer("checkout").Start(ctx, "charge")
//	defer span.End()
//
// # 上下文
//
// 当前 Span 同时以 trace.ContextWithSpanContext 写入 context，
// 因此 trace.SpanContextFromContext 与 OTel 传播器都能读到 trace_id / span_id。
// 每个 context 最多一个当前 Span，嵌套 Start 通过父 SpanContext 形成树。
//
// # 空操作语义
//
// nil Provider、nil Tracer 以及 Shutdown 之后创建的 Span 都是非记录 Span，
// 所有方法可安全调用且不产生数据。
//
// # ID
//
// TraceID / SpanID 由 crypto/rand 生成，保证非全零（W3C Trace Context）。
package xtrace
