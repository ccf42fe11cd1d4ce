// Package xtelemetry 管理日志、追踪、指标三条管线的生命周期。
//
// Provider 是显式对象，不设置任何全局状态：
//
//	p, err := xtelemetry.Setup(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer p.Shutdown(context.WithoutCancel(ctx))
//
//	ctx, span := p.Tracer("yoda.practice").Start(ctx, "practice")
//	defer span.End()
//	p.Logger("yoda.practice").Info(ctx, "hello")
//
// 状态依次为 Uninitialized、Active、ShuttingDown、Terminated。Init 之前与
// Shutdown 之后，Tracer/Logger/Meter 返回空操作实现。
//
// Shutdown 依次关闭指标读取器、追踪处理器、日志处理器，错误合并返回，可重复调用。
//
// 导出器默认按 xconf.Telemetry.Exporter 构建（otlp、console、file、none），
// 也可通过 WithLogExporter 等选项逐个注入。
package xtelemetry
