// Package xlog 基于 log/slog 的结构化日志，负责日志与追踪的关联。
//
// # 创建 Logger
//
// 使用 Builder 模式（first-error-wins：遇到第一个配置错误后，后续 Set 操作被跳过）：
//
//	logger, cleanup, err := xlog.New().
//		SetLevelString("debug").
//		SetServiceName("checkout").
//		SetExport(logProcessor).
//		Build()
//
// Builder 方法：SetOutput、SetLevel、SetLevelString、SetLevelVar、SetFormat、
// SetAddSource、SetEnrich、SetServiceName、SetScope、SetExport、SetRotation、
// SetOnError、SetReplaceAttr。
//
// # 关联字段
//
// [EnrichHandler] 为每条日志追加 trace_id、span_id、trace_sampled。
// context 中没有有效 span 时写入哨兵值 trace_id="0"、span_id="0"、trace_sampled=false。
// 配置了服务名时追加 service.name。
//
// 对启用 enrich 的 logger 调用 WithGroup 后，关联字段会被归入该 group。
//
// # 导出
//
// [ExportHandler] 把 slog.Record 转换为 [Record] 并投递给 [RecordSink]
// （通常是 xbatch.Processor[xlog.Record]）。投递失败只计数，不向调用方返回。
// 属性值收敛到 {string, int64, float64, bool}。
//
// # 日志级别
//
// LevelDebug(-4)、LevelInfo(0)、LevelWarn(4)、LevelError(8)。
// [Level.Severity] 映射到 OpenTelemetry 严重度编号：Debug=5、Info=9、Warn=13、Error=17。
//
// # 便捷属性
//
// [Err]、[Duration]、[Component]、[Operation]、[Count]、[Attempt]、[Signal]。
package xlog
