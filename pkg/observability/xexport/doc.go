// Package xexport 提供日志、span、指标的导出器实现。
//
// 日志与 span 导出器实现 xbatch.Exporter[T]，指标导出器实现 xmetrics.Exporter。
//
//   - OTLP/gRPC：NewOTLP 建立一个共享连接，LogExporter/SpanExporter/MetricExporter
//     共用它；所有导出器 Shutdown 后连接关闭。Unavailable、ResourceExhausted 等
//     gRPC 状态码可重试，其余为永久错误；partial_success 映射为 *xbatch.PartialError。
//   - Writer：每个请求以 protojson 编码为一行写入 io.Writer，NewFile 写入带轮转的文件。
//   - SDK 适配：把 sdktrace.SpanExporter / sdkmetric.Exporter 包装为本包的导出器。
//   - Prometheus：保存最近一次指标快照，作为 prometheus.Collector 暴露。
//   - 熔断：NewBreakerExporter 在连续失败后快速失败，熔断错误不可重试。
//   - 内存：测试与示例使用。
package xexport
