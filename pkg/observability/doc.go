// Package observability 汇集遥测管线的子包。
//
// 子包列表：
//   - xresource: 服务身份（service.name / version / instance.id）
//   - xlog: 结构化日志、trace 关联与日志导出桥
//   - xtrace: Tracer、Span 与采样器
//   - xmetrics: 仪表注册表与周期读取器
//   - xbatch: 日志与 Span 的批处理器
//   - xexport: OTLP/gRPC、文件、Prometheus 等导出器
//   - xtelemetry: 三条管线的生命周期管理
//   - xrotate: 文件导出器使用的轮转写入器
//
// 设计原则：
//   - 数据模型与 OpenTelemetry 保持一致，线上格式交给 OTLP 生成类型
//   - 同一进程内日志、Span、指标共享一个 Resource
//   - 导出失败只影响遥测数据，不阻塞业务调用
package observability
