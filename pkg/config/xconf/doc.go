// Package xconf 加载遥测管线配置，基于 koanf 实现。
//
// 配置来源按优先级从低到高：
//   - Default() 预置的默认值
//   - 可选的 YAML/JSON 配置文件（.yaml/.yml/.json）
//   - 环境变量
//
// Load 在初始化时读取一次，之后不再感知环境变化。
//
// # 环境变量
//
//	OTEL_COLLECTOR_HOST      收集器主机，默认 127.0.0.1
//	OTEL_COLLECTOR_PORT      收集器端口，默认 4317
//	OTEL_INSECURE            是否使用明文 gRPC，默认 true
//	SERVICE_NAME             服务名，OTEL_SERVICE_NAME 优先
//	SERVICE_VERSION          服务版本，默认 1.0.0
//	XOTEL_EXPORTER           otlp | console | file | none
//	XOTEL_FILE_PATH          file 导出器输出路径
//	XOTEL_LOG_LEVEL          本地日志级别
//	XOTEL_SAMPLE_RATIO       trace-id 采样比例 [0, 1]
//	XOTEL_METRICS_INTERVAL   指标导出周期（Go duration 或毫秒数）
//	XOTEL_METRICS_TEMPORALITY cumulative | delta
//	XOTEL_{LOGS,SPANS}_{MAX_QUEUE_SIZE,MAX_BATCH_SIZE,BATCH_DELAY,MAX_ATTEMPTS,DROP_POLICY}
//
// # 嵌入配置
//
// LoadBytes 接受内存中的 YAML/JSON，与 Load 共用同一套覆盖顺序。
// 解码使用 mapstructure 弱类型转换，"4317" 可以写入 int 字段。
package xconf
