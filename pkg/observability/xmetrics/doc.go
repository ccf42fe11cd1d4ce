// Package xmetrics 提供指标仪表注册表与周期性读取器。
//
// # 仪表
//
//	reg := xmetrics.NewRegistry(xmetrics.WithResource(res))
//	counter, err := reg.Meter("yoda.practice").Int64Counter("counter")
//	_ = counter.Add(ctx, 5, attribute.String("practice", "push-ups"))
//
// 支持 Int64Counter、Float64Counter（单调）和 Float64Histogram（显式桶）。
// 负增量返回 ErrNegativeDelta，NaN/Inf 返回 ErrInvalidValue，非法名称返回 ErrInvalidName。
// 同一 Meter 内同名同类型的仪表返回同一实例，类型不同返回 ErrInstrumentConflict。
//
// 每个仪表的聚合状态由自身互斥锁保护，单个仪表的属性组合数受 WithCardinalityLimit
// 约束，超出部分合并到 otel.metric.overflow=true 数据点。
//
// # 时间性
//
//   - Cumulative（默认）：每次读取返回自启动以来的累计值
//   - Delta：每次读取返回上次读取以来的增量，读取后重置
//
// # 周期读取
//
// PeriodicReader 在独立 goroutine 上每 Interval 采集一次并交给 Exporter。
// 导出失败时丢弃该快照，记录日志并计数，不重试。
// Shutdown 执行最后一次采集导出，停止 goroutine，然后关闭 Exporter。
package xmetrics
