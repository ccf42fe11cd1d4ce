// Package xbatch 提供有界队列 + 单 worker 的批量导出处理器。
//
// 生产者调用 Enqueue，仅在互斥锁内追加到队列，不做网络 I/O。
// worker 在以下任一条件满足时交换缓冲区并导出：
//   - 队列长度达到 MaxBatchSize
//   - 距上次导出已过 BatchDelay
//   - ForceFlush / Shutdown
//
// 导出失败通过 xretry 按有界指数退避重试；耗尽重试后整批丢弃，
// 计入 Stats().Dropped，记录告警日志并触发 OnDrop 回调。
// 标记为永久性的错误（xretry.NewPermanentError、熔断打开、*PartialError）不重试。
//
// # 队列满
//
//   - DropNewest（默认）：丢弃新元素，返回 ErrQueueFull
//   - DropOldest：淘汰队首，接收新元素
//   - BlockWithTimeout：最多等待 BlockTimeout，超时返回 ErrQueueFull
//
// # 关闭
//
// Shutdown 停止接收，导出剩余数据后关闭 Exporter。ctx 到期时取消进行中的导出、
// 丢弃剩余数据并返回 ctx 的错误。重复调用返回 nil。
package xbatch
