// Package xrun 提供基于 errgroup + context 的 goroutine 生命周期管理。
//
// 批处理器的导出 worker、周期指标读取器的 ticker 以及命令行进程的
// 信号处理都运行在 Group 中：任一成员返回错误或被 Cancel 时，
// 其余成员通过 ctx.Done() 收到取消信号，Wait 等待全部退出。
//
//	g, ctx := xrun.NewGroup(ctx, xrun.WithName("metric-reader"))
//	g.Go(xrun.Ticker(5*time.Second, false, collect))
//	...
//	g.Cancel(nil)
//	err := g.Wait()
//
// Run/RunWithOptions 额外监听 DefaultSignals()，收到信号时
// 返回 *SignalError（errors.Is(err, ErrSignal) 为 true）。
//
// [errgroup]: https://pkg.go.dev/golang.org/x/sync/errgroup
package xrun
