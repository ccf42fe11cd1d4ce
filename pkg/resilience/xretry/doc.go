// Package xretry 提供导出重试使用的重试策略与退避策略。
//
// # 组成
//
//   - RetryPolicy：判断一次失败后是否继续重试（FixedRetryPolicy，MaxAttempts 计入首次尝试）
//   - BackoffPolicy：计算两次尝试之间的等待时间（ExponentialBackoff / FixedBackoff / NoBackoff）
//   - Retryer：组合二者，底层由 [avast/retry-go/v5] 驱动
//
// # 错误分类
//
// 导出器返回的错误按以下规则分类：
//   - NewPermanentError(err)：永久性错误，立即停止
//   - NewTemporaryError(err)：临时性错误，按策略重试
//   - 实现 Retryable() bool 的错误：按其返回值判断
//   - 其他错误：视为可重试
//
// # 用法
//
//	r := xretry.NewRetryer(
//	    xretry.WithRetryPolicy(xretry.NewFixedRetry(3)),
//	    xretry.WithBackoffPolicy(xretry.NewExponentialBackoff()),
//	    xretry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
//	        // attempt 为刚失败的尝试序号（从 1 开始）
//	    }),
//	)
//	err := r.Do(ctx, func(ctx context.Context) error {
//	    return exporter.Export(ctx, batch)
//	})
//
// 退避抖动使用 crypto/rand 生成。需要确定性延迟时使用 WithJitter(0)。
//
// [avast/retry-go/v5]: https://github.com/avast/retry-go
package xretry
