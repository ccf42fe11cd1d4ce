package xretry

import (
	"context"
	"math"
	"time"

	retry "github.com/avast/retry-go/v5"
)

// OnRetryFunc 在确定发起下一次尝试、进入等待之前调用。
// attempt 为刚失败的尝试序号（从 1 开始），delay 为即将等待的时长。
type OnRetryFunc func(attempt int, err error, delay time.Duration)

// Retryer 组合 RetryPolicy 与 BackoffPolicy 的重试执行器。
//
// 底层使用 avast/retry-go/v5 实现。Retryer 本身无状态，可被并发复用。
type Retryer struct {
	retryPolicy   RetryPolicy
	backoffPolicy BackoffPolicy
	onRetry       OnRetryFunc
}

// RetryerOption 执行器配置选项。
type RetryerOption func(*Retryer)

// WithRetryPolicy 设置重试策略，nil 被忽略。
func WithRetryPolicy(p RetryPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.retryPolicy = p
		}
	}
}

// WithBackoffPolicy 设置退避策略，nil 被忽略。
func WithBackoffPolicy(p BackoffPolicy) RetryerOption {
	return func(r *Retryer) {
		if p != nil {
			r.backoffPolicy = p
		}
	}
}

// WithOnRetry 设置重试回调，nil 被忽略。
//
// 回调只在确实会再次尝试时触发，最后一次失败不会触发。
func WithOnRetry(f OnRetryFunc) RetryerOption {
	return func(r *Retryer) {
		if f != nil {
			r.onRetry = f
		}
	}
}

// NewRetryer 创建重试执行器，默认 FixedRetry(3) + ExponentialBackoff。
func NewRetryer(opts ...RetryerOption) *Retryer {
	r := &Retryer{
		retryPolicy:   NewFixedRetry(3),
		backoffPolicy: NewExponentialBackoff(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Do 执行带重试的操作，返回最后一次尝试的错误。
//
// ctx 取消时停止等待并返回上下文错误。
func (r *Retryer) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if r == nil {
		return ErrNilRetryer
	}
	if ctx == nil {
		return ErrNilContext
	}
	if fn == nil {
		return ErrNilFunc
	}
	return retry.New(r.buildOptions(ctx)...).Do(func() error {
		return fn(ctx)
	})
}

// MaxAttempts 返回重试策略允许的最大尝试次数。
func (r *Retryer) MaxAttempts() int {
	if r == nil || r.retryPolicy == nil {
		return 1
	}
	return r.retryPolicy.MaxAttempts()
}

func (r *Retryer) buildOptions(ctx context.Context) []retry.Option {
	retryPolicy := r.retryPolicy
	if retryPolicy == nil {
		retryPolicy = NewFixedRetry(3)
	}
	backoffPolicy := r.backoffPolicy
	if backoffPolicy == nil {
		backoffPolicy = NewExponentialBackoff()
	}

	opts := make([]retry.Option, 0, 5)
	opts = append(opts, retry.Context(ctx))

	if maxAttempts := retryPolicy.MaxAttempts(); maxAttempts <= 0 {
		opts = append(opts, retry.UntilSucceeded())
	} else {
		opts = append(opts, retry.Attempts(uint(maxAttempts)))
	}

	// 每次 Do 使用独立闭包，计数无需同步
	failures := 0
	opts = append(opts, retry.RetryIf(func(err error) bool {
		failures++
		if !retry.IsRecoverable(err) {
			return false
		}
		return retryPolicy.ShouldRetry(ctx, failures, err)
	}))

	// retry-go 仅在确定进入下一次尝试时计算延迟，n 从 1 开始
	onRetry := r.onRetry
	opts = append(opts, retry.DelayType(func(n uint, err error, _ retry.DelayContext) time.Duration {
		attempt := toInt(n)
		delay := backoffPolicy.NextDelay(attempt)
		if onRetry != nil {
			onRetry(attempt, err, delay)
		}
		return delay
	}))

	opts = append(opts, retry.LastErrorOnly(true))
	return opts
}

func toInt(n uint) int {
	if n > uint(math.MaxInt) {
		return math.MaxInt
	}
	return int(n)
}
