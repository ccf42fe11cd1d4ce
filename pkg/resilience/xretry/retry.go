package xretry

import (
	"context"
	"time"
)

// RetryPolicy 决定一次失败后是否继续重试。
//
// 通过 Retryer 使用时 MaxAttempts() 作为 retry-go 的 Attempts 上限，
// ShouldRetry() 在每次失败后调用。
type RetryPolicy interface {
	// MaxAttempts 返回最大尝试次数（包含首次尝试）。
	MaxAttempts() int

	// ShouldRetry 判断是否应该重试。attempt 为已失败的次数（从 1 开始）。
	ShouldRetry(ctx context.Context, attempt int, err error) bool
}

// BackoffPolicy 计算重试间隔。
type BackoffPolicy interface {
	// NextDelay 返回第 attempt 次重试前的等待时间（attempt 从 1 开始）。
	NextDelay(attempt int) time.Duration
}

// FixedRetryPolicy 固定次数重试策略。
type FixedRetryPolicy struct {
	maxAttempts int
}

// NewFixedRetry 创建固定次数重试策略，maxAttempts 最小为 1。
func NewFixedRetry(maxAttempts int) *FixedRetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &FixedRetryPolicy{maxAttempts: maxAttempts}
}

func (p *FixedRetryPolicy) MaxAttempts() int {
	return p.maxAttempts
}

func (p *FixedRetryPolicy) ShouldRetry(ctx context.Context, attempt int, err error) bool {
	if ctx.Err() != nil || attempt >= p.maxAttempts {
		return false
	}
	return IsRetryable(err)
}

var _ RetryPolicy = (*FixedRetryPolicy)(nil)
