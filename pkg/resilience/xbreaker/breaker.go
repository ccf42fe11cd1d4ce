package xbreaker

import (
	"context"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Breaker 熔断器执行器，封装 gobreaker。
type Breaker struct {
	name          string
	tripPolicy    TripPolicy
	successPolicy SuccessPolicy
	timeout       time.Duration
	interval      time.Duration
	maxRequests   uint32
	onStateChange func(name string, from, to State)

	cb *gobreaker.CircuitBreaker[struct{}]
}

// BreakerOption 熔断器配置选项。
type BreakerOption func(*Breaker)

// WithTripPolicy 设置熔断判定策略，默认连续失败 5 次。
func WithTripPolicy(p TripPolicy) BreakerOption {
	return func(b *Breaker) {
		if p != nil {
			b.tripPolicy = p
		}
	}
}

// WithSuccessPolicy 设置成功判定策略。
func WithSuccessPolicy(p SuccessPolicy) BreakerOption {
	return func(b *Breaker) {
		b.successPolicy = p
	}
}

// WithTimeout 设置 Open 到 HalfOpen 的等待时间，默认 30s。
func WithTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithInterval 设置 Closed 状态下清零计数的周期，默认 0（不清零）。
func WithInterval(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d >= 0 {
			b.interval = d
		}
	}
}

// WithMaxRequests 设置 HalfOpen 状态下允许的探测请求数，默认 1。
func WithMaxRequests(n uint32) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.maxRequests = n
		}
	}
}

// WithOnStateChange 设置状态变化回调。
func WithOnStateChange(f func(name string, from, to State)) BreakerOption {
	return func(b *Breaker) {
		b.onStateChange = f
	}
}

// NewBreaker 创建熔断器。name 用于日志与错误信息。
func NewBreaker(name string, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		name:        name,
		tripPolicy:  NewConsecutiveFailures(5),
		timeout:     30 * time.Second,
		maxRequests: 1,
	}
	for _, opt := range opts {
		opt(b)
	}

	st := gobreaker.Settings{
		Name:        b.name,
		MaxRequests: b.maxRequests,
		Interval:    b.interval,
		Timeout:     b.timeout,
		ReadyToTrip: b.tripPolicy.ReadyToTrip,
	}
	if b.successPolicy != nil {
		st.IsSuccessful = b.successPolicy.IsSuccessful
	}
	if b.onStateChange != nil {
		st.OnStateChange = b.onStateChange
	}
	b.cb = gobreaker.NewCircuitBreaker[struct{}](st)
	return b
}

// Do 执行受熔断保护的操作。
//
// ctx 已取消时直接返回上下文错误。熔断拦截时返回 *BreakerError。
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if b == nil {
		return ErrNilBreaker
	}
	if fn == nil {
		return ErrNilFunc
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return wrapBreakerError(err, b.name)
}

// Name 返回熔断器名称。
func (b *Breaker) Name() string {
	return b.name
}

// State 返回当前状态。
func (b *Breaker) State() State {
	return b.cb.State()
}

// Counts 返回当前统计计数。
func (b *Breaker) Counts() Counts {
	return b.cb.Counts()
}
