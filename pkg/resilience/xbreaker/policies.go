package xbreaker

import "github.com/sony/gobreaker/v2"

type (
	// Counts 统计计数，用于熔断判定。
	Counts = gobreaker.Counts

	// State 熔断器状态。
	State = gobreaker.State
)

const (
	StateClosed   = gobreaker.StateClosed
	StateHalfOpen = gobreaker.StateHalfOpen
	StateOpen     = gobreaker.StateOpen
)

var (
	// ErrOpenState 熔断器处于打开状态。
	ErrOpenState = gobreaker.ErrOpenState
	// ErrTooManyRequests 半开状态下请求过多。
	ErrTooManyRequests = gobreaker.ErrTooManyRequests
)

// TripPolicy 熔断判定策略，返回 true 时由 Closed 转为 Open。
type TripPolicy interface {
	ReadyToTrip(counts Counts) bool
}

// SuccessPolicy 成功判定策略，默认 err == nil 即成功。
type SuccessPolicy interface {
	IsSuccessful(err error) bool
}

// ConsecutiveFailuresPolicy 连续失败熔断策略。
type ConsecutiveFailuresPolicy struct {
	threshold uint32
}

// NewConsecutiveFailures 创建连续失败熔断策略，threshold 最小为 1。
func NewConsecutiveFailures(threshold uint32) *ConsecutiveFailuresPolicy {
	return &ConsecutiveFailuresPolicy{threshold: max(threshold, 1)}
}

func (p *ConsecutiveFailuresPolicy) ReadyToTrip(counts Counts) bool {
	return counts.ConsecutiveFailures >= p.threshold
}

// SuccessFunc 将函数适配为 SuccessPolicy。
type SuccessFunc func(err error) bool

func (f SuccessFunc) IsSuccessful(err error) bool { return f(err) }

var (
	_ TripPolicy    = (*ConsecutiveFailuresPolicy)(nil)
	_ SuccessPolicy = SuccessFunc(nil)
)
