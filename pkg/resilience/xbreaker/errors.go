package xbreaker

import (
	"errors"
	"fmt"
)

var (
	// ErrNilBreaker 在 nil *Breaker 上调用 Do。
	ErrNilBreaker = errors.New("xbreaker: breaker cannot be nil")
	// ErrNilFunc 传入的操作函数为 nil。
	ErrNilFunc = errors.New("xbreaker: function cannot be nil")
)

// BreakerError 包装 ErrOpenState / ErrTooManyRequests。
//
// Retryable() 恒为 false，使 xretry 不再重试被熔断拦截的调用。
type BreakerError struct {
	Err   error
	Name  string
	State State
}

func (e *BreakerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("breaker %s: %v", e.Name, e.Err)
	}
	return e.Err.Error()
}

func (e *BreakerError) Unwrap() error { return e.Err }

func (e *BreakerError) Retryable() bool { return false }

// wrapBreakerError 只包装当前熔断器直接返回的 sentinel，
// 状态由错误类型推导，不再回查 State()。
func wrapBreakerError(err error, name string) error {
	if err == nil {
		return nil
	}
	var be *BreakerError
	if errors.As(err, &be) {
		return err
	}
	switch err { //nolint:errorlint // 只匹配直接返回的 sentinel
	case ErrOpenState:
		return &BreakerError{Err: err, Name: name, State: StateOpen}
	case ErrTooManyRequests:
		return &BreakerError{Err: err, Name: name, State: StateHalfOpen}
	}
	return err
}

// IsOpen 判断错误是否为熔断打开错误。
func IsOpen(err error) bool {
	return errors.Is(err, ErrOpenState)
}

// IsBreakerError 判断错误是否由熔断器拦截产生。
func IsBreakerError(err error) bool {
	return errors.Is(err, ErrOpenState) || errors.Is(err, ErrTooManyRequests)
}
