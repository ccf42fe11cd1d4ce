package xretry

import "errors"

var (
	// ErrNilRetryer 在 nil *Retryer 上调用 Do。
	ErrNilRetryer = errors.New("xretry: nil retryer")
	// ErrNilContext 传入 nil context。
	ErrNilContext = errors.New("xretry: nil context")
	// ErrNilFunc 传入 nil 函数。
	ErrNilFunc = errors.New("xretry: nil function")
)

// RetryableError 可声明自身是否可重试的错误。
type RetryableError interface {
	error
	Retryable() bool
}

// PermanentError 永久性错误，不应重试。
type PermanentError struct {
	Err error
}

// NewPermanentError 将 err 标记为永久性错误。
func NewPermanentError(err error) *PermanentError {
	return &PermanentError{Err: err}
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

func (e *PermanentError) Retryable() bool { return false }

// TemporaryError 临时性错误，应当重试。
type TemporaryError struct {
	Err error
}

// NewTemporaryError 将 err 标记为临时性错误。
func NewTemporaryError(err error) *TemporaryError {
	return &TemporaryError{Err: err}
}

func (e *TemporaryError) Error() string {
	if e.Err == nil {
		return "temporary error"
	}
	return e.Err.Error()
}

func (e *TemporaryError) Unwrap() error { return e.Err }

func (e *TemporaryError) Retryable() bool { return true }

// IsRetryable 判断错误是否可重试。
//
// nil 返回 false；错误链上实现 RetryableError 的按其 Retryable() 判断；
// 其余错误默认可重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re RetryableError
	if errors.As(err, &re) {
		return re.Retryable()
	}
	return true
}

// IsPermanent 判断错误是否为永久性错误。
func IsPermanent(err error) bool {
	return err != nil && !IsRetryable(err)
}
