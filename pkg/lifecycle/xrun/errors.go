package xrun

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSignal 因收到系统信号而终止，使用 errors.Is 判断。
	ErrSignal = errors.New("received signal")

	// ErrInvalidInterval Ticker 的间隔必须为正数。
	ErrInvalidInterval = errors.New("xrun: interval must be positive")

	// ErrNilFunc 传入的服务函数为 nil。
	ErrNilFunc = errors.New("xrun: nil function")
)

// SignalError 携带触发终止的信号。
type SignalError struct {
	Signal os.Signal
}

func (e *SignalError) Error() string {
	if e.Signal == nil {
		return "received signal <nil>"
	}
	return fmt.Sprintf("received signal %s", e.Signal)
}

// Is 支持 errors.Is(err, ErrSignal)。
func (e *SignalError) Is(target error) bool {
	return target == ErrSignal
}

func (e *SignalError) Unwrap() error {
	return ErrSignal
}
