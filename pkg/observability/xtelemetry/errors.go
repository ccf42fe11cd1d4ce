package xtelemetry

import "errors"

var (
	// ErrAlreadyInitialized 重复调用 Init。
	ErrAlreadyInitialized = errors.New("xtelemetry: already initialized")

	// ErrTerminated Provider 已关闭，不能再 Init。
	ErrTerminated = errors.New("xtelemetry: provider is terminated")

	// ErrNilConfig 配置为 nil。
	ErrNilConfig = errors.New("xtelemetry: config cannot be nil")
)
