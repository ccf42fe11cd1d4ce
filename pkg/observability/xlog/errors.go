package xlog

import "errors"

var (
	// ErrNilHandler 基础 handler 为 nil。
	ErrNilHandler = errors.New("xlog: base handler is nil")

	// ErrNilSink 导出目标为 nil。
	ErrNilSink = errors.New("xlog: record sink is nil")

	// ErrUnknownLevel 无法识别的日志级别。
	ErrUnknownLevel = errors.New("xlog: unknown level")

	// ErrUnknownFormat 无法识别的输出格式。
	ErrUnknownFormat = errors.New("xlog: unknown format")
)
