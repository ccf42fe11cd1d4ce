package xbatch

import "errors"

var (
	// ErrQueueFull 队列已满，元素被丢弃。
	ErrQueueFull = errors.New("xbatch: queue is full")

	// ErrShutdown 处理器已关闭。
	ErrShutdown = errors.New("xbatch: processor is shut down")

	// ErrNilExporter 未提供导出器。
	ErrNilExporter = errors.New("xbatch: exporter cannot be nil")

	// ErrUnknownDropPolicy 无法识别的丢弃策略名。
	ErrUnknownDropPolicy = errors.New("xbatch: unknown drop policy")
)
