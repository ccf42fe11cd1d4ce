package xexport

import "errors"

var (
	// ErrEmptyEndpoint 未指定 collector 地址。
	ErrEmptyEndpoint = errors.New("xexport: endpoint is empty")

	// ErrNilWriter 未指定输出。
	ErrNilWriter = errors.New("xexport: writer cannot be nil")

	// ErrNilExporter 未指定被包装的导出器。
	ErrNilExporter = errors.New("xexport: exporter cannot be nil")

	// ErrRejected collector 拒绝了部分数据。
	ErrRejected = errors.New("xexport: rejected by collector")

	// ErrClosed 导出器已关闭。
	ErrClosed = errors.New("xexport: exporter is closed")
)
