package xmetrics

import "errors"

var (
	// ErrNegativeDelta 单调计数器收到负增量。
	ErrNegativeDelta = errors.New("xmetrics: counter delta must be non-negative")

	// ErrInvalidValue 值为 NaN 或 Inf。
	ErrInvalidValue = errors.New("xmetrics: value must be finite")

	// ErrInvalidName 仪表名不符合命名规则。
	ErrInvalidName = errors.New("xmetrics: invalid instrument name")

	// ErrInstrumentConflict 同名仪表已以其他类型注册。
	ErrInstrumentConflict = errors.New("xmetrics: instrument already registered with a different kind")

	// ErrInvalidBuckets 直方图桶边界未严格递增或包含 NaN/Inf。
	ErrInvalidBuckets = errors.New("xmetrics: invalid histogram buckets")

	// ErrNilRegistry 未提供注册表。
	ErrNilRegistry = errors.New("xmetrics: registry cannot be nil")

	// ErrNilExporter 未提供导出器。
	ErrNilExporter = errors.New("xmetrics: exporter cannot be nil")

	// ErrUnknownTemporality 无法识别的时间性。
	ErrUnknownTemporality = errors.New("xmetrics: unknown temporality")

	// ErrShutdown 读取器已关闭。
	ErrShutdown = errors.New("xmetrics: reader is shut down")
)
