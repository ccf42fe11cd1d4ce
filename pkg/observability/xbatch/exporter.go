package xbatch

import (
	"context"
	"fmt"
)

//go:generate mockgen -source=exporter.go -destination=mock_exporter_test.go -package=xbatch

// Exporter 批量导出器。
//
// Export 返回 nil 表示全部成功，*PartialError 表示部分接收，其他错误表示失败。
// Export 只由处理器的 worker 调用，不会并发。
type Exporter[T any] interface {
	Export(ctx context.Context, batch []T) error
	Shutdown(ctx context.Context) error
}

// PartialError 导出器部分接收了批次。被拒绝的元素不重试。
type PartialError struct {
	// Accepted 被接收的元素个数。
	Accepted int
	Err      error
}

func (e *PartialError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("partial success: %d accepted", e.Accepted)
	}
	return fmt.Sprintf("partial success: %d accepted: %v", e.Accepted, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Retryable 恒为 false。
func (e *PartialError) Retryable() bool { return false }

// ExporterFunc 将函数适配为 Exporter，Shutdown 为空操作。
type ExporterFunc[T any] func(ctx context.Context, batch []T) error

func (f ExporterFunc[T]) Export(ctx context.Context, batch []T) error { return f(ctx, batch) }

func (f ExporterFunc[T]) Shutdown(context.Context) error { return nil }
