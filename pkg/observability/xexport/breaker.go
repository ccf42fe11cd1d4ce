package xexport

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xotel/pkg/observability/xbatch"
	"github.com/omeyang/xotel/pkg/observability/xmetrics"
	"github.com/omeyang/xotel/pkg/resilience/xbreaker"
	"github.com/omeyang/xotel/pkg/resilience/xretry"
)

// collectorUp 只有可重试错误说明 collector 不可用；
// 部分成功与永久错误都表示对端已响应，不计入熔断失败。
func collectorUp(err error) bool {
	if err == nil {
		return true
	}
	var pe *xbatch.PartialError
	if errors.As(err, &pe) {
		return true
	}
	return !xretry.IsRetryable(err)
}

func newExportBreaker(name string, opts []xbreaker.BreakerOption) *xbreaker.Breaker {
	all := make([]xbreaker.BreakerOption, 0, len(opts)+1)
	all = append(all, xbreaker.WithSuccessPolicy(xbreaker.SuccessFunc(collectorUp)))
	all = append(all, opts...)
	return xbreaker.NewBreaker(name, all...)
}

// BreakerExporter 为批量导出器加熔断保护。
//
// 熔断打开时 Export 立即返回 *xbreaker.BreakerError，它不可重试，
// 批处理器直接丢弃该批次而不是在不可用的 collector 上耗尽重试。
type BreakerExporter[T any] struct {
	next    xbatch.Exporter[T]
	breaker *xbreaker.Breaker
}

// NewBreakerExporter 包装 next，opts 可覆盖默认的成功判定。
func NewBreakerExporter[T any](name string, next xbatch.Exporter[T], opts ...xbreaker.BreakerOption) (*BreakerExporter[T], error) {
	if next == nil {
		return nil, ErrNilExporter
	}
	return &BreakerExporter[T]{next: next, breaker: newExportBreaker(name, opts)}, nil
}

// Export 在熔断保护下导出。
func (e *BreakerExporter[T]) Export(ctx context.Context, batch []T) error {
	return e.breaker.Do(ctx, func() error {
		return e.next.Export(ctx, batch)
	})
}

// Shutdown 关闭被包装的导出器，不经过熔断器。
func (e *BreakerExporter[T]) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

// State 返回熔断器状态。
func (e *BreakerExporter[T]) State() xbreaker.State {
	return e.breaker.State()
}

// BreakerMetricExporter 为指标导出器加熔断保护。
type BreakerMetricExporter struct {
	next    xmetrics.Exporter
	breaker *xbreaker.Breaker
}

// NewBreakerMetricExporter 包装 next。
func NewBreakerMetricExporter(name string, next xmetrics.Exporter, opts ...xbreaker.BreakerOption) (*BreakerMetricExporter, error) {
	if next == nil {
		return nil, ErrNilExporter
	}
	return &BreakerMetricExporter{next: next, breaker: newExportBreaker(name, opts)}, nil
}

// Export 在熔断保护下导出。
func (e *BreakerMetricExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	return e.breaker.Do(ctx, func() error {
		return e.next.Export(ctx, rm)
	})
}

// Shutdown 关闭被包装的导出器。
func (e *BreakerMetricExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

// State 返回熔断器状态。
func (e *BreakerMetricExporter) State() xbreaker.State {
	return e.breaker.State()
}
