package xmetrics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xotel/pkg/lifecycle/xrun"
	"github.com/omeyang/xotel/pkg/observability/xlog"
)

// 默认值。
const (
	DefaultInterval = 5000 * time.Millisecond
	DefaultTimeout  = 30 * time.Second
)

// Exporter 指标导出器。Export 不会被并发调用。
type Exporter interface {
	Export(ctx context.Context, rm *metricdata.ResourceMetrics) error
	Shutdown(ctx context.Context) error
}

// ExporterFunc 将函数适配为 Exporter，Shutdown 为空操作。
type ExporterFunc func(ctx context.Context, rm *metricdata.ResourceMetrics) error

func (f ExporterFunc) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	return f(ctx, rm)
}

func (f ExporterFunc) Shutdown(context.Context) error { return nil }

type readerOptions struct {
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	onDrop   func(err error)
}

// ReaderOption 读取器配置选项，非法值被忽略。
type ReaderOption func(*readerOptions)

// WithInterval 设置采集间隔，默认 5000ms。
func WithInterval(d time.Duration) ReaderOption {
	return func(o *readerOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// WithTimeout 设置单次导出超时，默认 30s。
func WithTimeout(d time.Duration) ReaderOption {
	return func(o *readerOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger 设置内部日志记录器，默认 slog.Default()。
func WithLogger(l *slog.Logger) ReaderOption {
	return func(o *readerOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithOnDrop 设置快照导出失败时的回调。
func WithOnDrop(fn func(err error)) ReaderOption {
	return func(o *readerOptions) {
		o.onDrop = fn
	}
}

// ReaderStats 读取器计数
type ReaderStats struct {
	Collections int64
	Exported    int64
	Failed      int64
}

// PeriodicReader 周期性采集注册表并导出。
type PeriodicReader struct {
	registry *Registry
	exporter Exporter
	opts     readerOptions
	group    *xrun.Group
	done     chan struct{}

	// exportCtx 只在 Shutdown 超时时取消，正常停止不会打断进行中的导出
	exportCtx context.Context
	abort     context.CancelFunc

	// mu 串行化采集与导出
	mu      sync.Mutex
	stopped atomic.Bool

	collections atomic.Int64
	exported    atomic.Int64
	failed      atomic.Int64
}

// NewPeriodicReader 创建读取器并启动采集 goroutine。
func NewPeriodicReader(registry *Registry, exporter Exporter, opts ...ReaderOption) (*PeriodicReader, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if exporter == nil {
		return nil, ErrNilExporter
	}
	o := readerOptions{
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &PeriodicReader{
		registry: registry,
		exporter: exporter,
		opts:     o,
		done:     make(chan struct{}),
	}
	r.exportCtx, r.abort = context.WithCancel(context.Background())
	r.group, _ = xrun.NewGroup(context.Background(),
		xrun.WithName("metric-reader"),
		xrun.WithLogger(o.logger),
	)
	tick := xrun.Ticker(o.interval, false, func(context.Context) error {
		_ = r.collectAndExport(r.exportCtx)
		return nil
	})
	r.group.GoWithName("metric-reader", func(ctx context.Context) error {
		defer close(r.done)
		if err := tick(ctx); !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return r, nil
}

// ForceFlush 立即采集并导出一次。
func (r *PeriodicReader) ForceFlush(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if r.stopped.Load() {
		return ErrShutdown
	}
	return r.collectAndExport(ctx)
}

// Shutdown 停止周期采集，执行最后一次采集导出，然后关闭导出器。重复调用返回 nil。
func (r *PeriodicReader) Shutdown(ctx context.Context) error {
	if r == nil || !r.stopped.CompareAndSwap(false, true) {
		return nil
	}
	defer r.abort()

	r.group.Cancel(nil)
	var ctxErr error
	select {
	case <-r.done:
	case <-ctx.Done():
		ctxErr = ctx.Err()
		r.abort()
		<-r.done
	}
	_ = r.group.Wait()

	var finalErr error
	if ctxErr == nil {
		finalErr = r.collectAndExport(ctx)
	}
	return errors.Join(ctxErr, finalErr, r.exporter.Shutdown(ctx))
}

// Stats 返回计数快照
func (r *PeriodicReader) Stats() ReaderStats {
	if r == nil {
		return ReaderStats{}
	}
	return ReaderStats{
		Collections: r.collections.Load(),
		Exported:    r.exported.Load(),
		Failed:      r.failed.Load(),
	}
}

func (r *PeriodicReader) collectAndExport(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.registry.Collect(ctx)
	r.collections.Add(1)
	if len(rm.ScopeMetrics) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.timeout)
	defer cancel()
	if err := r.exporter.Export(ctx, rm); err != nil {
		r.failed.Add(1)
		r.opts.logger.Warn("metric export failed, snapshot dropped",
			xlog.Component("metric-reader"),
			xlog.Err(err),
		)
		if r.opts.onDrop != nil {
			r.opts.onDrop(err)
		}
		return err
	}
	r.exported.Add(1)
	return nil
}
