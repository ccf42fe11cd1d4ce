package xexport

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/omeyang/xotel/pkg/observability/xlog"
	"github.com/omeyang/xotel/pkg/observability/xrotate"
	"github.com/omeyang/xotel/pkg/observability/xtrace"
	"github.com/omeyang/xotel/pkg/resilience/xretry"
)

// Writer 把 OTLP 请求以 protojson 单行写入 io.Writer。
//
// 三类导出器共享同一个 Writer，写入互斥，每个请求一行。
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	res    *resource.Resource
	shared *sharedCloser
}

// NewWriter 写入 w，不负责关闭 w。
func NewWriter(w io.Writer, opts ...Option) (*Writer, error) {
	if w == nil {
		return nil, ErrNilWriter
	}
	return newWriter(w, nil, applyOptions(opts)), nil
}

// NewFile 写入按大小轮转的文件，最后一个导出器 Shutdown 后关闭文件。
func NewFile(path string, opts ...Option) (*Writer, error) {
	cfg := applyOptions(opts)
	rot, err := xrotate.NewLumberjack(path,
		xrotate.WithMaxSize(cfg.maxSizeMB),
		xrotate.WithMaxBackups(cfg.maxBackups),
	)
	if err != nil {
		return nil, fmt.Errorf("xexport: open file %q: %w", path, err)
	}
	return newWriter(rot, rot.Close, cfg), nil
}

func newWriter(w io.Writer, closeFn func() error, cfg config) *Writer {
	return &Writer{
		w:      w,
		res:    cfg.res,
		shared: newSharedCloser(closeFn),
	}
}

// Close 立即关闭底层输出。
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	return w.shared.Close()
}

func (w *Writer) write(m proto.Message) error {
	b, err := protojson.Marshal(m)
	if err != nil {
		return xretry.NewPermanentError(fmt.Errorf("xexport: marshal: %w", err))
	}
	b = append(b, '\n')
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shared.isClosed() {
		return xretry.NewPermanentError(ErrClosed)
	}
	if _, err := w.w.Write(b); err != nil {
		return fmt.Errorf("xexport: write: %w", err)
	}
	return nil
}

type writerExporter struct {
	w       *Writer
	closed  atomic.Bool
	release func() error
}

func newWriterExporter(w *Writer) writerExporter {
	return writerExporter{w: w, release: w.shared.acquire()}
}

func (e *writerExporter) check() error {
	if e.closed.Load() {
		return xretry.NewPermanentError(ErrClosed)
	}
	return nil
}

// Shutdown 释放对 Writer 的引用。
func (e *writerExporter) Shutdown(context.Context) error {
	if e.closed.Swap(true) {
		return nil
	}
	return e.release()
}

// WriterLogExporter 日志写出。
type WriterLogExporter struct{ writerExporter }

// LogExporter 创建日志导出器。
func (w *Writer) LogExporter() *WriterLogExporter {
	return &WriterLogExporter{newWriterExporter(w)}
}

// Export 写出一批日志。
func (e *WriterLogExporter) Export(_ context.Context, records []xlog.Record) error {
	if err := e.check(); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	return e.w.write(LogsRequest(e.w.res, records))
}

// WriterSpanExporter span 写出。
type WriterSpanExporter struct{ writerExporter }

// SpanExporter 创建 span 导出器。
func (w *Writer) SpanExporter() *WriterSpanExporter {
	return &WriterSpanExporter{newWriterExporter(w)}
}

// Export 写出一批 span。
func (e *WriterSpanExporter) Export(_ context.Context, spans []xtrace.SpanData) error {
	if err := e.check(); err != nil {
		return err
	}
	if len(spans) == 0 {
		return nil
	}
	return e.w.write(TracesRequest(e.w.res, spans))
}

// WriterMetricExporter 指标写出。
type WriterMetricExporter struct{ writerExporter }

// MetricExporter 创建指标导出器。
func (w *Writer) MetricExporter() *WriterMetricExporter {
	return &WriterMetricExporter{newWriterExporter(w)}
}

// Export 写出一份指标快照。
func (e *WriterMetricExporter) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	if err := e.check(); err != nil {
		return err
	}
	if rm == nil || len(rm.ScopeMetrics) == 0 {
		return nil
	}
	return e.w.write(MetricsRequest(rm))
}
