package xlog

import (
	"context"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecordSink 日志记录的投递目标，通常是 xbatch.Processor[Record]。
//
// Enqueue 不得阻塞在网络 I/O 上。
type RecordSink interface {
	Enqueue(r Record) error
}

// ExportHandler 把 slog.Record 转换为 Record 并投递到 RecordSink 的 slog.Handler。
//
// 关联字段直接从 ctx 读取，同时写入 Record 的追踪字段和顶层属性；
// 没有 span 时属性为哨兵值 "0"/"0"/false。记录自带的同名属性（含分组内的）被跳过，
// service.name 由资源携带，同样跳过。投递失败不返回错误，只计入 Failed()。
type ExportHandler struct {
	sink   RecordSink
	level  slog.Leveler
	scope  string
	attrs  []attribute.KeyValue
	prefix string
	failed *atomic.Int64
}

// ExportOption ExportHandler 配置选项
type ExportOption func(*ExportHandler)

// WithExportLevel 设置最低导出级别，默认 Info。
func WithExportLevel(l slog.Leveler) ExportOption {
	return func(h *ExportHandler) {
		if l != nil {
			h.level = l
		}
	}
}

// WithScope 设置 Record.Scope。
func WithScope(name string) ExportOption {
	return func(h *ExportHandler) {
		h.scope = name
	}
}

// NewExportHandler 创建 ExportHandler
func NewExportHandler(sink RecordSink, opts ...ExportOption) (*ExportHandler, error) {
	if sink == nil {
		return nil, ErrNilSink
	}
	h := &ExportHandler{
		sink:   sink,
		level:  slog.LevelInfo,
		failed: new(atomic.Int64),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Enabled 按导出级别过滤
func (h *ExportHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle 转换并投递，始终返回 nil。
func (h *ExportHandler) Handle(ctx context.Context, r slog.Record) error {
	rec := Record{
		Time:         r.Time,
		ObservedTime: time.Now(),
		Level:        Level(r.Level),
		Body:         r.Message,
		Scope:        h.scope,
	}
	if rec.Time.IsZero() {
		rec.Time = rec.ObservedTime
	}
	sc := spanContext(ctx)
	if sc.IsValid() {
		rec.TraceID = sc.TraceID()
		rec.SpanID = sc.SpanID()
		rec.TraceFlags = sc.TraceFlags()
	}

	attrs := make([]attribute.KeyValue, 0, 3+len(h.attrs)+r.NumAttrs())
	attrs = appendTraceKeyValues(attrs, sc)
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if isCorrelationKey(a.Key) {
			return true
		}
		attrs = AppendAttr(attrs, h.prefix, a)
		return true
	})
	rec.Attrs = attrs

	if err := h.sink.Enqueue(rec); err != nil {
		h.failed.Add(1)
	}
	return nil
}

// WithAttrs 返回带预转换属性的新 handler
func (h *ExportHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	h2 := h.clone()
	for _, a := range attrs {
		if isCorrelationKey(a.Key) {
			continue
		}
		h2.attrs = AppendAttr(h2.attrs, h.prefix, a)
	}
	return h2
}

// WithGroup 返回带分组前缀的新 handler
func (h *ExportHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := h.clone()
	if h2.prefix == "" {
		h2.prefix = name
	} else {
		h2.prefix = h2.prefix + "." + name
	}
	return h2
}

// Failed 返回投递失败（队列满、已关闭）的记录数，派生 handler 共享计数。
func (h *ExportHandler) Failed() int64 {
	return h.failed.Load()
}

func (h *ExportHandler) clone() *ExportHandler {
	return &ExportHandler{
		sink:   h.sink,
		level:  h.level,
		scope:  h.scope,
		attrs:  slices.Clip(h.attrs),
		prefix: h.prefix,
		failed: h.failed,
	}
}

func appendTraceKeyValues(dst []attribute.KeyValue, sc trace.SpanContext) []attribute.KeyValue {
	if !sc.IsValid() {
		return append(dst,
			attribute.String(KeyTraceID, NoTraceID),
			attribute.String(KeySpanID, NoSpanID),
			attribute.Bool(KeyTraceSampled, false),
		)
	}
	return append(dst,
		attribute.String(KeyTraceID, sc.TraceID().String()),
		attribute.String(KeySpanID, sc.SpanID().String()),
		attribute.Bool(KeyTraceSampled, sc.IsSampled()),
	)
}

func isCorrelationKey(key string) bool {
	switch key {
	case KeyTraceID, KeySpanID, KeyTraceSampled, KeyServiceName:
		return true
	default:
		return false
	}
}
