package xlog

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// 无活跃 span 时写入的哨兵值。
const (
	NoTraceID = "0"
	NoSpanID  = "0"
)

// EnrichHandler 为每条日志追加追踪关联字段的 slog.Handler 装饰器。
//
// 追加 trace_id、span_id、trace_sampled，配置了服务名时追加 service.name。
// 不修改级别与消息。
type EnrichHandler struct {
	base        slog.Handler
	serviceName string
}

// EnrichOption EnrichHandler 配置选项
type EnrichOption func(*EnrichHandler)

// WithServiceName 为每条日志追加 service.name。
func WithServiceName(name string) EnrichOption {
	return func(h *EnrichHandler) {
		h.serviceName = name
	}
}

// NewEnrichHandler 创建 EnrichHandler
func NewEnrichHandler(base slog.Handler, opts ...EnrichOption) (*EnrichHandler, error) {
	if base == nil {
		return nil, ErrNilHandler
	}
	h := &EnrichHandler{base: base}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Enabled 委托给底层 handler
func (h *EnrichHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.base.Enabled(ctx, level)
}

// Handle 按 slog 约定先 Clone 再追加属性。
func (h *EnrichHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf [4]slog.Attr
	attrs := AppendTraceAttrs(buf[:0], ctx)
	if h.serviceName != "" {
		attrs = append(attrs, slog.String(KeyServiceName, h.serviceName))
	}

	r = r.Clone()
	r.AddAttrs(attrs...)
	return h.base.Handle(ctx, r)
}

// WithAttrs 返回带额外属性的新 handler
func (h *EnrichHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EnrichHandler{base: h.base.WithAttrs(attrs), serviceName: h.serviceName}
}

// WithGroup 返回带分组的新 handler
func (h *EnrichHandler) WithGroup(name string) slog.Handler {
	return &EnrichHandler{base: h.base.WithGroup(name), serviceName: h.serviceName}
}

// AppendTraceAttrs 追加 ctx 中当前 span 的 trace_id、span_id、trace_sampled。
//
// ctx 为 nil 或没有有效 span 时追加哨兵值。
func AppendTraceAttrs(dst []slog.Attr, ctx context.Context) []slog.Attr {
	sc := spanContext(ctx)
	if !sc.IsValid() {
		return append(dst,
			slog.String(KeyTraceID, NoTraceID),
			slog.String(KeySpanID, NoSpanID),
			slog.Bool(KeyTraceSampled, false),
		)
	}
	return append(dst,
		slog.String(KeyTraceID, sc.TraceID().String()),
		slog.String(KeySpanID, sc.SpanID().String()),
		slog.Bool(KeyTraceSampled, sc.IsSampled()),
	)
}

func spanContext(ctx context.Context) trace.SpanContext {
	if ctx == nil {
		return trace.SpanContext{}
	}
	return trace.SpanContextFromContext(ctx)
}
