package xtrace

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
)

// SpanSink 接收结束且被采样的 Span。*xbatch.Processor[SpanData] 满足此接口。
//
// Enqueue 不得阻塞在网络 I/O 上；返回的错误被忽略。
type SpanSink interface {
	Enqueue(SpanData) error
}

// Provider 创建 Tracer，持有采样器、资源与 SpanSink。
type Provider struct {
	sampler  Sampler
	sink     SpanSink
	resource *resource.Resource
	stopped  atomic.Bool
}

// ProviderOption Provider 配置选项。
type ProviderOption func(*Provider)

// WithSampler 设置采样器，默认 ParentBased(AlwaysSample())。
func WithSampler(s Sampler) ProviderOption {
	return func(p *Provider) {
		if s != nil {
			p.sampler = s
		}
	}
}

// WithSink 设置 SpanSink。未设置时 Span 照常记录但不导出。
func WithSink(sink SpanSink) ProviderOption {
	return func(p *Provider) {
		p.sink = sink
	}
}

// WithResource 设置随 SpanData 导出的资源。
func WithResource(res *resource.Resource) ProviderOption {
	return func(p *Provider) {
		if res != nil {
			p.resource = res
		}
	}
}

// NewProvider 创建 Provider。
func NewProvider(opts ...ProviderOption) *Provider {
	p := &Provider{
		sampler:  ParentBased(AlwaysSample()),
		resource: resource.Empty(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Tracer 返回 name 作为 instrumentation scope 的 Tracer。nil Provider 返回空操作 Tracer。
func (p *Provider) Tracer(name string) *Tracer {
	return &Tracer{provider: p, name: name}
}

// Resource 返回 Provider 的资源。
func (p *Provider) Resource() *resource.Resource {
	if p == nil {
		return resource.Empty()
	}
	return p.resource
}

// Shutdown 停止创建记录 Span，之后结束的 Span 也不再交给 SpanSink。
// SpanSink 的关闭由调用方负责。可重复调用。
func (p *Provider) Shutdown(context.Context) error {
	if p != nil {
		p.stopped.Store(true)
	}
	return nil
}

func (p *Provider) active() bool {
	return p != nil && !p.stopped.Load()
}

func (p *Provider) emit(data SpanData) {
	if !p.active() || p.sink == nil {
		return
	}
	// 队列满由处理器计入丢弃；关闭后的 ErrShutdown 不计数，按空操作处理
	_ = p.sink.Enqueue(data) //nolint:errcheck
}

// Tracer 创建 Span。
type Tracer struct {
	provider *Provider
	name     string
}

type startConfig struct {
	kind      trace.SpanKind
	attrs     []attribute.KeyValue
	timestamp time.Time
	newRoot   bool
}

// StartOption Span 启动选项。
type StartOption func(*startConfig)

// WithSpanKind 设置 Span 类型，默认 Internal。
func WithSpanKind(kind trace.SpanKind) StartOption {
	return func(c *startConfig) { c.kind = kind }
}

// WithAttributes 设置初始属性，采样器可见。
func WithAttributes(attrs ...attribute.KeyValue) StartOption {
	return func(c *startConfig) { c.attrs = append(c.attrs, attrs...) }
}

// WithTimestamp 指定开始时间。
func WithTimestamp(t time.Time) StartOption {
	return func(c *startConfig) { c.timestamp = t }
}

// WithNewRoot 忽略 ctx 中的父 Span，开启新链路。
func WithNewRoot() StartOption {
	return func(c *startConfig) { c.newRoot = true }
}

// Start 创建 Span 并返回携带它的 ctx。
//
// Tracer 不可用（nil 或 Provider 已 Shutdown）时返回原 ctx 和一个非记录 Span。
func (t *Tracer) Start(ctx context.Context, name string, opts ...StartOption) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	if t == nil || !t.provider.active() {
		return ctx, &Span{sc: trace.SpanContextFromContext(ctx)}
	}

	cfg := startConfig{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.timestamp.IsZero() {
		cfg.timestamp = time.Now()
	}

	var parent trace.SpanContext
	if !cfg.newRoot {
		parent = trace.SpanContextFromContext(ctx)
	}
	traceID := parent.TraceID()
	if !parent.IsValid() {
		traceID = newTraceID()
	}

	decision := t.provider.sampler.ShouldSample(SamplingParameters{
		ParentContext: parent,
		TraceID:       traceID,
		Name:          name,
		Kind:          cfg.kind,
		Attributes:    cfg.attrs,
	})

	var flags trace.TraceFlags
	if decision == RecordAndSample {
		flags = flags.WithSampled(true)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     newSpanID(),
		TraceFlags: flags,
		TraceState: parent.TraceState(),
	})

	span := &Span{
		tracer:    t,
		sc:        sc,
		parent:    parent,
		kind:      cfg.kind,
		recording: decision != Drop,
		name:      name,
		start:     cfg.timestamp,
	}
	if span.recording {
		span.setAttributesLocked(cfg.attrs)
	}
	return ContextWithSpan(ctx, span), span
}

type spanKey struct{}

// ContextWithSpan 将 span 设为 ctx 的当前 Span。
func ContextWithSpan(ctx context.Context, span *Span) context.Context {
	ctx = context.WithValue(ctx, spanKey{}, span)
	return trace.ContextWithSpanContext(ctx, span.SpanContext())
}

// SpanFromContext 返回 ctx 的当前 Span，不存在时返回 nil（nil *Span 的方法均为空操作）。
func SpanFromContext(ctx context.Context) *Span {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(spanKey{}).(*Span)
	return s
}

// SpanContextFromContext 返回 ctx 中的 SpanContext，包括由 OTel 传播器写入的远端上下文。
func SpanContextFromContext(ctx context.Context) trace.SpanContext {
	if ctx == nil {
		return trace.SpanContext{}
	}
	return trace.SpanContextFromContext(ctx)
}
