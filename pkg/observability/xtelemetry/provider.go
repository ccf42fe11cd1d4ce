package xtelemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/omeyang/xotel/pkg/config/xconf"
	"github.com/omeyang/xotel/pkg/observability/xbatch"
	"github.com/omeyang/xotel/pkg/observability/xexport"
	"github.com/omeyang/xotel/pkg/observability/xlog"
	"github.com/omeyang/xotel/pkg/observability/xmetrics"
	"github.com/omeyang/xotel/pkg/observability/xresource"
	"github.com/omeyang/xotel/pkg/observability/xtrace"
)

// 自监控指标。
const (
	SelfScope          = "xotel"
	DroppedMetricName  = "xotel.processor.dropped"
	AttrSignal         = "signal"
	AttrReason         = "reason"
	SignalLogs         = "logs"
	SignalSpans        = "spans"
	SignalMetrics      = "metrics"
	reasonExportFailed = "export_failed"
)

// Stats 各管线的运行计数。
type Stats struct {
	Logs    xbatch.Stats
	Spans   xbatch.Stats
	Metrics xmetrics.ReaderStats
}

// Provider 持有三条管线，Init 后可用。所有方法并发安全。
type Provider struct {
	opts  options
	state atomic.Int32
	mu    sync.Mutex

	res      *resource.Resource
	levelVar *slog.LevelVar
	tracer   *xtrace.Provider
	registry *xmetrics.Registry
	reader   *xmetrics.PeriodicReader
	logProc  *xbatch.Processor[xlog.Record]
	spanProc *xbatch.Processor[xtrace.SpanData]
	dropped  *xmetrics.Int64Counter

	loggersMu sync.Mutex
	loggers   map[string]xlog.Logger
}

// New 创建未初始化的 Provider。
func New(opts ...Option) *Provider {
	o := options{
		cfg:       xconf.Default(),
		console:   os.Stdout,
		logOutput: os.Stderr,
		logFormat: "text",
		logger:    slog.Default(),
		breaker:   true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return &Provider{opts: o, loggers: make(map[string]xlog.Logger)}
}

// Setup 等价于 New(WithConfig(cfg), opts...).Init(ctx)。
func Setup(ctx context.Context, cfg *xconf.Telemetry, opts ...Option) (*Provider, error) {
	if cfg == nil {
		return nil, ErrNilConfig
	}
	p := New(append([]Option{WithConfig(cfg)}, opts...)...)
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// State 返回当前状态。
func (p *Provider) State() State {
	if p == nil {
		return StateUninitialized
	}
	return State(p.state.Load())
}

func (p *Provider) active() bool {
	return p.State() == StateActive
}

// Init 构建资源、导出器、处理器、Tracer 与指标读取器。
//
// 失败时已创建的部分被关闭，Provider 保持 Uninitialized，可以修正后重试。
func (p *Provider) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.State() {
	case StateUninitialized:
	case StateActive:
		return ErrAlreadyInitialized
	default:
		return ErrTerminated
	}

	cfg := p.opts.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}
	level, err := xlog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	temporality, err := xmetrics.ParseTemporality(cfg.Metrics.Temporality)
	if err != nil {
		return err
	}
	logPolicy, err := xbatch.ParseDropPolicy(cfg.Logs.DropPolicy)
	if err != nil {
		return err
	}
	spanPolicy, err := xbatch.ParseDropPolicy(cfg.Spans.DropPolicy)
	if err != nil {
		return err
	}
	sampler, err := p.sampler()
	if err != nil {
		return err
	}

	res := p.opts.res
	if res == nil {
		res = xresource.New(
			xresource.WithServiceName(cfg.Service.Name),
			xresource.WithServiceVersion(cfg.Service.Version),
			xresource.WithInstanceID(cfg.Service.InstanceID),
		)
	}

	ex, err := buildExporters(&p.opts, res)
	if err != nil {
		return errors.Join(err, ex.shutdown(ctx))
	}
	metricExp := ex.metrics
	if reg := p.opts.promRegisterer; reg != nil {
		prom := xexport.NewPrometheusExporter()
		if err := reg.Register(prom); err != nil {
			return errors.Join(fmt.Errorf("xtelemetry: register prometheus: %w", err), ex.shutdown(ctx))
		}
		if metricExp == nil {
			metricExp = prom
		} else {
			metricExp = metricFanout{metricExp, prom}
		}
	}

	registry := xmetrics.NewRegistry(xmetrics.WithResource(res), xmetrics.WithTemporality(temporality))
	dropped, err := registry.Meter(SelfScope).Int64Counter(DroppedMetricName,
		xmetrics.WithDescription("Telemetry items dropped by the export pipeline."))
	if err != nil {
		return errors.Join(err, ex.shutdown(ctx))
	}
	p.dropped = dropped

	// 参数均已校验，以下构造不会失败；处理器接管导出器的关闭。
	var (
		logProc  *xbatch.Processor[xlog.Record]
		spanProc *xbatch.Processor[xtrace.SpanData]
		reader   *xmetrics.PeriodicReader
	)
	if ex.logs != nil {
		logProc = must(newProcessor(ex.logs, SignalLogs, cfg.Logs, logPolicy, p))
	}
	if ex.spans != nil {
		spanProc = must(newProcessor(ex.spans, SignalSpans, cfg.Spans, spanPolicy, p))
	}
	if metricExp != nil {
		reader = must(xmetrics.NewPeriodicReader(registry, metricExp,
			xmetrics.WithInterval(cfg.Metrics.Interval),
			xmetrics.WithTimeout(cfg.Metrics.Timeout),
			xmetrics.WithLogger(p.opts.logger),
			xmetrics.WithOnDrop(func(error) { p.recordDrop(SignalMetrics, reasonExportFailed, 1) }),
		))
	}

	tracerOpts := []xtrace.ProviderOption{xtrace.WithSampler(sampler), xtrace.WithResource(res)}
	if spanProc != nil {
		tracerOpts = append(tracerOpts, xtrace.WithSink(spanProc))
	}

	p.levelVar = new(slog.LevelVar)
	p.levelVar.Set(slog.Level(level))
	p.res = res
	p.registry = registry
	p.reader = reader
	p.logProc = logProc
	p.spanProc = spanProc
	p.tracer = xtrace.NewProvider(tracerOpts...)
	p.state.Store(int32(StateActive))

	p.opts.logger.Debug("telemetry initialized",
		slog.String("exporter", cfg.Exporter),
		slog.String(xlog.KeyServiceName, xresource.ServiceName(res)),
	)
	return nil
}

func (p *Provider) sampler() (xtrace.Sampler, error) {
	if p.opts.sampler != nil {
		return p.opts.sampler, nil
	}
	root, err := xtrace.TraceIDRatioBased(p.opts.cfg.SampleRatio)
	if err != nil {
		return nil, err
	}
	return xtrace.ParentBased(root), nil
}

func newProcessor[T any](exp xbatch.Exporter[T], signal string, cfg xconf.BatchConfig, policy xbatch.DropPolicy, p *Provider) (*xbatch.Processor[T], error) {
	return xbatch.New(exp,
		xbatch.WithName(signal),
		xbatch.WithMaxQueueSize(cfg.MaxQueueSize),
		xbatch.WithMaxBatchSize(cfg.MaxBatchSize),
		xbatch.WithBatchDelay(cfg.BatchDelay),
		xbatch.WithExportTimeout(cfg.ExportTimeout),
		xbatch.WithMaxAttempts(cfg.MaxAttempts),
		xbatch.WithDropPolicy(policy),
		xbatch.WithBlockTimeout(cfg.BlockTimeout),
		xbatch.WithLogger(p.opts.logger),
		xbatch.WithOnDrop(func(reason xbatch.DropReason, n int) {
			p.recordDrop(signal, string(reason), n)
		}),
	)
}

func (p *Provider) recordDrop(signal, reason string, n int) {
	_ = p.dropped.Add(context.Background(), int64(n), //nolint:errcheck // n 恒为正
		attribute.String(AttrSignal, signal),
		attribute.String(AttrReason, reason),
	)
}

// Shutdown 依次关闭指标读取器、追踪、日志管线，可重复调用。
//
// 未 Init 时直接进入 Terminated。ctx 到期后剩余数据被丢弃，不会阻塞。
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch p.State() {
	case StateUninitialized:
		p.state.Store(int32(StateTerminated))
		return nil
	case StateActive:
	default:
		return nil
	}
	p.state.Store(int32(StateShuttingDown))

	var errs []error
	if p.reader != nil {
		errs = append(errs, wrap("metrics", p.reader.Shutdown(ctx)))
	}
	errs = append(errs, p.tracer.Shutdown(ctx))
	if p.spanProc != nil {
		errs = append(errs, wrap("spans", p.spanProc.Shutdown(ctx)))
	}
	if p.logProc != nil {
		errs = append(errs, wrap("logs", p.logProc.Shutdown(ctx)))
	}

	p.loggersMu.Lock()
	clear(p.loggers)
	p.loggersMu.Unlock()
	p.state.Store(int32(StateTerminated))
	return errors.Join(errs...)
}

func wrap(signal string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("xtelemetry: shutdown %s: %w", signal, err)
}

// ForceFlush 立即导出三条管线中的积压数据。
func (p *Provider) ForceFlush(ctx context.Context) error {
	if !p.active() {
		return nil
	}
	var errs []error
	if p.spanProc != nil {
		errs = append(errs, p.spanProc.ForceFlush(ctx))
	}
	if p.logProc != nil {
		errs = append(errs, p.logProc.ForceFlush(ctx))
	}
	if p.reader != nil {
		errs = append(errs, p.reader.ForceFlush(ctx))
	}
	return errors.Join(errs...)
}

// Tracer 返回 Tracer，未激活时为空操作。
func (p *Provider) Tracer(name string) *xtrace.Tracer {
	if !p.active() {
		return (*xtrace.Provider)(nil).Tracer(name)
	}
	return p.tracer.Tracer(name)
}

// Meter 返回 Meter，未激活时为空操作。
func (p *Provider) Meter(name string) *xmetrics.Meter {
	if !p.active() {
		return (*xmetrics.Registry)(nil).Meter(name)
	}
	return p.registry.Meter(name)
}

// Logger 返回以 name 为 scope 的 Logger，同名复用。未激活时为空操作。
func (p *Provider) Logger(name string) xlog.Logger {
	if !p.active() {
		return xlog.Discard()
	}
	p.loggersMu.Lock()
	defer p.loggersMu.Unlock()
	if l, ok := p.loggers[name]; ok {
		return l
	}

	b := xlog.New().
		SetOutput(p.opts.logOutput).
		SetFormat(p.opts.logFormat).
		SetLevelVar(p.levelVar).
		SetServiceName(xresource.ServiceName(p.res)).
		SetScope(name)
	if p.logProc != nil {
		b.SetExport(p.logProc)
	}
	inner, _, err := b.Build()
	if err != nil {
		p.opts.logger.Warn("build logger failed", xlog.Component(name), xlog.Err(err))
		return xlog.Discard()
	}
	l := &gatedLogger{p: p, inner: inner}
	p.loggers[name] = l
	return l
}

// SetLevel 动态调整所有 Logger 的级别。
func (p *Provider) SetLevel(level xlog.Level) {
	if p.active() {
		p.levelVar.Set(slog.Level(level))
	}
}

// Resource 返回资源，未初始化时为 nil。
func (p *Provider) Resource() *resource.Resource {
	if p == nil || p.State() == StateUninitialized {
		return nil
	}
	return p.res
}

// Stats 返回各管线计数。
func (p *Provider) Stats() Stats {
	var s Stats
	if p == nil || p.State() == StateUninitialized {
		return s
	}
	s.Logs = p.logProc.Stats()
	s.Spans = p.spanProc.Stats()
	if p.reader != nil {
		s.Metrics = p.reader.Stats()
	}
	return s
}
