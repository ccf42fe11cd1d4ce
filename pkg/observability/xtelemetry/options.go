package xtelemetry

import (
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/omeyang/xotel/pkg/config/xconf"
	"github.com/omeyang/xotel/pkg/observability/xbatch"
	"github.com/omeyang/xotel/pkg/observability/xlog"
	"github.com/omeyang/xotel/pkg/observability/xmetrics"
	"github.com/omeyang/xotel/pkg/observability/xtrace"
)

type options struct {
	cfg            *xconf.Telemetry
	res            *resource.Resource
	sampler        xtrace.Sampler
	logExporter    xbatch.Exporter[xlog.Record]
	spanExporter   xbatch.Exporter[xtrace.SpanData]
	metricExporter xmetrics.Exporter
	promRegisterer prometheus.Registerer
	console        io.Writer
	logOutput      io.Writer
	logFormat      string
	logger         *slog.Logger
	breaker        bool
}

// Option Provider 配置选项。
type Option func(*options)

// WithConfig 使用 cfg，默认 xconf.Default()。
func WithConfig(cfg *xconf.Telemetry) Option {
	return func(o *options) {
		if cfg != nil {
			o.cfg = cfg
		}
	}
}

// WithResource 覆盖由配置生成的资源。
func WithResource(res *resource.Resource) Option {
	return func(o *options) { o.res = res }
}

// WithSampler 覆盖由 sample_ratio 生成的采样器。
func WithSampler(s xtrace.Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithLogExporter 注入日志导出器，覆盖配置。
func WithLogExporter(e xbatch.Exporter[xlog.Record]) Option {
	return func(o *options) { o.logExporter = e }
}

// WithSpanExporter 注入 span 导出器，覆盖配置。
func WithSpanExporter(e xbatch.Exporter[xtrace.SpanData]) Option {
	return func(o *options) { o.spanExporter = e }
}

// WithMetricExporter 注入指标导出器，覆盖配置。
func WithMetricExporter(e xmetrics.Exporter) Option {
	return func(o *options) { o.metricExporter = e }
}

// WithPrometheus 额外把指标快照注册到 reg，与配置的指标导出器并存。
func WithPrometheus(reg prometheus.Registerer) Option {
	return func(o *options) { o.promRegisterer = reg }
}

// WithConsole 设置 console 导出器的输出，默认 os.Stdout。
func WithConsole(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.console = w
		}
	}
}

// WithLogOutput 设置日志的控制台输出，默认 os.Stderr，nil 关闭控制台输出。
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithLogFormat 控制台日志格式，text 或 json。
func WithLogFormat(format string) Option {
	return func(o *options) { o.logFormat = format }
}

// WithLogger 设置管线内部日志，默认 slog.Default()。
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithoutBreaker 不为 OTLP 导出器加熔断保护。
func WithoutBreaker() Option {
	return func(o *options) { o.breaker = false }
}
