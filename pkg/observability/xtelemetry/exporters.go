package xtelemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/omeyang/xotel/pkg/config/xconf"
	"github.com/omeyang/xotel/pkg/observability/xbatch"
	"github.com/omeyang/xotel/pkg/observability/xexport"
	"github.com/omeyang/xotel/pkg/observability/xlog"
	"github.com/omeyang/xotel/pkg/observability/xmetrics"
	"github.com/omeyang/xotel/pkg/observability/xtrace"
	"github.com/omeyang/xotel/pkg/resilience/xbreaker"
)

// exporters 三类信号的导出器，nil 表示该信号不导出。
type exporters struct {
	logs    xbatch.Exporter[xlog.Record]
	spans   xbatch.Exporter[xtrace.SpanData]
	metrics xmetrics.Exporter
}

// buildExporters 按配置补齐未注入的导出器。
func buildExporters(o *options, res *resource.Resource) (exporters, error) {
	ex := exporters{logs: o.logExporter, spans: o.spanExporter, metrics: o.metricExporter}
	if ex.logs != nil && ex.spans != nil && ex.metrics != nil {
		return ex, nil
	}
	cfg := o.cfg

	var err error
	switch cfg.Exporter {
	case xconf.ExporterOTLP:
		err = ex.fromOTLP(o, res)
	case xconf.ExporterConsole:
		err = ex.fromConsole(o, res)
	case xconf.ExporterFile:
		err = ex.fromFile(cfg, res)
	case xconf.ExporterNone:
	default:
		err = fmt.Errorf("%w: unknown exporter %q", xconf.ErrInvalidConfig, cfg.Exporter)
	}
	return ex, err
}

func (ex *exporters) fromOTLP(o *options, res *resource.Resource) error {
	cfg := o.cfg
	client, err := xexport.NewOTLP(cfg.Endpoint(),
		xexport.WithInsecure(cfg.Collector.Insecure),
		xexport.WithConnectTimeout(cfg.Collector.Timeout),
		xexport.WithResource(res),
	)
	if err != nil {
		return err
	}
	onChange := xbreaker.WithOnStateChange(func(name string, from, to xbreaker.State) {
		o.logger.Warn("collector breaker state changed",
			xlog.Component(name),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	if ex.logs == nil {
		var logs xbatch.Exporter[xlog.Record] = client.LogExporter()
		if o.breaker {
			logs = must(xexport.NewBreakerExporter("otlp-logs", logs, onChange))
		}
		ex.logs = logs
	}
	if ex.spans == nil {
		var spans xbatch.Exporter[xtrace.SpanData] = client.SpanExporter()
		if o.breaker {
			spans = must(xexport.NewBreakerExporter("otlp-spans", spans, onChange))
		}
		ex.spans = spans
	}
	if ex.metrics == nil {
		var metrics xmetrics.Exporter = client.MetricExporter()
		if o.breaker {
			metrics = must(xexport.NewBreakerMetricExporter("otlp-metrics", metrics, onChange))
		}
		ex.metrics = metrics
	}
	return nil
}

// fromConsole span 使用 stdouttrace，日志与指标以 OTLP JSON 行输出。
func (ex *exporters) fromConsole(o *options, res *resource.Resource) error {
	if ex.spans == nil {
		std, err := stdouttrace.New(stdouttrace.WithWriter(o.console))
		if err != nil {
			return fmt.Errorf("xtelemetry: create stdout exporter: %w", err)
		}
		ex.spans = must(xexport.NewSDKSpanExporter(std))
	}
	w, err := xexport.NewWriter(o.console, xexport.WithResource(res))
	if err != nil {
		return err
	}
	ex.fillFromWriter(w)
	return nil
}

func (ex *exporters) fromFile(cfg *xconf.Telemetry, res *resource.Resource) error {
	w, err := xexport.NewFile(cfg.File.Path,
		xexport.WithResource(res),
		xexport.WithMaxSizeMB(cfg.File.MaxSizeMB),
		xexport.WithMaxBackups(cfg.File.MaxBackups),
	)
	if err != nil {
		return err
	}
	ex.fillFromWriter(w)
	return nil
}

func (ex *exporters) fillFromWriter(w *xexport.Writer) {
	if ex.logs == nil {
		ex.logs = w.LogExporter()
	}
	if ex.spans == nil {
		ex.spans = w.SpanExporter()
	}
	if ex.metrics == nil {
		ex.metrics = w.MetricExporter()
	}
}

// shutdown 关闭尚未交给处理器的导出器，Init 失败时使用。
func (ex *exporters) shutdown(ctx context.Context) error {
	var errs []error
	if ex.logs != nil {
		errs = append(errs, ex.logs.Shutdown(ctx))
	}
	if ex.spans != nil {
		errs = append(errs, ex.spans.Shutdown(ctx))
	}
	if ex.metrics != nil {
		errs = append(errs, ex.metrics.Shutdown(ctx))
	}
	return errors.Join(errs...)
}

// must 用于参数已确定非 nil 的构造函数。
func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

// metricFanout 把同一份快照交给多个导出器。
type metricFanout []xmetrics.Exporter

func (f metricFanout) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	var errs []error
	for _, e := range f {
		errs = append(errs, e.Export(ctx, rm))
	}
	return errors.Join(errs...)
}

func (f metricFanout) Shutdown(ctx context.Context) error {
	var errs []error
	for _, e := range f {
		errs = append(errs, e.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
