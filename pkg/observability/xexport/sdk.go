package xexport

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/sdk/instrumentation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/omeyang/xotel/pkg/observability/xbatch"
	"github.com/omeyang/xotel/pkg/observability/xmetrics"
	"github.com/omeyang/xotel/pkg/observability/xtrace"
)

// SDKSpanExporter 把 sdktrace.SpanExporter 适配为 span 导出器，
// 可直接复用 stdouttrace 等 SDK 生态的导出器。
type SDKSpanExporter struct {
	exp sdktrace.SpanExporter
}

// NewSDKSpanExporter 包装 exp。
func NewSDKSpanExporter(exp sdktrace.SpanExporter) (*SDKSpanExporter, error) {
	if exp == nil {
		return nil, ErrNilExporter
	}
	return &SDKSpanExporter{exp: exp}, nil
}

// Export 转换为只读 span 后交给 SDK 导出器。
func (e *SDKSpanExporter) Export(ctx context.Context, spans []xtrace.SpanData) error {
	if len(spans) == 0 {
		return nil
	}
	return e.exp.ExportSpans(ctx, ReadOnlySpans(spans))
}

// Shutdown 关闭 SDK 导出器。
func (e *SDKSpanExporter) Shutdown(ctx context.Context) error {
	return e.exp.Shutdown(ctx)
}

// ReadOnlySpans 把 span 快照转换为 SDK 的只读 span。
func ReadOnlySpans(spans []xtrace.SpanData) []sdktrace.ReadOnlySpan {
	stubs := make(tracetest.SpanStubs, len(spans))
	for i := range spans {
		stubs[i] = spanStub(&spans[i])
	}
	return stubs.Snapshots()
}

func spanStub(s *xtrace.SpanData) tracetest.SpanStub {
	events := make([]sdktrace.Event, len(s.Events))
	for i, ev := range s.Events {
		events[i] = sdktrace.Event{Name: ev.Name, Time: ev.Time, Attributes: ev.Attributes}
	}
	return tracetest.SpanStub{
		Name:                 s.Name,
		SpanContext:          s.SpanContext,
		Parent:               s.Parent,
		SpanKind:             s.Kind,
		StartTime:            s.StartTime,
		EndTime:              s.EndTime,
		Attributes:           s.Attributes,
		Events:               events,
		Status:               sdktrace.Status{Code: s.Status.Code, Description: s.Status.Description},
		DroppedAttributes:    s.DroppedAttributes,
		DroppedEvents:        s.DroppedEvents,
		Resource:             s.Resource,
		InstrumentationScope: instrumentation.Scope{Name: s.Scope},
	}
}

// SDKMetricExporter 把 sdkmetric.Exporter 适配为指标导出器。
//
// 快照的时间性由 Registry 决定，不再询问 SDK 导出器的 Temporality。
type SDKMetricExporter struct {
	exp sdkmetric.Exporter
}

// NewSDKMetricExporter 包装 exp。
func NewSDKMetricExporter(exp sdkmetric.Exporter) (*SDKMetricExporter, error) {
	if exp == nil {
		return nil, ErrNilExporter
	}
	return &SDKMetricExporter{exp: exp}, nil
}

// Export 交给 SDK 导出器。
func (e *SDKMetricExporter) Export(ctx context.Context, rm *metricdata.ResourceMetrics) error {
	if rm == nil {
		return nil
	}
	return e.exp.Export(ctx, rm)
}

// Shutdown 先刷新再关闭 SDK 导出器。
func (e *SDKMetricExporter) Shutdown(ctx context.Context) error {
	return errors.Join(e.exp.ForceFlush(ctx), e.exp.Shutdown(ctx))
}

var (
	_ xbatch.Exporter[xtrace.SpanData] = (*SDKSpanExporter)(nil)
	_ xmetrics.Exporter                = (*SDKMetricExporter)(nil)
)
