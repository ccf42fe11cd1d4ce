package xexport

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xotel/pkg/observability/xlog"
	"github.com/omeyang/xotel/pkg/observability/xmetrics"
	"github.com/omeyang/xotel/pkg/observability/xtrace"
)

var (
	testTraceID = trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
	testSpanID  = trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7}
	testTime    = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)
)

func testResource() *resource.Resource {
	return resource.NewSchemaless(attribute.String("service.name", "xexport-test"))
}

func testRecords(n int) []xlog.Record {
	out := make([]xlog.Record, n)
	for i := range out {
		out[i] = xlog.Record{
			Time:       testTime,
			Level:      xlog.LevelInfo,
			Body:       "hello",
			Scope:      "yoda.practice",
			Attrs:      []attribute.KeyValue{attribute.Int("i", i)},
			TraceID:    testTraceID,
			SpanID:     testSpanID,
			TraceFlags: trace.FlagsSampled,
		}
	}
	return out
}

func testSpans(n int) []xtrace.SpanData {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    testTraceID,
		SpanID:     testSpanID,
		TraceFlags: trace.FlagsSampled,
	})
	out := make([]xtrace.SpanData, n)
	for i := range out {
		out[i] = xtrace.SpanData{
			Name:        "practice",
			Kind:        trace.SpanKindServer,
			SpanContext: sc,
			StartTime:   testTime,
			EndTime:     testTime.Add(time.Second),
			Status:      xtrace.Status{Code: codes.Error, Description: "boom"},
			Attributes:  []attribute.KeyValue{attribute.Bool("practice", true)},
			Events:      []xtrace.Event{{Name: "tick", Time: testTime}},
			Scope:       "yoda.practice",
			Resource:    testResource(),
		}
	}
	return out
}

// testMetrics 生成包含 counter 与 histogram 的累计快照。
func testMetrics() *metricdata.ResourceMetrics {
	reg := xmetrics.NewRegistry(xmetrics.WithResource(testResource()))
	meter := reg.Meter("yoda.practice")
	ctx := context.Background()
	counter, err := meter.Int64Counter("counter")
	if err != nil {
		panic(err)
	}
	hist, err := meter.Float64Histogram("latency", xmetrics.WithBuckets(1, 10))
	if err != nil {
		panic(err)
	}
	_ = counter.Add(ctx, 3, attribute.Bool("practice", true))
	_ = counter.Add(ctx, 2, attribute.String("mode", "x"))
	_ = hist.Record(ctx, 0.5)
	_ = hist.Record(ctx, 5)
	_ = hist.Record(ctx, 50)
	return reg.Collect(ctx)
}
