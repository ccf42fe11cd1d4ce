package xexport

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

func TestSDKSpanExporter(t *testing.T) {
	mem := tracetest.NewInMemoryExporter()
	exp, err := NewSDKSpanExporter(mem)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, exp.Export(ctx, testSpans(2)))
	require.NoError(t, exp.Export(ctx, nil))

	got := mem.GetSpans()
	require.Len(t, got, 2)
	s := got[0]
	assert.Equal(t, "practice", s.Name)
	assert.Equal(t, trace.SpanKindServer, s.SpanKind)
	assert.Equal(t, testTraceID, s.SpanContext.TraceID())
	assert.Equal(t, codes.Error, s.Status.Code)
	assert.Equal(t, "yoda.practice", s.InstrumentationScope.Name)
	require.Len(t, s.Events, 1)
	assert.Equal(t, "tick", s.Events[0].Name)

	require.NoError(t, exp.Shutdown(ctx))
	assert.Empty(t, mem.GetSpans())
}

func TestSDKSpanExporter_Stdout(t *testing.T) {
	var buf bytes.Buffer
	std, err := stdouttrace.New(stdouttrace.WithWriter(&buf))
	require.NoError(t, err)
	exp, err := NewSDKSpanExporter(std)
	require.NoError(t, err)

	require.NoError(t, exp.Export(context.Background(), testSpans(1)))
	require.NoError(t, exp.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), `"Name":"practice"`)
}

func TestNewSDKExporters_Nil(t *testing.T) {
	_, err := NewSDKSpanExporter(nil)
	require.ErrorIs(t, err, ErrNilExporter)
	_, err = NewSDKMetricExporter(nil)
	require.ErrorIs(t, err, ErrNilExporter)
}

// sdkMetricStub 记录调用的 sdkmetric.Exporter。
type sdkMetricStub struct {
	mu       sync.Mutex
	exported []*metricdata.ResourceMetrics
	flushed  bool
	shutdown bool
}

func (s *sdkMetricStub) Temporality(k sdkmetric.InstrumentKind) metricdata.Temporality {
	return sdkmetric.DefaultTemporalitySelector(k)
}

func (s *sdkMetricStub) Aggregation(k sdkmetric.InstrumentKind) sdkmetric.Aggregation {
	return sdkmetric.DefaultAggregationSelector(k)
}

func (s *sdkMetricStub) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exported = append(s.exported, rm)
	return nil
}

func (s *sdkMetricStub) ForceFlush(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushed = true
	return nil
}

func (s *sdkMetricStub) Shutdown(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	return nil
}

func TestSDKMetricExporter(t *testing.T) {
	stub := &sdkMetricStub{}
	exp, err := NewSDKMetricExporter(stub)
	require.NoError(t, err)
	ctx := context.Background()

	rm := testMetrics()
	require.NoError(t, exp.Export(ctx, rm))
	require.NoError(t, exp.Export(ctx, nil))
	require.NoError(t, exp.Shutdown(ctx))

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.exported, 1)
	assert.Same(t, rm, stub.exported[0])
	assert.True(t, stub.flushed)
	assert.True(t, stub.shutdown)
}
