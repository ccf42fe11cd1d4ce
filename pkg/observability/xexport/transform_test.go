package xexport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/omeyang/xotel/pkg/observability/xlog"
)

func TestLogsRequest(t *testing.T) {
	records := testRecords(2)
	records[1].Scope = "other"

	req := LogsRequest(testResource(), records)
	require.Len(t, req.GetResourceLogs(), 1)
	rl := req.GetResourceLogs()[0]
	assert.Equal(t, "service.name", rl.GetResource().GetAttributes()[0].GetKey())
	require.Len(t, rl.GetScopeLogs(), 2)
	assert.Equal(t, "yoda.practice", rl.GetScopeLogs()[0].GetScope().GetName())
	assert.Equal(t, "other", rl.GetScopeLogs()[1].GetScope().GetName())

	lr := rl.GetScopeLogs()[0].GetLogRecords()[0]
	assert.Equal(t, "hello", lr.GetBody().GetStringValue())
	assert.EqualValues(t, xlog.LevelInfo.Severity(), lr.GetSeverityNumber())
	assert.Equal(t, "INFO", lr.GetSeverityText())
	assert.Equal(t, testTraceID[:], lr.GetTraceId())
	assert.Equal(t, testSpanID[:], lr.GetSpanId())
	assert.EqualValues(t, testTime.UnixNano(), lr.GetTimeUnixNano())
}

func TestLogsRequest_NoTrace(t *testing.T) {
	records := testRecords(1)
	records[0].TraceID = [16]byte{}
	records[0].SpanID = [8]byte{}
	records[0].Attrs = []attribute.KeyValue{
		attribute.String(xlog.KeyTraceID, xlog.NoTraceID),
		attribute.String(xlog.KeySpanID, xlog.NoSpanID),
		attribute.Bool(xlog.KeyTraceSampled, false),
	}

	lr := LogsRequest(nil, records).GetResourceLogs()[0].GetScopeLogs()[0].GetLogRecords()[0]
	assert.Empty(t, lr.GetTraceId())
	assert.Empty(t, lr.GetSpanId())
	require.Len(t, lr.GetAttributes(), 3)
	assert.Equal(t, xlog.KeyTraceID, lr.GetAttributes()[0].GetKey())
	assert.Equal(t, xlog.NoTraceID, lr.GetAttributes()[0].GetValue().GetStringValue())
	assert.Equal(t, xlog.NoSpanID, lr.GetAttributes()[1].GetValue().GetStringValue())
	assert.False(t, lr.GetAttributes()[2].GetValue().GetBoolValue())
}

func TestTracesRequest(t *testing.T) {
	req := TracesRequest(nil, testSpans(1))
	require.Len(t, req.GetResourceSpans(), 1)
	rs := req.GetResourceSpans()[0]
	require.NotNil(t, rs.GetResource(), "resource taken from the first span")

	s := rs.GetScopeSpans()[0].GetSpans()[0]
	assert.Equal(t, "practice", s.GetName())
	assert.Equal(t, tracepb.Span_SPAN_KIND_SERVER, s.GetKind())
	assert.Equal(t, tracepb.Status_STATUS_CODE_ERROR, s.GetStatus().GetCode())
	assert.Equal(t, "boom", s.GetStatus().GetMessage())
	assert.Empty(t, s.GetParentSpanId())
	require.Len(t, s.GetEvents(), 1)
	assert.Equal(t, "tick", s.GetEvents()[0].GetName())
	assert.True(t, s.GetAttributes()[0].GetValue().GetBoolValue())
}

func TestMetricsRequest(t *testing.T) {
	req := MetricsRequest(testMetrics())
	require.Len(t, req.GetResourceMetrics(), 1)
	ms := req.GetResourceMetrics()[0].GetScopeMetrics()[0].GetMetrics()
	require.Len(t, ms, 2)

	byName := make(map[string]*metricspb.Metric)
	for _, m := range ms {
		byName[m.GetName()] = m
	}
	sum := byName["counter"].GetSum()
	require.NotNil(t, sum)
	assert.True(t, sum.GetIsMonotonic())
	assert.Equal(t, metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE, sum.GetAggregationTemporality())
	var total int64
	for _, dp := range sum.GetDataPoints() {
		total += dp.GetAsInt()
	}
	assert.Equal(t, int64(5), total)

	hist := byName["latency"].GetHistogram()
	require.NotNil(t, hist)
	dp := hist.GetDataPoints()[0]
	assert.Equal(t, uint64(3), dp.GetCount())
	assert.Equal(t, []float64{1, 10}, dp.GetExplicitBounds())
	assert.Equal(t, []uint64{1, 1, 1}, dp.GetBucketCounts())
	assert.InDelta(t, 55.5, dp.GetSum(), 1e-9)
}

func TestAnyValue(t *testing.T) {
	assert.Equal(t, "x", AnyValue(attribute.StringValue("x")).GetStringValue())
	assert.Equal(t, int64(7), AnyValue(attribute.Int64Value(7)).GetIntValue())
	assert.InDelta(t, 1.5, AnyValue(attribute.Float64Value(1.5)).GetDoubleValue(), 1e-9)
	assert.True(t, AnyValue(attribute.BoolValue(true)).GetBoolValue())

	arr := AnyValue(attribute.StringSliceValue([]string{"a", "b"})).GetArrayValue()
	require.NotNil(t, arr)
	require.Len(t, arr.GetValues(), 2)
	assert.Equal(t, "b", arr.GetValues()[1].GetStringValue())
}
