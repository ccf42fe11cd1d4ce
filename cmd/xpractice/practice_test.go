package main

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xotel/pkg/config/xconf"
	"github.com/omeyang/xotel/pkg/observability/xexport"
	"github.com/omeyang/xotel/pkg/observability/xlog"
	"github.com/omeyang/xotel/pkg/observability/xtelemetry"
	"github.com/omeyang/xotel/pkg/observability/xtrace"
)

var testPacing = pacing{unit: 40 * time.Millisecond, tick: 10 * time.Millisecond}

type pipeline struct {
	logs    *xexport.Memory[xlog.Record]
	spans   *xexport.Memory[xtrace.SpanData]
	metrics *xexport.MemoryMetrics
}

func newProvider(t *testing.T) (*xtelemetry.Provider, *pipeline) {
	t.Helper()
	cfg := xconf.Default()
	cfg.Exporter = xconf.ExporterNone
	cfg.Service.Name = "xpractice-test"
	cfg.Metrics.Interval = time.Hour

	pl := &pipeline{
		logs:    xexport.NewMemoryLogs(),
		spans:   xexport.NewMemorySpans(),
		metrics: xexport.NewMemoryMetrics(),
	}
	p, err := xtelemetry.Setup(context.Background(), cfg,
		xtelemetry.WithLogExporter(pl.logs),
		xtelemetry.WithSpanExporter(pl.spans),
		xtelemetry.WithMetricExporter(pl.metrics),
		xtelemetry.WithLogOutput(io.Discard),
		xtelemetry.WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p, pl
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestPractice_Completes(t *testing.T) {
	p, pl := newProvider(t)
	ctx := context.Background()

	require.NoError(t, practice(ctx, p, "2", testPacing))
	require.NoError(t, p.Shutdown(ctx))

	spans := pl.spans.Items()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, practiceScope, span.Name)
	assert.Equal(t, codes.Unset, span.Status.Code)

	v, ok := attrValue(span.Attributes, "practice.duration.seconds")
	require.True(t, ok)
	assert.Equal(t, "2", v.AsString())
	v, ok = attrValue(span.Attributes, "counter")
	require.True(t, ok)
	assert.Equal(t, int64(2), v.AsInt64())
	start, ok := attrValue(span.Attributes, "practice.start_time")
	require.True(t, ok)
	end, ok := attrValue(span.Attributes, "practice.end_time")
	require.True(t, ok)
	assert.GreaterOrEqual(t, end.AsFloat64(), start.AsFloat64())

	logs := pl.logs.Items()
	require.GreaterOrEqual(t, len(logs), 3)
	assert.Equal(t, "starting to practice The Telemetry for 2 second(s)", logs[0].Body)
	assert.Equal(t, "Done practicing", logs[len(logs)-1].Body)
	ticks := 0
	for _, r := range logs {
		assert.Equal(t, practiceScope, r.Scope)
		assert.Equal(t, span.SpanContext.TraceID(), r.TraceID)
		assert.Equal(t, span.SpanContext.SpanID(), r.SpanID)
		if body, found := strings.CutPrefix(r.Body, "Practicing: "); found {
			ticks++
			assert.Len(t, body, 1)
			assert.Contains(t, punctuation, body)
		}
	}
	assert.Positive(t, ticks)

	rm := pl.metrics.Last()
	require.NotNil(t, rm)
	var sum metricdata.Sum[int64]
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == counterName {
				sum = m.Data.(metricdata.Sum[int64])
				assert.Equal(t, "1", m.Unit)
				assert.Equal(t, "Counts things", m.Description)
			}
		}
	}
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(2), sum.DataPoints[0].Value)
	label, ok := sum.DataPoints[0].Attributes.Value("practice")
	require.True(t, ok)
	assert.Equal(t, practiceLabel, label.AsString())
}

func TestPractice_ZeroSeconds(t *testing.T) {
	p, pl := newProvider(t)
	ctx := context.Background()

	require.NoError(t, practice(ctx, p, "0", testPacing))
	require.NoError(t, p.Shutdown(ctx))

	var bodies []string
	for _, r := range pl.logs.Items() {
		bodies = append(bodies, r.Body)
	}
	assert.Equal(t, []string{
		"starting to practice The Telemetry for 0 second(s)",
		"Done practicing",
	}, bodies)
}

func TestPractice_InvalidDuration(t *testing.T) {
	for _, in := range []string{"abc", "1.5", "-3", "", "9223372036854775807", "230584300922"} {
		t.Run(in, func(t *testing.T) {
			p, pl := newProvider(t)
			ctx := context.Background()

			err := practice(ctx, p, in, testPacing)
			require.ErrorIs(t, err, ErrInvalidDuration)
			require.NoError(t, p.Shutdown(ctx))

			logs := pl.logs.Items()
			require.Len(t, logs, 1)
			assert.Equal(t, xlog.LevelError, logs[0].Level)
			assert.Equal(t, "I need an integer value for the time to practice", logs[0].Body)

			spans := pl.spans.Items()
			require.Len(t, spans, 1)
			assert.Equal(t, codes.Unset, spans[0].Status.Code)
			_, ok := attrValue(spans[0].Attributes, "practice.end_time")
			assert.False(t, ok)
		})
	}
}

func TestPractice_Interrupted(t *testing.T) {
	p, pl := newProvider(t)
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	err := practice(ctx, p, "60", testPacing)
	require.ErrorIs(t, err, context.Canceled)
	require.NoError(t, p.Shutdown(context.Background()))

	spans := pl.spans.Items()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	require.NotEmpty(t, spans[0].Events)
	assert.Equal(t, "exception", spans[0].Events[0].Name)

	logs := pl.logs.Items()
	require.NotEmpty(t, logs)
	last := logs[len(logs)-1]
	assert.Equal(t, xlog.LevelError, last.Level)
	assert.Equal(t, "An unexpected error occurred", last.Body)
}

func TestPractice_InactiveProvider(t *testing.T) {
	p := xtelemetry.New()
	assert.NoError(t, practice(context.Background(), p, "0", testPacing))
}
