package xtelemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xotel/pkg/config/xconf"
	"github.com/omeyang/xotel/pkg/observability/xbatch"
	"github.com/omeyang/xotel/pkg/observability/xexport"
	"github.com/omeyang/xotel/pkg/observability/xlog"
	"github.com/omeyang/xotel/pkg/observability/xresource"
	"github.com/omeyang/xotel/pkg/observability/xtrace"
)

// syncBuffer 并发安全的 bytes.Buffer。
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testConfig() *xconf.Telemetry {
	cfg := xconf.Default()
	cfg.Exporter = xconf.ExporterNone
	cfg.Service.Name = "xtelemetry-test"
	cfg.Service.InstanceID = "test-1"
	cfg.Logs.BatchDelay = 50 * time.Millisecond
	cfg.Spans.BatchDelay = 50 * time.Millisecond
	cfg.Logs.MaxAttempts = 1
	cfg.Spans.MaxAttempts = 1
	cfg.Metrics.Interval = time.Hour
	return cfg
}

type pipeline struct {
	logs    *xexport.Memory[xlog.Record]
	spans   *xexport.Memory[xtrace.SpanData]
	metrics *xexport.MemoryMetrics
	console *syncBuffer
}

func newTestProvider(t *testing.T, opts ...Option) (*Provider, *pipeline) {
	t.Helper()
	pl := &pipeline{
		logs:    xexport.NewMemoryLogs(),
		spans:   xexport.NewMemorySpans(),
		metrics: xexport.NewMemoryMetrics(),
		console: &syncBuffer{},
	}
	base := []Option{
		WithConfig(testConfig()),
		WithLogExporter(pl.logs),
		WithSpanExporter(pl.spans),
		WithMetricExporter(pl.metrics),
		WithLogOutput(pl.console),
		WithLogger(slog.New(slog.DiscardHandler)),
	}
	p := New(append(base, opts...)...)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p, pl
}

func int64Sum(t *testing.T, rm *metricdata.ResourceMetrics, name string) metricdata.Sum[int64] {
	t.Helper()
	require.NotNil(t, rm)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				sum, ok := m.Data.(metricdata.Sum[int64])
				require.True(t, ok, "metric %s is %T", name, m.Data)
				return sum
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return metricdata.Sum[int64]{}
}

func TestProvider_Lifecycle(t *testing.T) {
	p, pl := newTestProvider(t)
	ctx := context.Background()
	assert.Equal(t, StateUninitialized, p.State())

	// Init 之前全部为空操作。
	_, span := p.Tracer("t").Start(ctx, "early")
	assert.False(t, span.IsRecording())
	span.End()
	counter, err := p.Meter("m").Int64Counter("early")
	require.NoError(t, err)
	require.NoError(t, counter.Add(ctx, 1))
	p.Logger("l").Info(ctx, "early")
	assert.Nil(t, p.Resource())

	require.NoError(t, p.Init(ctx))
	assert.Equal(t, StateActive, p.State())
	require.ErrorIs(t, p.Init(ctx), ErrAlreadyInitialized)
	assert.Equal(t, "xtelemetry-test", xresource.ServiceName(p.Resource()))

	require.NoError(t, p.Shutdown(ctx))
	assert.Equal(t, StateTerminated, p.State())
	require.NoError(t, p.Shutdown(ctx), "second shutdown is a no-op")
	require.ErrorIs(t, p.Init(ctx), ErrTerminated)

	// Shutdown 之后同样为空操作。
	_, span = p.Tracer("t").Start(ctx, "late")
	assert.False(t, span.IsRecording())
	p.Logger("l").Info(ctx, "late")

	assert.Empty(t, pl.spans.Items())
	assert.Empty(t, pl.logs.Items())
	assert.NotContains(t, pl.console.String(), "early")
	assert.NotContains(t, pl.console.String(), "late")
	assert.True(t, pl.logs.IsShutdown())
	assert.True(t, pl.spans.IsShutdown())
	assert.True(t, pl.metrics.IsShutdown())
}

func TestProvider_ShutdownBeforeInit(t *testing.T) {
	p := New()
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, StateTerminated, p.State())
	require.ErrorIs(t, p.Init(context.Background()), ErrTerminated)
}

func TestProvider_NilSafe(t *testing.T) {
	var p *Provider
	assert.Equal(t, StateUninitialized, p.State())
	require.NoError(t, p.Shutdown(context.Background()))
	assert.Equal(t, Stats{}, p.Stats())
}

func TestProvider_EndToEnd(t *testing.T) {
	p, pl := newTestProvider(t)
	ctx := context.Background()
	require.NoError(t, p.Init(ctx))

	logger := p.Logger("yoda.practice")
	assert.Same(t, logger, p.Logger("yoda.practice"))

	spanCtx, span := p.Tracer("yoda.practice").Start(ctx, "practice")
	logger.Info(spanCtx, "inside", xlog.Count(1))
	span.End()
	logger.Info(ctx, "outside")

	counter, err := p.Meter("yoda.practice").Int64Counter("counter")
	require.NoError(t, err)
	require.NoError(t, counter.Add(ctx, 5, attribute.Bool("practice", true)))

	require.NoError(t, p.Shutdown(ctx))

	spans := pl.spans.Items()
	require.Len(t, spans, 1)
	assert.Equal(t, "practice", spans[0].Name)
	assert.Equal(t, "yoda.practice", spans[0].Scope)

	logs := pl.logs.Items()
	require.Len(t, logs, 2)
	assert.Equal(t, "inside", logs[0].Body)
	assert.Equal(t, "yoda.practice", logs[0].Scope)
	assert.Equal(t, span.SpanContext().TraceID(), logs[0].TraceID)
	assert.Equal(t, span.SpanContext().SpanID(), logs[0].SpanID)
	assert.False(t, logs[1].HasTrace())

	in := attribute.NewSet(logs[0].Attrs...)
	v, ok := in.Value(xlog.KeyTraceID)
	require.True(t, ok)
	assert.Equal(t, span.SpanContext().TraceID().String(), v.AsString())
	out0 := attribute.NewSet(logs[1].Attrs...)
	v, ok = out0.Value(xlog.KeyTraceID)
	require.True(t, ok)
	assert.Equal(t, xlog.NoTraceID, v.AsString())
	v, ok = out0.Value(xlog.KeySpanID)
	require.True(t, ok)
	assert.Equal(t, xlog.NoSpanID, v.AsString())
	v, ok = out0.Value(xlog.KeyTraceSampled)
	require.True(t, ok)
	assert.False(t, v.AsBool())

	sum := int64Sum(t, pl.metrics.Last(), "counter")
	require.Len(t, sum.DataPoints, 1)
	assert.Equal(t, int64(5), sum.DataPoints[0].Value)

	out := pl.console.String()
	assert.Contains(t, out, "trace_id="+span.SpanContext().TraceID().String())
	assert.Contains(t, out, "trace_id=0")
	assert.Contains(t, out, "service.name=xtelemetry-test")

	stats := p.Stats()
	assert.Equal(t, int64(2), stats.Logs.Exported)
	assert.Equal(t, int64(1), stats.Spans.Exported)
}

func TestProvider_LogLevel(t *testing.T) {
	cfg := testConfig()
	cfg.LogLevel = "warn"
	p, pl := newTestProvider(t, WithConfig(cfg))
	ctx := context.Background()
	require.NoError(t, p.Init(ctx))

	logger := p.Logger("lvl")
	logger.Info(ctx, "hidden")
	logger.Warn(ctx, "shown")
	p.SetLevel(xlog.LevelDebug)
	logger.Debug(ctx, "debug shown")
	require.NoError(t, p.Shutdown(ctx))

	var bodies []string
	for _, r := range pl.logs.Items() {
		bodies = append(bodies, r.Body)
	}
	assert.Equal(t, []string{"shown", "debug shown"}, bodies)
}

func TestProvider_DroppedSelfMetric(t *testing.T) {
	failing := xbatch.ExporterFunc[xlog.Record](func(context.Context, []xlog.Record) error {
		return errors.New("collector down")
	})
	p, pl := newTestProvider(t, WithLogExporter(failing))
	ctx := context.Background()
	require.NoError(t, p.Init(ctx))

	p.Logger("drop").Info(ctx, "lost")
	require.Error(t, p.ForceFlush(ctx), "log export error surfaces, metrics still flushed")

	sum := int64Sum(t, pl.metrics.Last(), DroppedMetricName)
	require.Len(t, sum.DataPoints, 1)
	dp := sum.DataPoints[0]
	assert.Equal(t, int64(1), dp.Value)
	signal, ok := dp.Attributes.Value(AttrSignal)
	require.True(t, ok)
	assert.Equal(t, SignalLogs, signal.AsString())
	reason, ok := dp.Attributes.Value(AttrReason)
	require.True(t, ok)
	assert.Equal(t, string(xbatch.ReasonExportFailed), reason.AsString())
}

func TestProvider_InitErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *xconf.Telemetry)
	}{
		{"level", func(cfg *xconf.Telemetry) { cfg.LogLevel = "loud" }},
		{"temporality", func(cfg *xconf.Telemetry) { cfg.Metrics.Temporality = "sometimes" }},
		{"drop policy", func(cfg *xconf.Telemetry) { cfg.Spans.DropPolicy = "random" }},
		{"sample ratio", func(cfg *xconf.Telemetry) { cfg.SampleRatio = -1 }},
		{"exporter", func(cfg *xconf.Telemetry) { cfg.Exporter = "kafka" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			p := New(WithConfig(cfg), WithLogOutput(nil), WithLogger(slog.New(slog.DiscardHandler)))
			require.Error(t, p.Init(context.Background()))
			assert.Equal(t, StateUninitialized, p.State())
		})
	}
}

func TestSetup(t *testing.T) {
	_, err := Setup(context.Background(), nil)
	require.ErrorIs(t, err, ErrNilConfig)

	p, err := Setup(context.Background(), testConfig(), WithLogOutput(nil), WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	assert.Equal(t, StateActive, p.State())
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestProvider_FileExporter(t *testing.T) {
	cfg := testConfig()
	cfg.Exporter = xconf.ExporterFile
	cfg.File.Path = filepath.Join(t.TempDir(), "telemetry.jsonl")

	p, err := Setup(context.Background(), cfg, WithLogOutput(nil), WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	ctx := context.Background()
	_, span := p.Tracer("file").Start(ctx, "to-file")
	span.End()
	p.Logger("file").Info(ctx, "to-file-log")
	require.NoError(t, p.Shutdown(ctx))

	data, err := os.ReadFile(cfg.File.Path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to-file")
	assert.Contains(t, string(data), "to-file-log")
}

func TestProvider_ConsoleExporter(t *testing.T) {
	cfg := testConfig()
	cfg.Exporter = xconf.ExporterConsole
	var out syncBuffer

	p, err := Setup(context.Background(), cfg, WithConsole(&out), WithLogOutput(nil), WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	ctx := context.Background()
	_, span := p.Tracer("console").Start(ctx, "to-console")
	span.End()
	require.NoError(t, p.Shutdown(ctx))

	assert.Contains(t, out.String(), `"Name":"to-console"`)
}

func TestProvider_OTLPInitIsLazy(t *testing.T) {
	cfg := testConfig()
	cfg.Exporter = xconf.ExporterOTLP
	cfg.Collector.Host = "127.0.0.1"
	cfg.Collector.Port = 1

	p, err := Setup(context.Background(), cfg, WithLogOutput(nil), WithLogger(slog.New(slog.DiscardHandler)))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
}

func TestProvider_Prometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, _ := newTestProvider(t, WithPrometheus(reg))
	ctx := context.Background()
	require.NoError(t, p.Init(ctx))

	counter, err := p.Meter("prom").Int64Counter("requests")
	require.NoError(t, err)
	require.NoError(t, counter.Add(ctx, 2))
	require.NoError(t, p.ForceFlush(ctx))

	n, err := testutil.GatherAndCount(reg, "requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProvider_ConcurrentShutdown(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()
	require.NoError(t, p.Init(ctx))

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger := p.Logger("concurrent")
			for j := range 100 {
				spanCtx, span := p.Tracer("concurrent").Start(ctx, "op")
				logger.Info(spanCtx, "tick", xlog.Count(int64(i*100+j)))
				span.End()
			}
		}()
	}
	require.NoError(t, p.Shutdown(ctx))
	wg.Wait()
	assert.Equal(t, StateTerminated, p.State())
}
