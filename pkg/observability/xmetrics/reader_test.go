package xmetrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type memoryExporter struct {
	mu        sync.Mutex
	snapshots []*metricdata.ResourceMetrics
	err       error
	shutdowns int
}

func (e *memoryExporter) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.snapshots = append(e.snapshots, rm)
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdowns++
	return nil
}

func (e *memoryExporter) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.snapshots)
}

func (e *memoryExporter) last() *metricdata.ResourceMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.snapshots) == 0 {
		return nil
	}
	return e.snapshots[len(e.snapshots)-1]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewPeriodicReader_Validation(t *testing.T) {
	_, err := NewPeriodicReader(nil, &memoryExporter{})
	assert.ErrorIs(t, err, ErrNilRegistry)
	_, err = NewPeriodicReader(NewRegistry(), nil)
	assert.ErrorIs(t, err, ErrNilExporter)
}

func TestPeriodicReader_Tick(t *testing.T) {
	reg := NewRegistry()
	c, err := reg.Meter("yoda.practice").Int64Counter("counter")
	require.NoError(t, err)
	require.NoError(t, c.Add(context.Background(), 5, attribute.String("x", "a")))
	require.NoError(t, c.Add(context.Background(), 3, attribute.String("x", "a")))

	exp := &memoryExporter{}
	r, err := NewPeriodicReader(reg, exp, WithInterval(20*time.Millisecond), WithLogger(quietLogger()))
	require.NoError(t, err)

	require.Eventually(t, func() bool { return exp.count() > 0 }, 2*time.Second, 5*time.Millisecond)
	dps := sumPoints[int64](t, exp.last(), "counter")
	require.Len(t, dps, 1)
	assert.Equal(t, int64(8), dps[0].Value)

	require.NoError(t, r.Shutdown(context.Background()))
	assert.Equal(t, 1, exp.shutdowns)
}

func TestPeriodicReader_ShutdownFinalExport(t *testing.T) {
	reg := NewRegistry()
	exp := &memoryExporter{}
	r, err := NewPeriodicReader(reg, exp, WithInterval(time.Hour), WithLogger(quietLogger()))
	require.NoError(t, err)

	c, err := reg.Meter("m").Int64Counter("c")
	require.NoError(t, err)
	require.NoError(t, c.Add(context.Background(), 2))

	require.NoError(t, r.Shutdown(context.Background()))
	assert.Equal(t, 1, exp.count())
	assert.NoError(t, r.Shutdown(context.Background()))
	assert.Equal(t, 1, exp.shutdowns)
	assert.ErrorIs(t, r.ForceFlush(context.Background()), ErrShutdown)
}

func TestPeriodicReader_ForceFlush(t *testing.T) {
	reg := NewRegistry(WithTemporality(Delta))
	exp := &memoryExporter{}
	r, err := NewPeriodicReader(reg, exp, WithInterval(time.Hour), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer func() { _ = r.Shutdown(context.Background()) }()

	c, err := reg.Meter("m").Int64Counter("c")
	require.NoError(t, err)
	require.NoError(t, c.Add(context.Background(), 4))

	require.NoError(t, r.ForceFlush(context.Background()))
	require.NoError(t, r.ForceFlush(context.Background()))

	assert.Equal(t, 1, exp.count())
	stats := r.Stats()
	assert.Equal(t, int64(2), stats.Collections)
	assert.Equal(t, int64(1), stats.Exported)
}

func TestPeriodicReader_ExportFailureDropsSnapshot(t *testing.T) {
	reg := NewRegistry()
	boom := errors.New("collector unavailable")
	exp := &memoryExporter{err: boom}

	var drops int
	r, err := NewPeriodicReader(reg, exp,
		WithInterval(time.Hour),
		WithTimeout(time.Second),
		WithLogger(quietLogger()),
		WithOnDrop(func(err error) {
			assert.ErrorIs(t, err, boom)
			drops++
		}),
	)
	require.NoError(t, err)

	c, err := reg.Meter("m").Int64Counter("c")
	require.NoError(t, err)
	require.NoError(t, c.Add(context.Background(), 1))

	assert.ErrorIs(t, r.ForceFlush(context.Background()), boom)
	assert.Equal(t, 1, drops)
	assert.Equal(t, int64(1), r.Stats().Failed)

	assert.ErrorIs(t, r.Shutdown(context.Background()), boom)
	assert.Equal(t, 2, drops)
}

func TestPeriodicReader_ShutdownDeadline(t *testing.T) {
	reg := NewRegistry()
	started := make(chan struct{})
	var once sync.Once
	exp := ExporterFunc(func(ctx context.Context, _ *metricdata.ResourceMetrics) error {
		once.Do(func() { close(started) })
		<-ctx.Done()
		return ctx.Err()
	})
	r, err := NewPeriodicReader(reg, exp,
		WithInterval(10*time.Millisecond),
		WithTimeout(time.Hour),
		WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	c, err := reg.Meter("m").Int64Counter("c")
	require.NoError(t, err)
	require.NoError(t, c.Add(context.Background(), 1))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	start := time.Now()
	assert.ErrorIs(t, r.Shutdown(ctx), context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
