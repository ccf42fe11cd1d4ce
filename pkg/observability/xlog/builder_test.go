package xlog_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omeyang/xotel/pkg/observability/xlog"
)

func TestBuilder_Errors(t *testing.T) {
	_, _, err := xlog.New().SetLevelString("chatty").SetFormat("json").Build()
	assert.ErrorIs(t, err, xlog.ErrUnknownLevel)

	_, _, err = xlog.New().SetFormat("xml").Build()
	assert.ErrorIs(t, err, xlog.ErrUnknownFormat)

	_, _, err = xlog.New().SetExport(nil).Build()
	assert.ErrorIs(t, err, xlog.ErrNilSink)
}

func TestBuilder_ConsoleAndExport(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordSink{}
	logger, cleanup, err := xlog.New().
		SetOutput(&buf).
		SetFormat("json").
		SetServiceName("yoda").
		SetScope("yoda.practice").
		SetExport(sink).
		Build()
	require.NoError(t, err)
	defer func() { assert.NoError(t, cleanup()) }()

	logger.Info(spanCtx(true), "practice started", xlog.Component("cli"))

	m := decodeLine(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", m[xlog.KeyTraceID])
	assert.Equal(t, "yoda", m[xlog.KeyServiceName])
	assert.Equal(t, "yoda.practice", m[xlog.KeyLogger])
	assert.Equal(t, "cli", m[xlog.KeyComponent])

	recs := sink.all()
	require.Len(t, recs, 1)
	assert.Equal(t, "yoda.practice", recs[0].Scope)
	assert.Equal(t, testTraceID, recs[0].TraceID)
	m2 := attrMap(recs[0].Attrs)
	assert.Equal(t, "cli", m2[xlog.KeyComponent].AsString())
	assert.Equal(t, testTraceID.String(), m2[xlog.KeyTraceID].AsString())
	assert.NotContains(t, m2, xlog.KeyServiceName)
}

func TestBuilder_SharedLevelVar(t *testing.T) {
	lv := new(slog.LevelVar)
	var a, b bytes.Buffer
	la, _, err := xlog.New().SetOutput(&a).SetLevelVar(lv).Build()
	require.NoError(t, err)
	lb, _, err := xlog.New().SetOutput(&b).SetLevelVar(lv).Build()
	require.NoError(t, err)

	ctx := context.Background()
	la.Debug(ctx, "hidden")
	la.SetLevel(xlog.LevelDebug)
	lb.Debug(ctx, "visible")

	assert.Empty(t, a.String())
	assert.Contains(t, b.String(), "visible")
	assert.Equal(t, xlog.LevelDebug, lb.GetLevel())
	assert.True(t, lb.Enabled(ctx, xlog.LevelDebug))
}

func TestBuilder_NoOutput(t *testing.T) {
	logger, _, err := xlog.New().SetOutput(nil).Build()
	require.NoError(t, err)
	assert.False(t, logger.Enabled(context.Background(), xlog.LevelError))
	logger.Error(context.Background(), "nowhere")
}

func TestBuilder_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, cleanup, err := xlog.New().SetRotation(path).SetEnrich(false).Build()
	require.NoError(t, err)

	logger.Info(context.Background(), "to file")
	require.NoError(t, cleanup())
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
	assert.NotContains(t, string(data), xlog.KeyTraceID)
}

type errWriter struct{}

func (errWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestLogger_OnError(t *testing.T) {
	var got []error
	logger, _, err := xlog.New().
		SetOutput(errWriter{}).
		SetOnError(func(err error) { got = append(got, err) }).
		Build()
	require.NoError(t, err)

	logger.Warn(context.Background(), "lost")
	require.Len(t, got, 1)

	panicky, _, err := xlog.New().
		SetOutput(errWriter{}).
		SetOnError(func(error) { panic("callback") }).
		Build()
	require.NoError(t, err)
	assert.NotPanics(t, func() { panicky.Error(context.Background(), "x") })
}

func TestLogger_WithAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := xlog.New().SetOutput(&buf).SetEnrich(false).Build()
	require.NoError(t, err)

	assert.Same(t, logger, logger.With())
	assert.Same(t, logger, logger.WithGroup(""))

	logger.With(xlog.Count(3)).WithGroup("req").Info(context.Background(), "done", xlog.Operation("flush"))
	line := buf.String()
	assert.Contains(t, line, "count=3")
	assert.Contains(t, line, "req.operation=flush")
	assert.Equal(t, 1, strings.Count(line, "\n"))
}

func TestDiscard(t *testing.T) {
	l := xlog.Discard()
	assert.False(t, l.Enabled(context.Background(), xlog.LevelError))
	assert.NotPanics(t, func() {
		l.Error(context.Background(), "nothing")
		l.With(xlog.Err(errors.New("x"))).WithGroup("g").Info(context.Background(), "nothing")
	})
}

func TestAttrs(t *testing.T) {
	assert.Equal(t, slog.Attr{}, xlog.Err(nil))
	assert.Equal(t, "boom", xlog.Err(errors.New("boom")).Value.String())
	assert.Equal(t, slog.Attr{}, xlog.Signal(nil))
	assert.Equal(t, "interrupt", xlog.Signal(os.Interrupt).Value.String())
	assert.Equal(t, int64(2), xlog.Attempt(2).Value.Int64())
	assert.Equal(t, "1.5s", xlog.Duration(1500*time.Millisecond).Value.String())
}

func TestBuilder_AddSourceAndReplaceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := xlog.New().
		SetOutput(&buf).
		SetFormat("json").
		SetAddSource(true).
		SetReplaceAttr(func(_ []string, a slog.Attr) slog.Attr {
			switch a.Key {
			case slog.TimeKey:
				return slog.Attr{}
			case "secret":
				return slog.String("secret", "***")
			}
			return a
		}).
		Build()
	require.NoError(t, err)

	logger.Info(context.Background(), "login", slog.String("secret", "hunter2"))

	m := decodeLine(t, &buf)
	assert.NotContains(t, m, slog.TimeKey)
	assert.Equal(t, "***", m["secret"])
	src, ok := m[slog.SourceKey].(map[string]any)
	require.True(t, ok)
	file, _ := src["file"].(string)
	assert.True(t, strings.HasSuffix(file, "builder_test.go"), file)
}
