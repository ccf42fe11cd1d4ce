package xlog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/omeyang/xotel/pkg/observability/xlog"
)

var (
	testTraceID = trace.TraceID{0x4b, 0xf9, 0x2f, 0x35, 0x77, 0xb3, 0x4d, 0xa6, 0xa3, 0xce, 0x92, 0x9d, 0x0e, 0x0e, 0x47, 0x36}
	testSpanID  = trace.SpanID{0x00, 0xf0, 0x67, 0xaa, 0x0b, 0xa9, 0x02, 0xb7}
)

func spanCtx(sampled bool) context.Context {
	cfg := trace.SpanContextConfig{TraceID: testTraceID, SpanID: testSpanID}
	if sampled {
		cfg.TraceFlags = trace.FlagsSampled
	}
	return trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(cfg))
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	return m
}

func TestNewEnrichHandler_Nil(t *testing.T) {
	h, err := xlog.NewEnrichHandler(nil)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, xlog.ErrNilHandler)
}

func TestEnrichHandler(t *testing.T) {
	tests := []struct {
		name        string
		ctx         context.Context
		wantTrace   string
		wantSpan    string
		wantSampled bool
	}{
		{
			name:        "inside_sampled_span",
			ctx:         spanCtx(true),
			wantTrace:   "4bf92f3577b34da6a3ce929d0e0e4736",
			wantSpan:    "00f067aa0ba902b7",
			wantSampled: true,
		},
		{
			name:      "inside_unsampled_span",
			ctx:       spanCtx(false),
			wantTrace: "4bf92f3577b34da6a3ce929d0e0e4736",
			wantSpan:  "00f067aa0ba902b7",
		},
		{
			name:      "outside_span",
			ctx:       context.Background(),
			wantTrace: xlog.NoTraceID,
			wantSpan:  xlog.NoSpanID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			h, err := xlog.NewEnrichHandler(slog.NewJSONHandler(&buf, nil))
			require.NoError(t, err)

			slog.New(h).WarnContext(tt.ctx, "practice", slog.Int("n", 1))

			m := decodeLine(t, &buf)
			assert.Equal(t, tt.wantTrace, m[xlog.KeyTraceID])
			assert.Equal(t, tt.wantSpan, m[xlog.KeySpanID])
			assert.Equal(t, tt.wantSampled, m[xlog.KeyTraceSampled])
			assert.Equal(t, "WARN", m["level"])
			assert.Equal(t, "practice", m["msg"])
			assert.NotContains(t, m, xlog.KeyServiceName)
		})
	}
}

func TestEnrichHandler_ServiceName(t *testing.T) {
	var buf bytes.Buffer
	h, err := xlog.NewEnrichHandler(slog.NewJSONHandler(&buf, nil), xlog.WithServiceName("yoda"))
	require.NoError(t, err)

	slog.New(h).With("k", "v").InfoContext(context.Background(), "hello")

	m := decodeLine(t, &buf)
	assert.Equal(t, "yoda", m[xlog.KeyServiceName])
	assert.Equal(t, "v", m["k"])
}

func TestEnrichHandler_DoesNotMutateRecord(t *testing.T) {
	var buf bytes.Buffer
	h, err := xlog.NewEnrichHandler(slog.NewJSONHandler(&buf, nil))
	require.NoError(t, err)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "msg", 0)
	r.AddAttrs(slog.String("a", "b"))
	require.NoError(t, h.Handle(context.Background(), r))
	assert.Equal(t, 1, r.NumAttrs())
}

func TestAppendTraceAttrs_NilContext(t *testing.T) {
	//nolint:staticcheck // 验证 nil ctx
	attrs := xlog.AppendTraceAttrs(nil, nil)
	require.Len(t, attrs, 3)
	assert.Equal(t, xlog.NoTraceID, attrs[0].Value.String())
}
