package xtrace

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceIDRatioBased(t *testing.T) {
	for _, bad := range []float64{-0.1, 1.1, math.NaN()} {
		_, err := TraceIDRatioBased(bad)
		assert.ErrorIs(t, err, ErrInvalidRatio)
	}

	s, err := TraceIDRatioBased(0)
	require.NoError(t, err)
	assert.Equal(t, "AlwaysOffSampler", s.Description())

	s, err = TraceIDRatioBased(1)
	require.NoError(t, err)
	assert.Equal(t, "AlwaysOnSampler", s.Description())

	s, err = TraceIDRatioBased(0.25)
	require.NoError(t, err)
	assert.Equal(t, "TraceIDRatioBased{0.25}", s.Description())

	sampled := 0
	const n = 4000
	for range n {
		p := SamplingParameters{TraceID: newTraceID()}
		d := s.ShouldSample(p)
		// 同一 TraceID 决策稳定
		assert.Equal(t, d, s.ShouldSample(p))
		if d == RecordAndSample {
			sampled++
		}
	}
	assert.InDelta(t, 0.25, float64(sampled)/n, 0.05)
}

func TestParentBased(t *testing.T) {
	s := ParentBased(NeverSample())
	assert.Equal(t, "ParentBased{root:AlwaysOffSampler}", s.Description())
	assert.Equal(t, Drop, s.ShouldSample(SamplingParameters{}))

	sampledParent := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{1}, SpanID: trace.SpanID{1}, TraceFlags: trace.FlagsSampled,
	})
	assert.Equal(t, RecordAndSample, s.ShouldSample(SamplingParameters{ParentContext: sampledParent}))

	unsampled := sampledParent.WithTraceFlags(0)
	assert.Equal(t, Drop, ParentBased(nil).ShouldSample(SamplingParameters{ParentContext: unsampled}))
	assert.Equal(t, RecordAndSample, ParentBased(nil).ShouldSample(SamplingParameters{}))
}
