package xtrace

import (
	"errors"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidRatio 采样比例不在 [0, 1] 范围内。
var ErrInvalidRatio = errors.New("xtrace: sampling ratio must be in [0.0, 1.0]")

// Decision 采样决策。
type Decision int

const (
	// Drop 不记录也不导出，Span 仍携带有效 SpanContext 供日志关联。
	Drop Decision = iota
	// RecordOnly 记录但不导出。
	RecordOnly
	// RecordAndSample 记录并导出，trace flags 置 sampled。
	RecordAndSample
)

// SamplingParameters 采样输入。
type SamplingParameters struct {
	ParentContext trace.SpanContext
	TraceID       trace.TraceID
	Name          string
	Kind          trace.SpanKind
	Attributes    []attribute.KeyValue
}

// Sampler 决定新 Span 是否被记录与导出。
type Sampler interface {
	ShouldSample(p SamplingParameters) Decision
	Description() string
}

type constSampler struct {
	decision Decision
	desc     string
}

func (s constSampler) ShouldSample(SamplingParameters) Decision { return s.decision }

func (s constSampler) Description() string { return s.desc }

// AlwaysSample 采样全部 Span。
func AlwaysSample() Sampler {
	return constSampler{decision: RecordAndSample, desc: "AlwaysOnSampler"}
}

// NeverSample 丢弃全部 Span。
func NeverSample() Sampler {
	return constSampler{decision: Drop, desc: "AlwaysOffSampler"}
}

// ratioSampler 以 TraceID 的 xxhash 做一致性采样，
// 同一条链路在所有进程中得到相同决策。
type ratioSampler struct {
	ratio float64
	desc  string
}

// TraceIDRatioBased 按比例采样，ratio 超出 [0, 1] 或为 NaN 时返回 ErrInvalidRatio。
func TraceIDRatioBased(ratio float64) (Sampler, error) {
	if math.IsNaN(ratio) || ratio < 0 || ratio > 1 {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidRatio, ratio)
	}
	switch ratio {
	case 0:
		return NeverSample(), nil
	case 1:
		return AlwaysSample(), nil
	}
	return ratioSampler{ratio: ratio, desc: fmt.Sprintf("TraceIDRatioBased{%g}", ratio)}, nil
}

func (s ratioSampler) ShouldSample(p SamplingParameters) Decision {
	// hash == MaxUint64 时归一化结果可能为 1.0，ratio < 1 时不会通过
	normalized := float64(xxhash.Sum64(p.TraceID[:])) / float64(math.MaxUint64)
	if normalized < s.ratio {
		return RecordAndSample
	}
	return Drop
}

func (s ratioSampler) Description() string { return s.desc }

type parentBased struct {
	root Sampler
}

// ParentBased 有父 Span 时沿用父的 sampled 标志，根 Span 交给 root 决定。
func ParentBased(root Sampler) Sampler {
	if root == nil {
		root = AlwaysSample()
	}
	return parentBased{root: root}
}

func (s parentBased) ShouldSample(p SamplingParameters) Decision {
	if !p.ParentContext.IsValid() {
		return s.root.ShouldSample(p)
	}
	if p.ParentContext.IsSampled() {
		return RecordAndSample
	}
	return Drop
}

func (s parentBased) Description() string {
	return "ParentBased{root:" + s.root.Description() + "}"
}
