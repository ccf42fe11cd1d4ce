package xmetrics

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"

	"go.opentelemetry.io/otel/attribute"
)

// Kind 仪表类型
type Kind int

const (
	KindInt64Counter Kind = iota + 1
	KindFloat64Counter
	KindFloat64Histogram
)

func (k Kind) String() string {
	switch k {
	case KindInt64Counter:
		return "Int64Counter"
	case KindFloat64Counter:
		return "Float64Counter"
	case KindFloat64Histogram:
		return "Float64Histogram"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Descriptor 仪表标识
type Descriptor struct {
	Name        string
	Unit        string
	Description string
	Kind        Kind
}

// DefaultBuckets 直方图默认桶边界。
var DefaultBuckets = []float64{0, 5, 10, 25, 50, 75, 100, 250, 500, 750, 1000, 2500, 5000, 7500, 10000}

var instrumentName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_./-]{0,254}$`)

func validateName(name string) error {
	if !instrumentName.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func validateBuckets(bounds []float64) error {
	for i, b := range bounds {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return fmt.Errorf("%w: bound %v", ErrInvalidBuckets, b)
		}
		if i > 0 && b <= bounds[i-1] {
			return fmt.Errorf("%w: not strictly increasing at %d", ErrInvalidBuckets, i)
		}
	}
	return nil
}

type instrumentConfig struct {
	unit        string
	description string
	buckets     []float64
}

// InstrumentOption 仪表配置选项
type InstrumentOption func(*instrumentConfig)

// WithUnit 设置单位，如 "ms"、"By"、"{request}"。
func WithUnit(unit string) InstrumentOption {
	return func(c *instrumentConfig) { c.unit = unit }
}

// WithDescription 设置描述。
func WithDescription(desc string) InstrumentOption {
	return func(c *instrumentConfig) { c.description = desc }
}

// WithBuckets 设置直方图桶边界，必须严格递增。
func WithBuckets(bounds ...float64) InstrumentOption {
	return func(c *instrumentConfig) { c.buckets = slices.Clone(bounds) }
}

// Int64Counter 整型单调计数器。零值与 nil 为 no-op，但仍校验参数。
type Int64Counter struct {
	agg *sum[int64]
}

// Add 累加 v，v 为负返回 ErrNegativeDelta。
func (c *Int64Counter) Add(_ context.Context, v int64, attrs ...attribute.KeyValue) error {
	if v < 0 {
		return fmt.Errorf("%w: %d", ErrNegativeDelta, v)
	}
	if c == nil || c.agg == nil {
		return nil
	}
	c.agg.add(v, attrs)
	return nil
}

// Float64Counter 浮点单调计数器。
type Float64Counter struct {
	agg *sum[float64]
}

// Add 累加 v，NaN/Inf 返回 ErrInvalidValue，负数返回 ErrNegativeDelta。
func (c *Float64Counter) Add(_ context.Context, v float64, attrs ...attribute.KeyValue) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidValue, v)
	}
	if v < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeDelta, v)
	}
	if c == nil || c.agg == nil {
		return nil
	}
	c.agg.add(v, attrs)
	return nil
}

// Float64Histogram 显式桶直方图。
type Float64Histogram struct {
	agg *histogram
}

// Record 记录一个观测值，NaN/Inf 返回 ErrInvalidValue。
func (h *Float64Histogram) Record(_ context.Context, v float64, attrs ...attribute.KeyValue) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidValue, v)
	}
	if h == nil || h.agg == nil {
		return nil
	}
	h.agg.record(v, attrs)
	return nil
}
