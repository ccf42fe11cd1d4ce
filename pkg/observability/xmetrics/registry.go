package xmetrics

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

// DefaultCardinalityLimit 单个仪表默认的属性组合上限。
const DefaultCardinalityLimit = 2000

type collector interface {
	descriptor() Descriptor
	collect(t Temporality, now time.Time) (metricdata.Metrics, bool)
}

// Registry 仪表注册表，按 Meter 名分组。
type Registry struct {
	res         *resource.Resource
	temporality Temporality
	limit       int

	mu     sync.Mutex
	meters map[string]*Meter
	order  []*Meter
}

// RegistryOption 注册表配置选项
type RegistryOption func(*Registry)

// WithResource 设置采集结果携带的资源。
func WithResource(res *resource.Resource) RegistryOption {
	return func(r *Registry) {
		if res != nil {
			r.res = res
		}
	}
}

// WithTemporality 设置时间性，默认 Cumulative。
func WithTemporality(t Temporality) RegistryOption {
	return func(r *Registry) {
		if t == Cumulative || t == Delta {
			r.temporality = t
		}
	}
}

// WithCardinalityLimit 设置单个仪表的属性组合上限，<=0 表示不限制。
func WithCardinalityLimit(n int) RegistryOption {
	return func(r *Registry) {
		r.limit = n
	}
}

// NewRegistry 创建注册表
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		res:    resource.Empty(),
		limit:  DefaultCardinalityLimit,
		meters: make(map[string]*Meter),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Meter 返回指定名称的 Meter，同名返回同一实例。nil 注册表返回 no-op Meter。
func (r *Registry) Meter(name string) *Meter {
	if r == nil {
		return &Meter{name: name}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.meters[name]; ok {
		return m
	}
	m := &Meter{name: name, reg: r, instruments: make(map[string]collector)}
	r.meters[name] = m
	r.order = append(r.order, m)
	return m
}

// Temporality 返回时间性
func (r *Registry) Temporality() Temporality {
	if r == nil {
		return Cumulative
	}
	return r.temporality
}

// Resource 返回资源
func (r *Registry) Resource() *resource.Resource {
	if r == nil {
		return resource.Empty()
	}
	return r.res
}

// Collect 采集所有仪表的当前值。Delta 时间性下采集后重置。
//
// 没有数据的仪表和 Meter 不出现在结果中。
func (r *Registry) Collect(_ context.Context) *metricdata.ResourceMetrics {
	rm := &metricdata.ResourceMetrics{Resource: r.Resource()}
	if r == nil {
		return rm
	}

	r.mu.Lock()
	meters := append([]*Meter(nil), r.order...)
	r.mu.Unlock()

	now := time.Now()
	for _, m := range meters {
		metrics := m.collect(r.temporality, now)
		if len(metrics) == 0 {
			continue
		}
		rm.ScopeMetrics = append(rm.ScopeMetrics, metricdata.ScopeMetrics{
			Scope:   instrumentation.Scope{Name: m.name},
			Metrics: metrics,
		})
	}
	return rm
}

// Meter 创建仪表的入口，对应一个 instrumentation scope。
type Meter struct {
	name string
	reg  *Registry

	mu          sync.Mutex
	instruments map[string]collector
	order       []collector
}

// Name 返回 scope 名
func (m *Meter) Name() string {
	if m == nil {
		return ""
	}
	return m.name
}

// Int64Counter 创建或返回整型计数器。
func (m *Meter) Int64Counter(name string, opts ...InstrumentOption) (*Int64Counter, error) {
	c, err := m.register(name, KindInt64Counter, opts, func(d Descriptor, _ []float64, limit int, now time.Time) collector {
		return newSum[int64](d, limit, now)
	})
	if err != nil || c == nil {
		return &Int64Counter{}, err
	}
	return &Int64Counter{agg: c.(*sum[int64])}, nil
}

// Float64Counter 创建或返回浮点计数器。
func (m *Meter) Float64Counter(name string, opts ...InstrumentOption) (*Float64Counter, error) {
	c, err := m.register(name, KindFloat64Counter, opts, func(d Descriptor, _ []float64, limit int, now time.Time) collector {
		return newSum[float64](d, limit, now)
	})
	if err != nil || c == nil {
		return &Float64Counter{}, err
	}
	return &Float64Counter{agg: c.(*sum[float64])}, nil
}

// Float64Histogram 创建或返回直方图，默认桶为 DefaultBuckets。
func (m *Meter) Float64Histogram(name string, opts ...InstrumentOption) (*Float64Histogram, error) {
	c, err := m.register(name, KindFloat64Histogram, opts, func(d Descriptor, bounds []float64, limit int, now time.Time) collector {
		return newHistogram(d, bounds, limit, now)
	})
	if err != nil || c == nil {
		return &Float64Histogram{}, err
	}
	return &Float64Histogram{agg: c.(*histogram)}, nil
}

type newCollector func(d Descriptor, bounds []float64, limit int, now time.Time) collector

// register 校验并注册仪表。no-op Meter 返回 (nil, nil)。
func (m *Meter) register(name string, kind Kind, opts []InstrumentOption, build newCollector) (collector, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	cfg := instrumentConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	bounds := DefaultBuckets
	if kind == KindFloat64Histogram && cfg.buckets != nil {
		if err := validateBuckets(cfg.buckets); err != nil {
			return nil, err
		}
		bounds = cfg.buckets
	}
	if m == nil || m.reg == nil {
		return nil, nil
	}

	// 仪表名不区分大小写
	key := strings.ToLower(name)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.instruments[key]; ok {
		if existing.descriptor().Kind != kind {
			return nil, fmt.Errorf("%w: %s is %s", ErrInstrumentConflict, name, existing.descriptor().Kind)
		}
		return existing, nil
	}

	d := Descriptor{Name: name, Unit: cfg.unit, Description: cfg.description, Kind: kind}
	c := build(d, bounds, m.reg.limit, time.Now())
	m.instruments[key] = c
	m.order = append(m.order, c)
	return c, nil
}

func (m *Meter) collect(t Temporality, now time.Time) []metricdata.Metrics {
	m.mu.Lock()
	instruments := append([]collector(nil), m.order...)
	m.mu.Unlock()

	var out []metricdata.Metrics
	for _, c := range instruments {
		if metrics, ok := c.collect(t, now); ok {
			out = append(out, metrics)
		}
	}
	return out
}
