package xmetrics

import (
	"slices"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// OverflowKey 超出基数上限的数据点合并到带此属性的数据点。
const OverflowKey = "otel.metric.overflow"

var overflowSet = attribute.NewSet(attribute.Bool(OverflowKey, true))

type number interface {
	int64 | float64
}

// series 按属性集合维护数据点，保留首次出现顺序。
type series[P any] struct {
	limit  int
	points map[attribute.Distinct]*P
	order  []attribute.Distinct
}

func newSeries[P any](limit int) series[P] {
	return series[P]{limit: limit, points: make(map[attribute.Distinct]*P)}
}

// lookup 返回属性集合对应的数据点，newPoint 只在首次出现时调用。
func (s *series[P]) lookup(set attribute.Set, newPoint func(attribute.Set) *P) *P {
	key := set.Equivalent()
	if p, ok := s.points[key]; ok {
		return p
	}
	if s.limit > 0 && len(s.points) >= s.limit-1 {
		set = overflowSet
		key = set.Equivalent()
		if p, ok := s.points[key]; ok {
			return p
		}
	}
	p := newPoint(set)
	s.points[key] = p
	s.order = append(s.order, key)
	return p
}

func (s *series[P]) each(fn func(*P)) {
	for _, k := range s.order {
		fn(s.points[k])
	}
}

func (s *series[P]) reset() {
	clear(s.points)
	s.order = s.order[:0]
}

func (s *series[P]) empty() bool { return len(s.order) == 0 }

type sumPoint[N number] struct {
	attrs attribute.Set
	start time.Time
	value N
}

// sum 单调求和聚合。
type sum[N number] struct {
	desc Descriptor

	mu          sync.Mutex
	series      series[sumPoint[N]]
	lastCollect time.Time
}

func newSum[N number](desc Descriptor, limit int, created time.Time) *sum[N] {
	return &sum[N]{desc: desc, series: newSeries[sumPoint[N]](limit), lastCollect: created}
}

func (s *sum[N]) add(v N, attrs []attribute.KeyValue) {
	set := attribute.NewSet(attrs...)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.series.lookup(set, func(set attribute.Set) *sumPoint[N] {
		return &sumPoint[N]{attrs: set, start: now}
	})
	p.value += v
}

func (s *sum[N]) descriptor() Descriptor { return s.desc }

func (s *sum[N]) collect(t Temporality, now time.Time) (metricdata.Metrics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.series.empty() {
		if t == Delta {
			s.lastCollect = now
		}
		return metricdata.Metrics{}, false
	}

	dps := make([]metricdata.DataPoint[N], 0, len(s.series.order))
	s.series.each(func(p *sumPoint[N]) {
		start := p.start
		if t == Delta {
			start = s.lastCollect
		}
		dps = append(dps, metricdata.DataPoint[N]{
			Attributes: p.attrs,
			StartTime:  start,
			Time:       now,
			Value:      p.value,
		})
	})
	if t == Delta {
		s.series.reset()
		s.lastCollect = now
	}

	return metricdata.Metrics{
		Name:        s.desc.Name,
		Description: s.desc.Description,
		Unit:        s.desc.Unit,
		Data: metricdata.Sum[N]{
			DataPoints:  dps,
			Temporality: t.metricdata(),
			IsMonotonic: true,
		},
	}, true
}

type histPoint struct {
	attrs  attribute.Set
	start  time.Time
	counts []uint64
	count  uint64
	sum    float64
	min    float64
	max    float64
}

// histogram 显式桶直方图聚合。
type histogram struct {
	desc   Descriptor
	bounds []float64

	mu          sync.Mutex
	series      series[histPoint]
	lastCollect time.Time
}

func newHistogram(desc Descriptor, bounds []float64, limit int, created time.Time) *histogram {
	return &histogram{
		desc:        desc,
		bounds:      bounds,
		series:      newSeries[histPoint](limit),
		lastCollect: created,
	}
}

func (h *histogram) record(v float64, attrs []attribute.KeyValue) {
	set := attribute.NewSet(attrs...)
	now := time.Now()
	// bounds[i-1] < v <= bounds[i] 落入第 i 个桶
	idx := sort.SearchFloat64s(h.bounds, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	p := h.series.lookup(set, func(set attribute.Set) *histPoint {
		return &histPoint{attrs: set, start: now, counts: make([]uint64, len(h.bounds)+1), min: v, max: v}
	})
	p.counts[idx]++
	p.count++
	p.sum += v
	p.min = min(p.min, v)
	p.max = max(p.max, v)
}

func (h *histogram) descriptor() Descriptor { return h.desc }

func (h *histogram) collect(t Temporality, now time.Time) (metricdata.Metrics, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.series.empty() {
		if t == Delta {
			h.lastCollect = now
		}
		return metricdata.Metrics{}, false
	}

	dps := make([]metricdata.HistogramDataPoint[float64], 0, len(h.series.order))
	h.series.each(func(p *histPoint) {
		start := p.start
		if t == Delta {
			start = h.lastCollect
		}
		dps = append(dps, metricdata.HistogramDataPoint[float64]{
			Attributes:   p.attrs,
			StartTime:    start,
			Time:         now,
			Count:        p.count,
			Bounds:       slices.Clone(h.bounds),
			BucketCounts: slices.Clone(p.counts),
			Min:          metricdata.NewExtrema(p.min),
			Max:          metricdata.NewExtrema(p.max),
			Sum:          p.sum,
		})
	})
	if t == Delta {
		h.series.reset()
		h.lastCollect = now
	}

	return metricdata.Metrics{
		Name:        h.desc.Name,
		Description: h.desc.Description,
		Unit:        h.desc.Unit,
		Data: metricdata.Histogram[float64]{
			DataPoints:  dps,
			Temporality: t.metricdata(),
		},
	}, true
}
