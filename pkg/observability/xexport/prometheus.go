package xexport

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/omeyang/xotel/pkg/observability/xmetrics"
	"github.com/omeyang/xotel/pkg/resilience/xretry"
)

// PrometheusExporter 保存最近一次指标快照并作为 prometheus.Collector 暴露。
//
// 它是 unchecked collector，Describe 不发送描述符。单调 Sum 以 _total 结尾的
// counter 暴露，其余 Sum 与 Gauge 为 gauge，直方图使用累计桶。
// Prometheus 期望累计值，Registry 应使用 Cumulative 时间性。
type PrometheusExporter struct {
	mu     sync.RWMutex
	last   *metricdata.ResourceMetrics
	closed atomic.Bool
}

// NewPrometheusExporter 创建导出器，需再注册到 prometheus.Registerer。
func NewPrometheusExporter() *PrometheusExporter {
	return &PrometheusExporter{}
}

// Export 替换当前快照。
func (e *PrometheusExporter) Export(_ context.Context, rm *metricdata.ResourceMetrics) error {
	if e.closed.Load() {
		return xretry.NewPermanentError(ErrClosed)
	}
	e.mu.Lock()
	e.last = rm
	e.mu.Unlock()
	return nil
}

// Shutdown 之后 Export 返回 ErrClosed，已有快照仍可被抓取。
func (e *PrometheusExporter) Shutdown(context.Context) error {
	e.closed.Store(true)
	return nil
}

// Describe 不发送任何描述符。
func (e *PrometheusExporter) Describe(chan<- *prometheus.Desc) {}

// Collect 把快照转换为 const metric。
func (e *PrometheusExporter) Collect(ch chan<- prometheus.Metric) {
	e.mu.RLock()
	rm := e.last
	e.mu.RUnlock()
	if rm == nil {
		return
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			collectMetric(ch, m)
		}
	}
}

func collectMetric(ch chan<- prometheus.Metric, m metricdata.Metrics) {
	name := PromName(m.Name)
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		collectSum(ch, name, m.Description, data.IsMonotonic, data.DataPoints)
	case metricdata.Sum[float64]:
		collectSum(ch, name, m.Description, data.IsMonotonic, data.DataPoints)
	case metricdata.Gauge[int64]:
		collectSum(ch, name, m.Description, false, data.DataPoints)
	case metricdata.Gauge[float64]:
		collectSum(ch, name, m.Description, false, data.DataPoints)
	case metricdata.Histogram[int64]:
		collectHistogram(ch, name, m.Description, data.DataPoints)
	case metricdata.Histogram[float64]:
		collectHistogram(ch, name, m.Description, data.DataPoints)
	}
}

func collectSum[N int64 | float64](ch chan<- prometheus.Metric, name, help string, monotonic bool, dps []metricdata.DataPoint[N]) {
	vt := prometheus.GaugeValue
	if monotonic {
		vt = prometheus.CounterValue
		if !strings.HasSuffix(name, "_total") {
			name += "_total"
		}
	}
	sets := make([]attribute.Set, len(dps))
	for i := range dps {
		sets[i] = dps[i].Attributes
	}
	keys := labelKeys(sets)
	desc := prometheus.NewDesc(name, help, keys, nil)
	for _, dp := range dps {
		m, err := prometheus.NewConstMetric(desc, vt, float64(dp.Value), labelValues(keys, dp.Attributes)...)
		if err != nil {
			m = prometheus.NewInvalidMetric(desc, err)
		}
		ch <- m
	}
}

func collectHistogram[N int64 | float64](ch chan<- prometheus.Metric, name, help string, dps []metricdata.HistogramDataPoint[N]) {
	sets := make([]attribute.Set, len(dps))
	for i := range dps {
		sets[i] = dps[i].Attributes
	}
	keys := labelKeys(sets)
	desc := prometheus.NewDesc(name, help, keys, nil)
	for _, dp := range dps {
		buckets := make(map[float64]uint64, len(dp.Bounds))
		var cum uint64
		for i, bound := range dp.Bounds {
			if i < len(dp.BucketCounts) {
				cum += dp.BucketCounts[i]
			}
			buckets[bound] = cum
		}
		m, err := prometheus.NewConstHistogram(desc, dp.Count, float64(dp.Sum), buckets, labelValues(keys, dp.Attributes)...)
		if err != nil {
			m = prometheus.NewInvalidMetric(desc, err)
		}
		ch <- m
	}
}

// labelKeys 取所有数据点属性键的并集，清洗后排序去重。
func labelKeys(sets []attribute.Set) []string {
	seen := make(map[string]struct{})
	for _, s := range sets {
		for _, kv := range s.ToSlice() {
			seen[promLabel(string(kv.Key))] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// labelValues 按 keys 顺序取值，缺失的键为空串；清洗后冲突的键以字典序靠后的原始键为准。
func labelValues(keys []string, set attribute.Set) []string {
	byName := make(map[string]string, set.Len())
	for _, kv := range set.ToSlice() {
		byName[promLabel(string(kv.Key))] = kv.Value.Emit()
	}
	values := make([]string, len(keys))
	for i, k := range keys {
		values[i] = byName[k]
	}
	return values
}

// PromName 把名称中 Prometheus 不允许的字符替换为下划线。
func PromName(name string) string {
	return sanitize(name, true)
}

// promLabel 标签名不允许冒号。
func promLabel(name string) string {
	return sanitize(name, false)
}

func sanitize(name string, colon bool) string {
	var b strings.Builder
	b.Grow(len(name) + 1)
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', colon && r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

var (
	_ xmetrics.Exporter    = (*PrometheusExporter)(nil)
	_ prometheus.Collector = (*PrometheusExporter)(nil)
)
