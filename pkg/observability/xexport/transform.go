package xexport

import (
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/instrumentation"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/trace"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	colmetricspb "go.opentelemetry.io/proto/otlp/collector/metrics/v1"
	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
	metricspb "go.opentelemetry.io/proto/otlp/metrics/v1"
	resourcepb "go.opentelemetry.io/proto/otlp/resource/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/omeyang/xotel/pkg/observability/xlog"
	"github.com/omeyang/xotel/pkg/observability/xtrace"
)

// LogsRequest 把日志记录按 scope 分组为一个 OTLP 请求，scope 按首次出现排序。
func LogsRequest(res *resource.Resource, records []xlog.Record) *collogspb.ExportLogsServiceRequest {
	var (
		scopes []*logspb.ScopeLogs
		index  = make(map[string]*logspb.ScopeLogs)
	)
	for i := range records {
		r := &records[i]
		sl, ok := index[r.Scope]
		if !ok {
			sl = &logspb.ScopeLogs{Scope: &commonpb.InstrumentationScope{Name: r.Scope}}
			index[r.Scope] = sl
			scopes = append(scopes, sl)
		}
		sl.LogRecords = append(sl.LogRecords, logRecord(r))
	}
	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			Resource:  Resource(res),
			ScopeLogs: scopes,
			SchemaUrl: schemaURL(res),
		}},
	}
}

func logRecord(r *xlog.Record) *logspb.LogRecord {
	lr := &logspb.LogRecord{
		TimeUnixNano:         unixNano(r.Time),
		ObservedTimeUnixNano: unixNano(r.ObservedTime),
		SeverityNumber:       logspb.SeverityNumber(r.SeverityNumber()),
		SeverityText:         r.SeverityText(),
		Body:                 &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: r.Body}},
		Attributes:           KeyValues(r.Attrs),
	}
	if r.HasTrace() {
		lr.TraceId = traceIDBytes(r.TraceID)
		lr.SpanId = spanIDBytes(r.SpanID)
		lr.Flags = uint32(r.TraceFlags)
	}
	return lr
}

// TracesRequest 把 span 按 scope 分组为一个 OTLP 请求。res 为 nil 时使用首个 span 的资源。
func TracesRequest(res *resource.Resource, spans []xtrace.SpanData) *coltracepb.ExportTraceServiceRequest {
	if res == nil && len(spans) > 0 {
		res = spans[0].Resource
	}
	var (
		scopes []*tracepb.ScopeSpans
		index  = make(map[string]*tracepb.ScopeSpans)
	)
	for i := range spans {
		s := &spans[i]
		ss, ok := index[s.Scope]
		if !ok {
			ss = &tracepb.ScopeSpans{Scope: &commonpb.InstrumentationScope{Name: s.Scope}}
			index[s.Scope] = ss
			scopes = append(scopes, ss)
		}
		ss.Spans = append(ss.Spans, span(s))
	}
	return &coltracepb.ExportTraceServiceRequest{
		ResourceSpans: []*tracepb.ResourceSpans{{
			Resource:   Resource(res),
			ScopeSpans: scopes,
			SchemaUrl:  schemaURL(res),
		}},
	}
}

func span(s *xtrace.SpanData) *tracepb.Span {
	sp := &tracepb.Span{
		TraceId:                traceIDBytes(s.SpanContext.TraceID()),
		SpanId:                 spanIDBytes(s.SpanContext.SpanID()),
		TraceState:             s.SpanContext.TraceState().String(),
		Flags:                  uint32(s.SpanContext.TraceFlags()),
		Name:                   s.Name,
		Kind:                   spanKind(s.Kind),
		StartTimeUnixNano:      unixNano(s.StartTime),
		EndTimeUnixNano:        unixNano(s.EndTime),
		Attributes:             KeyValues(s.Attributes),
		DroppedAttributesCount: clampUint32(s.DroppedAttributes),
		DroppedEventsCount:     clampUint32(s.DroppedEvents),
		Status:                 &tracepb.Status{Code: statusCode(s.Status.Code), Message: s.Status.Description},
	}
	if s.Parent.SpanID().IsValid() {
		sp.ParentSpanId = spanIDBytes(s.Parent.SpanID())
	}
	for _, e := range s.Events {
		sp.Events = append(sp.Events, &tracepb.Span_Event{
			TimeUnixNano: unixNano(e.Time),
			Name:         e.Name,
			Attributes:   KeyValues(e.Attributes),
		})
	}
	return sp
}

func spanKind(k trace.SpanKind) tracepb.Span_SpanKind {
	switch k {
	case trace.SpanKindInternal:
		return tracepb.Span_SPAN_KIND_INTERNAL
	case trace.SpanKindServer:
		return tracepb.Span_SPAN_KIND_SERVER
	case trace.SpanKindClient:
		return tracepb.Span_SPAN_KIND_CLIENT
	case trace.SpanKindProducer:
		return tracepb.Span_SPAN_KIND_PRODUCER
	case trace.SpanKindConsumer:
		return tracepb.Span_SPAN_KIND_CONSUMER
	default:
		return tracepb.Span_SPAN_KIND_UNSPECIFIED
	}
}

func statusCode(c codes.Code) tracepb.Status_StatusCode {
	switch c {
	case codes.Ok:
		return tracepb.Status_STATUS_CODE_OK
	case codes.Error:
		return tracepb.Status_STATUS_CODE_ERROR
	default:
		return tracepb.Status_STATUS_CODE_UNSET
	}
}

// MetricsRequest 把一次采集结果转换为 OTLP 请求。
func MetricsRequest(rm *metricdata.ResourceMetrics) *colmetricspb.ExportMetricsServiceRequest {
	if rm == nil {
		return &colmetricspb.ExportMetricsServiceRequest{}
	}
	out := &metricspb.ResourceMetrics{
		Resource:  Resource(rm.Resource),
		SchemaUrl: schemaURL(rm.Resource),
	}
	for _, sm := range rm.ScopeMetrics {
		psm := &metricspb.ScopeMetrics{Scope: scope(sm.Scope)}
		for _, m := range sm.Metrics {
			if pm := metric(m); pm != nil {
				psm.Metrics = append(psm.Metrics, pm)
			}
		}
		out.ScopeMetrics = append(out.ScopeMetrics, psm)
	}
	return &colmetricspb.ExportMetricsServiceRequest{ResourceMetrics: []*metricspb.ResourceMetrics{out}}
}

func scope(s instrumentation.Scope) *commonpb.InstrumentationScope {
	return &commonpb.InstrumentationScope{Name: s.Name, Version: s.Version}
}

// metric 不支持的聚合类型返回 nil。
func metric(m metricdata.Metrics) *metricspb.Metric {
	pm := &metricspb.Metric{Name: m.Name, Description: m.Description, Unit: m.Unit}
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		pm.Data = &metricspb.Metric_Sum{Sum: &metricspb.Sum{
			DataPoints:             numberPoints(data.DataPoints),
			AggregationTemporality: temporality(data.Temporality),
			IsMonotonic:            data.IsMonotonic,
		}}
	case metricdata.Sum[float64]:
		pm.Data = &metricspb.Metric_Sum{Sum: &metricspb.Sum{
			DataPoints:             numberPoints(data.DataPoints),
			AggregationTemporality: temporality(data.Temporality),
			IsMonotonic:            data.IsMonotonic,
		}}
	case metricdata.Gauge[int64]:
		pm.Data = &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{DataPoints: numberPoints(data.DataPoints)}}
	case metricdata.Gauge[float64]:
		pm.Data = &metricspb.Metric_Gauge{Gauge: &metricspb.Gauge{DataPoints: numberPoints(data.DataPoints)}}
	case metricdata.Histogram[int64]:
		pm.Data = &metricspb.Metric_Histogram{Histogram: &metricspb.Histogram{
			DataPoints:             histogramPoints(data.DataPoints),
			AggregationTemporality: temporality(data.Temporality),
		}}
	case metricdata.Histogram[float64]:
		pm.Data = &metricspb.Metric_Histogram{Histogram: &metricspb.Histogram{
			DataPoints:             histogramPoints(data.DataPoints),
			AggregationTemporality: temporality(data.Temporality),
		}}
	default:
		return nil
	}
	return pm
}

func numberPoints[N int64 | float64](dps []metricdata.DataPoint[N]) []*metricspb.NumberDataPoint {
	out := make([]*metricspb.NumberDataPoint, 0, len(dps))
	for _, dp := range dps {
		p := &metricspb.NumberDataPoint{
			Attributes:        KeyValues(dp.Attributes.ToSlice()),
			StartTimeUnixNano: unixNano(dp.StartTime),
			TimeUnixNano:      unixNano(dp.Time),
		}
		switch v := any(dp.Value).(type) {
		case int64:
			p.Value = &metricspb.NumberDataPoint_AsInt{AsInt: v}
		case float64:
			p.Value = &metricspb.NumberDataPoint_AsDouble{AsDouble: v}
		}
		out = append(out, p)
	}
	return out
}

func histogramPoints[N int64 | float64](dps []metricdata.HistogramDataPoint[N]) []*metricspb.HistogramDataPoint {
	out := make([]*metricspb.HistogramDataPoint, 0, len(dps))
	for _, dp := range dps {
		sum := float64(dp.Sum)
		p := &metricspb.HistogramDataPoint{
			Attributes:        KeyValues(dp.Attributes.ToSlice()),
			StartTimeUnixNano: unixNano(dp.StartTime),
			TimeUnixNano:      unixNano(dp.Time),
			Count:             dp.Count,
			Sum:               &sum,
			BucketCounts:      dp.BucketCounts,
			ExplicitBounds:    dp.Bounds,
		}
		if v, ok := dp.Min.Value(); ok {
			m := float64(v)
			p.Min = &m
		}
		if v, ok := dp.Max.Value(); ok {
			m := float64(v)
			p.Max = &m
		}
		out = append(out, p)
	}
	return out
}

func temporality(t metricdata.Temporality) metricspb.AggregationTemporality {
	switch t {
	case metricdata.DeltaTemporality:
		return metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_DELTA
	case metricdata.CumulativeTemporality:
		return metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_CUMULATIVE
	default:
		return metricspb.AggregationTemporality_AGGREGATION_TEMPORALITY_UNSPECIFIED
	}
}

// Resource 转换资源，nil 返回空资源。
func Resource(res *resource.Resource) *resourcepb.Resource {
	if res == nil {
		return &resourcepb.Resource{}
	}
	return &resourcepb.Resource{Attributes: KeyValues(res.Attributes())}
}

func schemaURL(res *resource.Resource) string {
	if res == nil {
		return ""
	}
	return res.SchemaURL()
}

// KeyValues 转换属性列表
func KeyValues(kvs []attribute.KeyValue) []*commonpb.KeyValue {
	if len(kvs) == 0 {
		return nil
	}
	out := make([]*commonpb.KeyValue, 0, len(kvs))
	for _, kv := range kvs {
		out = append(out, &commonpb.KeyValue{Key: string(kv.Key), Value: AnyValue(kv.Value)})
	}
	return out
}

// AnyValue 转换单个属性值，切片类型转为 ArrayValue。
func AnyValue(v attribute.Value) *commonpb.AnyValue {
	switch v.Type() {
	case attribute.BOOL:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_BoolValue{BoolValue: v.AsBool()}}
	case attribute.INT64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_IntValue{IntValue: v.AsInt64()}}
	case attribute.FLOAT64:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_DoubleValue{DoubleValue: v.AsFloat64()}}
	case attribute.STRING:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v.AsString()}}
	case attribute.BOOLSLICE:
		return array(v.AsBoolSlice(), func(b bool) attribute.Value { return attribute.BoolValue(b) })
	case attribute.INT64SLICE:
		return array(v.AsInt64Slice(), func(i int64) attribute.Value { return attribute.Int64Value(i) })
	case attribute.FLOAT64SLICE:
		return array(v.AsFloat64Slice(), func(f float64) attribute.Value { return attribute.Float64Value(f) })
	case attribute.STRINGSLICE:
		return array(v.AsStringSlice(), func(s string) attribute.Value { return attribute.StringValue(s) })
	default:
		return &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: v.Emit()}}
	}
}

func array[T any](items []T, conv func(T) attribute.Value) *commonpb.AnyValue {
	values := make([]*commonpb.AnyValue, 0, len(items))
	for _, it := range items {
		values = append(values, AnyValue(conv(it)))
	}
	return &commonpb.AnyValue{Value: &commonpb.AnyValue_ArrayValue{ArrayValue: &commonpb.ArrayValue{Values: values}}}
}

func traceIDBytes(id trace.TraceID) []byte {
	b := id
	return b[:]
}

func spanIDBytes(id trace.SpanID) []byte {
	b := id
	return b[:]
}

func unixNano(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	n := t.UnixNano()
	if n < 0 {
		return 0
	}
	return uint64(n)
}

func clampUint32(n int) uint32 {
	switch {
	case n <= 0:
		return 0
	case int64(n) > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(n)
	}
}
