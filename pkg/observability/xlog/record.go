package xlog

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Record 待导出的日志记录，创建后只读。
type Record struct {
	Time         time.Time
	ObservedTime time.Time
	Level        Level
	Body         string
	// Scope 日志来源名（instrumentation scope）。
	Scope string
	Attrs []attribute.KeyValue

	// 无活跃 span 时为零值。
	TraceID    trace.TraceID
	SpanID     trace.SpanID
	TraceFlags trace.TraceFlags
}

// SeverityNumber 返回 OpenTelemetry 严重度编号。
func (r Record) SeverityNumber() int32 { return r.Level.Severity() }

// SeverityText 返回级别名。
func (r Record) SeverityText() string { return r.Level.String() }

// HasTrace 记录是否携带有效的追踪上下文。
func (r Record) HasTrace() bool { return r.TraceID.IsValid() && r.SpanID.IsValid() }

// AppendAttr 把 slog.Attr 转换为 attribute.KeyValue 追加到 dst。
//
// group 属性展开为 "prefix.key"，值收敛到 string/int64/float64/bool：
// uint64 截断到 int64 上限，Duration 取纳秒，Time 格式化为 RFC3339Nano，
// 其他类型通过 fmt 转为字符串。空 key 的属性被忽略。
func AppendAttr(dst []attribute.KeyValue, prefix string, a slog.Attr) []attribute.KeyValue {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return dst
	}
	key := a.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		key = prefix
	}

	switch v.Kind() {
	case slog.KindString:
		return append(dst, attribute.String(key, v.String()))
	case slog.KindInt64:
		return append(dst, attribute.Int64(key, v.Int64()))
	case slog.KindUint64:
		u := v.Uint64()
		if u > math.MaxInt64 {
			u = math.MaxInt64
		}
		return append(dst, attribute.Int64(key, int64(u))) //nolint:gosec // 已截断
	case slog.KindFloat64:
		return append(dst, attribute.Float64(key, v.Float64()))
	case slog.KindBool:
		return append(dst, attribute.Bool(key, v.Bool()))
	case slog.KindDuration:
		return append(dst, attribute.Int64(key, int64(v.Duration())))
	case slog.KindTime:
		return append(dst, attribute.String(key, v.Time().Format(time.RFC3339Nano)))
	case slog.KindGroup:
		for _, ga := range v.Group() {
			dst = AppendAttr(dst, key, ga)
		}
		return dst
	default:
		return append(dst, attribute.String(key, anyString(v.Any())))
	}
}

func anyString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
