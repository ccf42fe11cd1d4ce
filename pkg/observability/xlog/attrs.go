package xlog

import (
	"log/slog"
	"os"
	"time"
)

// 常用属性 key
const (
	KeyError     = "error"
	KeyDuration  = "duration"
	KeyCount     = "count"
	KeyAttempt   = "attempt"
	KeyComponent = "component"
	KeyOperation = "operation"
	KeySignal    = "signal"
	KeyLogger    = "logger"

	// 关联字段
	KeyTraceID      = "trace_id"
	KeySpanID       = "span_id"
	KeyTraceSampled = "trace_sampled"
	KeyServiceName  = "service.name"
)

// Err 创建错误属性，err 为 nil 时返回空属性（会被 slog 忽略）。
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Duration 创建耗时属性，输出形如 "1.5s"。
func Duration(d time.Duration) slog.Attr {
	return slog.String(KeyDuration, d.String())
}

// Component 创建组件名属性
func Component(name string) slog.Attr {
	return slog.String(KeyComponent, name)
}

// Operation 创建操作名属性
func Operation(name string) slog.Attr {
	return slog.String(KeyOperation, name)
}

// Count 创建计数属性
func Count(n int64) slog.Attr {
	return slog.Int64(KeyCount, n)
}

// Attempt 创建尝试序号属性
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// Signal 创建信号名属性
func Signal(sig os.Signal) slog.Attr {
	if sig == nil {
		return slog.Attr{}
	}
	return slog.String(KeySignal, sig.String())
}
