package xlog

import (
	"fmt"
	"log/slog"
	"strings"
)

// Level 日志级别，与 slog.Level 兼容
type Level slog.Level

const (
	LevelDebug = Level(slog.LevelDebug)
	LevelInfo  = Level(slog.LevelInfo)
	LevelWarn  = Level(slog.LevelWarn)
	LevelError = Level(slog.LevelError)
)

// OpenTelemetry 严重度编号，每个级别占 4 个编号。
const (
	severityDebug = 5
	severityInfo  = 9
	severityWarn  = 13
	severityError = 17
	severityMax   = 24
)

// String 返回 DEBUG/INFO/WARN/ERROR，非标准级别形如 "INFO+2"。
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return slog.Level(l).String()
	}
}

// Severity 返回 OpenTelemetry 严重度编号。
//
// 标准级别映射为 Debug=5、Info=9、Warn=13、Error=17，
// 中间级别按偏移落在所属区间内，结果限定在 [1, 24]。
func (l Level) Severity() int32 {
	var n int
	switch {
	case l < LevelInfo:
		n = severityDebug + int(l-LevelDebug)
	case l < LevelWarn:
		n = severityInfo + int(l-LevelInfo)
	case l < LevelError:
		n = severityWarn + int(l-LevelWarn)
	default:
		n = severityError + int(l-LevelError)
	}
	n = min(max(n, 1), severityMax)
	return int32(n) //nolint:gosec // 已限定在 [1, 24]
}

// MarshalText 实现 encoding.TextMarshaler
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText 实现 encoding.TextUnmarshaler
func (l *Level) UnmarshalText(data []byte) error {
	parsed, err := ParseLevel(string(data))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// ParseLevel 解析 debug/info/warn/warning/error（大小写不敏感，忽略首尾空白）。
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}
