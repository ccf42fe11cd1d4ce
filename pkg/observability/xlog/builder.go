package xlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/omeyang/xotel/pkg/observability/xrotate"
)

// ReplaceAttrFunc 属性替换函数，返回空 Key 的 Attr 表示移除该属性。
type ReplaceAttrFunc func(groups []string, a slog.Attr) slog.Attr

// Builder 日志配置构建器，一次性使用。
type Builder struct {
	output      io.Writer
	levelVar    *slog.LevelVar
	format      string
	addSource   bool
	enrich      bool
	serviceName string
	scope       string
	sink        RecordSink
	replaceAttr ReplaceAttrFunc
	rotator     xrotate.Rotator
	onError     func(error)
	err         error
}

// New 创建构建器：stderr、Info、text、启用 enrich。
func New() *Builder {
	lv := new(slog.LevelVar)
	lv.Set(slog.LevelInfo)
	return &Builder{
		output:   os.Stderr,
		levelVar: lv,
		format:   "text",
		enrich:   true,
	}
}

// SetOutput 设置控制台输出，nil 表示不输出到控制台。
func (b *Builder) SetOutput(w io.Writer) *Builder {
	if b.err == nil {
		b.output = w
	}
	return b
}

// SetLevel 设置日志级别
func (b *Builder) SetLevel(level Level) *Builder {
	if b.err == nil {
		b.levelVar.Set(slog.Level(level))
	}
	return b
}

// SetLevelString 通过字符串设置日志级别
func (b *Builder) SetLevelString(s string) *Builder {
	if b.err != nil {
		return b
	}
	level, err := ParseLevel(s)
	if err != nil {
		b.err = err
		return b
	}
	return b.SetLevel(level)
}

// SetLevelVar 使用外部 LevelVar，多个 logger 共享同一动态级别。
func (b *Builder) SetLevelVar(lv *slog.LevelVar) *Builder {
	if b.err == nil && lv != nil {
		b.levelVar = lv
	}
	return b
}

// SetFormat 设置输出格式：text 或 json，空值使用 text。
func (b *Builder) SetFormat(format string) *Builder {
	if b.err != nil {
		return b
	}
	switch normalized := strings.ToLower(strings.TrimSpace(format)); normalized {
	case "":
		b.format = "text"
	case "text", "json":
		b.format = normalized
	default:
		b.err = fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return b
}

// SetAddSource 是否在控制台输出中添加源码位置
func (b *Builder) SetAddSource(enable bool) *Builder {
	if b.err == nil {
		b.addSource = enable
	}
	return b
}

// SetEnrich 是否追加关联字段，默认启用。
func (b *Builder) SetEnrich(enable bool) *Builder {
	if b.err == nil {
		b.enrich = enable
	}
	return b
}

// SetServiceName 为每条日志追加 service.name（需启用 enrich）。
func (b *Builder) SetServiceName(name string) *Builder {
	if b.err == nil {
		b.serviceName = name
	}
	return b
}

// SetScope 设置 logger 名，写入控制台的 logger 属性与导出记录的 Scope。
func (b *Builder) SetScope(name string) *Builder {
	if b.err == nil {
		b.scope = name
	}
	return b
}

// SetExport 设置导出目标，日志同时写入控制台与 sink。
func (b *Builder) SetExport(sink RecordSink) *Builder {
	if b.err != nil {
		return b
	}
	if sink == nil {
		b.err = ErrNilSink
		return b
	}
	b.sink = sink
	return b
}

// SetRotation 控制台输出改为带轮转的文件
func (b *Builder) SetRotation(filename string, opts ...xrotate.Option) *Builder {
	if b.err != nil {
		return b
	}
	rotator, err := xrotate.NewLumberjack(filename, opts...)
	if err != nil {
		b.err = err
		return b
	}
	b.rotator = rotator
	b.output = rotator
	return b
}

// SetOnError 设置 Handler.Handle 失败时的回调，回调在热路径同步执行。
func (b *Builder) SetOnError(fn func(error)) *Builder {
	if b.err == nil {
		b.onError = fn
	}
	return b
}

// SetReplaceAttr 设置控制台输出的属性替换函数
func (b *Builder) SetReplaceAttr(fn ReplaceAttrFunc) *Builder {
	if b.err == nil {
		b.replaceAttr = fn
	}
	return b
}

// Build 构建 Logger，返回的 cleanup 关闭轮转文件，可重复调用。
func (b *Builder) Build() (LoggerWithLevel, func() error, error) {
	if b.err != nil {
		return nil, nil, b.err
	}

	var handlers []slog.Handler
	if b.output != nil {
		opts := &slog.HandlerOptions{
			Level:       b.levelVar,
			AddSource:   b.addSource,
			ReplaceAttr: b.replaceAttr,
		}
		var console slog.Handler
		if b.format == "json" {
			console = slog.NewJSONHandler(b.output, opts)
		} else {
			console = slog.NewTextHandler(b.output, opts)
		}
		if b.scope != "" {
			console = console.WithAttrs([]slog.Attr{slog.String(KeyLogger, b.scope)})
		}
		handlers = append(handlers, console)
	}
	if b.sink != nil {
		export, err := NewExportHandler(b.sink, WithExportLevel(b.levelVar), WithScope(b.scope))
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, export)
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.DiscardHandler
	case 1:
		handler = handlers[0]
	default:
		handler = NewFanoutHandler(handlers...)
	}

	if b.enrich {
		enriched, err := NewEnrichHandler(handler, WithServiceName(b.serviceName))
		if err != nil {
			return nil, nil, err
		}
		handler = enriched
	}

	logger := &xlogger{
		handler:        handler,
		levelVar:       b.levelVar,
		addSource:      b.addSource,
		onError:        b.onError,
		errorCount:     new(atomic.Uint64),
		inErrorHandler: new(atomic.Bool),
	}
	return logger, b.cleanup(), nil
}

func (b *Builder) cleanup() func() error {
	rotator := b.rotator
	return sync.OnceValue(func() error {
		if rotator == nil {
			return nil
		}
		return rotator.Close()
	})
}
