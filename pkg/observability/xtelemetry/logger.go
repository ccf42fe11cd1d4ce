package xtelemetry

import (
	"context"
	"log/slog"

	"github.com/omeyang/xotel/pkg/observability/xlog"
)

// gatedLogger Provider 不再处于 Active 时丢弃所有日志。
type gatedLogger struct {
	p     *Provider
	inner xlog.Logger
}

func (l *gatedLogger) Debug(ctx context.Context, msg string, attrs ...slog.Attr) {
	if l.p.active() {
		l.inner.Debug(ctx, msg, attrs...)
	}
}

func (l *gatedLogger) Info(ctx context.Context, msg string, attrs ...slog.Attr) {
	if l.p.active() {
		l.inner.Info(ctx, msg, attrs...)
	}
}

func (l *gatedLogger) Warn(ctx context.Context, msg string, attrs ...slog.Attr) {
	if l.p.active() {
		l.inner.Warn(ctx, msg, attrs...)
	}
}

func (l *gatedLogger) Error(ctx context.Context, msg string, attrs ...slog.Attr) {
	if l.p.active() {
		l.inner.Error(ctx, msg, attrs...)
	}
}

func (l *gatedLogger) With(attrs ...slog.Attr) xlog.Logger {
	return &gatedLogger{p: l.p, inner: l.inner.With(attrs...)}
}

func (l *gatedLogger) WithGroup(name string) xlog.Logger {
	return &gatedLogger{p: l.p, inner: l.inner.WithGroup(name)}
}

var _ xlog.Logger = (*gatedLogger)(nil)
