package xrun

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Group 管理一组协作 goroutine 的启动与协调关闭。
//
// Go、GoWithName、Cancel 可并发调用；Wait 只应调用一次。
type Group struct {
	eg       *errgroup.Group
	ctx      context.Context
	causeCtx context.Context
	cancel   context.CancelCauseFunc
	opts     *groupOptions
}

// NewGroup 创建 Group，返回的 ctx 在任一成员出错或 Cancel 时被取消。
func NewGroup(ctx context.Context, opts ...Option) (*Group, context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	options := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(options)
		}
	}

	causeCtx, cancel := context.WithCancelCause(ctx)
	eg, egCtx := errgroup.WithContext(causeCtx)
	return &Group{
		eg:       eg,
		ctx:      egCtx,
		causeCtx: causeCtx,
		cancel:   cancel,
		opts:     options,
	}, egCtx
}

// Go 在 Group 中启动 fn。fn 返回非 nil 错误时取消其他成员。
func (g *Group) Go(fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		return fn(g.ctx)
	})
}

// GoWithName 与 Go 相同，并记录成员的启停日志。
func (g *Group) GoWithName(name string, fn func(ctx context.Context) error) {
	g.eg.Go(func() error {
		if fn == nil {
			return ErrNilFunc
		}
		logger := g.opts.logger.With(slog.String("group", g.opts.name), slog.String("service", name))
		logger.Debug("service starting")
		err := fn(g.ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("service exited with error", slog.Any("error", err))
		} else {
			logger.Debug("service stopped")
		}
		return err
	})
}

// Wait 等待所有成员退出。
//
// 由 Cancel(cause) 或信号触发的取消返回 cause；无 cause 的普通取消返回 nil；
// 其余情况返回第一个成员错误。
func (g *Group) Wait() error {
	defer g.cancel(nil)

	err := g.eg.Wait()

	canceled := g.causeCtx.Err() != nil
	cause := context.Cause(g.causeCtx)
	hasCause := canceled && cause != nil && !errors.Is(cause, context.Canceled)

	switch {
	case errors.Is(err, context.Canceled) && canceled:
		if hasCause {
			return cause
		}
		return nil
	case err == nil && hasCause:
		return cause
	}
	return err
}

// Cancel 取消所有成员，cause 作为 Wait 的返回值。
func (g *Group) Cancel(cause error) {
	g.cancel(cause)
}

// Context 返回 Group 的 context。
func (g *Group) Context() context.Context {
	return g.ctx
}

// Run 运行 services 并监听 DefaultSignals()。
//
// 全部 services 返回后停止监听并返回；先收到信号时取消 services，
// 返回 *SignalError 或 services 自身的错误。
func Run(ctx context.Context, services ...func(ctx context.Context) error) error {
	return RunWithOptions(ctx, nil, services...)
}

// RunWithOptions 与 Run 相同，支持配置选项。
func RunWithOptions(ctx context.Context, opts []Option, services ...func(ctx context.Context) error) error {
	g, _ := NewGroup(ctx, opts...)

	finished := make(chan struct{})
	var remaining atomic.Int32
	remaining.Store(int32(len(services))) //nolint:gosec // services 数量有限
	if len(services) == 0 {
		close(finished)
	}
	for _, svc := range services {
		g.Go(func(ctx context.Context) error {
			defer func() {
				if remaining.Add(-1) == 0 {
					close(finished)
				}
			}()
			if svc == nil {
				return ErrNilFunc
			}
			return svc(ctx)
		})
	}

	if !g.opts.noSignalHandler {
		signals := g.opts.signals
		if len(signals) == 0 {
			signals = DefaultSignals()
		}
		g.Go(func(ctx context.Context) error {
			return g.watchSignals(ctx, signals, finished)
		})
	}
	return g.Wait()
}

func (g *Group) watchSignals(ctx context.Context, signals []os.Signal, finished <-chan struct{}) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signals...)
	defer signal.Stop(sigCh)

	var sig os.Signal
	select {
	case sig = <-testSigChan(ctx):
	case sig = <-sigCh:
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	g.opts.logger.Info("received signal",
		slog.String("group", g.opts.name),
		slog.String("signal", sig.String()),
	)
	g.cancel(&SignalError{Signal: sig})
	return nil
}
