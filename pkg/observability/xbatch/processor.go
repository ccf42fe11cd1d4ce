package xbatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/omeyang/xotel/pkg/lifecycle/xrun"
	"github.com/omeyang/xotel/pkg/observability/xlog"
	"github.com/omeyang/xotel/pkg/resilience/xretry"
)

// Stats 处理器计数快照。
type Stats struct {
	Enqueued      int64
	Exported      int64
	Dropped       int64
	Retries       int64
	FailedExports int64
}

type counters struct {
	enqueued      atomic.Int64
	exported      atomic.Int64
	dropped       atomic.Int64
	retries       atomic.Int64
	failedExports atomic.Int64
}

// Processor 有界队列批量处理器，一个实例对应一个后台 worker。
type Processor[T any] struct {
	opts     options
	exporter Exporter[T]
	retryer  *xretry.Retryer
	group    *xrun.Group

	mu     sync.Mutex
	queue  ring[T]
	closed bool
	// space 在队列腾出空间或处理器关闭时被关闭并替换
	space chan struct{}

	kick     chan struct{}
	flushReq chan chan error
	stop     chan struct{}
	done     chan struct{}

	shutdownOnce atomic.Bool
	stats        counters
}

// New 创建处理器并启动 worker。
func New[T any](exporter Exporter[T], opts ...Option) (*Processor[T], error) {
	if exporter == nil {
		return nil, ErrNilExporter
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxBatchSize > o.maxQueueSize {
		o.maxBatchSize = o.maxQueueSize
	}

	p := &Processor[T]{
		opts:     o,
		exporter: exporter,
		queue:    newRing[T](o.maxQueueSize),
		space:    make(chan struct{}),
		kick:     make(chan struct{}, 1),
		flushReq: make(chan chan error),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	p.retryer = xretry.NewRetryer(
		xretry.WithRetryPolicy(xretry.NewFixedRetry(o.maxAttempts)),
		xretry.WithBackoffPolicy(o.backoff),
		xretry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			p.stats.retries.Add(1)
			o.logger.Debug("export retry",
				xlog.Component(o.name),
				xlog.Err(err),
				xlog.Attempt(attempt),
				xlog.Duration(delay),
			)
		}),
	)

	p.group, _ = xrun.NewGroup(context.Background(),
		xrun.WithName(o.name),
		xrun.WithLogger(o.logger),
	)
	p.group.GoWithName("export-worker", p.run)
	return p, nil
}

// Enqueue 将元素加入队列，不做网络 I/O。
//
// 队列满时按 DropPolicy 处理；关闭后返回 ErrShutdown。
func (p *Processor[T]) Enqueue(item T) error {
	if p == nil {
		return ErrShutdown
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrShutdown
	}
	if !p.queue.full() {
		p.pushLocked(item)
		return nil
	}

	switch p.opts.dropPolicy {
	case DropOldest:
		p.queue.evict()
		p.pushLocked(item)
		p.drop(ReasonQueueFull, 1)
		return nil
	case BlockWithTimeout:
		return p.enqueueBlocking(item)
	default:
		p.mu.Unlock()
		p.drop(ReasonQueueFull, 1)
		return ErrQueueFull
	}
}

// pushLocked 追加元素并释放锁。调用方必须持有 p.mu。
//
// 队列由空变非空时也唤醒 worker，使其按队首入队时间设置定时器。
func (p *Processor[T]) pushLocked(item T) {
	first := p.queue.len() == 0
	p.queue.push(item, time.Now())
	full := p.queue.len() >= p.opts.maxBatchSize
	p.mu.Unlock()

	p.stats.enqueued.Add(1)
	if first || full {
		p.wake()
	}
}

// enqueueBlocking 在持有 p.mu 时进入，返回前释放锁。
func (p *Processor[T]) enqueueBlocking(item T) error {
	timer := time.NewTimer(p.opts.blockTimeout)
	defer timer.Stop()

	for {
		space := p.space
		p.mu.Unlock()
		p.wake()

		select {
		case <-space:
		case <-timer.C:
			p.drop(ReasonQueueFull, 1)
			return ErrQueueFull
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return ErrShutdown
		}
		if !p.queue.full() {
			p.pushLocked(item)
			return nil
		}
	}
}

func (p *Processor[T]) wake() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// ForceFlush 导出当前队列中的全部元素，返回第一个导出错误。
func (p *Processor[T]) ForceFlush(ctx context.Context) error {
	if p == nil {
		return nil
	}
	if p.isClosed() {
		return ErrShutdown
	}
	reply := make(chan error, 1)
	select {
	case p.flushReq <- reply:
	case <-p.done:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown 停止接收、导出剩余元素并关闭导出器。
//
// ctx 到期时取消进行中的导出并丢弃剩余数据，返回值包含 ctx 的错误。
// 重复调用返回 nil。
func (p *Processor[T]) Shutdown(ctx context.Context) error {
	if p == nil || !p.shutdownOnce.CompareAndSwap(false, true) {
		return nil
	}

	p.mu.Lock()
	p.closed = true
	close(p.space)
	p.space = make(chan struct{})
	p.mu.Unlock()
	close(p.stop)

	var ctxErr error
	select {
	case <-p.done:
	case <-ctx.Done():
		ctxErr = ctx.Err()
		p.group.Cancel(ctxErr)
		<-p.done
	}
	// worker 总是返回 nil，Wait 的结果只反映取消原因
	_ = p.group.Wait()

	return errors.Join(ctxErr, p.exporter.Shutdown(ctx))
}

// Stats 返回计数快照。
func (p *Processor[T]) Stats() Stats {
	if p == nil {
		return Stats{}
	}
	return Stats{
		Enqueued:      p.stats.enqueued.Load(),
		Exported:      p.stats.exported.Load(),
		Dropped:       p.stats.dropped.Load(),
		Retries:       p.stats.retries.Load(),
		FailedExports: p.stats.failedExports.Load(),
	}
}

// Len 返回当前排队元素数。
func (p *Processor[T]) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

func (p *Processor[T]) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Processor[T]) run(ctx context.Context) error {
	defer close(p.done)

	// 定时器始终指向队首元素到期的时刻，队列为空时停止
	timer := time.NewTimer(p.opts.batchDelay)
	defer timer.Stop()
	p.arm(timer)

	for {
		select {
		case <-ctx.Done():
			p.discard()
			return nil
		case <-p.stop:
			_ = p.exportItems(ctx, p.take(false))
			p.discard()
			return nil
		case <-timer.C:
			_ = p.exportItems(ctx, p.take(false))
		case <-p.kick:
			if items := p.take(true); len(items) > 0 {
				_ = p.exportItems(ctx, items)
			}
		case reply := <-p.flushReq:
			reply <- p.exportItems(ctx, p.take(false))
		}
		p.arm(timer)
	}
}

// arm 按队首元素的入队时间重设定时器，已到期时立即触发。
func (p *Processor[T]) arm(timer *time.Timer) {
	p.mu.Lock()
	oldest, ok := p.queue.oldest()
	p.mu.Unlock()

	if !ok {
		timer.Stop()
		return
	}
	timer.Reset(max(p.opts.batchDelay-time.Since(oldest), 0))
}

// take 取出队首元素。fullOnly 为 true 时只取整批。
func (p *Processor[T]) take(fullOnly bool) []T {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.queue.len()
	if fullOnly {
		n -= n % p.opts.maxBatchSize
	}
	if n == 0 {
		return nil
	}

	items := p.queue.pop(n)
	close(p.space)
	p.space = make(chan struct{})
	return items
}

// discard 丢弃关闭时残留的元素。
func (p *Processor[T]) discard() {
	p.mu.Lock()
	n := p.queue.reset()
	p.mu.Unlock()
	if n > 0 {
		p.drop(ReasonShutdown, n)
	}
}

// exportItems 按 maxBatchSize 分批导出，返回第一个错误。
func (p *Processor[T]) exportItems(ctx context.Context, items []T) error {
	var first error
	for start := 0; start < len(items); start += p.opts.maxBatchSize {
		if err := ctx.Err(); err != nil {
			p.drop(ReasonShutdown, len(items)-start)
			if first == nil {
				first = err
			}
			break
		}
		end := min(start+p.opts.maxBatchSize, len(items))
		if err := p.exportBatch(ctx, items[start:end]); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (p *Processor[T]) exportBatch(ctx context.Context, batch []T) error {
	err := p.retryer.Do(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, p.opts.exportTimeout)
		defer cancel()
		return p.exporter.Export(attemptCtx, batch)
	})
	if err == nil {
		p.stats.exported.Add(int64(len(batch)))
		return nil
	}

	var partial *PartialError
	if errors.As(err, &partial) {
		accepted := min(max(partial.Accepted, 0), len(batch))
		p.stats.exported.Add(int64(accepted))
		if rejected := len(batch) - accepted; rejected > 0 {
			p.opts.logger.Warn("export partially rejected",
				xlog.Component(p.opts.name),
				xlog.Err(err),
				xlog.Count(int64(rejected)),
			)
			p.drop(ReasonRejected, rejected)
		}
		return err
	}

	p.stats.failedExports.Add(1)
	p.opts.logger.Warn("export failed, batch dropped",
		xlog.Component(p.opts.name),
		xlog.Err(err),
		xlog.Count(int64(len(batch))),
	)
	p.drop(ReasonExportFailed, len(batch))
	return err
}

func (p *Processor[T]) drop(reason DropReason, n int) {
	if n <= 0 {
		return
	}
	p.stats.dropped.Add(int64(n))
	if p.opts.onDrop != nil {
		p.opts.onDrop(reason, n)
	}
}
