package xbatch

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/omeyang/xotel/pkg/resilience/xretry"
)

// 默认值。
const (
	DefaultMaxQueueSize  = 2048
	DefaultMaxBatchSize  = 512
	DefaultBatchDelay    = 5 * time.Second
	DefaultExportTimeout = 30 * time.Second
	DefaultMaxAttempts   = 3
	DefaultBlockTimeout  = 100 * time.Millisecond
)

// DropPolicy 队列满时的处理策略。
type DropPolicy int

const (
	DropNewest DropPolicy = iota
	DropOldest
	BlockWithTimeout
)

func (p DropPolicy) String() string {
	switch p {
	case DropNewest:
		return "drop_newest"
	case DropOldest:
		return "drop_oldest"
	case BlockWithTimeout:
		return "block"
	default:
		return fmt.Sprintf("DropPolicy(%d)", int(p))
	}
}

// ParseDropPolicy 解析 drop_newest / drop_oldest / block。
func ParseDropPolicy(s string) (DropPolicy, error) {
	switch s {
	case "", "drop_newest":
		return DropNewest, nil
	case "drop_oldest":
		return DropOldest, nil
	case "block":
		return BlockWithTimeout, nil
	default:
		return DropNewest, fmt.Errorf("%w: %q", ErrUnknownDropPolicy, s)
	}
}

// DropReason 丢弃原因。
type DropReason string

const (
	ReasonQueueFull    DropReason = "queue_full"
	ReasonExportFailed DropReason = "export_failed"
	ReasonRejected     DropReason = "rejected"
	ReasonShutdown     DropReason = "shutdown"
)

type options struct {
	name          string
	maxQueueSize  int
	maxBatchSize  int
	batchDelay    time.Duration
	exportTimeout time.Duration
	maxAttempts   int
	backoff       xretry.BackoffPolicy
	dropPolicy    DropPolicy
	blockTimeout  time.Duration
	onDrop        func(reason DropReason, n int)
	logger        *slog.Logger
}

func defaultOptions() options {
	return options{
		name:          "xbatch",
		maxQueueSize:  DefaultMaxQueueSize,
		maxBatchSize:  DefaultMaxBatchSize,
		batchDelay:    DefaultBatchDelay,
		exportTimeout: DefaultExportTimeout,
		maxAttempts:   DefaultMaxAttempts,
		backoff: xretry.NewExponentialBackoff(
			xretry.WithInitialDelay(100*time.Millisecond),
			xretry.WithMultiplier(2),
			xretry.WithMaxDelay(5*time.Second),
			xretry.WithJitter(0.1),
		),
		dropPolicy:   DropNewest,
		blockTimeout: DefaultBlockTimeout,
		logger:       slog.Default(),
	}
}

// Option 处理器配置选项。非法值被忽略。
type Option func(*options)

// WithName 设置处理器名称，用于日志。
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}

// WithMaxQueueSize 设置队列容量。
func WithMaxQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxQueueSize = n
		}
	}
}

// WithMaxBatchSize 设置单批最大元素数，超过队列容量时截断为队列容量。
func WithMaxBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBatchSize = n
		}
	}
}

// WithBatchDelay 设置两次导出之间的最长间隔。
func WithBatchDelay(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.batchDelay = d
		}
	}
}

// WithExportTimeout 设置单次导出尝试的超时。
func WithExportTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.exportTimeout = d
		}
	}
}

// WithMaxAttempts 设置每批的总尝试次数（包含首次）。
func WithMaxAttempts(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithBackoff 设置重试退避策略。
func WithBackoff(b xretry.BackoffPolicy) Option {
	return func(o *options) {
		if b != nil {
			o.backoff = b
		}
	}
}

// WithDropPolicy 设置队列满时的策略。
func WithDropPolicy(p DropPolicy) Option {
	return func(o *options) {
		if p >= DropNewest && p <= BlockWithTimeout {
			o.dropPolicy = p
		}
	}
}

// WithBlockTimeout 设置 BlockWithTimeout 的最长等待。
func WithBlockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.blockTimeout = d
		}
	}
}

// WithOnDrop 设置丢弃回调。回调在生产者或 worker goroutine 上同步执行，应当轻量。
func WithOnDrop(fn func(reason DropReason, n int)) Option {
	return func(o *options) {
		o.onDrop = fn
	}
}

// WithLogger 设置内部日志记录器，默认 slog.Default()。
//
// 不要传入会把日志写回同一处理器的 logger。
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
