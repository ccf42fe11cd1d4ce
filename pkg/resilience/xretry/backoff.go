package xretry

import (
	"crypto/rand"
	"encoding/binary"
	"math"
	"time"
)

// ExponentialBackoff 指数退避。
// delay = min(initial * multiplier^(attempt-1) * (1 ± jitter), max)
type ExponentialBackoff struct {
	initialDelay time.Duration
	maxDelay     time.Duration
	multiplier   float64
	jitter       float64
}

// ExponentialBackoffOption 指数退避配置选项。
type ExponentialBackoffOption func(*ExponentialBackoff)

// WithInitialDelay 设置首次重试延迟，d <= 0 时忽略。
func WithInitialDelay(d time.Duration) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if d > 0 {
			b.initialDelay = d
		}
	}
}

// WithMaxDelay 设置延迟上限，d <= 0 时忽略。
func WithMaxDelay(d time.Duration) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if d > 0 {
			b.maxDelay = d
		}
	}
}

// WithMultiplier 设置增长倍数，小于 1 时忽略。
func WithMultiplier(m float64) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		if m >= 1 {
			b.multiplier = m
		}
	}
}

// WithJitter 设置抖动比例，截断到 [0, 1]。
func WithJitter(j float64) ExponentialBackoffOption {
	return func(b *ExponentialBackoff) {
		b.jitter = math.Min(math.Max(j, 0), 1)
	}
}

// NewExponentialBackoff 创建指数退避策略。
//
// 默认值：initialDelay 100ms，maxDelay 5s，multiplier 2.0，jitter 0.1。
func NewExponentialBackoff(opts ...ExponentialBackoffOption) *ExponentialBackoff {
	b := &ExponentialBackoff{
		initialDelay: 100 * time.Millisecond,
		maxDelay:     5 * time.Second,
		multiplier:   2.0,
		jitter:       0.1,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.maxDelay < b.initialDelay {
		b.maxDelay = b.initialDelay
	}
	return b
}

func (b *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(b.initialDelay) * math.Pow(b.multiplier, float64(attempt-1))
	if b.jitter > 0 {
		delay *= 1.0 + (randomFloat64()*2-1)*b.jitter
	}
	// attempt 极大时 Pow 溢出为 +Inf，乘以 0 得到 NaN
	if math.IsNaN(delay) || delay < 0 || delay >= float64(b.maxDelay) {
		return b.maxDelay
	}
	return time.Duration(delay)
}

// FixedBackoff 固定延迟。
type FixedBackoff struct {
	delay time.Duration
}

// NewFixedBackoff 创建固定延迟退避策略。
func NewFixedBackoff(delay time.Duration) *FixedBackoff {
	return &FixedBackoff{delay: max(delay, 0)}
}

func (b *FixedBackoff) NextDelay(int) time.Duration {
	return b.delay
}

// NoBackoff 无延迟。
type NoBackoff struct{}

// NewNoBackoff 创建无延迟退避策略。
func NewNoBackoff() *NoBackoff {
	return &NoBackoff{}
}

func (b *NoBackoff) NextDelay(int) time.Duration {
	return 0
}

var (
	_ BackoffPolicy = (*ExponentialBackoff)(nil)
	_ BackoffPolicy = (*FixedBackoff)(nil)
	_ BackoffPolicy = (*NoBackoff)(nil)
)

const floatScale = 1.0 / (1 << 53)

func randomFloat64() float64 {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// 读取失败等价于无抖动
		return 0.5
	}
	return float64(binary.LittleEndian.Uint64(buf[:])>>11) * floatScale
}
