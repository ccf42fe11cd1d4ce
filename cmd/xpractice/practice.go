package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/omeyang/xotel/pkg/lifecycle/xrun"
	"github.com/omeyang/xotel/pkg/observability/xlog"
	"github.com/omeyang/xotel/pkg/observability/xmetrics"
	"github.com/omeyang/xotel/pkg/observability/xtelemetry"
)

const (
	practiceScope = "yoda.practice"
	mainScope     = "yoda.main"

	counterName   = "counter"
	practiceLabel = "the-telemetry"
)

const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

// ErrInvalidDuration 练习时长不是非负整数，或超出 time.Duration 的表示范围。
var ErrInvalidDuration = errors.New("xpractice: practice duration must be a non-negative integer")

// pacing 练习节奏：unit 为时长单位，tick 为两次练习日志的间隔。
type pacing struct {
	unit time.Duration
	tick time.Duration
}

var defaultPacing = pacing{unit: time.Second, tick: 500 * time.Millisecond}

// practice 在 "yoda.practice" span 内练习 howLong 个时长单位。
//
// 开始前按时长累加 counter，期间每个 tick 记录一条日志。
// 时长无法解析时记录错误日志并返回 ErrInvalidDuration；
// 被 ctx 中断时把 span 标记为错误并记录异常事件。
func practice(ctx context.Context, p *xtelemetry.Provider, howLong string, pace pacing) error {
	ctx, span := p.Tracer(practiceScope).Start(ctx, practiceScope)
	defer span.End()

	logger := p.Logger(practiceScope)
	start := time.Now()
	span.SetAttributes(
		attribute.Float64("practice.start_time", unixSeconds(start)),
		attribute.String("practice.duration.seconds", howLong),
	)

	n, err := strconv.Atoi(strings.TrimSpace(howLong))
	if err != nil || n < 0 || int64(n) > math.MaxInt64/int64(pace.unit) {
		logger.Error(ctx, "I need an integer value for the time to practice", slog.String("value", howLong))
		return fmt.Errorf("%w: %q", ErrInvalidDuration, howLong)
	}

	fail := func(err error) error {
		logger.Error(ctx, "An unexpected error occurred", xlog.Err(err))
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return err
	}

	counter, err := p.Meter(practiceScope).Int64Counter(counterName,
		xmetrics.WithUnit("1"),
		xmetrics.WithDescription("Counts things"),
	)
	if err != nil {
		return fail(err)
	}
	if err := counter.Add(ctx, int64(n), attribute.String("practice", practiceLabel)); err != nil {
		return fail(err)
	}

	logger.Info(ctx, fmt.Sprintf("starting to practice The Telemetry for %d second(s)", n))
	if n > 0 {
		loopCtx, cancel := context.WithTimeout(ctx, time.Duration(n)*pace.unit)
		err := xrun.Ticker(pace.tick, true, func(ctx context.Context) error {
			logger.Info(ctx, "Practicing: "+randomPunctuation())
			return nil
		})(loopCtx)
		cancel()
		// 正常结束时只有 loopCtx 到期
		if !errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			if cause := context.Cause(ctx); cause != nil {
				err = cause
			}
			return fail(err)
		}
	}

	logger.Info(ctx, "Done practicing")
	span.SetAttributes(
		attribute.Float64("practice.end_time", unixSeconds(time.Now())),
		attribute.Int("counter", n),
	)
	return nil
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func randomPunctuation() string {
	i := rand.IntN(len(punctuation)) //nolint:gosec // 演示输出，无需密码学随机
	return punctuation[i : i+1]
}
