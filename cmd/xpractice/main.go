// xpractice 是遥测管线的演示命令行，练习 N 秒并产生关联的日志、Span 与指标。
//
// 用法:
//
//	xpractice [全局选项] practice <秒数>
//
// 全局选项:
//
//	-c, --config            配置文件路径（yaml/json，可选，环境变量覆盖文件）
//	-e, --exporter          覆盖导出器: otlp / console / file / none
//	-l, --log-level         覆盖日志级别: debug / info / warn / error
//	    --shutdown-timeout  关闭管线的最长等待 (默认: 10s)
//
// 退出码:
//
//	0: 练习完成
//	1: 练习失败（时长不是整数、被信号中断、管线初始化失败）
//	2: 参数错误（缺少时长、未知命令或选项）
//
// 示例:
//
//	xpractice practice 3                   # 练习 3 秒，导出到 127.0.0.1:4317
//	xpractice -e console practice 2        # 输出到标准输出
//	OTEL_COLLECTOR_HOST=otel xpractice practice 5
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xotel/pkg/lifecycle/xrun"
)

// defaultShutdownTimeout 关闭管线的默认等待时间。
const defaultShutdownTimeout = 10 * time.Second

// 版本信息（可通过 -ldflags 注入，例如:
//
//	go build -ldflags "-X main.Version=1.0.0 -X main.GitCommit=$(git rev-parse --short HEAD)"
//
// ）。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run())
}

// createApp 创建 CLI 应用。
func createApp() *cli.Command {
	return &cli.Command{
		Name:    "xpractice",
		Usage:   "练习 The Telemetry：产生关联的日志、Span 与指标",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径",
			},
			&cli.StringFlag{
				Name:    "exporter",
				Aliases: []string{"e"},
				Usage:   "导出器 (otlp/console/file/none)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "日志级别 (debug/info/warn/error)",
			},
			&cli.DurationFlag{
				Name:  "shutdown-timeout",
				Usage: "关闭管线的最长等待",
				Value: defaultShutdownTimeout,
			},
		},
		Commands: []*cli.Command{
			createPracticeCommand(),
		},
		Authors: []any{
			"xotel Team",
		},
		// 退出码统一由 run() 映射
		ExitErrHandler: func(_ context.Context, cmd *cli.Command, err error) {
			if _, ok := err.(cli.ExitCoder); ok {
				fmt.Fprintln(cmd.Root().ErrWriter, err)
			}
		},
	}
}

// run 在 xrun 中执行命令，收到信号时取消练习并照常关闭管线。
func run() int {
	err := xrun.RunWithOptions(context.Background(), []xrun.Option{xrun.WithName("xpractice")},
		func(ctx context.Context) error {
			return createApp().Run(ctx, os.Args)
		})
	return exitCode(err, os.Stderr)
}

// exitCode 把命令错误映射为退出码，并向 w 输出错误信息。
func exitCode(err error, w io.StringWriter) int {
	if err == nil {
		return 0
	}
	var usageErr *usageError
	if errors.As(err, &usageErr) {
		_, _ = w.WriteString("参数错误: " + usageErr.Error() + "\n")
		return 2
	}
	if isCLIUsageError(err) {
		return 2
	}
	_, _ = w.WriteString("错误: " + err.Error() + "\n")
	return 1
}

// usageError 调用方传参错误，退出码 2。
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// isCLIUsageError 识别 urfave/cli 解析参数时产生的错误。
func isCLIUsageError(err error) bool {
	msg := err.Error()
	for _, s := range []string{
		"flag provided but not defined",
		"flag needs an argument",
		"invalid value",
		"No help topic for",
		"command not found",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
