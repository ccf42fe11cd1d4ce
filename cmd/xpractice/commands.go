package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/omeyang/xotel/pkg/config/xconf"
	"github.com/omeyang/xotel/pkg/observability/xtelemetry"
)

func createPracticeCommand() *cli.Command {
	return &cli.Command{
		Name:      "practice",
		Usage:     "练习指定秒数",
		ArgsUsage: "<秒数>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return &usageError{msg: "practice 需要一个参数: 练习时长（秒）"}
			}
			return runPractice(ctx, cmd, cmd.Args().First(), defaultPacing)
		},
	}
}

// loadConfig 加载配置并应用命令行覆盖。
func loadConfig(cmd *cli.Command) (*xconf.Telemetry, error) {
	cfg, err := xconf.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if v := cmd.String("exporter"); v != "" {
		cfg.Exporter = v
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runPractice 初始化管线、练习、关闭管线。练习失败与关闭失败合并返回。
func runPractice(ctx context.Context, cmd *cli.Command, howLong string, pace pacing) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out := cmd.Root().Writer
	if out == nil {
		out = os.Stdout
	}
	p, err := xtelemetry.Setup(ctx, cfg,
		xtelemetry.WithConsole(out),
		xtelemetry.WithLogOutput(out),
	)
	if err != nil {
		return err
	}

	perr := practice(ctx, p, howLong, pace)
	p.Logger(mainScope).Info(ctx, fmt.Sprintf("Practicing The Telemetry completed: %t", perr == nil))

	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cmd.Duration("shutdown-timeout"))
	defer cancel()
	if err := p.Shutdown(sctx); err != nil {
		return errors.Join(perr, fmt.Errorf("shutdown telemetry: %w", err))
	}
	return perr
}
