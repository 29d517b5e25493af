package main

import (
	"context"
	"fmt"

	"atma-secure/internal/app"
	"atma-secure/internal/config"

	"atma-secure/common/logger"
)

// openApp 按服务配置组装组件；CLI 只输出 warn 及以上日志
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	lg, err := logger.NewLogger("warn", "console", "atma-ctl")
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return a, nil
}
