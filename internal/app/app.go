package app

import (
	"context"
	"fmt"

	"fxlab/internal/backtest"
	fxcfg "fxlab/internal/config"
	"fxlab/internal/label"
	"fxlab/internal/logger"
	"fxlab/internal/market"
	"fxlab/internal/signal"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→同步行情→打标→回测→对外服务。
type App struct {
	cfg      *fxcfg.Config
	pipeline *LabelPipeline
	service  *backtest.Service
	httpSrv  *backtest.HTTPServer

	store    *market.Store
	labels   *label.Store
	results  *backtest.ResultStore
	provider *signal.FileProvider

	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *fxcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 执行一轮完整流水线，并在配置了监听地址时保持 HTTP 服务。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	if err := a.pipeline.Run(ctx); err != nil {
		return fmt.Errorf("label pipeline: %w", err)
	}

	run, sweep, err := a.service.Execute(ctx, backtest.RunRequest{})
	if err != nil {
		return fmt.Errorf("backtest run: %w", err)
	}
	logger.Infof("✓ 回测完成 run=%s best_threshold=%.2f trades=%d",
		run.ID, sweep.BestThreshold, sweep.BestReport.TotalTrades)

	if a.httpSrv == nil {
		return nil
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.httpSrv.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close 释放各存储句柄，幂等。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.provider != nil {
		_ = a.provider.Close()
	}
	if a.results != nil {
		_ = a.results.Close()
	}
	if a.labels != nil {
		_ = a.labels.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
}

// Service exposes the backtest service (for testing/replay harnesses).
func (a *App) Service() *backtest.Service {
	if a == nil {
		return nil
	}
	return a.service
}
