package app

import (
	"context"
	"fmt"
	"time"

	"fxlab/internal/backtest"
	fxcfg "fxlab/internal/config"
	"fxlab/internal/feature"
	"fxlab/internal/label"
	"fxlab/internal/logger"
	"fxlab/internal/market"
	"fxlab/internal/signal"
)

type AppBuilder struct {
	cfg *fxcfg.Config

	sourceFn   func(fxcfg.DataConfig) (market.CandleSource, error)
	providerFn func(fxcfg.SignalConfig) (*signal.FileProvider, error)
	nowFn      func() time.Time
}

type AppBuilderOption func(*AppBuilder)

// WithCandleSource 覆盖行情源构造，测试与回放场景使用。
func WithCandleSource(fn func(fxcfg.DataConfig) (market.CandleSource, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.sourceFn = fn
		}
	}
}

func NewAppBuilder(cfg *fxcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		sourceFn:   buildCandleSource,
		providerFn: buildSignalProvider,
		nowFn:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildSignalProvider(cfg fxcfg.SignalConfig) (*signal.FileProvider, error) {
	return signal.NewFileProvider(cfg.FeedPath, cfg.Watch)
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	tf, err := market.ParseTimeframe(cfg.Data.Timeframe)
	if err != nil {
		return nil, err
	}
	start, end, err := cfg.Data.TimeRange(b.nowFn())
	if err != nil {
		return nil, err
	}

	store, err := market.NewStore(cfg.Data.Root)
	if err != nil {
		return nil, err
	}
	source, err := b.sourceFn(cfg.Data)
	if err != nil {
		store.Close()
		return nil, err
	}
	syncSvc := market.NewSyncService(store, source)
	logger.Infof("✓ 行情源 %s，周期 %s，符号 %v", source.Name(), tf.Key, cfg.Data.Symbols)

	featureCfg := feature.DefaultConfig()
	featureCfg.ATRPeriod = cfg.Label.ATRPeriod
	featureCfg.ATRMeanWindow = cfg.Label.ATRMeanWindow

	engine, err := label.NewEngine(label.Params{
		BaseTPMult: cfg.Label.TPATRMult,
		SLMult:     cfg.Label.SLATRMult,
		MinHorizon: cfg.Label.MinHorizon,
		MaxHorizon: cfg.Label.MaxHorizon,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	labelStore, err := label.NewStore(cfg.Data.LabelDBPath)
	if err != nil {
		store.Close()
		return nil, err
	}

	provider, err := b.providerFn(cfg.Signal)
	if err != nil {
		labelStore.Close()
		store.Close()
		return nil, err
	}
	logger.Infof("✓ 信号 feed 已加载：%s（%d 条）", cfg.Signal.FeedPath, provider.Count())

	sim, err := backtest.NewSimulator(provider)
	if err != nil {
		return nil, err
	}
	results, err := backtest.NewResultStore(cfg.Data.ResultRoot)
	if err != nil {
		provider.Close()
		labelStore.Close()
		store.Close()
		return nil, err
	}
	reports := backtest.NewReportWriter(cfg.Report.Dir, cfg.Report.RenderPNG)

	svc, err := backtest.NewService(backtest.ServiceConfig{
		Simulator: sim,
		Results:   results,
		Reports:   reports,
		Labels:    labelStore,
		Base: backtest.SimConfig{
			InitialEquity:  cfg.Backtest.InitialEquity,
			RiskPerTrade:   cfg.Backtest.RiskPerTrade,
			Threshold:      cfg.Backtest.Threshold,
			ExcludeNeutral: cfg.Backtest.ExcludeNeutral,
		},
		Thresholds:    cfg.Sweep.Thresholds,
		MaxConcurrent: cfg.Sweep.MaxConcurrent,
	})
	if err != nil {
		return nil, err
	}

	var httpSrv *backtest.HTTPServer
	if cfg.App.HTTPAddr != "" {
		httpSrv, err = backtest.NewHTTPServer(backtest.HTTPConfig{
			Addr:    cfg.App.HTTPAddr,
			Service: svc,
			Results: results,
			Candles: store,
			Labels:  labelStore,
		})
		if err != nil {
			return nil, err
		}
	}

	pipeline := &LabelPipeline{
		sync:          syncSvc,
		tf:            tf,
		symbols:       cfg.Data.Symbols,
		start:         start,
		end:           end,
		featureCfg:    featureCfg,
		engine:        engine,
		labels:        labelStore,
		pipSize:       cfg.Data.PipSize,
		maxConcurrent: cfg.Label.MaxConcurrent,
	}

	return &App{
		cfg:      cfg,
		pipeline: pipeline,
		service:  svc,
		httpSrv:  httpSrv,
		store:    store,
		labels:   labelStore,
		results:  results,
		provider: provider,
		Summary:  buildStartupSummary(cfg, tf, source.Name()),
	}, nil
}
