package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fxlab/internal/label"
	"fxlab/internal/logger"
)

// LabelSource 提供标签流，通常由 label.Store 实现。
type LabelSource interface {
	ListAll(ctx context.Context) ([]label.Label, error)
}

// ServiceConfig 回测服务装配参数。
type ServiceConfig struct {
	Simulator     *Simulator
	Results       *ResultStore
	Reports       *ReportWriter
	Labels        LabelSource
	Base          SimConfig
	Thresholds    []float64
	MaxConcurrent int
}

// Service 串起阈值扫描、结果持久化与报告输出。
type Service struct {
	sim        *Simulator
	results    *ResultStore
	reports    *ReportWriter
	labels     LabelSource
	base       SimConfig
	thresholds []float64
	maxConc    int
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Simulator == nil {
		return nil, fmt.Errorf("simulator 不能为空")
	}
	if cfg.Labels == nil {
		return nil, fmt.Errorf("label source 不能为空")
	}
	if len(cfg.Thresholds) == 0 {
		return nil, fmt.Errorf("候选阈值不能为空")
	}
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 4
	}
	return &Service{
		sim:        cfg.Simulator,
		results:    cfg.Results,
		reports:    cfg.Reports,
		labels:     cfg.Labels,
		base:       cfg.Base,
		thresholds: cfg.Thresholds,
		maxConc:    maxConc,
	}, nil
}

// RunRequest 外部触发一次回测的参数，空值回落到服务默认。
type RunRequest struct {
	Thresholds     []float64 `json:"thresholds"`
	ExcludeNeutral *bool     `json:"exclude_neutral"`
	RiskPerTrade   float64   `json:"risk_per_trade"`
	InitialEquity  float64   `json:"initial_equity"`
}

func (s *Service) buildConfig(req RunRequest) (SimConfig, []float64) {
	cfg := s.base
	if req.ExcludeNeutral != nil {
		cfg.ExcludeNeutral = *req.ExcludeNeutral
	}
	if req.RiskPerTrade > 0 {
		cfg.RiskPerTrade = req.RiskPerTrade
	}
	if req.InitialEquity > 0 {
		cfg.InitialEquity = req.InitialEquity
	}
	thresholds := s.thresholds
	if len(req.Thresholds) > 0 {
		thresholds = req.Thresholds
	}
	return cfg, thresholds
}

// Execute 同步执行一次完整回测：扫描、择优、落库、报告。
func (s *Service) Execute(ctx context.Context, req RunRequest) (Run, SweepResult, error) {
	cfg, thresholds := s.buildConfig(req)
	run := Run{
		ID:         uuid.NewString(),
		Status:     RunStatusRunning,
		Config:     cfg,
		Thresholds: thresholds,
		CreatedAt:  time.Now(),
	}
	if s.results != nil {
		if err := s.results.InsertRun(ctx, run); err != nil {
			return Run{}, SweepResult{}, fmt.Errorf("persist run: %w", err)
		}
	}

	sweep, err := s.execute(ctx, &run, cfg, thresholds)
	if err != nil {
		if s.results != nil {
			_ = s.results.FailRun(context.WithoutCancel(ctx), run.ID, err.Error())
		}
		run.Status = RunStatusFailed
		run.Message = err.Error()
		return run, SweepResult{}, err
	}
	return run, sweep, nil
}

// StartRun 异步入口，立即返回 running 状态的 run。
func (s *Service) StartRun(req RunRequest) (Run, error) {
	cfg, thresholds := s.buildConfig(req)
	run := Run{
		ID:         uuid.NewString(),
		Status:     RunStatusRunning,
		Config:     cfg,
		Thresholds: thresholds,
		CreatedAt:  time.Now(),
	}
	ctx := context.Background()
	if s.results != nil {
		if err := s.results.InsertRun(ctx, run); err != nil {
			return Run{}, fmt.Errorf("persist run: %w", err)
		}
	}
	go func() {
		if _, err := s.execute(ctx, &run, cfg, thresholds); err != nil {
			logger.Errorf("[backtest] run %s 失败: %v", run.ID, err)
			if s.results != nil {
				_ = s.results.FailRun(ctx, run.ID, err.Error())
			}
		}
	}()
	return run, nil
}

func (s *Service) execute(ctx context.Context, run *Run, cfg SimConfig, thresholds []float64) (SweepResult, error) {
	labels, err := s.labels.ListAll(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("load labels: %w", err)
	}
	if len(labels) == 0 {
		return SweepResult{}, fmt.Errorf("没有可用标签，请先执行打标")
	}

	sweep, err := Sweep(ctx, s.sim, labels, cfg, thresholds, s.maxConc)
	if err != nil {
		return SweepResult{}, err
	}

	// 以最优阈值重放一遍拿完整成交与权益明细；模拟是确定性的
	bestCfg := cfg
	bestCfg.Threshold = sweep.BestThreshold
	bestRes, err := s.sim.Run(labels, bestCfg)
	if err != nil {
		return SweepResult{}, err
	}

	run.Status = RunStatusFinished
	run.Best = sweep.BestThreshold
	rep := sweep.BestReport
	run.Report = &rep
	run.FinishedAt = time.Now()

	if s.results != nil {
		if err := s.results.InsertTrades(ctx, run.ID, bestRes.Trades); err != nil {
			return SweepResult{}, fmt.Errorf("persist trades: %w", err)
		}
		if err := s.results.InsertEquity(ctx, run.ID, bestRes.Equity); err != nil {
			return SweepResult{}, fmt.Errorf("persist equity: %w", err)
		}
		if err := s.results.FinishRun(ctx, run.ID, run.Best, rep, ""); err != nil {
			return SweepResult{}, fmt.Errorf("finish run: %w", err)
		}
	}
	if s.reports != nil {
		if _, err := s.reports.Write(ctx, *run, sweep, bestRes.Equity); err != nil {
			logger.Warnf("[backtest] run %s 报告写出失败: %v", run.ID, err)
		}
	}
	logger.Infof("[backtest] run %s 完成: best τ=%.2f trades=%d pf=%v",
		run.ID, run.Best, rep.TotalTrades, float64(rep.ProfitFactor))
	return sweep, nil
}
