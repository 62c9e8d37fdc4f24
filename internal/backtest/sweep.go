package backtest

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"fxlab/internal/label"
	"fxlab/internal/logger"
)

// ThresholdReport 单阈值的回放结果。
type ThresholdReport struct {
	Threshold float64 `json:"threshold"`
	Report    Report  `json:"report"`
}

// SweepResult 阈值扫描输出，Reports 按阈值升序。
type SweepResult struct {
	Reports       []ThresholdReport `json:"reports"`
	BestThreshold float64           `json:"best_threshold"`
	BestReport    Report            `json:"best_report"`
}

// Sweep 对每个候选阈值独立跑一次模拟并汇总，彼此不共享权益状态。
// 最优阈值按 profit factor 取最大，平局按成交数多者优先。
func Sweep(ctx context.Context, sim *Simulator, labels []label.Label, base SimConfig, thresholds []float64, maxConcurrent int) (SweepResult, error) {
	if len(thresholds) == 0 {
		return SweepResult{}, fmt.Errorf("sweep 需要至少一个候选阈值")
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}

	reports := make([]ThresholdReport, len(thresholds))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for i, tau := range thresholds {
		i, tau := i, tau
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cfg := base
			cfg.Threshold = tau
			res, err := sim.Run(labels, cfg)
			if err != nil {
				return fmt.Errorf("threshold %.2f: %w", tau, err)
			}
			reports[i] = ThresholdReport{Threshold: tau, Report: Summarize(res)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SweepResult{}, err
	}

	sort.Slice(reports, func(a, b int) bool { return reports[a].Threshold < reports[b].Threshold })

	best := reports[0]
	for _, r := range reports[1:] {
		if betterReport(r.Report, best.Report) {
			best = r
		}
	}
	for _, r := range reports {
		if r.Report.NoTrades {
			logger.Warnf("[sweep] threshold %.2f 无任何成交", r.Threshold)
		}
	}
	return SweepResult{
		Reports:       reports,
		BestThreshold: best.Threshold,
		BestReport:    best.Report,
	}, nil
}

func betterReport(a, b Report) bool {
	if float64(a.ProfitFactor) != float64(b.ProfitFactor) {
		return float64(a.ProfitFactor) > float64(b.ProfitFactor)
	}
	return a.TotalTrades > b.TotalTrades
}
