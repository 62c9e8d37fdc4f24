package backtest

import (
	"fmt"
	"math"
	"sort"

	"fxlab/internal/label"
	"fxlab/internal/signal"
)

// Simulator 把标签流按时间合并后做单账户顺序回放。
// 权益是显式穿过折叠的累加器，第 N 笔的仓位大小取决于第 N-1 笔的结果。
type Simulator struct {
	provider signal.Provider
}

func NewSimulator(provider signal.Provider) (*Simulator, error) {
	if provider == nil {
		return nil, fmt.Errorf("simulator 需要置信度 provider")
	}
	return &Simulator{provider: provider}, nil
}

func (c SimConfig) validate() error {
	if c.InitialEquity <= 0 {
		return fmt.Errorf("initial equity 必须为正")
	}
	if c.RiskPerTrade <= 0 || c.RiskPerTrade >= 1 {
		return fmt.Errorf("risk per trade 需在 (0,1) 内")
	}
	if c.Threshold < 0.5 || c.Threshold > 1 {
		return fmt.Errorf("threshold 需在 [0.5,1] 内")
	}
	return nil
}

// Run 对给定标签集执行一次回放。输入不会被修改。
func (s *Simulator) Run(labels []label.Label, cfg SimConfig) (SimResult, error) {
	if err := cfg.validate(); err != nil {
		return SimResult{}, err
	}

	// 跨 symbol 按时间戳合并；同刻按 symbol 定序保证确定性
	merged := make([]label.Label, len(labels))
	copy(merged, labels)
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Timestamp != merged[j].Timestamp {
			return merged[i].Timestamp < merged[j].Timestamp
		}
		return merged[i].Symbol < merged[j].Symbol
	})

	result := SimResult{Config: cfg}
	equity := cfg.InitialEquity
	for _, l := range merged {
		conf, ok := s.provider.Confidence(l.Symbol, l.Timestamp)
		if !ok {
			result.Skipped = append(result.Skipped, SkippedRow{
				Symbol: l.Symbol, Timestamp: l.Timestamp, Reason: SkipNoConfidence,
			})
			continue
		}
		if math.IsNaN(conf) || conf < 0 || conf > 1 {
			result.Skipped = append(result.Skipped, SkippedRow{
				Symbol: l.Symbol, Timestamp: l.Timestamp, Confidence: conf, Reason: SkipBadConfidence,
			})
			continue
		}
		if cfg.ExcludeNeutral && l.Outcome == label.Neutral {
			result.Skipped = append(result.Skipped, SkippedRow{
				Symbol: l.Symbol, Timestamp: l.Timestamp, Confidence: conf, Reason: SkipNeutralExcluded,
			})
			continue
		}
		if math.Max(conf, 1-conf) < cfg.Threshold {
			result.Skipped = append(result.Skipped, SkippedRow{
				Symbol: l.Symbol, Timestamp: l.Timestamp, Confidence: conf, Reason: SkipBelowThreshold,
			})
			continue
		}

		direction := DirectionShort
		if conf >= 0.5 {
			direction = DirectionLong
		}

		// 结局直接读标签：方向对上赢 TPmult/SLmult 个 R，否则按止损出局记 -1R
		win := (direction == DirectionLong && l.Outcome == label.LongWin) ||
			(direction == DirectionShort && l.Outcome == label.ShortWin)
		r := -1.0
		if win {
			r = l.TPMult / l.SLMult
		}

		size := 0.0
		if l.ATR > 0 && l.SLMult > 0 {
			size = cfg.RiskPerTrade * equity / (l.SLMult * l.ATR)
		}
		pnl := r * cfg.RiskPerTrade * equity
		equity += pnl

		tp, sl := l.LongTP, l.LongSL
		if direction == DirectionShort {
			tp, sl = l.ShortTP, l.ShortSL
		}
		result.Trades = append(result.Trades, Trade{
			Symbol:      l.Symbol,
			Timestamp:   l.Timestamp,
			Direction:   direction,
			Confidence:  conf,
			Entry:       l.Entry,
			TP:          tp,
			SL:          sl,
			Size:        size,
			Outcome:     l.Outcome,
			Win:         win,
			R:           r,
			PnL:         pnl,
			EquityAfter: equity,
		})
		result.Equity = append(result.Equity, EquityPoint{Timestamp: l.Timestamp, Equity: equity})
	}
	return result, nil
}
