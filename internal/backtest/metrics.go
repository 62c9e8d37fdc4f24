package backtest

import "math"

// Summarize 从成交与权益曲线计算指标汇总。
// 除零一律走显式哨兵：无成交置 NoTrades、零亏损置 +Inf、
// 样本不足置 SharpeDefined=false，绝不让 NaN 外溢。
func Summarize(res SimResult) Report {
	rep := Report{
		Threshold:   res.Config.Threshold,
		TotalTrades: len(res.Trades),
		FinalEquity: res.Config.InitialEquity,
	}
	if len(res.Equity) > 0 {
		rep.FinalEquity = res.Equity[len(res.Equity)-1].Equity
	}
	if len(res.Trades) == 0 {
		rep.NoTrades = true
		return rep
	}

	var grossWinR, grossLossR float64
	var sumR, sumWinR, sumLossR float64
	for _, t := range res.Trades {
		sumR += t.R
		if t.Win {
			rep.Wins++
			grossWinR += t.R
			sumWinR += t.R
		} else {
			rep.Losses++
			grossLossR += -t.R
			sumLossR += t.R
		}
	}
	rep.WinRate = float64(rep.Wins) / float64(rep.TotalTrades)
	rep.AvgR = sumR / float64(rep.TotalTrades)
	if rep.Wins > 0 {
		rep.AvgWinR = sumWinR / float64(rep.Wins)
	}
	if rep.Losses > 0 {
		rep.AvgLossR = sumLossR / float64(rep.Losses)
	}
	rep.ProfitFactor = JSONFloat(profitFactor(grossWinR, grossLossR))
	rep.MaxDrawdown = maxDrawdown(res.Config.InitialEquity, res.Equity)
	rep.Sharpe, rep.SharpeDefined = sharpeRatio(res.Trades)
	rep.BySymbol = bySymbol(res.Trades)
	return rep
}

func profitFactor(grossWin, grossLoss float64) float64 {
	if grossLoss == 0 {
		if grossWin > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return grossWin / grossLoss
}

// maxDrawdown 单趟扫描维护 running peak，返回正数回撤比例。
func maxDrawdown(initial float64, equity []EquityPoint) float64 {
	peak := initial
	maxDD := 0.0
	for _, p := range equity {
		if p.Equity > peak {
			peak = p.Equity
		}
		if peak > 0 {
			dd := (peak - p.Equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// sharpeRatio = mean(R)/stdev(R)；不足 2 笔或零方差时无定义。
func sharpeRatio(trades []Trade) (float64, bool) {
	if len(trades) < 2 {
		return 0, false
	}
	mean := 0.0
	for _, t := range trades {
		mean += t.R
	}
	mean /= float64(len(trades))
	variance := 0.0
	for _, t := range trades {
		d := t.R - mean
		variance += d * d
	}
	variance /= float64(len(trades) - 1)
	if variance == 0 {
		return 0, false
	}
	return mean / math.Sqrt(variance), true
}

func bySymbol(trades []Trade) map[string]SymbolStats {
	if len(trades) == 0 {
		return nil
	}
	acc := make(map[string]*symbolAcc)
	for _, t := range trades {
		a := acc[t.Symbol]
		if a == nil {
			a = &symbolAcc{}
			acc[t.Symbol] = a
		}
		a.trades++
		a.sumR += t.R
		a.netPnL += t.PnL
		if t.Win {
			a.wins++
			a.grossWinR += t.R
		} else {
			a.grossLossR += -t.R
		}
	}
	out := make(map[string]SymbolStats, len(acc))
	for sym, a := range acc {
		out[sym] = SymbolStats{
			Trades:       a.trades,
			Wins:         a.wins,
			WinRate:      float64(a.wins) / float64(a.trades),
			ProfitFactor: JSONFloat(profitFactor(a.grossWinR, a.grossLossR)),
			AvgR:         a.sumR / float64(a.trades),
			NetPnL:       a.netPnL,
		}
	}
	return out
}

type symbolAcc struct {
	trades, wins          int
	sumR, netPnL          float64
	grossWinR, grossLossR float64
}
