package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxlab/internal/label"
	"fxlab/internal/signal"
)

// runTrades 用静态置信度把给定结局序列跑成 SimResult。
func runTrades(t *testing.T, outcomes []label.Outcome) SimResult {
	t.Helper()
	provider := signal.NewStaticProvider()
	labels := make([]label.Label, 0, len(outcomes))
	for i, o := range outcomes {
		ts := int64(i + 1)
		provider.Set("EURUSD", ts, 0.9) // 全部做多
		labels = append(labels, makeLabel("EURUSD", ts, o))
	}
	sim, err := NewSimulator(provider)
	require.NoError(t, err)
	res, err := sim.Run(labels, defaultSimConfig())
	require.NoError(t, err)
	return res
}

func TestSummarizeProfitFactorAndWinRate(t *testing.T) {
	// 3 胜 (+1.8R) 2 负 (-1R) → PF = 5.4/2 = 2.7, 胜率 0.6
	res := runTrades(t, []label.Outcome{
		label.LongWin, label.Neutral, label.LongWin, label.ShortWin, label.LongWin,
	})
	rep := Summarize(res)
	assert.Equal(t, 5, rep.TotalTrades)
	assert.Equal(t, 3, rep.Wins)
	assert.Equal(t, 2, rep.Losses)
	assert.InDelta(t, 0.6, rep.WinRate, 1e-9)
	assert.InDelta(t, 2.7, float64(rep.ProfitFactor), 1e-9)
	assert.InDelta(t, 1.8, rep.AvgWinR, 1e-9)
	assert.InDelta(t, -1.0, rep.AvgLossR, 1e-9)
	assert.InDelta(t, (3*1.8-2)/5.0, rep.AvgR, 1e-9)
	assert.True(t, rep.SharpeDefined)
}

func TestSummarizeAllWinsInfiniteProfitFactor(t *testing.T) {
	res := runTrades(t, []label.Outcome{label.LongWin, label.LongWin, label.LongWin})
	rep := Summarize(res)
	assert.True(t, math.IsInf(float64(rep.ProfitFactor), 1))
	assert.False(t, rep.NoTrades)
	// 单调上升的权益曲线回撤为 0
	assert.Equal(t, 0.0, rep.MaxDrawdown)
	// 所有 R 相同 → 零方差 → Sharpe 无定义
	assert.False(t, rep.SharpeDefined)
}

func TestSummarizeNoTrades(t *testing.T) {
	res := runTrades(t, nil)
	rep := Summarize(res)
	assert.True(t, rep.NoTrades)
	assert.Equal(t, 0, rep.TotalTrades)
	assert.Equal(t, 0.0, rep.WinRate)
	assert.Equal(t, 0.0, float64(rep.ProfitFactor))
	assert.False(t, rep.SharpeDefined)
	assert.Equal(t, 10000.0, rep.FinalEquity)
}

func TestSummarizeMaxDrawdown(t *testing.T) {
	// 先亏后赚：峰值为初始权益，谷底在第一笔后
	res := runTrades(t, []label.Outcome{label.Neutral, label.LongWin, label.LongWin})
	rep := Summarize(res)
	assert.InDelta(t, 0.01, rep.MaxDrawdown, 1e-9)
	assert.Greater(t, rep.MaxDrawdown, 0.0)
}

func TestSummarizeSingleTradeSharpeUndefined(t *testing.T) {
	res := runTrades(t, []label.Outcome{label.LongWin})
	rep := Summarize(res)
	assert.False(t, rep.SharpeDefined)
}

func TestSummarizeBySymbol(t *testing.T) {
	provider := signal.NewStaticProvider()
	provider.Set("EURUSD", 1, 0.9)
	provider.Set("USDJPY", 2, 0.9)
	provider.Set("EURUSD", 3, 0.9)
	labels := []label.Label{
		makeLabel("EURUSD", 1, label.LongWin),
		makeLabel("USDJPY", 2, label.ShortWin), // 做多但空头胜 → 亏
		makeLabel("EURUSD", 3, label.LongWin),
	}
	sim, err := NewSimulator(provider)
	require.NoError(t, err)
	res, err := sim.Run(labels, defaultSimConfig())
	require.NoError(t, err)

	rep := Summarize(res)
	require.Contains(t, rep.BySymbol, "EURUSD")
	require.Contains(t, rep.BySymbol, "USDJPY")
	assert.Equal(t, 2, rep.BySymbol["EURUSD"].Trades)
	assert.InDelta(t, 1.0, rep.BySymbol["EURUSD"].WinRate, 1e-9)
	assert.True(t, math.IsInf(float64(rep.BySymbol["EURUSD"].ProfitFactor), 1))
	assert.Equal(t, 1, rep.BySymbol["USDJPY"].Trades)
	assert.Equal(t, 0.0, rep.BySymbol["USDJPY"].WinRate)
}
