package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxlab/internal/label"
	"fxlab/internal/signal"
)

func makeLabel(symbol string, ts int64, outcome label.Outcome) label.Label {
	return label.Label{
		Symbol:    symbol,
		Timestamp: ts,
		Outcome:   outcome,
		Entry:     100,
		ATR:       1,
		LongTP:    101.8,
		LongSL:    99,
		ShortTP:   98.2,
		ShortSL:   101,
		TPMult:    1.8,
		SLMult:    1.0,
		Horizon:   10,
	}
}

func defaultSimConfig() SimConfig {
	return SimConfig{
		InitialEquity: 10000,
		RiskPerTrade:  0.01,
		Threshold:     0.7,
	}
}

func TestSimulatorWinAndLoss(t *testing.T) {
	provider := signal.NewStaticProvider()
	provider.Set("EURUSD", 1, 0.8) // 多头，正确
	provider.Set("EURUSD", 2, 0.2) // 空头，但实际多头胜 → 亏损
	labels := []label.Label{
		makeLabel("EURUSD", 1, label.LongWin),
		makeLabel("EURUSD", 2, label.LongWin),
	}

	sim, err := NewSimulator(provider)
	require.NoError(t, err)
	res, err := sim.Run(labels, defaultSimConfig())
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	first := res.Trades[0]
	assert.Equal(t, DirectionLong, first.Direction)
	assert.True(t, first.Win)
	assert.InDelta(t, 1.8, first.R, 1e-9)
	assert.InDelta(t, 10000+1.8*0.01*10000, first.EquityAfter, 1e-9)

	second := res.Trades[1]
	assert.Equal(t, DirectionShort, second.Direction)
	assert.False(t, second.Win)
	assert.InDelta(t, -1, second.R, 1e-9)
	// 第二笔的风险基于第一笔之后的权益
	assert.InDelta(t, first.EquityAfter*(1-0.01), second.EquityAfter, 1e-9)
}

func TestSimulatorNeutralCountsAsLoss(t *testing.T) {
	provider := signal.NewStaticProvider()
	provider.Set("EURUSD", 1, 0.9)
	labels := []label.Label{makeLabel("EURUSD", 1, label.Neutral)}

	sim, err := NewSimulator(provider)
	require.NoError(t, err)
	res, err := sim.Run(labels, defaultSimConfig())
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.False(t, res.Trades[0].Win)
	assert.InDelta(t, -1, res.Trades[0].R, 1e-9)
}

func TestSimulatorExcludeNeutralFlag(t *testing.T) {
	provider := signal.NewStaticProvider()
	provider.Set("EURUSD", 1, 0.9)
	labels := []label.Label{makeLabel("EURUSD", 1, label.Neutral)}

	cfg := defaultSimConfig()
	cfg.ExcludeNeutral = true
	sim, err := NewSimulator(provider)
	require.NoError(t, err)
	res, err := sim.Run(labels, cfg)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, SkipNeutralExcluded, res.Skipped[0].Reason)
}

func TestSimulatorMalformedConfidenceSkipped(t *testing.T) {
	provider := signal.NewStaticProvider()
	provider.Set("EURUSD", 1, math.NaN())
	provider.Set("EURUSD", 2, 1.7)
	provider.Set("EURUSD", 3, -0.1)
	provider.Set("EURUSD", 4, 0.9)
	labels := []label.Label{
		makeLabel("EURUSD", 1, label.LongWin),
		makeLabel("EURUSD", 2, label.LongWin),
		makeLabel("EURUSD", 3, label.LongWin),
		makeLabel("EURUSD", 4, label.LongWin),
	}

	sim, err := NewSimulator(provider)
	require.NoError(t, err)
	res, err := sim.Run(labels, defaultSimConfig())
	require.NoError(t, err)
	assert.Len(t, res.Trades, 1)
	require.Len(t, res.Skipped, 3)
	for _, s := range res.Skipped {
		assert.Equal(t, SkipBadConfidence, s.Reason)
	}
}

func TestSimulatorMissingConfidenceSkipped(t *testing.T) {
	provider := signal.NewStaticProvider()
	labels := []label.Label{makeLabel("EURUSD", 1, label.LongWin)}
	sim, err := NewSimulator(provider)
	require.NoError(t, err)
	res, err := sim.Run(labels, defaultSimConfig())
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, SkipNoConfidence, res.Skipped[0].Reason)
}

func TestSimulatorMonotonicGating(t *testing.T) {
	provider := signal.NewStaticProvider()
	labels := make([]label.Label, 0, 10)
	confs := []float64{0.51, 0.55, 0.62, 0.68, 0.71, 0.76, 0.81, 0.35, 0.22, 0.12}
	for i, c := range confs {
		ts := int64(i + 1)
		provider.Set("EURUSD", ts, c)
		labels = append(labels, makeLabel("EURUSD", ts, label.LongWin))
	}
	sim, err := NewSimulator(provider)
	require.NoError(t, err)

	prev := len(labels) + 1
	for _, tau := range []float64{0.5, 0.55, 0.6, 0.65, 0.7, 0.75, 0.8} {
		cfg := defaultSimConfig()
		cfg.Threshold = tau
		res, err := sim.Run(labels, cfg)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res.Trades), prev, "tau=%v", tau)
		prev = len(res.Trades)
	}
}

func TestSimulatorMergesSymbolsChronologically(t *testing.T) {
	provider := signal.NewStaticProvider()
	provider.Set("USDJPY", 1, 0.9)
	provider.Set("EURUSD", 2, 0.9)
	provider.Set("USDJPY", 3, 0.9)
	labels := []label.Label{
		makeLabel("EURUSD", 2, label.LongWin),
		makeLabel("USDJPY", 3, label.LongWin),
		makeLabel("USDJPY", 1, label.LongWin),
	}
	sim, err := NewSimulator(provider)
	require.NoError(t, err)
	res, err := sim.Run(labels, defaultSimConfig())
	require.NoError(t, err)
	require.Len(t, res.Trades, 3)
	assert.Equal(t, int64(1), res.Trades[0].Timestamp)
	assert.Equal(t, int64(2), res.Trades[1].Timestamp)
	assert.Equal(t, int64(3), res.Trades[2].Timestamp)
	// 权益曲线严格按时间推进
	for i := 1; i < len(res.Equity); i++ {
		assert.Less(t, res.Equity[i-1].Timestamp, res.Equity[i].Timestamp)
	}
}

func TestSimulatorRejectsBadConfig(t *testing.T) {
	sim, err := NewSimulator(signal.NewStaticProvider())
	require.NoError(t, err)
	bad := []SimConfig{
		{InitialEquity: 0, RiskPerTrade: 0.01, Threshold: 0.7},
		{InitialEquity: 10000, RiskPerTrade: 0, Threshold: 0.7},
		{InitialEquity: 10000, RiskPerTrade: 1.5, Threshold: 0.7},
		{InitialEquity: 10000, RiskPerTrade: 0.01, Threshold: 0.4},
		{InitialEquity: 10000, RiskPerTrade: 0.01, Threshold: 1.1},
	}
	for _, cfg := range bad {
		_, err := sim.Run(nil, cfg)
		assert.Error(t, err, "%+v", cfg)
	}
}
