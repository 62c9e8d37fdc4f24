package feature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxlab/internal/market"
)

func makeSeries(closes []float64, spread float64) market.Series {
	candles := make([]market.Candle, len(closes))
	base := int64(1700000000000)
	step := int64(86400000)
	for i, c := range closes {
		candles[i] = market.Candle{
			OpenTime:  base + int64(i)*step,
			CloseTime: base + int64(i+1)*step - 1,
			Open:      c,
			High:      c + spread,
			Low:       c - spread,
			Close:     c,
			Volume:    1000,
		}
	}
	return market.Series{Symbol: "EURUSD", Candles: candles}
}

func flatCloses(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

func TestBuildAlignsRowsWithCandles(t *testing.T) {
	series := makeSeries(flatCloses(200, 100), 0.5)
	set, err := Build(series, DefaultConfig())
	require.NoError(t, err)
	assert.Len(t, set.Rows, 200)

	warmup := DefaultConfig().WarmupBars()
	assert.False(t, set.Rows[warmup-1].Valid)
	assert.True(t, set.Rows[warmup].Valid)
	assert.True(t, set.Rows[199].Valid)
}

func TestBuildFlatVolRatioNearOne(t *testing.T) {
	series := makeSeries(flatCloses(200, 100), 0.5)
	set, err := Build(series, DefaultConfig())
	require.NoError(t, err)

	row := set.Rows[199]
	require.True(t, row.Valid)
	// 真实波幅恒定为 1，ATR 与其 60 期均值应接近重合
	assert.InDelta(t, 1.0, row.ATR, 1e-6)
	assert.InDelta(t, 1.0, row.VolRatio, 1e-6)
	assert.InDelta(t, 100.0, row.SMA20, 1e-9)
	assert.InDelta(t, 0.0, row.SlopeFast, 1e-9)
}

func TestBuildRollingEnvelopeExcludesCurrentBar(t *testing.T) {
	closes := flatCloses(120, 100)
	series := makeSeries(closes, 0.5)
	// 最后一根拉出新高，滚动高点不应包含它
	last := len(series.Candles) - 1
	series.Candles[last].High = 120
	series.Candles[last].Close = 119

	set, err := Build(series, DefaultConfig())
	require.NoError(t, err)
	assert.InDelta(t, 100.5, set.Rows[last].RollHigh, 1e-9)
	assert.InDelta(t, 99.5, set.Rows[last].RollLow, 1e-9)
}

func TestBuildNarrowRangeFlag(t *testing.T) {
	closes := flatCloses(200, 100)
	series := makeSeries(closes, 0.5)
	// 倒数第二根收敛成极窄区间
	idx := len(series.Candles) - 2
	series.Candles[idx].High = 100.1
	series.Candles[idx].Low = 99.9

	set, err := Build(series, DefaultConfig())
	require.NoError(t, err)
	assert.True(t, set.Rows[idx].NarrowRange)
	assert.False(t, set.Rows[idx-1].NarrowRange)
}

func TestBuildRejectsEmptySeries(t *testing.T) {
	_, err := Build(market.Series{Symbol: "EURUSD"}, DefaultConfig())
	assert.Error(t, err)
}
