package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxlab/internal/feature"
	"fxlab/internal/market"
)

func TestClassifyVolBoundaries(t *testing.T) {
	cases := []struct {
		ratio float64
		want  VolClass
	}{
		{0.3, VolLow},
		{0.79, VolLow},
		{0.8, VolMid},
		{1.0, VolMid},
		{1.2, VolMid},
		{1.21, VolHigh},
		{1.5, VolHigh},
		{1.51, VolExtreme},
		{3.0, VolExtreme},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyVol(tc.ratio), "ratio=%v", tc.ratio)
	}
}

func TestClassifyTrendBoundaries(t *testing.T) {
	cases := []struct {
		adx  float64
		want TrendClass
	}{
		{0, TrendNone},
		{19.9, TrendNone},
		{20, TrendWeak},
		{29.9, TrendWeak},
		{30, TrendStrong},
		{39.9, TrendStrong},
		{40, TrendVeryStrong},
		{70, TrendVeryStrong},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyTrend(tc.adx), "adx=%v", tc.adx)
	}
}

func tagInput(rows []feature.Row) (market.Series, feature.Set) {
	candles := make([]market.Candle, len(rows))
	base := int64(1700000000000)
	for i := range candles {
		candles[i] = market.Candle{
			OpenTime: base + int64(i)*86400000,
			Open:     100, High: 100.5, Low: 99.5, Close: 100,
		}
	}
	return market.Series{Symbol: "EURUSD", Candles: candles}, feature.Set{Symbol: "EURUSD", Rows: rows}
}

func validRow() feature.Row {
	return feature.Row{
		ATR: 1, ATRMean: 1, VolRatio: 1,
		ADX:      15,
		RollHigh: 101, RollLow: 99,
		Valid: true,
	}
}

func TestClassifyIndeterminateOnShortHistory(t *testing.T) {
	rows := []feature.Row{{}, validRow()}
	series, set := tagInput(rows)
	tags, err := Classify(series, set)
	require.NoError(t, err)
	assert.True(t, tags[0].Indeterminate)
	assert.False(t, tags[1].Indeterminate)
	assert.Equal(t, StateRanging, tags[1].State)
}

func TestClassifyBreakoutWinsOverTrend(t *testing.T) {
	row := validRow()
	row.ADX = 35
	series, set := tagInput([]feature.Row{row})
	series.Candles[0].Close = 101.5 // 高于滚动高点

	tags, err := Classify(series, set)
	require.NoError(t, err)
	assert.Equal(t, StateBreakout, tags[0].State)
	assert.Equal(t, BreakoutUp, tags[0].Breakout)
	assert.Equal(t, 0, tags[0].ConsBars)
}

func TestClassifyConsolidationCounter(t *testing.T) {
	narrow := validRow()
	narrow.NarrowRange = true
	plain := validRow()
	breakoutRow := validRow()

	rows := []feature.Row{narrow, narrow, plain, narrow, breakoutRow, narrow}
	series, set := tagInput(rows)
	series.Candles[4].Close = 101.5 // 第 5 根突破，计数清零

	tags, err := Classify(series, set)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 2, 3, 0, 1}, []int{
		tags[0].ConsBars, tags[1].ConsBars, tags[2].ConsBars,
		tags[3].ConsBars, tags[4].ConsBars, tags[5].ConsBars,
	})
	// 连续窄幅 3 根后进入盘整态
	assert.Equal(t, StateConsolidating, tags[3].State)
	assert.Equal(t, StateBreakout, tags[4].State)
	assert.Equal(t, StateRanging, tags[5].State)
}

func TestClassifyTrendingState(t *testing.T) {
	row := validRow()
	row.ADX = 26
	series, set := tagInput([]feature.Row{row})
	tags, err := Classify(series, set)
	require.NoError(t, err)
	assert.Equal(t, StateTrending, tags[0].State)
	assert.Equal(t, TrendWeak, tags[0].Trend)
}

func TestClassifyLengthMismatch(t *testing.T) {
	series, _ := tagInput([]feature.Row{validRow()})
	_, err := Classify(series, feature.Set{Rows: []feature.Row{validRow(), validRow()}})
	require.Error(t, err)
}
