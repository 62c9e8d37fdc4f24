package label

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxlab/internal/feature"
	"fxlab/internal/market"
	"fxlab/internal/regime"
)

// syntheticInput 构造 n 根平盘序列：close=100，高低 100.1/99.9，
// ATR=1、vol_ratio=1、ADX=15，全部 bar 可用。
func syntheticInput(symbol string, n int) SeriesInput {
	candles := make([]market.Candle, n)
	rows := make([]feature.Row, n)
	tags := make([]regime.Tag, n)
	base := int64(1700000000000)
	for i := 0; i < n; i++ {
		ts := base + int64(i)*86400000
		candles[i] = market.Candle{
			OpenTime: ts, CloseTime: ts + 86400000 - 1,
			Open: 100, High: 100.1, Low: 99.9, Close: 100,
		}
		rows[i] = feature.Row{ATR: 1, ATRMean: 1, VolRatio: 1, ADX: 15, Valid: true}
		tags[i] = regime.Tag{
			Index: i, Timestamp: ts,
			Vol: regime.VolMid, Trend: regime.TrendNone, State: regime.StateRanging,
		}
	}
	return SeriesInput{
		Series:   market.Series{Symbol: symbol, Candles: candles},
		Features: feature.Set{Symbol: symbol, Rows: rows},
		Tags:     tags,
	}
}

func findOrigin(t *testing.T, labels []Label, origin int) Label {
	t.Helper()
	for _, l := range labels {
		if l.OriginIndex == origin {
			return l
		}
	}
	t.Fatalf("origin %d 没有对应标签", origin)
	return Label{}
}

func TestSelectParamTable(t *testing.T) {
	p := DefaultParams()
	cases := []struct {
		volRatio, adx float64
		wantTP        float64
		wantHorizon   int
	}{
		{1.0, 15, 1.8, 10}, // 默认
		{1.0, 35, 2.5, 10}, // 强趋势放宽目标
		{0.5, 45, 2.5, 13}, // 趋势优先于低波动
		{0.5, 15, 1.5, 13}, // 低波动收紧目标并加长窗口
		{0.79, 29.9, 1.5, 13},
		{0.8, 15, 1.8, 10},
		{1.6, 15, 1.8, 5}, // 极端波动缩短窗口
		{2.0, 30, 2.5, 5},
		{1.5, 15, 1.8, 10}, // 边界：1.5 不算极端
	}
	for _, tc := range cases {
		tp, sl, horizon := p.Select(tc.volRatio, tc.adx)
		assert.Equal(t, tc.wantTP, tp, "vr=%v adx=%v", tc.volRatio, tc.adx)
		assert.Equal(t, 1.0, sl)
		assert.Equal(t, tc.wantHorizon, horizon, "vr=%v adx=%v", tc.volRatio, tc.adx)
	}
	// 纯函数：重复调用结果一致
	tp1, sl1, h1 := p.Select(1.1, 27)
	tp2, sl2, h2 := p.Select(1.1, 27)
	assert.Equal(t, tp1, tp2)
	assert.Equal(t, sl1, sl2)
	assert.Equal(t, h1, h2)
}

func TestLabelLongWinFirstTouch(t *testing.T) {
	in := syntheticInput("EURUSD", 20)
	in.Series.Candles[5].High = 101.8
	in.Series.Candles[5].Low = 99.5

	engine, err := NewEngine(DefaultParams())
	require.NoError(t, err)
	labels, err := engine.LabelSeries(in)
	require.NoError(t, err)

	lbl := findOrigin(t, labels, 0)
	assert.Equal(t, LongWin, lbl.Outcome)
	assert.Equal(t, 5, lbl.DecidedAt)
	assert.Equal(t, 1.8, lbl.TPMult)
	assert.Equal(t, 1.0, lbl.SLMult)
	assert.Equal(t, 10, lbl.Horizon)
	assert.InDelta(t, 101.8, lbl.LongTP, 1e-9)
	assert.InDelta(t, 99.0, lbl.LongSL, 1e-9)
	assert.InDelta(t, 98.2, lbl.ShortTP, 1e-9)
	assert.InDelta(t, 101.0, lbl.ShortSL, 1e-9)
}

func TestLabelStopBeforeTargetNeutral(t *testing.T) {
	in := syntheticInput("EURUSD", 20)
	in.Series.Candles[5].High = 101.8
	in.Series.Candles[5].Low = 99.5
	// 第 3 根先打到多头止损（99.0），但未触及空头目标（98.2）
	in.Series.Candles[3].Low = 98.9

	engine, err := NewEngine(DefaultParams())
	require.NoError(t, err)
	labels, err := engine.LabelSeries(in)
	require.NoError(t, err)

	lbl := findOrigin(t, labels, 0)
	assert.Equal(t, Neutral, lbl.Outcome)
	assert.Equal(t, 10, lbl.DecidedAt) // horizon 末端
}

func TestLabelShortWinWhenTargetTouched(t *testing.T) {
	in := syntheticInput("EURUSD", 20)
	in.Series.Candles[5].High = 101.8
	// 第 3 根直接砸穿空头目标 98.2
	in.Series.Candles[3].Low = 98.1

	engine, err := NewEngine(DefaultParams())
	require.NoError(t, err)
	labels, err := engine.LabelSeries(in)
	require.NoError(t, err)

	lbl := findOrigin(t, labels, 0)
	assert.Equal(t, ShortWin, lbl.Outcome)
	assert.Equal(t, 3, lbl.DecidedAt)
}

func TestLabelSameBarTieBreakSLFirst(t *testing.T) {
	in := syntheticInput("EURUSD", 20)
	// 第 4 根同时扫到多头目标与多头止损：保守按先止损处理
	in.Series.Candles[4].High = 101.8
	in.Series.Candles[4].Low = 99.0

	engine, err := NewEngine(DefaultParams())
	require.NoError(t, err)
	labels, err := engine.LabelSeries(in)
	require.NoError(t, err)

	lbl := findOrigin(t, labels, 0)
	assert.Equal(t, Neutral, lbl.Outcome)
}

func TestLabelSkipsWhenForwardDataShort(t *testing.T) {
	in := syntheticInput("EURUSD", 8) // 剩余不足默认 horizon=10
	engine, err := NewEngine(DefaultParams())
	require.NoError(t, err)
	labels, err := engine.LabelSeries(in)
	require.NoError(t, err)
	assert.Empty(t, labels)
}

func TestLabelLowVolHorizonCappedByData(t *testing.T) {
	in := syntheticInput("EURUSD", 12)
	for i := range in.Features.Rows {
		in.Features.Rows[i].VolRatio = 0.5
	}
	engine, err := NewEngine(DefaultParams())
	require.NoError(t, err)
	labels, err := engine.LabelSeries(in)
	require.NoError(t, err)

	// origin 0 剩余 11 根：加长窗口 13 收缩到 11
	lbl := findOrigin(t, labels, 0)
	assert.Equal(t, 11, lbl.Horizon)
	// origin 2 起剩余不足常规上限 10，不再产出
	for _, l := range labels {
		assert.LessOrEqual(t, l.OriginIndex, 1)
	}
}

func TestLabelSkipsIndeterminateBars(t *testing.T) {
	in := syntheticInput("EURUSD", 20)
	in.Tags[0].Indeterminate = true
	engine, err := NewEngine(DefaultParams())
	require.NoError(t, err)
	labels, err := engine.LabelSeries(in)
	require.NoError(t, err)
	for _, l := range labels {
		assert.NotEqual(t, 0, l.OriginIndex)
	}
}

func TestLabelBoundsInvariant(t *testing.T) {
	in := syntheticInput("EURUSD", 40)
	in.Series.Candles[7].High = 102.5
	in.Series.Candles[15].Low = 97.5

	engine, err := NewEngine(DefaultParams())
	require.NoError(t, err)
	labels, err := engine.LabelSeries(in)
	require.NoError(t, err)
	require.NotEmpty(t, labels)
	for _, l := range labels {
		assert.Contains(t, []Outcome{ShortWin, Neutral, LongWin}, l.Outcome)
		assert.LessOrEqual(t, l.DecidedAt, l.OriginIndex+l.Horizon)
		assert.Less(t, l.OriginIndex+l.Horizon, in.Series.Len())
	}
}

func TestLabelDeterministic(t *testing.T) {
	in := syntheticInput("EURUSD", 30)
	in.Series.Candles[9].High = 101.9
	in.Series.Candles[14].Low = 98.8

	engine, err := NewEngine(DefaultParams())
	require.NoError(t, err)
	first, err := engine.LabelSeries(in)
	require.NoError(t, err)
	second, err := engine.LabelSeries(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLabelAllDeterministicAcrossSymbols(t *testing.T) {
	a := syntheticInput("EURUSD", 20)
	b := syntheticInput("USDJPY", 20)
	b.Series.Candles[6].High = 101.8

	engine, err := NewEngine(DefaultParams())
	require.NoError(t, err)
	out1, err := engine.LabelAll(context.Background(), []SeriesInput{b, a}, 2)
	require.NoError(t, err)
	out2, err := engine.LabelAll(context.Background(), []SeriesInput{b, a}, 2)
	require.NoError(t, err)
	assert.Equal(t, out1, out2)
	// 输出按 symbol 排序
	require.NotEmpty(t, out1)
	assert.Equal(t, "EURUSD", out1[0].Symbol)
}

func TestLabelRejectsBadSeries(t *testing.T) {
	in := syntheticInput("EURUSD", 20)
	in.Series.Candles[5].OpenTime = in.Series.Candles[4].OpenTime // duplicate
	engine, err := NewEngine(DefaultParams())
	require.NoError(t, err)
	_, err = engine.LabelSeries(in)
	assert.Error(t, err)
}
