// Package regime 把逐 bar 特征归类为波动率/趋势状态标签。
// 纯函数推导，只依赖截止当前 bar 的回看窗口，绝不引用未来数据。
package regime

import (
	"fmt"

	"fxlab/internal/feature"
	"fxlab/internal/market"
)

// VolClass 波动率档位（ATR 相对 60 期均值）。
type VolClass string

const (
	VolLow     VolClass = "low"
	VolMid     VolClass = "mid"
	VolHigh    VolClass = "high"
	VolExtreme VolClass = "extreme"
)

// TrendClass ADX 趋势强度档位。
type TrendClass string

const (
	TrendNone       TrendClass = "none"
	TrendWeak       TrendClass = "weak"
	TrendStrong     TrendClass = "strong"
	TrendVeryStrong TrendClass = "very-strong"
)

// MarketState 复合市场状态，优先级 breakout > trending > consolidating > ranging。
type MarketState string

const (
	StateRanging       MarketState = "ranging"
	StateTrending      MarketState = "trending"
	StateBreakout      MarketState = "breakout"
	StateConsolidating MarketState = "consolidating"
)

// BreakoutDir 突破方向。
type BreakoutDir int

const (
	BreakoutNone BreakoutDir = 0
	BreakoutUp   BreakoutDir = 1
	BreakoutDown BreakoutDir = -1
)

const (
	volLowMax  = 0.8
	volMidMax  = 1.2
	volHighMax = 1.5

	adxWeakMin   = 20.0
	adxStrongMin = 30.0
	adxVeryMin   = 40.0
	adxTrendMin  = 25.0

	consolidatingMinBars = 3
)

// Tag 是单根 K 线的状态快照。Indeterminate 为 true 时其余字段不可用，
// 下游打标必须跳过该 bar。
type Tag struct {
	Index     int         `json:"index"`
	Timestamp int64       `json:"timestamp"`
	Vol       VolClass    `json:"vol"`
	VolRatio  float64     `json:"vol_ratio"`
	Trend     TrendClass  `json:"trend"`
	ADX       float64     `json:"adx"`
	SlopeFast int         `json:"slope_fast"` // sign(-1/0/+1)
	SlopeSlow int         `json:"slope_slow"`
	State     MarketState `json:"state"`
	Breakout  BreakoutDir `json:"breakout"`
	ConsBars  int         `json:"cons_bars"`

	Indeterminate bool `json:"indeterminate,omitempty"`
}

// ClassifyVol 按 vol_ratio 分档。
func ClassifyVol(volRatio float64) VolClass {
	switch {
	case volRatio < volLowMax:
		return VolLow
	case volRatio <= volMidMax:
		return VolMid
	case volRatio <= volHighMax:
		return VolHigh
	default:
		return VolExtreme
	}
}

// ClassifyTrend 按 ADX 分档。
func ClassifyTrend(adx float64) TrendClass {
	switch {
	case adx >= adxVeryMin:
		return TrendVeryStrong
	case adx >= adxStrongMin:
		return TrendStrong
	case adx >= adxWeakMin:
		return TrendWeak
	default:
		return TrendNone
	}
}

// Classify 对整条序列逐 bar 打状态标签，结果与输入按下标对齐。
func Classify(series market.Series, set feature.Set) ([]Tag, error) {
	if series.Len() != len(set.Rows) {
		return nil, fmt.Errorf("series/features 长度不一致: %d vs %d", series.Len(), len(set.Rows))
	}
	tags := make([]Tag, series.Len())
	consBars := 0
	for i, row := range set.Rows {
		c := series.Candles[i]
		tag := Tag{Index: i, Timestamp: c.OpenTime}
		if !row.Valid {
			tag.Indeterminate = true
			tags[i] = tag
			continue
		}

		breakout := BreakoutNone
		if row.RollHigh > 0 && c.Close > row.RollHigh {
			breakout = BreakoutUp
		} else if row.RollLow > 0 && c.Close < row.RollLow {
			breakout = BreakoutDown
		}

		// 突破清零计数；窄幅累积；普通 bar 保持
		switch {
		case breakout != BreakoutNone:
			consBars = 0
		case row.NarrowRange:
			consBars++
		}

		tag.Vol = ClassifyVol(row.VolRatio)
		tag.VolRatio = row.VolRatio
		tag.Trend = ClassifyTrend(row.ADX)
		tag.ADX = row.ADX
		tag.SlopeFast = signOf(row.SlopeFast)
		tag.SlopeSlow = signOf(row.SlopeSlow)
		tag.Breakout = breakout
		tag.ConsBars = consBars
		tag.State = marketState(breakout, row.ADX, consBars)
		tags[i] = tag
	}
	return tags, nil
}

func marketState(breakout BreakoutDir, adx float64, consBars int) MarketState {
	switch {
	case breakout != BreakoutNone:
		return StateBreakout
	case adx >= adxTrendMin:
		return StateTrending
	case consBars >= consolidatingMinBars:
		return StateConsolidating
	default:
		return StateRanging
	}
}

func signOf(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
