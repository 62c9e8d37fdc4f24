// Package feature 基于 go-talib 计算逐 bar 特征序列。
// 与 indicator 报表不同，这里所有序列与输入 K 线按下标一一对齐，
// 供打标引擎与状态分类按 bar 查值。
package feature

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"fxlab/internal/market"
)

// Config 描述特征窗口参数。
type Config struct {
	ATRPeriod      int
	ADXPeriod      int
	FastSMA        int
	SlowSMA        int
	FastSlopeLag   int
	SlowSlopeLag   int
	BBPeriod       int
	BBStdDev       float64
	ATRMeanWindow  int
	EnvelopeWindow int
	NarrowRangeATR float64
}

// DefaultConfig 返回与日线研究一致的默认窗口。
func DefaultConfig() Config {
	return Config{
		ATRPeriod:      14,
		ADXPeriod:      14,
		FastSMA:        20,
		SlowSMA:        50,
		FastSlopeLag:   5,
		SlowSlopeLag:   10,
		BBPeriod:       20,
		BBStdDev:       2,
		ATRMeanWindow:  60,
		EnvelopeWindow: 20,
		NarrowRangeATR: 0.5,
	}
}

// Row 是单根 K 线对应的特征快照。
// Valid 为 false 表示历史不足，所有数值字段不可信。
type Row struct {
	ATR      float64
	ATRMean  float64
	VolRatio float64

	ADX float64

	SMA20     float64
	SMA50     float64
	SlopeFast float64 // (SMA20[i]-SMA20[i-lag]) / ATR
	SlopeSlow float64 // (SMA50[i]-SMA50[i-lag]) / ATR

	BBUpper float64
	BBLower float64
	BBWidth float64 // (upper-lower)/ATR

	RollHigh float64 // 前 N 根最高价（不含当前 bar）
	RollLow  float64

	NarrowRange bool
	Valid       bool
}

// Set 是与 Series 对齐的特征序列。
type Set struct {
	Symbol string
	Rows   []Row
}

// WarmupBars 返回所有特征齐备所需的最小历史长度。
func (c Config) WarmupBars() int {
	need := c.ATRPeriod + c.ATRMeanWindow
	if n := c.SlowSMA + c.SlowSlopeLag; n > need {
		need = n
	}
	if n := 2 * c.ADXPeriod; n > need {
		need = n
	}
	if n := c.EnvelopeWindow + 1; n > need {
		need = n
	}
	if n := c.BBPeriod; n > need {
		need = n
	}
	return need
}

// Build 计算整条序列的特征。输入必须已通过 Series.Validate。
func Build(series market.Series, cfg Config) (Set, error) {
	n := series.Len()
	if n == 0 {
		return Set{}, fmt.Errorf("no candles for %s", series.Symbol)
	}
	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	for i, c := range series.Candles {
		highs[i] = c.High
		lows[i] = c.Low
		closes[i] = c.Close
	}

	atr := talib.Atr(highs, lows, closes, cfg.ATRPeriod)
	adx := talib.Adx(highs, lows, closes, cfg.ADXPeriod)
	smaFast := talib.Sma(closes, cfg.FastSMA)
	smaSlow := talib.Sma(closes, cfg.SlowSMA)
	bbUpper, _, bbLower := talib.BBands(closes, cfg.BBPeriod, cfg.BBStdDev, cfg.BBStdDev, talib.SMA)

	atrMean := rollingMeanFrom(atr, cfg.ATRPeriod, cfg.ATRMeanWindow)
	rollHigh, rollLow := rollingEnvelope(highs, lows, cfg.EnvelopeWindow)

	warmup := cfg.WarmupBars()
	rows := make([]Row, n)
	for i := 0; i < n; i++ {
		r := Row{
			ATR:      atr[i],
			ATRMean:  atrMean[i],
			ADX:      noNaN(adx[i]),
			SMA20:    smaFast[i],
			SMA50:    smaSlow[i],
			BBUpper:  bbUpper[i],
			BBLower:  bbLower[i],
			RollHigh: rollHigh[i],
			RollLow:  rollLow[i],
		}
		r.Valid = i >= warmup && validPositive(r.ATR, r.ATRMean)
		if r.Valid {
			r.VolRatio = r.ATR / r.ATRMean
			r.SlopeFast = (smaFast[i] - smaFast[i-cfg.FastSlopeLag]) / r.ATR
			r.SlopeSlow = (smaSlow[i] - smaSlow[i-cfg.SlowSlopeLag]) / r.ATR
			r.BBWidth = (r.BBUpper - r.BBLower) / r.ATR
			r.NarrowRange = (highs[i] - lows[i]) < cfg.NarrowRangeATR*r.ATR
		}
		rows[i] = r
	}
	return Set{Symbol: series.Symbol, Rows: rows}, nil
}

// rollingMeanFrom 对 src 从 firstValid 下标起做 window 长度的滚动均值，
// 不足 window 的位置返回 0。TALib 的 ATR 前 period 个值是 0 占位，
// 直接套 SMA 会把占位值卷进均值，所以这里手工滚动。
func rollingMeanFrom(src []float64, firstValid, window int) []float64 {
	out := make([]float64, len(src))
	if window <= 0 {
		return out
	}
	sum := 0.0
	for i := firstValid; i < len(src); i++ {
		sum += src[i]
		if i-firstValid >= window {
			sum -= src[i-window]
		}
		if i-firstValid >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// rollingEnvelope 返回前 window 根（不含当前 bar）的最高价与最低价。
func rollingEnvelope(highs, lows []float64, window int) ([]float64, []float64) {
	n := len(highs)
	hi := make([]float64, n)
	lo := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < window {
			continue
		}
		maxH := math.Inf(-1)
		minL := math.Inf(1)
		for j := i - window; j < i; j++ {
			if highs[j] > maxH {
				maxH = highs[j]
			}
			if lows[j] < minL {
				minL = lows[j]
			}
		}
		hi[i] = maxH
		lo[i] = minL
	}
	return hi, lo
}

// noNaN 把无方向行情下 DX 除零产生的 NaN 归零。
func noNaN(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func validPositive(vals ...float64) bool {
	for _, v := range vals {
		if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
