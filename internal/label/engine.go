package label

import (
	"context"
	"fmt"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"fxlab/internal/feature"
	"fxlab/internal/logger"
	"fxlab/internal/market"
	"fxlab/internal/pkg/pricing"
	"fxlab/internal/regime"
)

// Params 屏障与窗口参数，不可变，随调用显式传入。
type Params struct {
	BaseTPMult float64
	SLMult     float64
	MinHorizon int
	MaxHorizon int
}

// DefaultParams 与日线研究一致的默认屏障参数。
func DefaultParams() Params {
	return Params{
		BaseTPMult: 1.8,
		SLMult:     1.0,
		MinHorizon: 3,
		MaxHorizon: 10,
	}
}

func (p Params) validate() error {
	if p.BaseTPMult <= 0 || p.SLMult <= 0 {
		return fmt.Errorf("barrier multiples 必须为正")
	}
	if p.MinHorizon <= 0 || p.MaxHorizon < p.MinHorizon {
		return fmt.Errorf("horizon 范围非法 [%d, %d]", p.MinHorizon, p.MaxHorizon)
	}
	return nil
}

// Select 按原点 bar 的 (vol_ratio, ADX) 选出屏障倍数与 horizon。
// 纯函数：相同输入永远产出相同结果。
func (p Params) Select(volRatio, adx float64) (tpMult, slMult float64, horizon int) {
	switch {
	case adx >= 30:
		tpMult = 2.5 // 趋势行情放宽目标
	case volRatio < 0.8:
		tpMult = 1.5 // 低波动收紧目标
	default:
		tpMult = p.BaseTPMult
	}
	slMult = p.SLMult

	horizon = p.MaxHorizon
	switch {
	case volRatio > 1.5:
		horizon = int(math.Round(0.5 * float64(p.MaxHorizon)))
	case volRatio < 0.8:
		horizon = int(math.Round(1.3 * float64(p.MaxHorizon)))
	}
	if horizon < p.MinHorizon {
		horizon = p.MinHorizon
	}
	return tpMult, slMult, horizon
}

// SeriesInput 单个 symbol 的打标输入，三个切片按下标对齐。
type SeriesInput struct {
	Series   market.Series
	Features feature.Set
	Tags     []regime.Tag
	PipSize  float64
}

// Engine 三重屏障打标引擎。
type Engine struct {
	params Params
}

func NewEngine(params Params) (*Engine, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &Engine{params: params}, nil
}

// LabelSeries 对单个 symbol 全序列打标。
// 状态不明、ATR 缺失或前向数据不足的 bar 不产出 Label。
func (e *Engine) LabelSeries(in SeriesInput) ([]Label, error) {
	if err := in.Series.Validate(); err != nil {
		return nil, err
	}
	n := in.Series.Len()
	if len(in.Features.Rows) != n || len(in.Tags) != n {
		return nil, fmt.Errorf("%s: series/features/tags 长度不一致", in.Series.Symbol)
	}

	labels := make([]Label, 0, n)
	for i := 0; i < n; i++ {
		tag := in.Tags[i]
		row := in.Features.Rows[i]
		if tag.Indeterminate || !row.Valid {
			continue
		}
		tpMult, slMult, horizon := e.params.Select(row.VolRatio, row.ADX)

		remaining := n - 1 - i
		if horizon > remaining {
			// 低波动的加长窗口允许按剩余数据收缩，但不短于常规上限；
			// 其余情况下前向数据不足即不产出
			if row.VolRatio < 0.8 && remaining >= e.params.MaxHorizon {
				horizon = remaining
			} else {
				continue
			}
		}

		lbl := e.scanOrigin(in, i, tpMult, slMult, horizon)
		labels = append(labels, lbl)
	}
	return labels, nil
}

func (e *Engine) scanOrigin(in SeriesInput, origin int, tpMult, slMult float64, horizon int) Label {
	candles := in.Series.Candles
	entry := candles[origin].Close
	atr := in.Features.Rows[origin].ATR

	longTP := pricing.RoundToPip(entry+tpMult*atr, in.PipSize)
	longSL := pricing.RoundToPip(entry-slMult*atr, in.PipSize)
	shortTP := pricing.RoundToPip(entry-tpMult*atr, in.PipSize)
	shortSL := pricing.RoundToPip(entry+slMult*atr, in.PipSize)

	tpLong, slLong, tpShort, slShort := -1, -1, -1, -1
	end := origin + horizon
	for j := origin + 1; j <= end; j++ {
		high, low := candles[j].High, candles[j].Low
		if tpLong < 0 && high >= longTP {
			tpLong = j
		}
		if slLong < 0 && low <= longSL {
			slLong = j
		}
		if tpShort < 0 && low <= shortTP {
			tpShort = j
		}
		if slShort < 0 && high >= shortSL {
			slShort = j
		}
		if tpLong >= 0 && slLong >= 0 && tpShort >= 0 && slShort >= 0 {
			break
		}
	}

	// 同一根 bar 先到 SL 的保守判定：严格小于才算赢
	longWins := tpLong >= 0 && (slLong < 0 || tpLong < slLong)
	shortWins := tpShort >= 0 && (slShort < 0 || tpShort < slShort)

	outcome := Neutral
	decidedAt := end
	switch {
	case longWins && shortWins:
		// 双赢理论上不可达，保守归中性并取较晚的触达点
		outcome = Neutral
		decidedAt = maxInt(tpLong, tpShort)
	case longWins:
		outcome = LongWin
		decidedAt = tpLong
	case shortWins:
		outcome = ShortWin
		decidedAt = tpShort
	}

	return Label{
		Symbol:      in.Series.Symbol,
		OriginIndex: origin,
		Timestamp:   candles[origin].OpenTime,
		Outcome:     outcome,
		Entry:       entry,
		ATR:         atr,
		LongTP:      longTP,
		LongSL:      longSL,
		ShortTP:     shortTP,
		ShortSL:     shortSL,
		TPMult:      tpMult,
		SLMult:      slMult,
		Horizon:     horizon,
		DecidedAt:   decidedAt,
		Regime:      in.Tags[origin],
	}
}

// LabelAll 并行对多个 symbol 打标，结果按 symbol 排序后拼接，保证确定性。
func (e *Engine) LabelAll(ctx context.Context, inputs []SeriesInput, maxConcurrent int) ([]Label, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	results := make([][]Label, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrent)
	for idx, in := range inputs {
		idx, in := idx, in
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			labels, err := e.LabelSeries(in)
			if err != nil {
				return fmt.Errorf("label %s: %w", in.Series.Symbol, err)
			}
			results[idx] = labels
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	order := make([]int, len(inputs))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return inputs[order[a]].Series.Symbol < inputs[order[b]].Series.Symbol
	})
	var out []Label
	for _, idx := range order {
		out = append(out, results[idx]...)
	}
	logger.Infof("[label] %d symbols 共产出 %d 条标签", len(inputs), len(out))
	return out, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
