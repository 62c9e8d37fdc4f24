// Package label 实现波动率自适应的三重屏障打标。
// 每根合格 K 线向前扫描至多 horizon 根，按先触达的屏障判定多/空/中性。
package label

import "fxlab/internal/regime"

// Outcome 打标结果。
type Outcome int

const (
	ShortWin Outcome = -1
	Neutral  Outcome = 0
	LongWin  Outcome = 1
)

func (o Outcome) String() string {
	switch o {
	case LongWin:
		return "long_win"
	case ShortWin:
		return "short_win"
	default:
		return "neutral"
	}
}

// Label 附着在原点 bar 上的打标记录，生成后不再修改。
type Label struct {
	Symbol      string  `json:"symbol"`
	OriginIndex int     `json:"origin_index"`
	Timestamp   int64   `json:"timestamp"`
	Outcome     Outcome `json:"outcome"`

	Entry   float64 `json:"entry"`
	ATR     float64 `json:"atr"`
	LongTP  float64 `json:"long_tp"`
	LongSL  float64 `json:"long_sl"`
	ShortTP float64 `json:"short_tp"`
	ShortSL float64 `json:"short_sl"`

	TPMult  float64 `json:"tp_mult"`
	SLMult  float64 `json:"sl_mult"`
	Horizon int     `json:"horizon"`

	// DecidedAt 判定发生的 bar 下标；中性时为 horizon 末端。
	DecidedAt int `json:"decided_at"`

	Regime regime.Tag `json:"regime"`
}
