// Package backtest 按标签结果回放置信度门控的交易，并计算统计指标。
package backtest

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"fxlab/internal/label"
)

// JSONFloat 在 JSON 里把 ±Inf/NaN 编码成字符串哨兵，避免 encoding/json 报错。
type JSONFloat float64

func (f JSONFloat) MarshalJSON() ([]byte, error) {
	v := float64(f)
	switch {
	case math.IsInf(v, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	case math.IsNaN(v):
		return []byte(`"nan"`), nil
	}
	return json.Marshal(v)
}

func (f *JSONFloat) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch s {
		case "inf":
			*f = JSONFloat(math.Inf(1))
		case "-inf":
			*f = JSONFloat(math.Inf(-1))
		case "nan":
			*f = JSONFloat(math.NaN())
		default:
			return fmt.Errorf("未知浮点哨兵: %q", s)
		}
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = JSONFloat(v)
	return nil
}

// Direction 交易方向。
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// SkipReason 行被拒绝进入模拟的原因。
type SkipReason string

const (
	SkipBelowThreshold  SkipReason = "below_threshold"
	SkipBadConfidence   SkipReason = "bad_confidence"
	SkipNoConfidence    SkipReason = "no_confidence"
	SkipNeutralExcluded SkipReason = "neutral_excluded"
)

// SimConfig 模拟器输入配置，不可变，随调用传入。
type SimConfig struct {
	InitialEquity  float64 `json:"initial_equity"`
	RiskPerTrade   float64 `json:"risk_per_trade"`
	Threshold      float64 `json:"threshold"`
	ExcludeNeutral bool    `json:"exclude_neutral"`
}

// Trade 开仓即平仓：标签已经决定了结局，不需要再推演价格路径。
type Trade struct {
	Symbol     string    `json:"symbol"`
	Timestamp  int64     `json:"timestamp"`
	Direction  Direction `json:"direction"`
	Confidence float64   `json:"confidence"`

	Entry float64 `json:"entry"`
	TP    float64 `json:"tp"`
	SL    float64 `json:"sl"`
	Size  float64 `json:"size"`

	Outcome label.Outcome `json:"outcome"`
	Win     bool          `json:"win"`
	R       float64       `json:"r"`
	PnL     float64       `json:"pnl"`

	EquityAfter float64 `json:"equity_after"`
}

// EquityPoint 单笔成交后的权益采样。
type EquityPoint struct {
	Timestamp int64   `json:"timestamp"`
	Equity    float64 `json:"equity"`
}

// SkippedRow 被拒绝行的记录，便于排查而不中断整个回放。
type SkippedRow struct {
	Symbol     string     `json:"symbol"`
	Timestamp  int64      `json:"timestamp"`
	Confidence float64    `json:"confidence"`
	Reason     SkipReason `json:"reason"`
}

// SimResult 单次模拟输出。
type SimResult struct {
	Config  SimConfig     `json:"config"`
	Trades  []Trade       `json:"trades"`
	Equity  []EquityPoint `json:"equity"`
	Skipped []SkippedRow  `json:"skipped,omitempty"`
}

// Report 指标汇总。NoTrades 为 true 时比例类指标不可用。
type Report struct {
	Threshold   float64 `json:"threshold"`
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	NoTrades    bool    `json:"no_trades"`

	WinRate      float64   `json:"win_rate"`
	ProfitFactor JSONFloat `json:"profit_factor"` // +Inf 表示无亏损
	AvgWinR      float64   `json:"avg_win_r"`
	AvgLossR     float64   `json:"avg_loss_r"`
	AvgR         float64   `json:"avg_r"`
	MaxDrawdown  float64   `json:"max_drawdown"` // 正数比例

	// SharpeDefined 为 false 时 Sharpe 不可用（不足 2 笔或零方差）
	Sharpe        float64 `json:"sharpe"`
	SharpeDefined bool    `json:"sharpe_defined"`

	FinalEquity float64 `json:"final_equity"`

	BySymbol map[string]SymbolStats `json:"by_symbol,omitempty"`
}

// SymbolStats 单 symbol 的指标切片。
type SymbolStats struct {
	Trades       int       `json:"trades"`
	Wins         int       `json:"wins"`
	WinRate      float64   `json:"win_rate"`
	ProfitFactor JSONFloat `json:"profit_factor"`
	AvgR         float64   `json:"avg_r"`
	NetPnL       float64   `json:"net_pnl"`
}

// run 状态

type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusFinished RunStatus = "finished"
	RunStatusFailed   RunStatus = "failed"
)

// Run 一次完整回测（含阈值扫描）的持久化摘要。
type Run struct {
	ID         string    `json:"id"`
	Status     RunStatus `json:"status"`
	Message    string    `json:"message,omitempty"`
	Config     SimConfig `json:"config"`
	Thresholds []float64 `json:"thresholds"`
	Best       float64   `json:"best_threshold"`
	CreatedAt  time.Time `json:"created_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Report     *Report   `json:"report,omitempty"`
}

func (r Run) MarshalReport() ([]byte, error) {
	if r.Report == nil {
		return nil, nil
	}
	return json.Marshal(r.Report)
}
