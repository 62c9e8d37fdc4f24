package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 是 fxlab 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Data     DataConfig     `toml:"data"`
	Label    LabelConfig    `toml:"label"`
	Backtest BacktestConfig `toml:"backtest"`
	Sweep    SweepConfig    `toml:"sweep"`
	Signal   SignalConfig   `toml:"signal"`
	Report   ReportConfig   `toml:"report"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// DataConfig 描述行情数据的来源与本地缓存位置。
type DataConfig struct {
	Root         string         `toml:"root"` // K 线 sqlite 缓存根目录
	ResultRoot   string         `toml:"result_root"`
	LabelDBPath  string         `toml:"label_db_path"`
	Timeframe    string         `toml:"timeframe"`
	Start        string         `toml:"start"` // 形如 2015-01-01（UTC）
	End          string         `toml:"end"`   // 留空表示取到当前时间
	Symbols      []string       `toml:"symbols"`
	ActiveSource string         `toml:"active_source"`
	Sources      []MarketSource `toml:"sources"`
	// Pips 指定各 symbol 的最小报价单位（如 EURUSD=0.00001）。
	Pips map[string]float64 `toml:"pips"`
}

// MarketSource 描述单个数据源。
type MarketSource struct {
	Name            string `toml:"name"` // alphavantage | binance
	Enabled         bool   `toml:"enabled"`
	RESTBaseURL     string `toml:"rest_base_url"`
	APIKey          string `toml:"api_key"`
	RateLimitPerMin int    `toml:"rate_limit_per_min"`
}

// LabelConfig 对应三重障碍打标参数，运行期不可变。
type LabelConfig struct {
	ATRPeriod     int     `toml:"atr_period"`
	TPATRMult     float64 `toml:"tp_atr_mult"`
	SLATRMult     float64 `toml:"sl_atr_mult"`
	MinHorizon    int     `toml:"min_horizon"`
	MaxHorizon    int     `toml:"max_horizon"`
	ATRMeanWindow int     `toml:"atr_mean_window"`
	MaxConcurrent int     `toml:"max_concurrent"`
}

// BacktestConfig 控制模拟器的资金与门控参数。
type BacktestConfig struct {
	InitialEquity  float64 `toml:"initial_equity"`
	RiskPerTrade   float64 `toml:"risk_per_trade"`
	Threshold      float64 `toml:"threshold"`
	ExcludeNeutral bool    `toml:"exclude_neutral"`
}

// SweepConfig 描述置信度阈值扫描。
type SweepConfig struct {
	Thresholds    []float64 `toml:"thresholds"`
	Objective     string    `toml:"objective"` // 目前仅支持 profit_factor
	MaxConcurrent int       `toml:"max_concurrent"`
}

// SignalConfig 指定外部模型输出的置信度 feed。
type SignalConfig struct {
	FeedPath string `toml:"feed_path"`
	Watch    bool   `toml:"watch"`
}

type ReportConfig struct {
	Dir       string `toml:"dir"`
	RenderPNG bool   `toml:"render_png"`
}

// PipSize 返回 symbol 的最小报价单位，未配置时返回 0（表示不做精度取整）。
func (d DataConfig) PipSize(symbol string) float64 {
	if len(d.Pips) == 0 {
		return 0
	}
	if v, ok := d.Pips[strings.ToUpper(strings.TrimSpace(symbol))]; ok {
		return v
	}
	return 0
}

// TimeRange 解析配置的起止日期，返回毫秒时间戳。end 为空时取当前时间。
func (d DataConfig) TimeRange(now time.Time) (int64, int64, error) {
	start, err := parseDay(d.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("data.start: %w", err)
	}
	end := now.UTC()
	if strings.TrimSpace(d.End) != "" {
		end, err = parseDay(d.End)
		if err != nil {
			return 0, 0, fmt.Errorf("data.end: %w", err)
		}
	}
	if !end.After(start) {
		return 0, 0, fmt.Errorf("data range invalid: %s >= %s", d.Start, d.End)
	}
	return start.UnixMilli(), end.UnixMilli(), nil
}

func parseDay(s string) (time.Time, error) {
	return time.Parse("2006-01-02", strings.TrimSpace(s))
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
