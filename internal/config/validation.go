package config

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// 便于测试固定时钟
var timeNow = time.Now

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Data.validate(); err != nil {
		return err
	}
	if err := c.Label.validate(); err != nil {
		return err
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	if err := c.Sweep.validate(); err != nil {
		return err
	}
	return nil
}

func (d *DataConfig) validate() error {
	if len(d.Symbols) == 0 {
		return fmt.Errorf("data.symbols requires at least one symbol")
	}
	if len(d.Sources) == 0 {
		return fmt.Errorf("data.sources requires at least one source")
	}
	activeName := strings.ToLower(strings.TrimSpace(d.ActiveSource))
	enabled := 0
	activeFound := false
	for _, src := range d.Sources {
		if !src.Enabled {
			continue
		}
		enabled++
		name := strings.ToLower(strings.TrimSpace(src.Name))
		if name != "alphavantage" && name != "binance" {
			return fmt.Errorf("data source %s is not supported (alphavantage|binance)", src.Name)
		}
		if name == "alphavantage" && strings.TrimSpace(src.APIKey) == "" {
			return fmt.Errorf("data source %s missing api_key", src.Name)
		}
		if activeName == "" || name == activeName {
			activeFound = true
		}
	}
	if enabled == 0 {
		return fmt.Errorf("data.sources requires at least one enabled source")
	}
	if !activeFound {
		return fmt.Errorf("enabled data.active_source=%s not found", d.ActiveSource)
	}
	if _, _, err := d.TimeRange(timeNow()); err != nil {
		return err
	}
	for sym, pip := range d.Pips {
		if pip < 0 || math.IsNaN(pip) {
			return fmt.Errorf("data.pips.%s must be >= 0", sym)
		}
	}
	return nil
}

func (l *LabelConfig) validate() error {
	if l.ATRPeriod < 2 {
		return fmt.Errorf("label.atr_period must be >= 2")
	}
	if l.TPATRMult <= 0 || l.SLATRMult <= 0 {
		return fmt.Errorf("label.tp_atr_mult and label.sl_atr_mult must be > 0")
	}
	if l.MinHorizon < 1 || l.MaxHorizon < l.MinHorizon {
		return fmt.Errorf("label horizons invalid: min=%d max=%d", l.MinHorizon, l.MaxHorizon)
	}
	if l.ATRMeanWindow < l.ATRPeriod {
		return fmt.Errorf("label.atr_mean_window must be >= label.atr_period")
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	if b.InitialEquity <= 0 {
		return fmt.Errorf("backtest.initial_equity must be > 0")
	}
	if b.RiskPerTrade <= 0 || b.RiskPerTrade >= 1 {
		return fmt.Errorf("backtest.risk_per_trade must be in (0, 1)")
	}
	if b.Threshold < 0.5 || b.Threshold > 1 {
		return fmt.Errorf("backtest.threshold must be in [0.5, 1]")
	}
	return nil
}

func (s *SweepConfig) validate() error {
	if len(s.Thresholds) == 0 {
		return fmt.Errorf("sweep.thresholds requires at least one candidate")
	}
	for _, t := range s.Thresholds {
		if t < 0.5 || t > 1 || math.IsNaN(t) {
			return fmt.Errorf("sweep threshold %v out of range [0.5, 1]", t)
		}
	}
	if s.Objective != "profit_factor" {
		return fmt.Errorf("sweep.objective only supports 'profit_factor', got %s", s.Objective)
	}
	return nil
}
