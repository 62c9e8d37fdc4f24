package config

import (
	"fmt"
	"strings"
)

// 默认值常量
const (
	defaultAppEnv      = "dev"
	defaultAppLogLevel = "info"
	defaultAppHTTPAddr = ":9917"
	defaultAppLogPath  = ""

	defaultDataRoot       = "data/candles"
	defaultDataResultRoot = "data/backtests"
	defaultDataLabelDB    = "data/labels.db"
	defaultDataTimeframe  = "1d"
	defaultDataStart      = "2015-01-01"
	defaultSourceName     = "alphavantage"
	defaultSourceREST     = "https://www.alphavantage.co"
	defaultSourceRate     = 5

	defaultLabelATRPeriod  = 14
	defaultLabelTPMult     = 1.8
	defaultLabelSLMult     = 1.0
	defaultLabelMinHorizon = 3
	defaultLabelMaxHorizon = 10
	defaultLabelATRMeanWin = 60

	defaultBacktestEquity    = 10000
	defaultBacktestRisk      = 0.01
	defaultBacktestThreshold = 0.7

	defaultSweepObjective = "profit_factor"

	defaultSignalFeed = "data/signals/confidence.json"
	defaultReportDir  = "data/reports"
)

func defaultSweepThresholds() []float64 {
	return []float64{0.5, 0.55, 0.6, 0.65, 0.7, 0.75, 0.8}
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Label.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
	c.Sweep.applyDefaults(keys)
	c.Signal.applyDefaults(keys)
	c.Report.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.root", &d.Root, defaultDataRoot),
		stringFieldDefault("data.result_root", &d.ResultRoot, defaultDataResultRoot),
		stringFieldDefault("data.label_db_path", &d.LabelDBPath, defaultDataLabelDB),
		stringFieldDefault("data.timeframe", &d.Timeframe, defaultDataTimeframe),
		stringFieldDefault("data.start", &d.Start, defaultDataStart),
	)
	if len(d.Sources) == 0 {
		d.Sources = []MarketSource{{
			Name:            defaultSourceName,
			Enabled:         true,
			RESTBaseURL:     defaultSourceREST,
			RateLimitPerMin: defaultSourceRate,
		}}
	}
	for i := range d.Sources {
		src := &d.Sources[i]
		if strings.TrimSpace(src.Name) == "" {
			if i == 0 {
				src.Name = defaultSourceName
			} else {
				src.Name = fmt.Sprintf("source_%d", i)
			}
		}
		if src.RESTBaseURL == "" && strings.EqualFold(src.Name, defaultSourceName) {
			src.RESTBaseURL = defaultSourceREST
		}
		if src.RateLimitPerMin <= 0 {
			src.RateLimitPerMin = defaultSourceRate
		}
	}
	if strings.TrimSpace(d.ActiveSource) == "" {
		d.ActiveSource = firstEnabledSource(d.Sources)
	}
}

func (l *LabelConfig) applyDefaults(keys keySet) {
	if l == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("label.atr_period", &l.ATRPeriod, defaultLabelATRPeriod),
		floatFieldDefault("label.tp_atr_mult", &l.TPATRMult, defaultLabelTPMult),
		floatFieldDefault("label.sl_atr_mult", &l.SLATRMult, defaultLabelSLMult),
		intFieldDefault("label.min_horizon", &l.MinHorizon, defaultLabelMinHorizon),
		intFieldDefault("label.max_horizon", &l.MaxHorizon, defaultLabelMaxHorizon),
		intFieldDefault("label.atr_mean_window", &l.ATRMeanWindow, defaultLabelATRMeanWin),
	)
	if l.MaxConcurrent <= 0 {
		l.MaxConcurrent = 4
	}
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		floatFieldDefault("backtest.initial_equity", &b.InitialEquity, defaultBacktestEquity),
		floatFieldDefault("backtest.risk_per_trade", &b.RiskPerTrade, defaultBacktestRisk),
		floatFieldDefault("backtest.threshold", &b.Threshold, defaultBacktestThreshold),
	)
}

func (s *SweepConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	if len(s.Thresholds) == 0 {
		s.Thresholds = defaultSweepThresholds()
	}
	applyFieldDefaults(keys,
		stringFieldDefault("sweep.objective", &s.Objective, defaultSweepObjective),
	)
	if s.MaxConcurrent <= 0 {
		s.MaxConcurrent = 2
	}
}

func (s *SignalConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("signal.feed_path", &s.FeedPath, defaultSignalFeed),
	)
}

func (r *ReportConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("report.dir", &r.Dir, defaultReportDir),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func floatFieldDefault(key string, target *float64, def float64) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func firstEnabledSource(sources []MarketSource) string {
	for _, src := range sources {
		name := strings.TrimSpace(src.Name)
		if src.Enabled && name != "" {
			return name
		}
	}
	if len(sources) > 0 {
		if name := strings.TrimSpace(sources[0].Name); name != "" {
			return name
		}
	}
	return defaultSourceName
}
