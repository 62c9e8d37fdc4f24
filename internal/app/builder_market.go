package app

import (
	"fmt"
	"strings"

	fxcfg "fxlab/internal/config"
	"fxlab/internal/market"
)

// buildCandleSource 按 active_source 选用启用中的数据源。
func buildCandleSource(cfg fxcfg.DataConfig) (market.CandleSource, error) {
	active := strings.ToLower(strings.TrimSpace(cfg.ActiveSource))
	for _, src := range cfg.Sources {
		if !src.Enabled {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(src.Name))
		if active != "" && name != active {
			continue
		}
		switch name {
		case "alphavantage":
			return market.NewAlphaVantageSource(src.RESTBaseURL, src.APIKey, src.RateLimitPerMin), nil
		case "binance":
			return market.NewBinanceSource(src.RESTBaseURL), nil
		default:
			return nil, fmt.Errorf("不支持的数据源: %s", src.Name)
		}
	}
	return nil, fmt.Errorf("未找到启用的数据源 (active_source=%s)", cfg.ActiveSource)
}
