package app

import (
	"fmt"
	"strings"

	fxcfg "fxlab/internal/config"
	"fxlab/internal/market"
)

// StartupSummary 启动时打印一次的配置摘要。
type StartupSummary struct {
	Symbols    []string
	Timeframe  string
	Source     string
	Range      string
	Thresholds []float64
	FeedPath   string
	HTTPAddr   string
}

func buildStartupSummary(cfg *fxcfg.Config, tf market.Timeframe, sourceName string) *StartupSummary {
	end := cfg.Data.End
	if strings.TrimSpace(end) == "" {
		end = "now"
	}
	return &StartupSummary{
		Symbols:    cfg.Data.Symbols,
		Timeframe:  tf.Key,
		Source:     sourceName,
		Range:      fmt.Sprintf("%s ~ %s", cfg.Data.Start, end),
		Thresholds: cfg.Sweep.Thresholds,
		FeedPath:   cfg.Signal.FeedPath,
		HTTPAddr:   cfg.App.HTTPAddr,
	}
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 72))
	fmt.Println("启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 72))

	fmt.Println("[行情 (MARKET DATA)]")
	fmt.Printf("  符号: %s\n", formatList(s.Symbols))
	fmt.Printf("  周期: %s\n", s.Timeframe)
	fmt.Printf("  数据源: %s\n", s.Source)
	fmt.Printf("  区间: %s\n", s.Range)
	fmt.Println()

	fmt.Println("[回测 (BACKTEST)]")
	fmt.Printf("  候选阈值: %s\n", formatFloats(s.Thresholds))
	fmt.Printf("  信号 feed: %s\n", s.FeedPath)
	if s.HTTPAddr != "" {
		fmt.Printf("  HTTP: %s\n", s.HTTPAddr)
	}
	fmt.Println(strings.Repeat("=", 72))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func formatFloats(items []float64) string {
	if len(items) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(items))
	for _, v := range items {
		parts = append(parts, fmt.Sprintf("%.2f", v))
	}
	return strings.Join(parts, ", ")
}
