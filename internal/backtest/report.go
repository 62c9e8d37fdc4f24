package backtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	"gopkg.in/yaml.v3"

	"fxlab/internal/logger"
)

const (
	reportChartWidth  = 1200
	reportChartHeight = 520

	colorBackground = "#060c1b"
	colorEquity     = "#34d399"
)

// ReportWriter 把一次回测的产物落盘：权益曲线 HTML、YAML 摘要、可选 PNG。
type ReportWriter struct {
	dir       string
	renderPNG bool
}

func NewReportWriter(dir string, renderPNG bool) *ReportWriter {
	return &ReportWriter{dir: dir, renderPNG: renderPNG}
}

// reportSummary YAML 摘要结构。
type reportSummary struct {
	RunID         string    `yaml:"run_id"`
	GeneratedAt   string    `yaml:"generated_at"`
	BestThreshold float64   `yaml:"best_threshold"`
	Thresholds    []float64 `yaml:"thresholds"`

	Config struct {
		InitialEquity  float64 `yaml:"initial_equity"`
		RiskPerTrade   float64 `yaml:"risk_per_trade"`
		ExcludeNeutral bool    `yaml:"exclude_neutral"`
	} `yaml:"config"`

	Best      thresholdSummary   `yaml:"best"`
	Breakdown []thresholdSummary `yaml:"breakdown"`
}

type thresholdSummary struct {
	Threshold    float64 `yaml:"threshold"`
	Trades       int     `yaml:"trades"`
	NoTrades     bool    `yaml:"no_trades,omitempty"`
	WinRate      float64 `yaml:"win_rate"`
	ProfitFactor float64 `yaml:"profit_factor"`
	AvgR         float64 `yaml:"avg_r"`
	MaxDrawdown  float64 `yaml:"max_drawdown"`
	FinalEquity  float64 `yaml:"final_equity"`
}

// Write 输出报告文件，返回报告目录。
func (w *ReportWriter) Write(ctx context.Context, run Run, sweep SweepResult, equity []EquityPoint) (string, error) {
	dir := filepath.Join(w.dir, run.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	htmlPath := filepath.Join(dir, "equity.html")
	if err := w.writeEquityChart(htmlPath, run, equity); err != nil {
		return "", err
	}
	if err := w.writeSummary(filepath.Join(dir, "summary.yaml"), run, sweep); err != nil {
		return "", err
	}
	if w.renderPNG {
		if err := renderChartPNG(ctx, htmlPath, filepath.Join(dir, "equity.png")); err != nil {
			// PNG 依赖本机 headless 浏览器，失败不应拖垮整个报告
			logger.Warnf("[report] equity.png 渲染失败: %v", err)
		}
	}
	logger.Infof("[report] run %s 报告写入 %s", run.ID, dir)
	return dir, nil
}

func (w *ReportWriter) writeEquityChart(path string, run Run, equity []EquityPoint) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", reportChartWidth),
			Height:          fmt.Sprintf("%dpx", reportChartHeight),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Equity Curve (τ=%.2f)", run.Best),
			Subtitle: fmt.Sprintf("run %s", run.ID),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)

	xAxis := make([]string, 0, len(equity))
	data := make([]opts.LineData, 0, len(equity))
	for _, p := range equity {
		xAxis = append(xAxis, time.UnixMilli(p.Timestamp).UTC().Format("2006-01-02"))
		data = append(data, opts.LineData{Value: p.Equity})
	}
	line.SetXAxis(xAxis).
		AddSeries("equity", data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity}),
		)

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(line)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return page.Render(f)
}

func (w *ReportWriter) writeSummary(path string, run Run, sweep SweepResult) error {
	var sum reportSummary
	sum.RunID = run.ID
	sum.GeneratedAt = time.Now().UTC().Format(time.RFC3339)
	sum.BestThreshold = sweep.BestThreshold
	sum.Thresholds = run.Thresholds
	sum.Config.InitialEquity = run.Config.InitialEquity
	sum.Config.RiskPerTrade = run.Config.RiskPerTrade
	sum.Config.ExcludeNeutral = run.Config.ExcludeNeutral
	sum.Best = toThresholdSummary(sweep.BestThreshold, sweep.BestReport)
	for _, r := range sweep.Reports {
		sum.Breakdown = append(sum.Breakdown, toThresholdSummary(r.Threshold, r.Report))
	}

	raw, err := yaml.Marshal(sum)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func toThresholdSummary(tau float64, rep Report) thresholdSummary {
	return thresholdSummary{
		Threshold:    tau,
		Trades:       rep.TotalTrades,
		NoTrades:     rep.NoTrades,
		WinRate:      rep.WinRate,
		ProfitFactor: float64(rep.ProfitFactor),
		AvgR:         rep.AvgR,
		MaxDrawdown:  rep.MaxDrawdown,
		FinalEquity:  rep.FinalEquity,
	}
}
