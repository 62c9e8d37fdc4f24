package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
data:
  symbols: ["eurusd", "GBPUSD"]
  sources:
    - name: alphavantage
      enabled: true
      api_key: demo
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9917", cfg.App.HTTPAddr)
	assert.Equal(t, "1d", cfg.Data.Timeframe)
	assert.Equal(t, "2015-01-01", cfg.Data.Start)
	assert.Equal(t, "alphavantage", cfg.Data.ActiveSource)
	assert.Equal(t, 14, cfg.Label.ATRPeriod)
	assert.InDelta(t, 1.8, cfg.Label.TPATRMult, 1e-12)
	assert.Equal(t, 3, cfg.Label.MinHorizon)
	assert.Equal(t, 10, cfg.Label.MaxHorizon)
	assert.InDelta(t, 0.01, cfg.Backtest.RiskPerTrade, 1e-12)
	assert.Equal(t, "profit_factor", cfg.Sweep.Objective)
	assert.NotEmpty(t, cfg.Sweep.Thresholds)
}

func TestLoadOverridesAndValidation(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  log_level: debug
data:
  timeframe: 4h
  start: "2020-06-01"
  end: "2021-06-01"
  symbols: ["EURUSD"]
  pips:
    EURUSD: 0.00001
  sources:
    - name: alphavantage
      enabled: true
      api_key: demo
backtest:
  threshold: 0.75
sweep:
  thresholds: [0.6, 0.7]
`))
	require.NoError(t, err)
	assert.Equal(t, "4h", cfg.Data.Timeframe)
	assert.InDelta(t, 0.75, cfg.Backtest.Threshold, 1e-12)
	assert.Equal(t, []float64{0.6, 0.7}, cfg.Sweep.Thresholds)
	assert.InDelta(t, 0.00001, cfg.Data.PipSize("eurusd"), 1e-12)
	assert.Zero(t, cfg.Data.PipSize("USDJPY"))

	start, end, err := cfg.Data.TimeRange(time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), start)
	assert.Equal(t, time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), end)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"no symbols": `
data:
  sources:
    - name: alphavantage
      enabled: true
      api_key: demo
`,
		"missing api key": `
data:
  symbols: ["EURUSD"]
  sources:
    - name: alphavantage
      enabled: true
`,
		"unknown source": `
data:
  symbols: ["EURUSD"]
  sources:
    - name: oanda
      enabled: true
`,
		"threshold out of range": minimalConfig + `
backtest:
  threshold: 0.3
`,
		"sweep threshold out of range": minimalConfig + `
sweep:
  thresholds: [0.4]
`,
		"bad date": `
data:
  symbols: ["EURUSD"]
  start: "June 2020"
  sources:
    - name: alphavantage
      enabled: true
      api_key: demo
`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)
	assert.Equal(t, "dev", cfg.App.Env)
	// Default 不含 symbols/api_key，仅用于嵌入场景，不强制通过 validate
	assert.NotEmpty(t, cfg.Data.Root)
}
