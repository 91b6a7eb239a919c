package app

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khquant/internal/broker"
	"khquant/internal/config"
	"khquant/internal/logger"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		RunMode: config.ModeBacktest,
		System: config.SystemConfig{
			LogLevel: "info",
			DataRoot: filepath.Join(dir, "market"),
		},
		Backtest: config.BacktestConfig{
			StartTime:   "20240101",
			EndTime:     "20240131",
			InitCapital: 1000000,
			TradeCost: config.TradeCost{
				CommissionRate:  0.0003,
				MinCommission:   5,
				StampTaxRate:    0.001,
				TransferFeeRate: 0.0001,
				FlowFee:         1,
			},
			Slippage: config.SlippageConfig{Mode: "ratio", Ratio: 0.002},
		},
		Data: config.DataConfig{
			KlinePeriod:  "1d",
			StockList:    []string{"600519.SH"},
			HistoryCount: 30,
		},
		Trigger:  config.TriggerConfig{Type: "bar", Period: "1d"},
		Strategy: config.StrategyConfig{Name: "dual_ma"},
		Risk:     config.RiskConfig{PositionLimit: 0.95, OrderLimit: 100000, LossLimit: 0.1},
		Record:   config.RecordConfig{DBPath: filepath.Join(dir, "results.db")},
	}
}

// 注册了 OnLog 的嵌入方应能收到框架日志转发。
func TestOnLogReceivesFrameworkLogs(t *testing.T) {
	t.Cleanup(func() { logger.SetSink(nil) })

	var mu sync.Mutex
	var lines []string
	cb := broker.Callbacks{OnLog: func(msg string) {
		mu.Lock()
		lines = append(lines, msg)
		mu.Unlock()
	}}

	a, err := NewApp(testConfig(t), "", cb)
	require.NoError(t, err)
	t.Cleanup(a.close)

	// 空行情库：引擎中止并通过 logger 报告，日志应转发到 OnLog
	err = a.Run(context.Background())
	require.Error(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, lines)
	found := false
	for _, line := range lines {
		if strings.Contains(line, "引擎中止") {
			found = true
			break
		}
	}
	assert.True(t, found, "引擎中止日志应到达 OnLog 回调: %v", lines)
}

// 策略上下文的行情粒度由触发器决定，而不是直接取行情驱动周期。
func TestContextPeriodFollowsTrigger(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.KlinePeriod = "5m"
	cfg.Trigger = config.TriggerConfig{Type: "bar", Period: "30m"}

	a, err := NewApp(cfg, "", broker.Callbacks{})
	require.NoError(t, err)
	t.Cleanup(a.close)

	assert.Equal(t, "30m", a.builder.Period().Key)
}

func TestContextPeriodTickTriggerUsesKlinePeriod(t *testing.T) {
	cfg := testConfig(t)
	cfg.Data.KlinePeriod = "5m"
	cfg.Trigger = config.TriggerConfig{Type: "tick"}

	a, err := NewApp(cfg, "", broker.Callbacks{})
	require.NoError(t, err)
	t.Cleanup(a.close)

	assert.Equal(t, "5m", a.builder.Period().Key)
}
