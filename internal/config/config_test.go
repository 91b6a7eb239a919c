package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMinimalConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "backtest.kh", `{
		"data": {"stock_list": ["600519.SH", "000001.SZ"]}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeBacktest, cfg.RunMode)
	assert.Equal(t, "info", cfg.System.LogLevel)
	assert.InDelta(t, 1000000, cfg.Backtest.InitCapital, 1e-9)
	assert.InDelta(t, 0.0003, cfg.Backtest.TradeCost.CommissionRate, 1e-12)
	assert.InDelta(t, 5, cfg.Backtest.TradeCost.MinCommission, 1e-12)
	assert.InDelta(t, 0.001, cfg.Backtest.TradeCost.StampTaxRate, 1e-12)
	assert.InDelta(t, 0.0001, cfg.Backtest.TradeCost.TransferFeeRate, 1e-12)
	assert.Equal(t, "ratio", cfg.Backtest.Slippage.Mode)
	assert.Equal(t, "1d", cfg.Data.KlinePeriod)
	assert.Equal(t, 60, cfg.Data.HistoryCount)
	assert.Equal(t, "bar", cfg.Trigger.Type)
	assert.Equal(t, "1d", cfg.Trigger.Period, "bar 触发周期缺省跟随行情周期")
	assert.Equal(t, "dual_ma", cfg.Strategy.Name)
	assert.InDelta(t, 0.95, cfg.Risk.PositionLimit, 1e-12)
	assert.Equal(t, 100000, cfg.Risk.OrderLimit)
	assert.True(t, cfg.Risk.PreTradeCheckEnabled(), "交易前风控检查默认开启")
}

func TestLoadExplicitValuesSurviveDefaults(t *testing.T) {
	path := writeConfig(t, "backtest.kh", `{
		"run_mode": "simulate",
		"backtest": {
			"start_time": "20230601",
			"end_time": "20231229",
			"init_capital": 500000,
			"slippage": {"mode": "tick", "tick_size": 0.01, "tick_count": 2}
		},
		"data": {"kline_period": "5m", "stock_list": ["510300.SH"]},
		"trigger": {"type": "schedule", "schedule": ["10:00:00", "14:30:00"]},
		"risk": {"position_limit": 0.8, "order_limit": 5000, "pre_trade_check": false}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ModeSimulate, cfg.RunMode)
	assert.InDelta(t, 500000, cfg.Backtest.InitCapital, 1e-9)
	assert.Equal(t, "tick", cfg.Backtest.Slippage.Mode)
	assert.Equal(t, 2, cfg.Backtest.Slippage.TickCount)
	assert.Equal(t, "5m", cfg.Data.KlinePeriod)
	assert.Equal(t, "schedule", cfg.Trigger.Type)
	assert.Equal(t, 5000, cfg.Risk.OrderLimit)
	assert.False(t, cfg.Risk.PreTradeCheckEnabled())
}

func TestLoadYAMLConfig(t *testing.T) {
	path := writeConfig(t, "backtest.yaml", `
run_mode: backtest
data:
  stock_list:
    - 600519.SH
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"600519.SH"}, cfg.Data.StockList)
}

func TestLoadMergesStockListFile(t *testing.T) {
	dir := t.TempDir()
	listPath := filepath.Join(dir, "pool.yaml")
	require.NoError(t, os.WriteFile(listPath, []byte("- 000001.SZ\n- 600519.SH\n"), 0o644))

	path := writeConfig(t, "backtest.kh", `{
		"data": {"stock_list": ["600519.SH"], "stock_list_file": "`+listPath+`"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"600519.SH", "000001.SZ"}, cfg.Data.StockList, "合并去重且保序")
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"非法运行模式": `{"run_mode": "paper", "data": {"stock_list": ["600519.SH"]}}`,
		"空股票池":   `{"data": {"stock_list": []}}`,
		"非法代码":   `{"data": {"stock_list": ["600519"]}}`,
		"非法滑点模式": `{"backtest": {"slippage": {"mode": "none"}}, "data": {"stock_list": ["600519.SH"]}}`,
		"时间窗口倒置": `{"backtest": {"start_time": "20240601", "end_time": "20240101"}, "data": {"stock_list": ["600519.SH"]}}`,
		"非法触发时刻": `{"trigger": {"type": "schedule", "schedule": ["25:00:00"]}, "data": {"stock_list": ["600519.SH"]}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, "bad.kh", content)
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestParseClock(t *testing.T) {
	sec, err := ParseClock("14:30:15")
	require.NoError(t, err)
	assert.Equal(t, 14*3600+30*60+15, sec)

	sec, err = ParseClock("09:30")
	require.NoError(t, err)
	assert.Equal(t, 9*3600+30*60, sec)

	_, err = ParseClock("930")
	assert.Error(t, err)
}
