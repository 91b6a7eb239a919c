package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khquant/internal/config"
)

func defaultTradeCost() config.TradeCost {
	return config.TradeCost{
		CommissionRate:  0.0003,
		MinCommission:   5,
		StampTaxRate:    0.001,
		TransferFeeRate: 0.0001,
		FlowFee:         1,
	}
}

func ratioSlippage(ratio float64) config.SlippageConfig {
	return config.SlippageConfig{Mode: "ratio", Ratio: ratio}
}

func TestComputeExecutionBuyExample(t *testing.T) {
	// 双边滑点 0.002，单边 0.001：10.00 买入实际成交 10.01
	m, err := NewCostModel(defaultTradeCost(), ratioSlippage(0.002), 2)
	require.NoError(t, err)

	res := m.ComputeExecution(10.00, Buy, "600519.SH", 1000)
	assert.Equal(t, "10.01", res.ActualPrice.String())
	assert.Equal(t, "10010", res.Amount.String())
	assert.Equal(t, "5", res.Commission.String()) // 10010×0.0003=3.003 < 最低佣金 5
	assert.True(t, res.StampTax.IsZero(), "买入不收印花税")
	assert.Equal(t, "1", res.TransferFee.String()) // 沪市 10010×0.0001
	assert.Equal(t, "1", res.FlowFee.String())
	assert.Equal(t, "7", res.TotalCost.String())
}

func TestComputeExecutionSellAsymmetry(t *testing.T) {
	m, err := NewCostModel(defaultTradeCost(), ratioSlippage(0.002), 2)
	require.NoError(t, err)

	buy := m.ComputeExecution(10.00, Buy, "000001.SZ", 1000)
	sell := m.ComputeExecution(10.00, Sell, "000001.SZ", 1000)

	assert.Equal(t, "10.01", buy.ActualPrice.String())
	assert.Equal(t, "9.99", sell.ActualPrice.String())
	assert.True(t, buy.StampTax.IsZero())
	assert.Equal(t, "9.99", sell.StampTax.String()) // 9990×0.001
	// 深市不收过户费
	assert.True(t, buy.TransferFee.IsZero())
	assert.True(t, sell.TransferFee.IsZero())
}

func TestComputeExecutionCommissionAboveFloor(t *testing.T) {
	m, err := NewCostModel(defaultTradeCost(), ratioSlippage(0), 2)
	require.NoError(t, err)

	// 100 元 × 10000 股 = 1000000 元，佣金 300 元远超最低佣金
	res := m.ComputeExecution(100.00, Buy, "000001.SZ", 10000)
	assert.Equal(t, "300", res.Commission.String())
}

func TestComputeExecutionTickSlippage(t *testing.T) {
	slip := config.SlippageConfig{Mode: "tick", TickSize: 0.01, TickCount: 2}
	m, err := NewCostModel(defaultTradeCost(), slip, 2)
	require.NoError(t, err)

	buy := m.ComputeExecution(10.00, Buy, "000001.SZ", 100)
	sell := m.ComputeExecution(10.00, Sell, "000001.SZ", 100)
	assert.Equal(t, "10.02", buy.ActualPrice.String())
	assert.Equal(t, "9.98", sell.ActualPrice.String())
}

func TestComputeExecutionETFPriceDecimals(t *testing.T) {
	m, err := NewCostModel(defaultTradeCost(), ratioSlippage(0.002), 3)
	require.NoError(t, err)

	res := m.ComputeExecution(1.234, Buy, "510300.SH", 1000)
	// 1.234×1.001=1.235234 → 精度 3 位
	assert.Equal(t, "1.235", res.ActualPrice.String())
}

func TestComputeExecutionDeterministic(t *testing.T) {
	m, err := NewCostModel(defaultTradeCost(), ratioSlippage(0.002), 2)
	require.NoError(t, err)

	first := m.ComputeExecution(12.34, Sell, "600000.SH", 700)
	for i := 0; i < 10; i++ {
		again := m.ComputeExecution(12.34, Sell, "600000.SH", 700)
		assert.Equal(t, first, again)
	}
}

func TestNewCostModelRejectsUnknownSlippageMode(t *testing.T) {
	_, err := NewCostModel(defaultTradeCost(), config.SlippageConfig{Mode: "random"}, 2)
	assert.Error(t, err)
}
