package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khquant/internal/broker"
	"khquant/internal/config"
	"khquant/internal/engine"
)

func testCostModel(t *testing.T) *broker.CostModel {
	t.Helper()
	cost, err := broker.NewCostModel(config.TradeCost{
		CommissionRate:  0.0003,
		MinCommission:   5,
		StampTaxRate:    0.001,
		TransferFeeRate: 0.0001,
		FlowFee:         1,
	}, config.SlippageConfig{Mode: "ratio", Ratio: 0.002}, 2)
	require.NoError(t, err)
	return cost
}

func TestMaxBuyVolume(t *testing.T) {
	cost := testCostModel(t)

	// 1000 股 @10.00：成交价 10.01，金额 10010，总成本 7，合计 10017
	assert.EqualValues(t, 1000, MaxBuyVolume(10017, 10.00, cost, "600519.SH"))
	// 差一分钱就只能买 900 股
	assert.EqualValues(t, 900, MaxBuyVolume(10016.99, 10.00, cost, "600519.SH"))
	assert.EqualValues(t, 0, MaxBuyVolume(500, 10.00, cost, "600519.SH"))
	assert.EqualValues(t, 0, MaxBuyVolume(-1, 10.00, cost, "600519.SH"))
	assert.EqualValues(t, 0, MaxBuyVolume(10000, 0, cost, "600519.SH"))
}

func snapWith(cash float64, positions map[string]broker.Position) *engine.Context {
	return &engine.Context{
		Account:   broker.AccountSnapshot{Cash: cash, TotalAsset: cash},
		Positions: positions,
	}
}

func TestBuySignalRatioOfCash(t *testing.T) {
	cost := testCostModel(t)
	snap := snapWith(20034, nil)

	sig, ok := BuySignal(snap, "600519.SH", 10.00, 0.5, cost, "测试")
	require.True(t, ok)
	assert.Equal(t, broker.Buy, sig.Action)
	assert.EqualValues(t, 1000, sig.Volume, "动用一半资金 10017 元")
	assert.InDelta(t, 10.00, sig.PriceHint, 1e-9)
}

func TestBuySignalAbsoluteShares(t *testing.T) {
	cost := testCostModel(t)
	snap := snapWith(1000000, nil)

	sig, ok := BuySignal(snap, "600519.SH", 10.00, 550, cost, "")
	require.True(t, ok)
	assert.EqualValues(t, 500, sig.Volume, "绝对股数向下取整手")
}

func TestBuySignalInsufficientCash(t *testing.T) {
	cost := testCostModel(t)
	snap := snapWith(100, nil)

	_, ok := BuySignal(snap, "600519.SH", 10.00, 1, cost, "")
	assert.False(t, ok)
}

func TestSellSignalVariants(t *testing.T) {
	positions := map[string]broker.Position{
		"600519.SH": {Code: "600519.SH", TotalVolume: 1150, UsableVolume: 1150},
	}
	snap := snapWith(0, positions)

	sig, ok := SellSignal(snap, "600519.SH", 10, 1, "")
	require.True(t, ok)
	assert.EqualValues(t, 1150, sig.Volume, "全仓卖出含零股")

	sig, ok = SellSignal(snap, "600519.SH", 10, 0.5, "")
	require.True(t, ok)
	assert.EqualValues(t, 500, sig.Volume, "按比例卖出向下取整手")

	sig, ok = SellSignal(snap, "600519.SH", 10, 2000, "")
	require.True(t, ok)
	assert.EqualValues(t, 1150, sig.Volume, "绝对股数不超过可用持仓")

	_, ok = SellSignal(snap, "000001.SZ", 10, 1, "")
	assert.False(t, ok, "无持仓不产生信号")
}

func TestSMA(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	out := SMA(values, 3)
	require.Len(t, out, 5)
	assert.InDelta(t, 2, out[2], 1e-9)
	assert.InDelta(t, 4, out[4], 1e-9)

	assert.Nil(t, SMA(values, 6), "数据不足返回 nil")
}

func TestDualMAParams(t *testing.T) {
	cost := testCostModel(t)

	s := NewDualMA([]byte(`{"short": 3, "long": 10, "buy_ratio": 0.8}`), cost)
	assert.Equal(t, 3, s.short)
	assert.Equal(t, 10, s.long)
	assert.InDelta(t, 0.8, s.buyRatio, 1e-9)

	s = NewDualMA(nil, cost)
	assert.Equal(t, 5, s.short)
	assert.Equal(t, 20, s.long)

	// 非法参数恢复默认
	s = NewDualMA([]byte(`{"short": 30, "long": 10}`), cost)
	assert.Equal(t, 5, s.short)
	assert.Equal(t, 20, s.long)
}
