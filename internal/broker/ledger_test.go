package broker

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khquant/internal/market"
)

func execFor(price float64, volume int64, cost float64) ExecutionResult {
	p := decimal.NewFromFloat(price)
	amount := p.Mul(decimal.NewFromInt(volume)).Round(2)
	c := decimal.NewFromFloat(cost)
	return ExecutionResult{
		ActualPrice: p,
		Amount:      amount,
		Commission:  c,
		TotalCost:   c,
	}
}

func TestLedgerBuyThenSettle(t *testing.T) {
	l := NewLedger(100000, nil)

	require.NoError(t, l.ApplyBuy("600519.SH", 1000, execFor(10.01, 1000, 7)))

	// 当日买入不可卖
	assert.EqualValues(t, 0, l.UsableVolume("600519.SH"))
	pos := l.Positions()["600519.SH"]
	assert.EqualValues(t, 1000, pos.TotalVolume)
	assert.EqualValues(t, 0, pos.UsableVolume)

	// 当日卖出被拒且不改变任何状态
	before := l.Snapshot()
	err := l.ApplySell("600519.SH", 1000, execFor(10.50, 1000, 15))
	assert.ErrorIs(t, err, ErrInsufficientPosition)
	assert.Equal(t, before, l.Snapshot())

	// 日界解锁后全部可卖
	l.PromoteSettled()
	assert.EqualValues(t, 1000, l.UsableVolume("600519.SH"))
	require.NoError(t, l.ApplySell("600519.SH", 1000, execFor(10.50, 1000, 15)))
	_, held := l.Positions()["600519.SH"]
	assert.False(t, held, "清仓后持仓记录应删除")
}

func TestLedgerT0WhitelistBypassesSettlement(t *testing.T) {
	t0 := market.NewT0List([]string{"511990.SH"})
	l := NewLedger(100000, t0)

	require.NoError(t, l.ApplyBuy("511990.SH", 1000, execFor(100, 100, 5)))
	assert.EqualValues(t, 1000, l.UsableVolume("511990.SH"), "白名单标的买入即可卖")
}

func TestLedgerInsufficientFunds(t *testing.T) {
	l := NewLedger(1000, nil)
	err := l.ApplyBuy("000001.SZ", 1000, execFor(10, 1000, 7))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.InDelta(t, 1000, l.Snapshot().Cash, 1e-9, "失败的买入不得动用资金")
	assert.Empty(t, l.Positions())
}

func TestLedgerCashAccounting(t *testing.T) {
	l := NewLedger(100000, nil)
	require.NoError(t, l.ApplyBuy("000001.SZ", 1000, execFor(10.01, 1000, 7)))

	// 现金 = 100000 − 10010 − 7
	assert.InDelta(t, 89983, l.Snapshot().Cash, 1e-9)

	l.PromoteSettled()
	require.NoError(t, l.ApplySell("000001.SZ", 400, execFor(11, 400, 10)))
	// 卖出回款 4400 − 10
	assert.InDelta(t, 89983+4390, l.Snapshot().Cash, 1e-9)
	assert.EqualValues(t, 600, l.Positions()["000001.SZ"].TotalVolume)
}

func TestLedgerWeightedAvgPrice(t *testing.T) {
	l := NewLedger(1000000, nil)
	require.NoError(t, l.ApplyBuy("000001.SZ", 1000, execFor(10, 1000, 5)))
	require.NoError(t, l.ApplyBuy("000001.SZ", 1000, execFor(12, 1000, 5)))

	pos := l.Positions()["000001.SZ"]
	assert.InDelta(t, 11, pos.AvgPrice, 1e-9)
	assert.EqualValues(t, 2000, pos.TotalVolume)
}

func TestLedgerMarkPriceDrivesValuation(t *testing.T) {
	l := NewLedger(100000, nil)
	require.NoError(t, l.ApplyBuy("000001.SZ", 1000, execFor(10, 1000, 5)))

	l.MarkPrice("000001.SZ", 12)
	snap := l.Snapshot()
	assert.InDelta(t, 12000, snap.MarketValue, 1e-9)
	assert.InDelta(t, snap.Cash+12000, snap.TotalAsset, 1e-9)
}
