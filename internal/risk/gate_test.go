package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"khquant/internal/broker"
)

type countingPositionCheck struct {
	calls int
	err   error
}

func (c *countingPositionCheck) Check(broker.AccountSnapshot) error {
	c.calls++
	return c.err
}

type countingOrderCheck struct {
	calls int
	err   error
}

func (c *countingOrderCheck) Check(broker.Signal) error {
	c.calls++
	return c.err
}

type countingLossPolicy struct {
	calls int
	err   error
}

func (c *countingLossPolicy) Check(broker.AccountSnapshot, map[string]broker.Position) error {
	c.calls++
	return c.err
}

func signals(volumes ...int64) []broker.Signal {
	out := make([]broker.Signal, 0, len(volumes))
	for _, v := range volumes {
		out = append(out, broker.Signal{Code: "000001.SZ", Action: broker.Buy, Volume: v})
	}
	return out
}

func TestGateShortCircuitsOnPositionFailure(t *testing.T) {
	pos := &countingPositionCheck{err: errors.New("仓位超限")}
	order := &countingOrderCheck{}
	loss := &countingLossPolicy{}
	g := NewGateWithChecks(pos, order, loss)

	dec := g.Check(broker.AccountSnapshot{}, nil, signals(100, 200))

	assert.True(t, dec.Blocked)
	assert.Equal(t, "仓位超限", dec.Reason)
	assert.Equal(t, 1, pos.calls)
	assert.Equal(t, 0, order.calls, "持仓检查失败后不得求值委托检查")
	assert.Equal(t, 0, loss.calls, "持仓检查失败后不得求值止损检查")
}

func TestGateEvaluatesAllChecksWhenPassing(t *testing.T) {
	pos := &countingPositionCheck{}
	order := &countingOrderCheck{}
	loss := &countingLossPolicy{}
	g := NewGateWithChecks(pos, order, loss)

	dec := g.Check(broker.AccountSnapshot{}, nil, signals(100, 200, 300))

	assert.False(t, dec.Blocked)
	assert.Len(t, dec.Allowed, 3)
	assert.Equal(t, 1, pos.calls)
	assert.Equal(t, 3, order.calls, "委托检查逐条执行")
	assert.Equal(t, 1, loss.calls)
}

func TestGateLossFailureBlocksBatch(t *testing.T) {
	g := NewGateWithChecks(&countingPositionCheck{}, &countingOrderCheck{},
		&countingLossPolicy{err: errors.New("触发止损")})

	dec := g.Check(broker.AccountSnapshot{}, nil, signals(100))
	assert.True(t, dec.Blocked)
	assert.Equal(t, "触发止损", dec.Reason)
}

func TestGateOrderLimitFiltersPerSignal(t *testing.T) {
	g := NewGate(Limits{PositionLimit: 0.95, OrderLimit: 100}, nil)
	acct := broker.AccountSnapshot{TotalAsset: 100000, MarketValue: 0}

	// 500 股超限被拒，50 股放行
	dec := g.Check(acct, nil, []broker.Signal{
		{Code: "000001.SZ", Action: broker.Buy, Volume: 500},
		{Code: "000001.SZ", Action: broker.Buy, Volume: 50},
	})

	assert.False(t, dec.Blocked)
	assert.Len(t, dec.Allowed, 1)
	assert.EqualValues(t, 50, dec.Allowed[0].Volume)
	assert.Len(t, dec.Rejected, 1)
	assert.EqualValues(t, 500, dec.Rejected[0].Signal.Volume)
}

func TestGatePositionLimit(t *testing.T) {
	g := NewGate(Limits{PositionLimit: 0.95, OrderLimit: 100000}, nil)

	over := broker.AccountSnapshot{TotalAsset: 100000, MarketValue: 96000}
	dec := g.Check(over, nil, signals(100))
	assert.True(t, dec.Blocked)

	under := broker.AccountSnapshot{TotalAsset: 100000, MarketValue: 94000}
	dec = g.Check(under, nil, signals(100))
	assert.False(t, dec.Blocked)
	assert.Len(t, dec.Allowed, 1)
}

func TestGateUpdateHotSwapsLimits(t *testing.T) {
	g := NewGate(Limits{PositionLimit: 0.95, OrderLimit: 100000}, nil)
	acct := broker.AccountSnapshot{TotalAsset: 100000, MarketValue: 0}

	dec := g.Check(acct, nil, signals(5000))
	assert.Len(t, dec.Allowed, 1)

	g.Update(Limits{PositionLimit: 0.95, OrderLimit: 1000})
	dec = g.Check(acct, nil, signals(5000))
	assert.Empty(t, dec.Allowed)
	assert.Len(t, dec.Rejected, 1)
}
