package broker

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"khquant/internal/market"
)

// AccountSnapshot 是账户的只读快照。
// FrozenCash 是 Cash 中被在途委托占用的部分（live 转发时冻结）。
type AccountSnapshot struct {
	Cash        float64 `json:"cash"`
	FrozenCash  float64 `json:"frozen_cash"`
	MarketValue float64 `json:"market_value"`
	TotalAsset  float64 `json:"total_asset"`
}

// Position 是持仓的只读快照。
// 不变量：0 ≤ UsableVolume ≤ TotalVolume；TotalVolume 归零时记录被删除。
type Position struct {
	Code         string  `json:"code"`
	TotalVolume  int64   `json:"volume"`
	UsableVolume int64   `json:"can_use_volume"`
	AvgPrice     float64 `json:"avg_price"`
	MarketValue  float64 `json:"market_value"`
}

type position struct {
	code      string
	total     int64
	usable    int64
	avgPrice  decimal.Decimal
	lastPrice decimal.Decimal
}

// Ledger 持有资金、持仓和委托/成交历史。
// 只能通过 Manager 变更；对外只给出快照。
//
// T+1：当日买入只进入 total，不进入 usable；由引擎在日终调用
// PromoteSettled 解锁。白名单内的 T+0 标的买入即解锁。
type Ledger struct {
	mu        sync.RWMutex
	cash      decimal.Decimal
	frozen    decimal.Decimal
	positions map[string]*position
	t0        *market.T0List

	orders []Order
	trades []Trade
}

// NewLedger 以初始资金构造账本。t0 可为 nil 表示全部按 T+1 处理。
func NewLedger(initCapital float64, t0 *market.T0List) *Ledger {
	return &Ledger{
		cash:      decimal.NewFromFloat(initCapital).Round(moneyDecimals),
		frozen:    decimal.Zero,
		positions: make(map[string]*position),
		t0:        t0,
	}
}

// ApplyBuy 入账一笔买入成交：现金减少 成交金额+成本，持仓增加。
// 资金不足返回 ErrInsufficientFunds 且不做任何变更。
func (l *Ledger) ApplyBuy(code string, volume int64, res ExecutionResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	need := res.Amount.Add(res.TotalCost)
	if l.cash.LessThan(need) {
		return ErrInsufficientFunds
	}
	l.cash = l.cash.Sub(need)
	pos, ok := l.positions[code]
	if !ok {
		pos = &position{code: code, avgPrice: res.ActualPrice, lastPrice: res.ActualPrice}
		l.positions[code] = pos
	} else {
		// 加权平均：avg' = (avg×total + actual×vol) / (total+vol)
		oldVal := pos.avgPrice.Mul(decimal.NewFromInt(pos.total))
		newVal := res.ActualPrice.Mul(decimal.NewFromInt(volume))
		pos.avgPrice = oldVal.Add(newVal).Div(decimal.NewFromInt(pos.total + volume))
	}
	pos.total += volume
	pos.lastPrice = res.ActualPrice
	if l.t0.Contains(code) {
		pos.usable += volume
	}
	return nil
}

// ApplySell 入账一笔卖出成交：可用持仓减少，现金增加 成交金额−成本。
// 可用持仓不足返回 ErrInsufficientPosition；成本吃穿现金返回
// ErrInsufficientFunds。失败时不做任何变更。
func (l *Ledger) ApplySell(code string, volume int64, res ExecutionResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	pos, ok := l.positions[code]
	if !ok || pos.usable < volume {
		return ErrInsufficientPosition
	}
	proceeds := res.Amount.Sub(res.TotalCost)
	if l.cash.Add(proceeds).IsNegative() {
		return ErrInsufficientFunds
	}
	l.cash = l.cash.Add(proceeds)
	pos.total -= volume
	pos.usable -= volume
	pos.lastPrice = res.ActualPrice
	if pos.total == 0 {
		delete(l.positions, code)
	}
	return nil
}

// FreezeFunds 为在途买入委托冻结资金。可用资金（cash−frozen）不足时
// 返回 ErrInsufficientFunds 且不做任何变更。
func (l *Ledger) FreezeFunds(amount decimal.Decimal) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cash.Sub(l.frozen).LessThan(amount) {
		return ErrInsufficientFunds
	}
	l.frozen = l.frozen.Add(amount)
	return nil
}

// ReleaseFunds 释放冻结资金，用于柜台拒单、撤单或成交回报落地。
func (l *Ledger) ReleaseFunds(amount decimal.Decimal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.frozen = l.frozen.Sub(amount)
	if l.frozen.IsNegative() {
		l.frozen = decimal.Zero
	}
}

// UsableVolume 返回某标的的当前可卖股数。
func (l *Ledger) UsableVolume(code string) int64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if pos, ok := l.positions[code]; ok {
		return pos.usable
	}
	return 0
}

// PromoteSettled 在日界解锁 T+1 持仓：全部 total 变为可卖。
func (l *Ledger) PromoteSettled() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, pos := range l.positions {
		pos.usable = pos.total
	}
}

// MarkPrice 用最新行情更新持仓估值参考价。
func (l *Ledger) MarkPrice(code string, price float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if pos, ok := l.positions[code]; ok && price > 0 {
		pos.lastPrice = decimal.NewFromFloat(price)
	}
}

// Snapshot 返回账户只读快照。
func (l *Ledger) Snapshot() AccountSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	mv := decimal.Zero
	for _, pos := range l.positions {
		mv = mv.Add(pos.lastPrice.Mul(decimal.NewFromInt(pos.total)))
	}
	mv = mv.Round(moneyDecimals)
	cash := l.cash.InexactFloat64()
	return AccountSnapshot{
		Cash:        cash,
		FrozenCash:  l.frozen.InexactFloat64(),
		MarketValue: mv.InexactFloat64(),
		TotalAsset:  l.cash.Add(mv).InexactFloat64(),
	}
}

// Positions 返回全部持仓快照。
func (l *Ledger) Positions() map[string]Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[string]Position, len(l.positions))
	for code, pos := range l.positions {
		out[code] = l.snapshotPosition(pos)
	}
	return out
}

func (l *Ledger) snapshotPosition(pos *position) Position {
	mv := pos.lastPrice.Mul(decimal.NewFromInt(pos.total)).Round(moneyDecimals)
	return Position{
		Code:         pos.code,
		TotalVolume:  pos.total,
		UsableVolume: pos.usable,
		AvgPrice:     pos.avgPrice.Round(4).InexactFloat64(),
		MarketValue:  mv.InexactFloat64(),
	}
}

func (l *Ledger) recordOrder(o Order) {
	l.mu.Lock()
	l.orders = append(l.orders, o)
	l.mu.Unlock()
}

func (l *Ledger) recordTrade(t Trade) {
	l.mu.Lock()
	l.trades = append(l.trades, t)
	l.mu.Unlock()
}

// Orders 返回按时间顺序的委托历史副本。
func (l *Ledger) Orders() []Order {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Order, len(l.orders))
	copy(out, l.orders)
	return out
}

// Trades 返回按时间顺序的成交历史副本。
func (l *Ledger) Trades() []Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Codes 返回当前持仓代码（排序后），用于确定性遍历。
func (l *Ledger) Codes() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	codes := make([]string, 0, len(l.positions))
	for code := range l.positions {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
