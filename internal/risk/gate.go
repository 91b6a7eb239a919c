// Package risk 实现交易前的风控闸门。
//
// 三项检查按固定顺序执行并在首个失败处短路：
//  1. 持仓限制 —— 持仓市值占总资产的比例不得超过 position_limit；
//  2. 委托限制 —— 单笔委托股数不得超过 order_limit（逐条过滤）；
//  3. 止损限制 —— 可插拔策略，默认直接放行。
//
// 持仓或止损检查失败会拦截本周期的全部信号；委托检查只拒绝超限的
// 单条信号。闸门对快照只读，不变更任何状态。
package risk

import (
	"fmt"
	"sync"

	"khquant/internal/broker"
)

// PositionCheck 校验账户整体仓位。
type PositionCheck interface {
	Check(acct broker.AccountSnapshot) error
}

// OrderCheck 校验单条委托。
type OrderCheck interface {
	Check(sig broker.Signal) error
}

// LossPolicy 校验止损条件。默认实现恒通过，占位给真实策略替换，
// 替换时不需要改动闸门的控制流。
type LossPolicy interface {
	Check(acct broker.AccountSnapshot, positions map[string]broker.Position) error
}

// Rejection 记录被委托检查拒绝的单条信号。
type Rejection struct {
	Signal broker.Signal
	Reason string
}

// Decision 是一次风控检查的结果。Blocked 为 true 时本周期全部信号作废。
type Decision struct {
	Allowed  []broker.Signal
	Rejected []Rejection
	Blocked  bool
	Reason   string
}

// Gate 组合三项检查。limits 可在 live 模式下热更新。
type Gate struct {
	mu       sync.RWMutex
	position PositionCheck
	order    OrderCheck
	loss     LossPolicy
}

// Limits 是闸门的默认检查参数。
type Limits struct {
	PositionLimit float64 // 持仓比例上限 (0, 1]
	OrderLimit    int64   // 单笔委托股数上限
	LossLimit     float64 // 止损比例，仅传给止损策略
}

// NewGate 用默认检查实现构造闸门。loss 传 nil 时使用恒通过的占位策略。
func NewGate(limits Limits, loss LossPolicy) *Gate {
	if loss == nil {
		loss = PassLossPolicy{}
	}
	return &Gate{
		position: RatioPositionCheck{Limit: limits.PositionLimit},
		order:    VolumeOrderCheck{Limit: limits.OrderLimit},
		loss:     loss,
	}
}

// NewGateWithChecks 允许注入全部检查实现（测试用于观测调用次数）。
func NewGateWithChecks(position PositionCheck, order OrderCheck, loss LossPolicy) *Gate {
	if loss == nil {
		loss = PassLossPolicy{}
	}
	return &Gate{position: position, order: order, loss: loss}
}

// Update 热更新默认检查参数（止损策略保持不变）。
func (g *Gate) Update(limits Limits) {
	g.mu.Lock()
	g.position = RatioPositionCheck{Limit: limits.PositionLimit}
	g.order = VolumeOrderCheck{Limit: limits.OrderLimit}
	g.mu.Unlock()
}

// Check 对一批信号执行风控。持仓检查失败立即短路返回，
// 委托检查和止损检查不会被求值。
func (g *Gate) Check(acct broker.AccountSnapshot, positions map[string]broker.Position, signals []broker.Signal) Decision {
	g.mu.RLock()
	position, order, loss := g.position, g.order, g.loss
	g.mu.RUnlock()

	if err := position.Check(acct); err != nil {
		return Decision{Blocked: true, Reason: err.Error()}
	}
	var dec Decision
	for _, sig := range signals {
		if err := order.Check(sig); err != nil {
			dec.Rejected = append(dec.Rejected, Rejection{Signal: sig, Reason: err.Error()})
			continue
		}
		dec.Allowed = append(dec.Allowed, sig)
	}
	if err := loss.Check(acct, positions); err != nil {
		return Decision{Blocked: true, Reason: err.Error()}
	}
	return dec
}

// RatioPositionCheck 按市值占比限制仓位，预留现金缓冲。
type RatioPositionCheck struct {
	Limit float64
}

func (c RatioPositionCheck) Check(acct broker.AccountSnapshot) error {
	if c.Limit <= 0 || acct.TotalAsset <= 0 {
		return nil
	}
	ratio := acct.MarketValue / acct.TotalAsset
	if ratio > c.Limit {
		return fmt.Errorf("持仓比例 %.4f 超过上限 %.4f", ratio, c.Limit)
	}
	return nil
}

// VolumeOrderCheck 限制单笔委托股数。
type VolumeOrderCheck struct {
	Limit int64
}

func (c VolumeOrderCheck) Check(sig broker.Signal) error {
	if c.Limit <= 0 {
		return nil
	}
	if sig.Volume > c.Limit {
		return fmt.Errorf("委托股数 %d 超过上限 %d", sig.Volume, c.Limit)
	}
	return nil
}

// PassLossPolicy 是恒通过的止损占位策略。
type PassLossPolicy struct{}

func (PassLossPolicy) Check(broker.AccountSnapshot, map[string]broker.Position) error {
	return nil
}
