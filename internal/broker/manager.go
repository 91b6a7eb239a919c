package broker

import (
	"fmt"

	"github.com/google/uuid"

	"khquant/internal/logger"
	"khquant/internal/market"
)

// VenueGateway 是外部柜台接口。live 模式下 Manager 只做转发，
// 真实成交回报异步经由通知回调边界返回，不在本层同步处理。
type VenueGateway interface {
	PlaceOrder(order Order) error
}

// Manager 消费策略信号：计算成本、校验资金与持仓、变更账本并发出通知。
// 账本的全部变更都经过它；一条信号要么完整入账要么完全不入账。
type Manager struct {
	mode      Mode
	cost      *CostModel
	ledger    *Ledger
	venue     VenueGateway
	callbacks Callbacks
}

// NewManager 构造交易管理器。live 模式必须提供 venue。
func NewManager(mode Mode, cost *CostModel, ledger *Ledger, venue VenueGateway, cb Callbacks) (*Manager, error) {
	if cost == nil || ledger == nil {
		return nil, fmt.Errorf("cost model / ledger 不能为空")
	}
	if mode == ModeLive && venue == nil {
		return nil, fmt.Errorf("live 模式必须配置交易柜台")
	}
	switch mode {
	case ModeBacktest, ModeSimulate, ModeLive:
	default:
		return nil, fmt.Errorf("运行模式非法: %s", mode)
	}
	return &Manager{mode: mode, cost: cost, ledger: ledger, venue: venue, callbacks: cb}, nil
}

// Ledger 返回底层账本（只应用于读取快照）。
func (m *Manager) Ledger() *Ledger {
	return m.ledger
}

// ProcessSignals 按序处理一批信号并返回同序的处理结果。
// bars 是本周期各标的的行情，用于停牌检查；信号级错误只拒绝该条，
// 不中断批次。
func (m *Manager) ProcessSignals(ts int64, bars map[string]market.Bar, signals []Signal) []Outcome {
	outcomes := make([]Outcome, 0, len(signals))
	for _, sig := range signals {
		outcomes = append(outcomes, m.processOne(ts, bars, sig))
	}
	return outcomes
}

func (m *Manager) processOne(ts int64, bars map[string]market.Bar, sig Signal) Outcome {
	if sig.Volume <= 0 {
		logger.Warnf("信号股数非法，已忽略: code=%s action=%s volume=%d", sig.Code, sig.Action, sig.Volume)
		return m.reject(ts, sig, ErrInvalidVolume.Error())
	}
	// 整手约束只限买入，卖出允许清掉零股
	if sig.Action == Buy && sig.Volume%market.LotSize != 0 {
		logger.Warnf("信号股数不是整手，已忽略: code=%s volume=%d", sig.Code, sig.Volume)
		return m.reject(ts, sig, ErrNotLotMultiple.Error())
	}
	if bar, ok := bars[sig.Code]; ok && bar.Halted() {
		return m.reject(ts, sig, ErrInstrumentHalted.Error())
	}

	res := m.cost.ComputeExecution(sig.PriceHint, sig.Action, sig.Code, sig.Volume)

	if m.mode == ModeLive {
		return m.forward(ts, sig, res)
	}
	return m.fill(ts, sig, res)
}

// fill 处理 backtest/simulate：按成交价全额立即成交。
func (m *Manager) fill(ts int64, sig Signal, res ExecutionResult) Outcome {
	var err error
	switch sig.Action {
	case Buy:
		err = m.ledger.ApplyBuy(sig.Code, sig.Volume, res)
	case Sell:
		err = m.ledger.ApplySell(sig.Code, sig.Volume, res)
	default:
		err = fmt.Errorf("未知交易方向: %s", sig.Action)
	}
	if err != nil {
		logger.Warnf("信号被拒绝: code=%s action=%s volume=%d 原因=%v", sig.Code, sig.Action, sig.Volume, err)
		return m.reject(ts, sig, err.Error())
	}

	price := res.ActualPrice.InexactFloat64()
	order := Order{
		ID:        uuid.NewString(),
		Code:      sig.Code,
		Action:    sig.Action,
		Volume:    sig.Volume,
		Price:     price,
		Status:    OrderFilled,
		Timestamp: ts,
	}
	trade := Trade{
		ID:          uuid.NewString(),
		OrderID:     order.ID,
		Code:        sig.Code,
		Action:      sig.Action,
		Volume:      sig.Volume,
		Price:       price,
		Amount:      res.Amount.InexactFloat64(),
		Commission:  res.Commission.InexactFloat64(),
		StampTax:    res.StampTax.InexactFloat64(),
		TransferFee: res.TransferFee.InexactFloat64(),
		FlowFee:     res.FlowFee.InexactFloat64(),
		TotalCost:   res.TotalCost.InexactFloat64(),
		Timestamp:   ts,
	}
	m.ledger.recordOrder(order)
	m.ledger.recordTrade(trade)
	m.callbacks.emitOrder(order)
	m.callbacks.emitTrade(trade)
	logger.Infof("成交: %s %s %d股 @%.3f 成本=%.2f", sig.Code, sig.Action, sig.Volume, price, trade.TotalCost)
	return Outcome{Signal: sig, Status: OutcomeFilled, Order: order, Trade: &trade, Result: &res}
}

// forward 处理 live：转发信号与参考价，成交状态异步回报。
// 买入按预估金额冻结资金，防止同批后续信号重复占用；
// 卖出校验可用持仓。冻结在回报落地或拒单时释放。
func (m *Manager) forward(ts int64, sig Signal, res ExecutionResult) Outcome {
	need := res.Amount.Add(res.TotalCost)
	switch sig.Action {
	case Buy:
		if err := m.ledger.FreezeFunds(need); err != nil {
			logger.Warnf("委托转发前冻结资金失败: code=%s volume=%d 原因=%v", sig.Code, sig.Volume, err)
			return m.reject(ts, sig, err.Error())
		}
	case Sell:
		if m.ledger.UsableVolume(sig.Code) < sig.Volume {
			return m.reject(ts, sig, ErrInsufficientPosition.Error())
		}
	}
	order := Order{
		ID:        uuid.NewString(),
		Code:      sig.Code,
		Action:    sig.Action,
		Volume:    sig.Volume,
		Price:     res.ActualPrice.InexactFloat64(),
		Status:    OrderPending,
		Timestamp: ts,
	}
	if err := m.venue.PlaceOrder(order); err != nil {
		if sig.Action == Buy {
			m.ledger.ReleaseFunds(need)
		}
		logger.Warnf("委托转发失败: code=%s 原因=%v", sig.Code, err)
		return m.reject(ts, sig, fmt.Sprintf("柜台转发失败: %v", err))
	}
	m.ledger.recordOrder(order)
	m.callbacks.emitOrder(order)
	return Outcome{Signal: sig, Status: OutcomeForwarded, Order: order, Result: &res}
}

func (m *Manager) reject(ts int64, sig Signal, reason string) Outcome {
	order := Order{
		ID:        uuid.NewString(),
		Code:      sig.Code,
		Action:    sig.Action,
		Volume:    sig.Volume,
		Price:     sig.PriceHint,
		Status:    OrderRejected,
		Reason:    reason,
		Timestamp: ts,
	}
	m.ledger.recordOrder(order)
	m.callbacks.emitReject(sig, reason)
	return Outcome{Signal: sig, Status: OutcomeRejected, Reason: reason, Order: order}
}
