package broker

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Direction 是交易方向。
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// Mode 是运行模式。
type Mode string

const (
	ModeBacktest Mode = "backtest"
	ModeSimulate Mode = "simulate"
	ModeLive     Mode = "live"
)

// Signal 是策略产出的交易意图，由 Manager 消费且只消费一次。
type Signal struct {
	Code      string    `json:"code"`
	Action    Direction `json:"action"`
	Volume    int64     `json:"volume"` // 股数，须为一手（100 股）的整数倍
	PriceHint float64   `json:"price"`  // 委托参考价
	Reason    string    `json:"reason,omitempty"`
	Timestamp int64     `json:"timestamp,omitempty"`
}

// ExecutionResult 是成本模型的输出，创建后不再修改。
// 所有金额均已按分四舍五入。
type ExecutionResult struct {
	ActualPrice decimal.Decimal `json:"actual_price"` // 含滑点的成交价
	Amount      decimal.Decimal `json:"amount"`       // 成交金额 = 成交价 × 股数
	Commission  decimal.Decimal `json:"commission"`
	StampTax    decimal.Decimal `json:"stamp_tax"`
	TransferFee decimal.Decimal `json:"transfer_fee"`
	FlowFee     decimal.Decimal `json:"flow_fee"`
	TotalCost   decimal.Decimal `json:"total_cost"`
}

// OrderStatus 是委托状态。回测中创建与成交是原子的，不存在挂单。
type OrderStatus string

const (
	OrderPending  OrderStatus = "pending"
	OrderFilled   OrderStatus = "filled"
	OrderRejected OrderStatus = "rejected"
)

// Order 记录一次委托。
type Order struct {
	ID        string      `json:"id"`
	Code      string      `json:"code"`
	Action    Direction   `json:"action"`
	Volume    int64       `json:"volume"`
	Price     float64     `json:"price"`
	Status    OrderStatus `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// Trade 是已成交委托的不可变记录。
type Trade struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Code        string    `json:"code"`
	Action      Direction `json:"action"`
	Volume      int64     `json:"volume"`
	Price       float64   `json:"price"`
	Amount      float64   `json:"amount"`
	Commission  float64   `json:"commission"`
	StampTax    float64   `json:"stamp_tax"`
	TransferFee float64   `json:"transfer_fee"`
	FlowFee     float64   `json:"flow_fee"`
	TotalCost   float64   `json:"total_cost"`
	Timestamp   int64     `json:"timestamp"`
}

// OutcomeStatus 标记单条信号的处理结果。
type OutcomeStatus string

const (
	OutcomeFilled    OutcomeStatus = "filled"
	OutcomeRejected  OutcomeStatus = "rejected"
	OutcomeForwarded OutcomeStatus = "forwarded" // live 模式：已转发外部柜台
)

// Outcome 记录一条信号的完整处理结果，接受与拒绝都不会被静默丢弃。
type Outcome struct {
	Signal Signal           `json:"signal"`
	Status OutcomeStatus    `json:"status"`
	Reason string           `json:"reason,omitempty"`
	Order  Order            `json:"order"`
	Trade  *Trade           `json:"trade,omitempty"`
	Result *ExecutionResult `json:"result,omitempty"`
}

// 信号级可恢复错误：拒绝该信号并继续处理后续信号。
var (
	ErrInvalidVolume        = errors.New("委托股数非法")
	ErrNotLotMultiple       = errors.New("委托股数不是一手的整数倍")
	ErrInsufficientFunds    = errors.New("资金不足")
	ErrInsufficientPosition = errors.New("可用持仓不足")
	ErrInstrumentHalted     = errors.New("标的停牌")
)

// Callbacks 是通知回调边界，所有回调都是 fire-and-forget，
// 核心不等待也不依赖其返回。未设置的回调直接跳过。
type Callbacks struct {
	OnOrder  func(Order)
	OnTrade  func(Trade)
	OnReject func(Signal, string)
	OnLog    func(string)
}

func (c Callbacks) emitOrder(o Order) {
	if c.OnOrder != nil {
		c.OnOrder(o)
	}
}

func (c Callbacks) emitTrade(t Trade) {
	if c.OnTrade != nil {
		c.OnTrade(t)
	}
}

func (c Callbacks) emitReject(s Signal, reason string) {
	if c.OnReject != nil {
		c.OnReject(s, reason)
	}
}

// EmitReject 供引擎对风控拒绝的信号发出通知。
func (c Callbacks) EmitReject(s Signal, reason string) {
	c.emitReject(s, reason)
}

// EmitLog 供引擎转发 on_log 通知。
func (c Callbacks) EmitLog(msg string) {
	if c.OnLog != nil {
		c.OnLog(msg)
	}
}
