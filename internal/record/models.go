package record

import (
	"gorm.io/datatypes"
)

// RunStatus 是一次运行记录的终态。
type RunStatus string

const (
	RunStatusRunning    RunStatus = "running"
	RunStatusDone       RunStatus = "done"
	RunStatusFailed     RunStatus = "failed"
	RunStatusIncomplete RunStatus = "incomplete"
)

// RunModel 记录一次引擎运行的元信息与最终统计。
type RunModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	RunID         string         `gorm:"column:run_id;uniqueIndex"`
	Mode          string         `gorm:"column:mode"`
	StrategyName  string         `gorm:"column:strategy_name"`
	StartTime     string         `gorm:"column:start_time"`
	EndTime       string         `gorm:"column:end_time"`
	InitCapital   float64        `gorm:"column:init_capital"`
	FinalAsset    float64        `gorm:"column:final_asset"`
	TotalReturn   float64        `gorm:"column:total_return"`
	MaxDrawdown   float64        `gorm:"column:max_drawdown"`
	TradeCount    int            `gorm:"column:trade_count"`
	Status        RunStatus      `gorm:"column:status"`
	Message       string         `gorm:"column:message"`
	ConfigJSON    datatypes.JSON `gorm:"column:config_json;type:TEXT"`
	StatsJSON     datatypes.JSON `gorm:"column:stats_json;type:TEXT"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (RunModel) TableName() string { return "runs" }

// OrderModel 持久化单条委托。
type OrderModel struct {
	ID        int64   `gorm:"column:id;primaryKey"`
	RunID     string  `gorm:"column:run_id;index"`
	OrderID   string  `gorm:"column:order_id;uniqueIndex"`
	Code      string  `gorm:"column:code"`
	Action    string  `gorm:"column:action"`
	Volume    int64   `gorm:"column:volume"`
	Price     float64 `gorm:"column:price"`
	Status    string  `gorm:"column:status"`
	Reason    string  `gorm:"column:reason"`
	Timestamp int64   `gorm:"column:timestamp;index"`
}

func (OrderModel) TableName() string { return "orders" }

// TradeModel 持久化单笔成交及其成本拆分。
type TradeModel struct {
	ID          int64   `gorm:"column:id;primaryKey"`
	RunID       string  `gorm:"column:run_id;index"`
	TradeID     string  `gorm:"column:trade_id;uniqueIndex"`
	OrderID     string  `gorm:"column:order_id"`
	Code        string  `gorm:"column:code"`
	Action      string  `gorm:"column:action"`
	Volume      int64   `gorm:"column:volume"`
	Price       float64 `gorm:"column:price"`
	Amount      float64 `gorm:"column:amount"`
	Commission  float64 `gorm:"column:commission"`
	StampTax    float64 `gorm:"column:stamp_tax"`
	TransferFee float64 `gorm:"column:transfer_fee"`
	FlowFee     float64 `gorm:"column:flow_fee"`
	TotalCost   float64 `gorm:"column:total_cost"`
	Timestamp   int64   `gorm:"column:timestamp;index"`
}

func (TradeModel) TableName() string { return "trades" }

// SnapshotModel 持久化每个周期的账户快照，用于权益曲线。
type SnapshotModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	RunID         string         `gorm:"column:run_id;index"`
	Timestamp     int64          `gorm:"column:timestamp;index"`
	Cash          float64        `gorm:"column:cash"`
	MarketValue   float64        `gorm:"column:market_value"`
	TotalAsset    float64        `gorm:"column:total_asset"`
	Drawdown      float64        `gorm:"column:drawdown"`
	PositionsJSON datatypes.JSON `gorm:"column:positions_json;type:TEXT"`
}

func (SnapshotModel) TableName() string { return "snapshots" }
