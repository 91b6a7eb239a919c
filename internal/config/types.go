package config

import "strings"

// 运行模式。
const (
	ModeBacktest = "backtest"
	ModeSimulate = "simulate"
	ModeLive     = "live"
)

// Config 是 khquant 的主配置载体，对应 .kh 配置文件的各个块。
type Config struct {
	RunMode  string         `toml:"run_mode"`
	System   SystemConfig   `toml:"system"`
	Account  AccountConfig  `toml:"account"`
	Backtest BacktestConfig `toml:"backtest"`
	Data     DataConfig     `toml:"data"`
	Trigger  TriggerConfig  `toml:"trigger"`
	Strategy StrategyConfig `toml:"strategy"`
	Risk     RiskConfig     `toml:"risk"`
	Record   RecordConfig   `toml:"record"`
	Server   ServerConfig   `toml:"server"`
}

type SystemConfig struct {
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	DataRoot string `toml:"data_root"`
}

type AccountConfig struct {
	AccountID   string `toml:"account_id"`
	AccountType string `toml:"account_type"`
}

// BacktestConfig 描述回测窗口、初始资金与成本模型参数。
type BacktestConfig struct {
	StartTime   string         `toml:"start_time"` // YYYYMMDD
	EndTime     string         `toml:"end_time"`   // YYYYMMDD
	InitCapital float64        `toml:"init_capital"`
	TradeCost   TradeCost      `toml:"trade_cost"`
	Slippage    SlippageConfig `toml:"slippage"`
}

// TradeCost 是成本模型参数。
type TradeCost struct {
	CommissionRate  float64 `toml:"commission_rate"`   // 佣金费率
	MinCommission   float64 `toml:"min_commission"`    // 最低佣金（元）
	StampTaxRate    float64 `toml:"stamp_tax_rate"`    // 印花税率，仅卖出
	TransferFeeRate float64 `toml:"transfer_fee_rate"` // 过户费率，仅沪市
	FlowFee         float64 `toml:"flow_fee"`          // 流量费，每笔固定
}

// SlippageConfig 描述滑点模式。
// tick 模式：actual = raw ± tick_size*tick_count；
// ratio 模式：ratio 为双边值，单边各承担一半。
type SlippageConfig struct {
	Mode      string  `toml:"mode"` // "tick" | "ratio"
	TickSize  float64 `toml:"tick_size"`
	TickCount int     `toml:"tick_count"`
	Ratio     float64 `toml:"ratio"`
}

type DataConfig struct {
	KlinePeriod   string   `toml:"kline_period"`
	StockList     []string `toml:"stock_list"`
	StockListFile string   `toml:"stock_list_file"` // YAML 股票池文件，与 stock_list 合并
	HistoryCount  int      `toml:"history_count"`   // 策略可见的历史条数
	T0ListFile    string   `toml:"t0_list_file"`    // T+0 ETF 白名单
}

// TriggerConfig 选择策略触发方式。
type TriggerConfig struct {
	Type     string   `toml:"type"`     // "tick" | "bar" | "schedule"
	Period   string   `toml:"period"`   // bar 触发的周期
	Schedule []string `toml:"schedule"` // schedule 触发的时刻，"HH:MM:SS"
}

// StrategyConfig 选择内置策略及其参数。参数按原始 JSON 透传给策略。
type StrategyConfig struct {
	Name   string                 `toml:"name"`
	Params map[string]interface{} `toml:"params"`
}

type RiskConfig struct {
	PositionLimit float64 `toml:"position_limit"` // 持仓市值占总资产上限
	OrderLimit    int     `toml:"order_limit"`    // 单笔委托股数上限
	LossLimit     float64 `toml:"loss_limit"`     // 止损比例（占位策略使用）
	// PreTradeCheck 控制策略信号在提交交易管理器之前是否过风控闸门，
	// 检查作用于策略返回的信号批次。
	PreTradeCheck *bool `toml:"pre_trade_check"`
}

// PreTradeCheckEnabled 返回是否启用交易前风控检查（默认启用）。
func (r RiskConfig) PreTradeCheckEnabled() bool {
	if r.PreTradeCheck == nil {
		return true
	}
	return *r.PreTradeCheck
}

type RecordConfig struct {
	DBPath     string `toml:"db_path"`
	ReportPath string `toml:"report_path"`
}

type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
