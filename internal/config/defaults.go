package config

import "strings"

// 默认值常量（与 khQuant 原始配置保持一致）。
const (
	defaultLogLevel       = "info"
	defaultDataRoot       = "data/market"
	defaultAccountID      = "test_account"
	defaultAccountType    = "SECURITY_ACCOUNT"
	defaultBacktestStart  = "20240101"
	defaultBacktestEnd    = "20241231"
	defaultInitCapital    = 1000000
	defaultCommissionRate = 0.0003
	defaultMinCommission  = 5
	defaultStampTaxRate   = 0.001
	defaultTransferFee    = 0.0001
	defaultSlippageMode   = "ratio"
	defaultTickSize       = 0.01
	defaultKlinePeriod    = "1d"
	defaultHistoryCount   = 60
	defaultTriggerType    = "bar"
	defaultStrategyName   = "dual_ma"
	defaultPositionLimit  = 0.95
	defaultOrderLimit     = 100000
	defaultLossLimit      = 0.1
	defaultRecordDB       = "data/results.db"
	defaultReportPath     = "data/reports"
	defaultServerAddr     = ":9991"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	if strings.TrimSpace(c.RunMode) == "" {
		c.RunMode = ModeBacktest
	}
	c.RunMode = strings.ToLower(strings.TrimSpace(c.RunMode))
	c.System.applyDefaults(keys)
	c.Account.applyDefaults(keys)
	c.Backtest.applyDefaults(keys)
	c.Data.applyDefaults(keys)
	c.Trigger.applyDefaults(keys)
	// bar 触发缺省跟随行情周期
	if c.Trigger.Type == "bar" && strings.TrimSpace(c.Trigger.Period) == "" {
		c.Trigger.Period = c.Data.KlinePeriod
	}
	c.Strategy.applyDefaults(keys)
	c.Risk.applyDefaults(keys)
	c.Record.applyDefaults(keys)
	c.Server.applyDefaults(keys)
}

func (s *SystemConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("system.log_level", &s.LogLevel, defaultLogLevel),
		stringFieldDefault("system.data_root", &s.DataRoot, defaultDataRoot),
	)
}

func (a *AccountConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("account.account_id", &a.AccountID, defaultAccountID),
		stringFieldDefault("account.account_type", &a.AccountType, defaultAccountType),
	)
}

func (b *BacktestConfig) applyDefaults(keys keySet) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("backtest.start_time", &b.StartTime, defaultBacktestStart),
		stringFieldDefault("backtest.end_time", &b.EndTime, defaultBacktestEnd),
		fieldDefault{
			key:   "backtest.init_capital",
			need:  func() bool { return b.InitCapital <= 0 },
			apply: func() { b.InitCapital = defaultInitCapital },
		},
	)
	b.TradeCost.applyDefaults(keys)
	b.Slippage.applyDefaults(keys)
}

func (t *TradeCost) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "backtest.trade_cost.commission_rate",
			need:  func() bool { return t.CommissionRate <= 0 },
			apply: func() { t.CommissionRate = defaultCommissionRate },
		},
		fieldDefault{
			key:   "backtest.trade_cost.min_commission",
			need:  func() bool { return t.MinCommission <= 0 },
			apply: func() { t.MinCommission = defaultMinCommission },
		},
		fieldDefault{
			key:   "backtest.trade_cost.stamp_tax_rate",
			need:  func() bool { return t.StampTaxRate <= 0 },
			apply: func() { t.StampTaxRate = defaultStampTaxRate },
		},
		fieldDefault{
			key:   "backtest.trade_cost.transfer_fee_rate",
			need:  func() bool { return t.TransferFeeRate <= 0 },
			apply: func() { t.TransferFeeRate = defaultTransferFee },
		},
	)
}

func (s *SlippageConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("backtest.slippage.mode", &s.Mode, defaultSlippageMode),
		fieldDefault{
			key:   "backtest.slippage.tick_size",
			need:  func() bool { return s.TickSize <= 0 },
			apply: func() { s.TickSize = defaultTickSize },
		},
	)
	s.Mode = strings.ToLower(strings.TrimSpace(s.Mode))
}

func (d *DataConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("data.kline_period", &d.KlinePeriod, defaultKlinePeriod),
		fieldDefault{
			key:   "data.history_count",
			need:  func() bool { return d.HistoryCount <= 0 },
			apply: func() { d.HistoryCount = defaultHistoryCount },
		},
	)
}

func (t *TriggerConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("trigger.type", &t.Type, defaultTriggerType),
	)
	t.Type = strings.ToLower(strings.TrimSpace(t.Type))
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("strategy.name", &s.Name, defaultStrategyName),
	)
	s.Name = strings.ToLower(strings.TrimSpace(s.Name))
}

func (r *RiskConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "risk.position_limit",
			need:  func() bool { return r.PositionLimit <= 0 },
			apply: func() { r.PositionLimit = defaultPositionLimit },
		},
		fieldDefault{
			key:   "risk.order_limit",
			need:  func() bool { return r.OrderLimit <= 0 },
			apply: func() { r.OrderLimit = defaultOrderLimit },
		},
		fieldDefault{
			key:   "risk.loss_limit",
			need:  func() bool { return r.LossLimit <= 0 },
			apply: func() { r.LossLimit = defaultLossLimit },
		},
	)
}

func (r *RecordConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("record.db_path", &r.DBPath, defaultRecordDB),
		stringFieldDefault("record.report_path", &r.ReportPath, defaultReportPath),
	)
}

func (s *ServerConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("server.addr", &s.Addr, defaultServerAddr),
	)
}

// applyFieldDefaults 按顺序应用字段默认值；配置文件中显式设置过的 key 不覆盖。
func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
