package config

import (
	"fmt"
	"strings"

	"khquant/internal/market"
)

// validate 对配置进行基础校验。配置错误属于致命错误，直接拒绝启动。
func validate(c *Config) error {
	switch c.RunMode {
	case ModeBacktest, ModeSimulate, ModeLive:
	default:
		return fmt.Errorf("run_mode 非法: %s（应为 backtest/simulate/live）", c.RunMode)
	}
	if err := c.Backtest.validate(); err != nil {
		return err
	}
	if err := c.Data.validate(); err != nil {
		return err
	}
	if err := c.Trigger.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	return nil
}

func (b *BacktestConfig) validate() error {
	start, err := market.ParseDate(b.StartTime)
	if err != nil {
		return fmt.Errorf("backtest.start_time %w", err)
	}
	end, err := market.ParseDate(b.EndTime)
	if err != nil {
		return fmt.Errorf("backtest.end_time %w", err)
	}
	if end < start {
		return fmt.Errorf("backtest.end_time 早于 start_time: %s < %s", b.EndTime, b.StartTime)
	}
	switch b.Slippage.Mode {
	case "tick":
		if b.Slippage.TickCount < 0 {
			return fmt.Errorf("backtest.slippage.tick_count 不能为负")
		}
	case "ratio":
		if b.Slippage.Ratio < 0 {
			return fmt.Errorf("backtest.slippage.ratio 不能为负")
		}
	default:
		return fmt.Errorf("backtest.slippage.mode 非法: %s（应为 tick/ratio）", b.Slippage.Mode)
	}
	if b.TradeCost.FlowFee < 0 {
		return fmt.Errorf("backtest.trade_cost.flow_fee 不能为负")
	}
	return nil
}

func (d *DataConfig) validate() error {
	if _, err := market.ParsePeriod(d.KlinePeriod); err != nil {
		return fmt.Errorf("data.kline_period %w", err)
	}
	if len(d.StockList) == 0 {
		return fmt.Errorf("data.stock_list 不能为空")
	}
	for _, code := range d.StockList {
		if market.VenueOf(code) == market.VenueUnknown {
			return fmt.Errorf("data.stock_list 含无法识别的代码: %s（应形如 600519.SH）", code)
		}
	}
	return nil
}

func (t *TriggerConfig) validate() error {
	switch t.Type {
	case "tick":
	case "bar":
		if _, err := market.ParsePeriod(t.Period); err != nil {
			return fmt.Errorf("trigger.period %w", err)
		}
	case "schedule":
		if len(t.Schedule) == 0 {
			return fmt.Errorf("trigger.schedule 不能为空")
		}
		for _, at := range t.Schedule {
			if _, err := ParseClock(at); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("trigger.type 非法: %s（应为 tick/bar/schedule）", t.Type)
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.PositionLimit <= 0 || r.PositionLimit > 1 {
		return fmt.Errorf("risk.position_limit 必须在 (0, 1] 内")
	}
	if r.OrderLimit <= 0 {
		return fmt.Errorf("risk.order_limit 必须为正")
	}
	if r.LossLimit <= 0 || r.LossLimit > 1 {
		return fmt.Errorf("risk.loss_limit 必须在 (0, 1] 内")
	}
	return nil
}

// ParseClock 把 "HH:MM:SS"（或 "HH:MM"）解析为当日秒偏移。
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("trigger.schedule 时刻格式错误: %s（应为 HH:MM:SS）", s)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		var n int
		if _, err := fmt.Sscanf(p, "%d", &n); err != nil || n < 0 {
			return 0, fmt.Errorf("trigger.schedule 时刻格式错误: %s", s)
		}
		nums[i] = n
	}
	h, m, sec := nums[0], nums[1], nums[2]
	if h > 23 || m > 59 || sec > 59 {
		return 0, fmt.Errorf("trigger.schedule 时刻越界: %s", s)
	}
	return h*3600 + m*60 + sec, nil
}
