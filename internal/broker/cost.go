package broker

import (
	"fmt"

	"github.com/shopspring/decimal"

	"khquant/internal/config"
	"khquant/internal/market"
)

// CostModel 根据委托参考价计算成交价与各项交易成本。
// 纯函数：相同输入永远得到相同输出，不持有可变状态。
//
// 成本构成：
//   - 佣金 = max(佣金费率 × 成交金额, 最低佣金)
//   - 印花税 = 印花税率 × 成交金额，仅卖出收取
//   - 过户费 = 过户费率 × 成交金额，仅沪市标的收取
//   - 流量费 = 每笔固定
type CostModel struct {
	commissionRate  decimal.Decimal
	minCommission   decimal.Decimal
	stampTaxRate    decimal.Decimal
	transferFeeRate decimal.Decimal
	flowFee         decimal.Decimal

	slippageMode string
	tickDelta    decimal.Decimal // tick 模式：tick_size × tick_count
	sideRatio    decimal.Decimal // ratio 模式：双边比例的一半

	priceDecimals int32
}

const moneyDecimals = 2

// NewCostModel 由配置构造成本模型。slippage.ratio 是双边（往返）值，
// 单边各承担一半。
func NewCostModel(cost config.TradeCost, slip config.SlippageConfig, priceDecimals int32) (*CostModel, error) {
	if priceDecimals <= 0 {
		priceDecimals = moneyDecimals
	}
	m := &CostModel{
		commissionRate:  decimal.NewFromFloat(cost.CommissionRate),
		minCommission:   decimal.NewFromFloat(cost.MinCommission),
		stampTaxRate:    decimal.NewFromFloat(cost.StampTaxRate),
		transferFeeRate: decimal.NewFromFloat(cost.TransferFeeRate),
		flowFee:         decimal.NewFromFloat(cost.FlowFee).Round(moneyDecimals),
		slippageMode:    slip.Mode,
		priceDecimals:   priceDecimals,
	}
	switch slip.Mode {
	case "tick":
		m.tickDelta = decimal.NewFromFloat(slip.TickSize).Mul(decimal.NewFromInt(int64(slip.TickCount)))
	case "ratio":
		m.sideRatio = decimal.NewFromFloat(slip.Ratio).Div(decimal.NewFromInt(2))
	default:
		return nil, fmt.Errorf("滑点模式非法: %s", slip.Mode)
	}
	return m, nil
}

// ComputeExecution 计算一笔委托的成交价和全部成本。
// 买入价向上滑、卖出价向下滑；成交价按池精度取整，金额按分取整。
func (m *CostModel) ComputeExecution(rawPrice float64, direction Direction, code string, volume int64) ExecutionResult {
	raw := decimal.NewFromFloat(rawPrice)
	actual := m.slip(raw, direction).Round(m.priceDecimals)
	amount := actual.Mul(decimal.NewFromInt(volume)).Round(moneyDecimals)

	commission := amount.Mul(m.commissionRate)
	if commission.LessThan(m.minCommission) {
		commission = m.minCommission
	}
	commission = commission.Round(moneyDecimals)

	stampTax := decimal.Zero
	if direction == Sell {
		stampTax = amount.Mul(m.stampTaxRate).Round(moneyDecimals)
	}

	transferFee := decimal.Zero
	if market.VenueOf(code) == market.VenueShanghai {
		transferFee = amount.Mul(m.transferFeeRate).Round(moneyDecimals)
	}

	total := commission.Add(stampTax).Add(transferFee).Add(m.flowFee)
	return ExecutionResult{
		ActualPrice: actual,
		Amount:      amount,
		Commission:  commission,
		StampTax:    stampTax,
		TransferFee: transferFee,
		FlowFee:     m.flowFee,
		TotalCost:   total,
	}
}

func (m *CostModel) slip(raw decimal.Decimal, direction Direction) decimal.Decimal {
	switch m.slippageMode {
	case "tick":
		if direction == Buy {
			return raw.Add(m.tickDelta)
		}
		return raw.Sub(m.tickDelta)
	default: // ratio
		one := decimal.NewFromInt(1)
		if direction == Buy {
			return raw.Mul(one.Add(m.sideRatio))
		}
		return raw.Mul(one.Sub(m.sideRatio))
	}
}
