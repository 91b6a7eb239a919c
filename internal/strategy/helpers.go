// Package strategy 提供策略开发的工具函数和内置示例策略。
package strategy

import (
	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"

	"khquant/internal/broker"
	"khquant/internal/engine"
	"khquant/internal/market"
)

// MaxBuyVolume 计算给定资金在含滑点和全部交易成本后最多能买入的股数
// （一手的整数倍）。从理论上限逐手回退，保证 成交金额+成本 ≤ cash。
func MaxBuyVolume(cash, price float64, cost *broker.CostModel, code string) int64 {
	if cash <= 0 || price <= 0 || cost == nil {
		return 0
	}
	budget := decimal.NewFromFloat(cash)
	lots := int64(cash/(price*market.LotSize)) + 1
	for lots > 0 {
		vol := lots * market.LotSize
		res := cost.ComputeExecution(price, broker.Buy, code, vol)
		if res.Amount.Add(res.TotalCost).LessThanOrEqual(budget) {
			return vol
		}
		lots--
	}
	return 0
}

// BuySignal 按比例或绝对股数生成买入信号。
// ratio ≤ 1 表示动用可用资金的比例；ratio > 1 表示绝对股数（向下取整手）。
// 算不出可成交股数时返回 false。
func BuySignal(snap *engine.Context, code string, price, ratio float64, cost *broker.CostModel, reason string) (broker.Signal, bool) {
	if price <= 0 || ratio <= 0 {
		return broker.Signal{}, false
	}
	var volume int64
	if ratio <= 1 {
		volume = MaxBuyVolume(snap.Account.Cash*ratio, price, cost, code)
	} else {
		volume = int64(ratio) / market.LotSize * market.LotSize
	}
	if volume <= 0 {
		return broker.Signal{}, false
	}
	return broker.Signal{
		Code:      code,
		Action:    broker.Buy,
		Volume:    volume,
		PriceHint: price,
		Reason:    reason,
		Timestamp: snap.Time.Timestamp,
	}, true
}

// SellSignal 按比例或绝对股数生成卖出信号。
// ratio ≥ 1 卖出全部可用持仓；ratio < 1 卖出可用持仓的比例（向下取整手）；
// ratio > 1 的非比例值视为绝对股数。无可卖持仓时返回 false。
func SellSignal(snap *engine.Context, code string, price, ratio float64, reason string) (broker.Signal, bool) {
	if price <= 0 || ratio <= 0 {
		return broker.Signal{}, false
	}
	pos, ok := snap.Positions[code]
	if !ok || pos.UsableVolume <= 0 {
		return broker.Signal{}, false
	}
	var volume int64
	switch {
	case ratio == 1:
		volume = pos.UsableVolume
	case ratio < 1:
		volume = int64(float64(pos.UsableVolume)*ratio) / market.LotSize * market.LotSize
	default:
		volume = int64(ratio) / market.LotSize * market.LotSize
		if volume > pos.UsableVolume {
			volume = pos.UsableVolume
		}
	}
	if volume <= 0 {
		return broker.Signal{}, false
	}
	return broker.Signal{
		Code:      code,
		Action:    broker.Sell,
		Volume:    volume,
		PriceHint: price,
		Reason:    reason,
		Timestamp: snap.Time.Timestamp,
	}, true
}

// Closes 提取收盘价序列。
func Closes(bars []market.Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// SMA 计算简单移动平均。前 period-1 个元素无效（为 0）。
func SMA(values []float64, period int) []float64 {
	if len(values) < period || period <= 0 {
		return nil
	}
	return talib.Sma(values, period)
}
