package record

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"khquant/internal/broker"
	"khquant/internal/logger"
	"khquant/internal/market"
)

// flushEvery 控制快照缓冲的批量落库间隔（周期数）。
const flushEvery = 500

// annualTradeDays 是年化折算用的年交易日数。
const annualTradeDays = 252.0

// RunMeta 是一次运行的元信息。
type RunMeta struct {
	RunID        string
	Mode         string
	StrategyName string
	StartTime    string
	EndTime      string
	InitCapital  float64
	ConfigJSON   []byte
}

// Recorder 逐周期累积账户快照与信号处理结果，计算权益峰值和回撤，
// 运行结束时回写统计。落库按批进行，周期路径上只做内存追加。
type Recorder struct {
	store *Store
	meta  RunMeta

	peak        float64
	maxDrawdown float64
	lastAsset   float64
	tradeCount  int

	snapBuf  []SnapshotModel
	orderBuf []OrderModel
	tradeBuf []TradeModel
}

// NewRecorder 创建记录器并落一条 running 状态的运行记录。
func NewRecorder(store *Store, meta RunMeta) (*Recorder, error) {
	now := time.Now().Unix()
	run := &RunModel{
		RunID:         meta.RunID,
		Mode:          meta.Mode,
		StrategyName:  meta.StrategyName,
		StartTime:     meta.StartTime,
		EndTime:       meta.EndTime,
		InitCapital:   meta.InitCapital,
		Status:        RunStatusRunning,
		ConfigJSON:    datatypes.JSON(meta.ConfigJSON),
		CreatedAtUnix: now,
		UpdatedAtUnix: now,
	}
	if err := store.CreateRun(run); err != nil {
		return nil, err
	}
	return &Recorder{
		store:     store,
		meta:      meta,
		peak:      meta.InitCapital,
		lastAsset: meta.InitCapital,
	}, nil
}

// RecordCycle 记录一个周期：更新回撤簿记并缓冲快照和处理结果。
func (r *Recorder) RecordCycle(ts int64, acct broker.AccountSnapshot, positions map[string]broker.Position, outcomes []broker.Outcome) {
	if acct.TotalAsset > r.peak {
		r.peak = acct.TotalAsset
	}
	drawdown := 0.0
	if r.peak > 0 {
		drawdown = (r.peak - acct.TotalAsset) / r.peak
	}
	if drawdown > r.maxDrawdown {
		r.maxDrawdown = drawdown
	}
	r.lastAsset = acct.TotalAsset

	posJSON, _ := json.Marshal(positions)
	r.snapBuf = append(r.snapBuf, SnapshotModel{
		RunID:         r.meta.RunID,
		Timestamp:     ts,
		Cash:          acct.Cash,
		MarketValue:   acct.MarketValue,
		TotalAsset:    acct.TotalAsset,
		Drawdown:      drawdown,
		PositionsJSON: datatypes.JSON(posJSON),
	})

	for _, oc := range outcomes {
		r.orderBuf = append(r.orderBuf, OrderModel{
			RunID:     r.meta.RunID,
			OrderID:   oc.Order.ID,
			Code:      oc.Order.Code,
			Action:    string(oc.Order.Action),
			Volume:    oc.Order.Volume,
			Price:     oc.Order.Price,
			Status:    string(oc.Order.Status),
			Reason:    oc.Order.Reason,
			Timestamp: oc.Order.Timestamp,
		})
		if oc.Trade != nil {
			t := oc.Trade
			r.tradeCount++
			r.tradeBuf = append(r.tradeBuf, TradeModel{
				RunID:       r.meta.RunID,
				TradeID:     t.ID,
				OrderID:     t.OrderID,
				Code:        t.Code,
				Action:      string(t.Action),
				Volume:      t.Volume,
				Price:       t.Price,
				Amount:      t.Amount,
				Commission:  t.Commission,
				StampTax:    t.StampTax,
				TransferFee: t.TransferFee,
				FlowFee:     t.FlowFee,
				TotalCost:   t.TotalCost,
				Timestamp:   t.Timestamp,
			})
		}
	}
	if len(r.snapBuf) >= flushEvery {
		r.flush()
	}
}

// Finish 落盘全部缓冲并回写运行终态。
func (r *Recorder) Finish(completed bool, message string) {
	r.flush()
	status := RunStatusDone
	if !completed {
		status = RunStatusFailed
	}
	totalReturn := 0.0
	if r.meta.InitCapital > 0 {
		totalReturn = (r.lastAsset - r.meta.InitCapital) / r.meta.InitCapital
	}
	stats := map[string]interface{}{
		"final_asset":  r.lastAsset,
		"total_return": totalReturn,
		"max_drawdown": r.maxDrawdown,
		"peak_asset":   r.peak,
		"trade_count":  r.tradeCount,
	}
	if days := r.tradeDays(); days > 0 {
		stats["trade_days"] = days
		stats["annual_return"] = totalReturn * annualTradeDays / float64(days)
	}
	statsJSON, _ := json.Marshal(stats)
	err := r.store.FinishRun(&RunModel{
		RunID:         r.meta.RunID,
		FinalAsset:    r.lastAsset,
		TotalReturn:   totalReturn,
		MaxDrawdown:   r.maxDrawdown,
		TradeCount:    r.tradeCount,
		Status:        status,
		Message:       message,
		StatsJSON:     datatypes.JSON(statsJSON),
		UpdatedAtUnix: time.Now().Unix(),
	})
	if err != nil {
		logger.Errorf("回写运行记录失败: run=%s err=%v", r.meta.RunID, err)
		return
	}
	logger.Infof("运行记录已落库: run=%s status=%s 收益率=%.4f 最大回撤=%.4f 成交=%d",
		r.meta.RunID, status, totalReturn, r.maxDrawdown, r.tradeCount)
}

// tradeDays 按交易日历统计回测窗口的交易日数，日期非法时返回 0。
func (r *Recorder) tradeDays() int {
	start, err := market.ParseDate(r.meta.StartTime)
	if err != nil {
		return 0
	}
	end, err := market.ParseDate(r.meta.EndTime)
	if err != nil {
		return 0
	}
	return market.TradeDayCount(start, end)
}

func (r *Recorder) flush() {
	if err := r.store.SaveSnapshots(r.snapBuf); err != nil {
		logger.Errorf("快照落库失败: %v", err)
	}
	if err := r.store.SaveOrders(r.orderBuf); err != nil {
		logger.Errorf("委托落库失败: %v", err)
	}
	if err := r.store.SaveTrades(r.tradeBuf); err != nil {
		logger.Errorf("成交落库失败: %v", err)
	}
	r.snapBuf = r.snapBuf[:0]
	r.orderBuf = r.orderBuf[:0]
	r.tradeBuf = r.tradeBuf[:0]
}
