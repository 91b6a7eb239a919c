package strategy

import (
	"context"

	"github.com/tidwall/gjson"

	"khquant/internal/broker"
	"khquant/internal/engine"
	"khquant/internal/logger"
)

// DualMA 是内置的双均线示例策略：短均线上穿长均线买入，
// 下穿卖出。参数从原始 JSON 读取，缺省值见 NewDualMA。
type DualMA struct {
	short    int
	long     int
	buyRatio float64
	cost     *broker.CostModel
}

// NewDualMA 构造双均线策略。params 是策略参数的原始 JSON
// （可为空），支持字段 short / long / buy_ratio。
func NewDualMA(params []byte, cost *broker.CostModel) *DualMA {
	s := &DualMA{short: 5, long: 20, buyRatio: 0.5, cost: cost}
	if len(params) > 0 {
		if v := gjson.GetBytes(params, "short"); v.Exists() {
			s.short = int(v.Int())
		}
		if v := gjson.GetBytes(params, "long"); v.Exists() {
			s.long = int(v.Int())
		}
		if v := gjson.GetBytes(params, "buy_ratio"); v.Exists() {
			s.buyRatio = v.Float()
		}
	}
	if s.short >= s.long {
		logger.Warnf("双均线参数异常 short=%d long=%d，恢复默认 5/20", s.short, s.long)
		s.short, s.long = 5, 20
	}
	return s
}

func (s *DualMA) OnInit(snap *engine.Context) error {
	logger.Infof("双均线策略初始化: short=%d long=%d buy_ratio=%.2f 股票池=%d",
		s.short, s.long, s.buyRatio, len(snap.Universe))
	return nil
}

func (s *DualMA) OnDayOpen(*engine.Context) error { return nil }

func (s *DualMA) OnDayClose(*engine.Context) error { return nil }

// OnBar 对股票池中每只标的判断均线交叉。历史窗口取 long+1 条，
// 用倒数第二个点和最后一个点判断穿越方向。
func (s *DualMA) OnBar(snap *engine.Context) ([]broker.Signal, error) {
	history, err := snap.History(context.Background(), snap.Universe, s.long+1)
	if err != nil {
		return nil, err
	}
	var signals []broker.Signal
	for _, code := range snap.Universe {
		bar, ok := snap.Bar(code)
		if !ok || bar.Halted() {
			continue
		}
		closes := Closes(history[code])
		closes = append(closes, bar.Close)
		if len(closes) < s.long+1 {
			continue
		}
		shortMA := SMA(closes, s.short)
		longMA := SMA(closes, s.long)
		if shortMA == nil || longMA == nil {
			continue
		}
		n := len(closes)
		crossUp := shortMA[n-2] <= longMA[n-2] && shortMA[n-1] > longMA[n-1]
		crossDown := shortMA[n-2] >= longMA[n-2] && shortMA[n-1] < longMA[n-1]
		switch {
		case crossUp:
			if sig, ok := BuySignal(snap, code, bar.Close, s.buyRatio, s.cost, "短均线上穿长均线"); ok {
				signals = append(signals, sig)
			}
		case crossDown:
			if sig, ok := SellSignal(snap, code, bar.Close, 1, "短均线下穿长均线"); ok {
				signals = append(signals, sig)
			}
		}
	}
	return signals, nil
}
