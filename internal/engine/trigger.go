package engine

import (
	"fmt"
	"sort"

	"khquant/internal/config"
	"khquant/internal/market"
)

// Trigger 决定某个时间戳是否应当调用策略。
// 实现自行维护触发簿记，生命周期与一次引擎运行相同。
type Trigger interface {
	// ShouldTrigger 判断本周期是否触发。对同一引擎运行，
	// 时间戳严格递增地依次传入。
	ShouldTrigger(ts int64, bars map[string]market.Bar) bool
	// DataPeriod 返回策略上下文应携带的行情粒度。
	DataPeriod() market.Period
}

// NewTrigger 按配置构造触发器。base 是引擎驱动数据的周期。
func NewTrigger(cfg config.TriggerConfig, base market.Period) (Trigger, error) {
	switch cfg.Type {
	case "tick":
		return &TickTrigger{period: base}, nil
	case "bar":
		p, err := market.ParsePeriod(cfg.Period)
		if err != nil {
			return nil, err
		}
		return NewBarTrigger(p), nil
	case "schedule":
		offsets := make([]int, 0, len(cfg.Schedule))
		for _, at := range cfg.Schedule {
			sec, err := config.ParseClock(at)
			if err != nil {
				return nil, err
			}
			offsets = append(offsets, sec)
		}
		return NewScheduleTrigger(base, offsets), nil
	default:
		return nil, fmt.Errorf("触发器类型非法: %s", cfg.Type)
	}
}

// TickTrigger 每条观测都触发一次。
type TickTrigger struct {
	period market.Period
}

func (t *TickTrigger) ShouldTrigger(int64, map[string]market.Bar) bool {
	return true
}

func (t *TickTrigger) DataPeriod() market.Period {
	return t.period
}

// BarTrigger 每个周期桶只触发一次：记录各标的最近一次触发的桶起点，
// 任一标的跨入新桶即触发；同一桶内的后续观测不再触发。
// 日期变化时清空桶状态，保证跨日首条观测必然触发。
type BarTrigger struct {
	period   market.Period
	lastDate string
	buckets  map[string]int64
}

func NewBarTrigger(p market.Period) *BarTrigger {
	return &BarTrigger{period: p, buckets: make(map[string]int64)}
}

func (t *BarTrigger) ShouldTrigger(ts int64, bars map[string]market.Bar) bool {
	date := market.DateOf(ts)
	if date != t.lastDate {
		t.lastDate = date
		t.buckets = make(map[string]int64)
	}
	bucket := t.period.Bucket(ts)
	fired := false
	if len(bars) == 0 {
		// 没有行情的时间戳只推进全局桶状态
		if last, ok := t.buckets[""]; !ok || bucket > last {
			t.buckets[""] = bucket
			fired = true
		}
		return fired
	}
	for code := range bars {
		if last, ok := t.buckets[code]; !ok || bucket > last {
			t.buckets[code] = bucket
			fired = true
		}
	}
	return fired
}

func (t *BarTrigger) DataPeriod() market.Period {
	return t.period
}

// ScheduleTrigger 在每天固定时刻触发：持有升序的当日秒偏移集合，
// 当时间戳首次到达或越过某个偏移时触发一次；状态随日期切换重置。
type ScheduleTrigger struct {
	period   market.Period
	offsets  []int
	lastDate string
	next     int // 当日尚未触发的最小偏移下标
}

func NewScheduleTrigger(base market.Period, offsets []int) *ScheduleTrigger {
	sorted := append([]int{}, offsets...)
	sort.Ints(sorted)
	return &ScheduleTrigger{period: base, offsets: sorted}
}

func (t *ScheduleTrigger) ShouldTrigger(ts int64, _ map[string]market.Bar) bool {
	date := market.DateOf(ts)
	if date != t.lastDate {
		t.lastDate = date
		t.next = 0
	}
	sec := market.SecondOfDay(ts)
	fired := false
	for t.next < len(t.offsets) && sec >= t.offsets[t.next] {
		t.next++
		fired = true
	}
	return fired
}

func (t *ScheduleTrigger) DataPeriod() market.Period {
	return t.period
}
