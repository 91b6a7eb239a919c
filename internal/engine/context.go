package engine

import (
	"context"
	"time"

	"khquant/internal/broker"
	"khquant/internal/market"
)

// TimeInfo 描述一次策略调用所处的仿真时刻。
type TimeInfo struct {
	Timestamp int64  `json:"timestamp"` // 毫秒
	Date      string `json:"date"`      // YYYYMMDD
	Clock     string `json:"time"`      // HH:MM:SS
}

// Context 是传给策略回调的只读快照：当前时刻、账户、持仓、
// 股票池和本周期行情。每次调用重新构建，调用返回后即作废，
// 策略不得跨调用持有或修改它。
type Context struct {
	Time      TimeInfo
	Account   broker.AccountSnapshot
	Positions map[string]broker.Position
	Universe  []string
	Bars      map[string]market.Bar

	provider market.Provider
	period   market.Period
	count    int
}

// History 返回各标的在当前时刻之前的最近 count 条行情（不含当前 bar）。
// count ≤ 0 时使用配置的默认条数。
func (c *Context) History(ctx context.Context, codes []string, count int) (map[string][]market.Bar, error) {
	if count <= 0 {
		count = c.count
	}
	return c.provider.History(ctx, codes, c.period, count, c.Time.Timestamp)
}

// Bar 返回某标的本周期的行情。
func (c *Context) Bar(code string) (market.Bar, bool) {
	b, ok := c.Bars[code]
	return b, ok
}

// ContextBuilder 为每次策略调用组装新的只读快照。
type ContextBuilder struct {
	ledger   *broker.Ledger
	provider market.Provider
	universe []string
	period   market.Period
	count    int
}

func NewContextBuilder(ledger *broker.Ledger, provider market.Provider, universe []string, period market.Period, historyCount int) *ContextBuilder {
	return &ContextBuilder{
		ledger:   ledger,
		provider: provider,
		universe: append([]string{}, universe...),
		period:   period,
		count:    historyCount,
	}
}

// Period 返回快照携带的行情粒度。
func (b *ContextBuilder) Period() market.Period {
	return b.period
}

// Build 在给定时刻构建快照。bars 可为 nil（如 on_init 时）。
func (b *ContextBuilder) Build(ts int64, bars map[string]market.Bar) *Context {
	copied := make(map[string]market.Bar, len(bars))
	for code, bar := range bars {
		copied[code] = bar
	}
	t := time.UnixMilli(ts).In(market.CST)
	return &Context{
		Time: TimeInfo{
			Timestamp: ts,
			Date:      t.Format("20060102"),
			Clock:     t.Format("15:04:05"),
		},
		Account:   b.ledger.Snapshot(),
		Positions: b.ledger.Positions(),
		Universe:  append([]string{}, b.universe...),
		Bars:      copied,
		provider:  b.provider,
		period:    b.period,
		count:     b.count,
	}
}
