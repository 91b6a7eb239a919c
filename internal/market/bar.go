// Package market 定义行情数据模型、标的元信息和本地历史行情存储。
package market

import (
	"fmt"
	"strings"
	"time"
)

// CST 是 A 股行情使用的固定时区（UTC+8）。
// 用固定偏移而不是系统时区库，保证任何环境下回放结果一致。
var CST = time.FixedZone("CST", 8*3600)

// Bar 是一条行情观测。Time 为该周期起点的毫秒时间戳。
type Bar struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
	Amount float64 `json:"amount"`
}

// Halted 判断标的当期是否停牌（无成交量视为停牌）。
func (b Bar) Halted() bool {
	return b.Volume <= 0
}

// Period 是行情周期。tick 的 Duration 为 0，日线单独处理。
type Period struct {
	Key      string
	Duration time.Duration
}

var periods = map[string]Period{
	"tick": {Key: "tick"},
	"1m":   {Key: "1m", Duration: time.Minute},
	"5m":   {Key: "5m", Duration: 5 * time.Minute},
	"15m":  {Key: "15m", Duration: 15 * time.Minute},
	"30m":  {Key: "30m", Duration: 30 * time.Minute},
	"1h":   {Key: "1h", Duration: time.Hour},
	"1d":   {Key: "1d", Duration: 24 * time.Hour},
}

// ParsePeriod 解析周期字符串。
func ParsePeriod(s string) (Period, error) {
	p, ok := periods[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return Period{}, fmt.Errorf("不支持的周期: %s", s)
	}
	return p, nil
}

// IsTick 判断是否逐笔周期。
func (p Period) IsTick() bool { return p.Key == "tick" }

// Bucket 返回 ts 所属周期桶的起点（毫秒）。tick 直接返回 ts。
func (p Period) Bucket(ts int64) int64 {
	switch {
	case p.IsTick():
		return ts
	case p.Key == "1d":
		return StartOfDay(ts)
	default:
		ms := p.Duration.Milliseconds()
		return ts - ts%ms
	}
}

// StartOfDay 返回 ts 在 CST 时区当日零点的毫秒时间戳。
func StartOfDay(ts int64) int64 {
	t := time.UnixMilli(ts).In(CST)
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, CST)
	return day.UnixMilli()
}

// DateOf 返回 ts 在 CST 时区的日期（YYYYMMDD）。
func DateOf(ts int64) string {
	return time.UnixMilli(ts).In(CST).Format("20060102")
}

// SecondOfDay 返回 ts 在 CST 时区的当日秒偏移。
func SecondOfDay(ts int64) int {
	t := time.UnixMilli(ts).In(CST)
	return t.Hour()*3600 + t.Minute()*60 + t.Second()
}
