package market

import (
	"fmt"
	"time"
)

// IsTradeDay 按星期近似判断交易日（不含节假日表）。
// TODO: 接入交易所节假日历，当前周一至周五都视为交易日。
func IsTradeDay(ts int64) bool {
	wd := time.UnixMilli(ts).In(CST).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// TradeDayCount 统计 [start, end] 内的交易日数量。
func TradeDayCount(start, end int64) int {
	if end < start {
		return 0
	}
	count := 0
	const dayMs = 24 * 3600 * 1000
	for ts := StartOfDay(start); ts <= end; ts += dayMs {
		if IsTradeDay(ts) {
			count++
		}
	}
	return count
}

// ParseDate 把 YYYYMMDD 解析为 CST 当日零点的毫秒时间戳。
func ParseDate(date string) (int64, error) {
	t, err := time.ParseInLocation("20060102", date, CST)
	if err != nil {
		return 0, fmt.Errorf("日期格式非法 (%s): %w", date, err)
	}
	return t.UnixMilli(), nil
}
