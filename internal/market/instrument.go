package market

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LotSize 是 A 股的一手股数，委托股数必须是它的整数倍。
const LotSize = 100

// Venue 是交易所标识。
type Venue string

const (
	VenueShanghai Venue = "SH"
	VenueShenzhen Venue = "SZ"
	VenueUnknown  Venue = ""
)

// VenueOf 按代码后缀识别交易所，如 "600519.SH"、"000001.SZ"。
func VenueOf(code string) Venue {
	switch {
	case strings.HasSuffix(strings.ToUpper(code), ".SH"):
		return VenueShanghai
	case strings.HasSuffix(strings.ToUpper(code), ".SZ"):
		return VenueShenzhen
	default:
		return VenueUnknown
	}
}

// etfPrefixes 是沪深 ETF 的代码前缀。
var etfPrefixes = []string{"51", "52", "53", "55", "56", "58", "159"}

// IsETF 按代码前缀判断标的是否为 ETF。
func IsETF(code string) bool {
	num := code
	if i := strings.IndexByte(code, '.'); i >= 0 {
		num = code[:i]
	}
	for _, prefix := range etfPrefixes {
		if strings.HasPrefix(num, prefix) {
			return true
		}
	}
	return false
}

// PoolType 区分股票池类型，决定价格精度。
type PoolType string

const (
	PoolStock PoolType = "stock" // 价格精度 2 位
	PoolETF   PoolType = "etf"   // 价格精度 3 位
)

// DeterminePoolType 判断股票池类型：全部为 ETF 时按 ETF 精度，
// 否则按股票精度。返回池类型和价格小数位数。
func DeterminePoolType(codes []string) (PoolType, int32) {
	if len(codes) == 0 {
		return PoolStock, 2
	}
	for _, code := range codes {
		if !IsETF(code) {
			return PoolStock, 2
		}
	}
	return PoolETF, 3
}

// T0List 是支持当日回转交易（T+0）的 ETF 白名单。
// 白名单内的标的买入后立即可卖，不受 T+1 约束。
type T0List struct {
	mu    sync.RWMutex
	codes map[string]struct{}
}

func NewT0List(codes []string) *T0List {
	l := &T0List{codes: make(map[string]struct{}, len(codes))}
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code != "" {
			l.codes[code] = struct{}{}
		}
	}
	return l
}

// LoadT0List 从 YAML 文件（字符串列表）读取白名单。
func LoadT0List(path string) (*T0List, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 T+0 白名单失败 (%s): %w", path, err)
	}
	var codes []string
	if err := yaml.Unmarshal(raw, &codes); err != nil {
		return nil, fmt.Errorf("解析 T+0 白名单失败 (%s): %w", path, err)
	}
	return NewT0List(codes), nil
}

// Contains 判断标的是否在白名单内。接收方为 nil 时恒为 false。
func (l *T0List) Contains(code string) bool {
	if l == nil {
		return false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.codes[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// Len 返回白名单条数。
func (l *T0List) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.codes)
}
