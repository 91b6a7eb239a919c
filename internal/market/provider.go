package market

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Provider 是历史行情数据源。实现必须保证 History 不返回
// ref 当刻及之后的观测（无未来函数）。
type Provider interface {
	// History 返回每只标的严格早于 ref 的最近 count 条行情（升序）。
	History(ctx context.Context, codes []string, period Period, count int, ref int64) (map[string][]Bar, error)
	// Range 返回单只标的 [start, end] 区间内的全部行情（升序）。
	Range(ctx context.Context, code string, period Period, start, end int64) ([]Bar, error)
}

// StoreProvider 基于本地 Store 实现 Provider。
type StoreProvider struct {
	store *Store
}

func NewStoreProvider(store *Store) (*StoreProvider, error) {
	if store == nil {
		return nil, fmt.Errorf("store 不能为空")
	}
	return &StoreProvider{store: store}, nil
}

func (p *StoreProvider) History(ctx context.Context, codes []string, period Period, count int, ref int64) (map[string][]Bar, error) {
	out := make(map[string][]Bar, len(codes))
	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for _, code := range codes {
		code := code
		group.Go(func() error {
			bars, err := p.store.BarsBefore(ctx, code, period, count, ref)
			if err != nil {
				return fmt.Errorf("读取 %s 历史行情失败: %w", code, err)
			}
			mu.Lock()
			out[code] = bars
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *StoreProvider) Range(ctx context.Context, code string, period Period, start, end int64) ([]Bar, error) {
	return p.store.RangeBars(ctx, code, period, start, end)
}

// LoadUniverse 并发拉取整个股票池在回测窗口内的行情。
// 任意一只标的读取失败则整体失败（loading 阶段失败是致命错误）。
func LoadUniverse(ctx context.Context, p Provider, codes []string, period Period, start, end int64) (map[string][]Bar, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("股票池为空")
	}
	out := make(map[string][]Bar, len(codes))
	var mu sync.Mutex
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(4)
	for _, code := range codes {
		code := code
		group.Go(func() error {
			bars, err := p.Range(ctx, code, period, start, end)
			if err != nil {
				return fmt.Errorf("加载 %s 行情失败: %w", code, err)
			}
			mu.Lock()
			out[code] = bars
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
