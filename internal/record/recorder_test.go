package record

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"khquant/internal/broker"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testMeta(runID string) RunMeta {
	return RunMeta{
		RunID:        runID,
		Mode:         "backtest",
		StrategyName: "dual_ma",
		StartTime:    "20240101",
		EndTime:      "20241231",
		InitCapital:  1000000,
		ConfigJSON:   []byte(`{"run_mode":"backtest"}`),
	}
}

func filledOutcome(ts int64) broker.Outcome {
	return broker.Outcome{
		Status: broker.OutcomeFilled,
		Order: broker.Order{
			ID: "o-1", Code: "600519.SH", Action: broker.Buy,
			Volume: 1000, Price: 10.01, Status: broker.OrderFilled, Timestamp: ts,
		},
		Trade: &broker.Trade{
			ID: "t-1", OrderID: "o-1", Code: "600519.SH", Action: broker.Buy,
			Volume: 1000, Price: 10.01, Amount: 10010, Commission: 5,
			TransferFee: 1, FlowFee: 1, TotalCost: 7, Timestamp: ts,
		},
	}
}

func TestRecorderLifecycle(t *testing.T) {
	store := newTestStore(t)
	rec, err := NewRecorder(store, testMeta("run-1"))
	require.NoError(t, err)

	run, err := store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusRunning, run.Status)

	rec.RecordCycle(1000, broker.AccountSnapshot{Cash: 989983, MarketValue: 10010, TotalAsset: 999993},
		nil, []broker.Outcome{filledOutcome(1000)})
	rec.RecordCycle(2000, broker.AccountSnapshot{Cash: 989983, MarketValue: 11000, TotalAsset: 1000983}, nil, nil)
	rec.RecordCycle(3000, broker.AccountSnapshot{Cash: 989983, MarketValue: 9000, TotalAsset: 998983}, nil, nil)
	rec.Finish(true, "完成")

	run, err = store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusDone, run.Status)
	assert.Equal(t, 1, run.TradeCount)
	assert.InDelta(t, 998983, run.FinalAsset, 1e-6)
	assert.InDelta(t, (998983.0-1000000)/1000000, run.TotalReturn, 1e-9)
	// 峰值 1000983 → 谷值 998983
	assert.InDelta(t, (1000983.0-998983)/1000983, run.MaxDrawdown, 1e-9)

	var stats map[string]interface{}
	require.NoError(t, json.Unmarshal(run.StatsJSON, &stats))
	// 2024 全年按周内日历共 262 个交易日
	assert.InDelta(t, 262, stats["trade_days"].(float64), 1e-9)
	assert.InDelta(t, run.TotalReturn*252/262, stats["annual_return"].(float64), 1e-12)

	snaps, err := store.ListSnapshots("run-1")
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.InDelta(t, 7.0/1000000, snaps[0].Drawdown, 1e-9, "相对初始资金的微小回撤")
	assert.Greater(t, snaps[2].Drawdown, snaps[0].Drawdown)

	orders, err := store.ListOrders("run-1")
	require.NoError(t, err)
	assert.Len(t, orders, 1)

	trades, err := store.ListTrades("run-1")
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.InDelta(t, 7, trades[0].TotalCost, 1e-9)
}

func TestRecorderFailedRun(t *testing.T) {
	store := newTestStore(t)
	rec, err := NewRecorder(store, testMeta("run-2"))
	require.NoError(t, err)

	rec.Finish(false, "策略回调 panic")

	run, err := store.GetRun("run-2")
	require.NoError(t, err)
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "策略回调 panic", run.Message)
}

func TestMarkStaleRuns(t *testing.T) {
	store := newTestStore(t)
	_, err := NewRecorder(store, testMeta("run-3"))
	require.NoError(t, err)

	n, err := store.MarkStaleRuns()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	run, err := store.GetRun("run-3")
	require.NoError(t, err)
	assert.Equal(t, RunStatusIncomplete, run.Status)
}

func TestListRunsOrdering(t *testing.T) {
	store := newTestStore(t)
	for _, id := range []string{"run-a", "run-b"} {
		rec, err := NewRecorder(store, testMeta(id))
		require.NoError(t, err)
		rec.Finish(true, "完成")
	}

	runs, err := store.ListRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}
