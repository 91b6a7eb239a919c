package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"khquant/internal/broker"
	"khquant/internal/logger"
	"khquant/internal/market"
	"khquant/internal/risk"
)

// Strategy 是策略回调边界的四个挂点。
// OnBar 接收只读快照并返回零或多条信号；其余回调只收快照。
type Strategy interface {
	OnInit(snap *Context) error
	OnDayOpen(snap *Context) error
	OnBar(snap *Context) ([]broker.Signal, error)
	OnDayClose(snap *Context) error
}

// Recorder 是结果记录协作方：每个周期调用一次，运行结束时收尾。
// 调用必须是非阻塞的。
type Recorder interface {
	RecordCycle(ts int64, acct broker.AccountSnapshot, positions map[string]broker.Position, outcomes []broker.Outcome)
	Finish(completed bool, message string)
}

// State 是引擎状态机的状态。
type State string

const (
	StateIdle      State = "idle"
	StateLoading   State = "loading"
	StateRunning   State = "running"
	StateStopping  State = "stopping"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
)

// Config 汇集引擎运行需要的全部协作方（构造时注入，不用全局状态）。
type Config struct {
	Provider  market.Provider
	Universe  []string
	Period    market.Period
	Start     int64 // 毫秒，含
	End       int64 // 毫秒，含
	Trigger   Trigger
	Gate      *risk.Gate
	CheckGate bool // 回测/模拟路径是否启用风控闸门
	Manager   *broker.Manager
	Builder   *ContextBuilder
	Strategy  Strategy
	Recorder  Recorder
	Callbacks broker.Callbacks
}

// Engine 驱动仿真时钟：按升序遍历历史时间戳，逐周期调用触发器、
// 风控闸门、策略回调和交易管理器，并在日界驱动 T+1 解锁。
// 循环严格单线程顺序执行，这是回放可确定性的来源。
type Engine struct {
	cfg Config

	mu    sync.RWMutex
	state State
	err   error

	stopFlag atomic.Bool
}

func New(cfg Config) (*Engine, error) {
	if cfg.Provider == nil || cfg.Manager == nil || cfg.Builder == nil || cfg.Strategy == nil {
		return nil, fmt.Errorf("provider/manager/builder/strategy 均不能为空")
	}
	if cfg.Trigger == nil {
		return nil, fmt.Errorf("trigger 不能为空")
	}
	if len(cfg.Universe) == 0 {
		return nil, fmt.Errorf("股票池不能为空")
	}
	if cfg.End < cfg.Start {
		return nil, fmt.Errorf("时间窗口非法: end < start")
	}
	if cfg.CheckGate && cfg.Gate == nil {
		return nil, fmt.Errorf("启用风控时 gate 不能为空")
	}
	return &Engine{cfg: cfg, state: StateIdle}, nil
}

// State 返回当前状态。
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// Err 返回终止错误（aborted 时非空）。
func (e *Engine) Err() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.err
}

// Stop 请求协作式停止：当前迭代完整跑完后退出循环。
func (e *Engine) Stop() {
	e.stopFlag.Store(true)
	e.mu.Lock()
	if e.state == StateRunning {
		e.state = StateStopping
	}
	e.mu.Unlock()
}

func (e *Engine) setState(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) abort(err error) error {
	e.mu.Lock()
	e.state = StateAborted
	e.err = err
	e.mu.Unlock()
	if e.cfg.Recorder != nil {
		e.cfg.Recorder.Finish(false, err.Error())
	}
	logger.Errorf("引擎中止: %v", err)
	return err
}

// Run 执行一次完整的回放。同一个 Engine 实例只能运行一次。
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return fmt.Errorf("引擎不可重入: 当前状态 %s", e.state)
	}
	e.state = StateLoading
	e.mu.Unlock()

	series, err := market.LoadUniverse(ctx, e.cfg.Provider, e.cfg.Universe, e.cfg.Period, e.cfg.Start, e.cfg.End)
	if err != nil {
		return e.abort(fmt.Errorf("历史数据加载失败: %w", err))
	}
	timeline := buildTimeline(series)
	if len(timeline) == 0 {
		return e.abort(fmt.Errorf("时间窗口内没有任何行情观测"))
	}
	logger.Infof("数据加载完成: %d 只标的, %d 个时间戳", len(series), len(timeline))

	if err := e.callInit(timeline[0]); err != nil {
		return e.abort(err)
	}

	e.setState(StateRunning)
	ledger := e.cfg.Manager.Ledger()
	cursors := make(map[string]int, len(series))
	prevDate := ""
	var prevTs int64
	stopped := false

	for _, ts := range timeline {
		// 协作式停止：每个外层迭代检查一次，当前迭代完整执行
		if e.stopFlag.Load() || ctx.Err() != nil {
			stopped = true
			break
		}
		cycleBars := collectBars(series, cursors, ts)
		for code, bar := range cycleBars {
			if !bar.Halted() {
				ledger.MarkPrice(code, bar.Close)
			}
		}

		date := market.DateOf(ts)
		if date != prevDate {
			if prevDate != "" {
				if err := e.dayClose(prevTs); err != nil {
					return e.abort(err)
				}
			}
			if err := e.dayOpen(ts); err != nil {
				return e.abort(err)
			}
			prevDate = date
		}
		prevTs = ts

		var outcomes []broker.Outcome
		if e.cfg.Trigger.ShouldTrigger(ts, cycleBars) {
			outcomes, err = e.runCycle(ts, cycleBars)
			if err != nil {
				return e.abort(err)
			}
		}
		if e.cfg.Recorder != nil {
			e.cfg.Recorder.RecordCycle(ts, ledger.Snapshot(), ledger.Positions(), outcomes)
		}
	}

	if prevDate != "" {
		if err := e.dayClose(prevTs); err != nil {
			return e.abort(err)
		}
	}
	e.setState(StateCompleted)
	msg := "完成"
	if stopped {
		msg = "已手动停止"
	}
	if e.cfg.Recorder != nil {
		e.cfg.Recorder.Finish(true, msg)
	}
	logger.Infof("回放结束: %s", msg)
	return nil
}

// runCycle 执行一个触发周期：风控 → 策略 → 交易管理器。
func (e *Engine) runCycle(ts int64, cycleBars map[string]market.Bar) ([]broker.Outcome, error) {
	snap := e.cfg.Builder.Build(ts, cycleBars)
	signals, err := e.callOnBar(snap)
	if err != nil {
		return nil, err
	}
	if len(signals) == 0 {
		return nil, nil
	}

	allowed := signals
	var outcomes []broker.Outcome
	if e.cfg.CheckGate {
		dec := e.cfg.Gate.Check(snap.Account, snap.Positions, signals)
		if dec.Blocked {
			logger.Warnf("风控拦截本周期全部信号: %s", dec.Reason)
			for _, sig := range signals {
				e.cfg.Callbacks.EmitReject(sig, dec.Reason)
				outcomes = append(outcomes, broker.Outcome{Signal: sig, Status: broker.OutcomeRejected, Reason: dec.Reason})
			}
			return outcomes, nil
		}
		for _, rej := range dec.Rejected {
			logger.Warnf("风控拒绝信号: code=%s volume=%d 原因=%s", rej.Signal.Code, rej.Signal.Volume, rej.Reason)
			e.cfg.Callbacks.EmitReject(rej.Signal, rej.Reason)
			outcomes = append(outcomes, broker.Outcome{Signal: rej.Signal, Status: broker.OutcomeRejected, Reason: rej.Reason})
		}
		allowed = dec.Allowed
	}
	outcomes = append(outcomes, e.cfg.Manager.ProcessSignals(ts, cycleBars, allowed)...)
	return outcomes, nil
}

func (e *Engine) callInit(ts int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("on_init panic: %v", r)
		}
	}()
	if initErr := e.cfg.Strategy.OnInit(e.cfg.Builder.Build(ts, nil)); initErr != nil {
		return fmt.Errorf("on_init 失败: %w", initErr)
	}
	return nil
}

func (e *Engine) callOnBar(snap *Context) (signals []broker.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("on_bar panic: %v", r)
		}
	}()
	signals, err = e.cfg.Strategy.OnBar(snap)
	if err != nil {
		err = fmt.Errorf("on_bar 失败: %w", err)
	}
	return signals, err
}

// dayClose 收掉前一交易日：先跑策略日终回调，再解锁 T+1 持仓。
func (e *Engine) dayClose(ts int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("on_day_close panic: %v", r)
		}
	}()
	if cbErr := e.cfg.Strategy.OnDayClose(e.cfg.Builder.Build(ts, nil)); cbErr != nil {
		return fmt.Errorf("on_day_close 失败: %w", cbErr)
	}
	e.cfg.Manager.Ledger().PromoteSettled()
	return nil
}

func (e *Engine) dayOpen(ts int64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("on_day_open panic: %v", r)
		}
	}()
	if cbErr := e.cfg.Strategy.OnDayOpen(e.cfg.Builder.Build(ts, nil)); cbErr != nil {
		return fmt.Errorf("on_day_open 失败: %w", cbErr)
	}
	return nil
}

// buildTimeline 合并所有标的的时间戳并升序去重。
func buildTimeline(series map[string][]market.Bar) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, bars := range series {
		for _, b := range bars {
			if _, ok := seen[b.Time]; ok {
				continue
			}
			seen[b.Time] = struct{}{}
			out = append(out, b.Time)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// collectBars 取出恰好落在 ts 上的各标的行情并推进游标。
func collectBars(series map[string][]market.Bar, cursors map[string]int, ts int64) map[string]market.Bar {
	out := make(map[string]market.Bar)
	for code, bars := range series {
		cur := cursors[code]
		for cur < len(bars) && bars[cur].Time < ts {
			cur++
		}
		if cur < len(bars) && bars[cur].Time == ts {
			out[code] = bars[cur]
			cur++
		}
		cursors[code] = cur
	}
	return out
}
