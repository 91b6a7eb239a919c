// Package app 负责应用级编排：按配置装配行情、账本、风控、策略和
// 引擎，并协调 HTTP 服务与引擎的生命周期。
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"khquant/internal/broker"
	"khquant/internal/config"
	"khquant/internal/engine"
	"khquant/internal/logger"
	"khquant/internal/market"
	"khquant/internal/record"
	"khquant/internal/report"
	"khquant/internal/risk"
	"khquant/internal/server"
	"khquant/internal/strategy"
)

// App 持有一次运行的全部组件。
type App struct {
	cfg     *config.Config
	cfgPath string
	runID   string

	marketStore *market.Store
	resultStore *record.Store
	gate        *risk.Gate
	builder     *engine.ContextBuilder
	eng         *engine.Engine
	httpSrv     *server.HTTPServer
}

// NewApp 根据配置构建应用对象（不启动）。cb 是通知回调边界，
// 嵌入方（如前端展示层）可借此接收委托、成交、拒绝与日志通知。
func NewApp(cfg *config.Config, cfgPath string, cb broker.Callbacks) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.System.LogLevel)
	if cb.OnLog != nil {
		logger.SetSink(func(level, msg string) {
			cb.EmitLog(fmt.Sprintf("[%s] %s", level, msg))
		})
	}

	period, err := market.ParsePeriod(cfg.Data.KlinePeriod)
	if err != nil {
		return nil, err
	}
	start, err := market.ParseDate(cfg.Backtest.StartTime)
	if err != nil {
		return nil, err
	}
	endDay, err := market.ParseDate(cfg.Backtest.EndTime)
	if err != nil {
		return nil, err
	}
	end := endDay + 24*3600*1000 - 1 // end_time 当日最后一毫秒，窗口两端都含

	marketStore, err := market.NewStore(cfg.System.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("初始化行情存储失败: %w", err)
	}
	provider, err := market.NewStoreProvider(marketStore)
	if err != nil {
		return nil, err
	}

	var t0 *market.T0List
	if cfg.Data.T0ListFile != "" {
		if t0, err = market.LoadT0List(cfg.Data.T0ListFile); err != nil {
			return nil, err
		}
		logger.Infof("T+0 白名单已加载: %d 条", t0.Len())
	}

	_, priceDecimals := market.DeterminePoolType(cfg.Data.StockList)
	cost, err := broker.NewCostModel(cfg.Backtest.TradeCost, cfg.Backtest.Slippage, priceDecimals)
	if err != nil {
		return nil, err
	}
	ledger := broker.NewLedger(cfg.Backtest.InitCapital, t0)

	mode := broker.Mode(cfg.RunMode)
	if mode == broker.ModeLive {
		// TODO: 接入 miniQMT 柜台网关后放开 live 模式
		return nil, fmt.Errorf("live 模式尚未接入柜台网关")
	}
	manager, err := broker.NewManager(mode, cost, ledger, nil, cb)
	if err != nil {
		return nil, err
	}

	gate := risk.NewGate(risk.Limits{
		PositionLimit: cfg.Risk.PositionLimit,
		OrderLimit:    int64(cfg.Risk.OrderLimit),
		LossLimit:     cfg.Risk.LossLimit,
	}, nil)

	trigger, err := engine.NewTrigger(cfg.Trigger, period)
	if err != nil {
		return nil, err
	}
	// 策略上下文的行情粒度跟随触发器，不一定等于引擎驱动数据的周期
	builder := engine.NewContextBuilder(ledger, provider, cfg.Data.StockList, trigger.DataPeriod(), cfg.Data.HistoryCount)

	strat, err := buildStrategy(cfg, cost)
	if err != nil {
		return nil, err
	}

	resultStore, err := record.NewStore(cfg.Record.DBPath)
	if err != nil {
		return nil, fmt.Errorf("初始化结果存储失败: %w", err)
	}
	if n, err := resultStore.MarkStaleRuns(); err != nil {
		logger.Warnf("清理残留运行记录失败: %v", err)
	} else if n > 0 {
		logger.Warnf("发现 %d 条未正常结束的运行记录，已标记为 incomplete", n)
	}

	runID := fmt.Sprintf("run-%s-%s", time.Now().In(market.CST).Format("20060102150405"), uuid.NewString()[:8])
	configJSON, _ := json.Marshal(cfg)
	recorder, err := record.NewRecorder(resultStore, record.RunMeta{
		RunID:        runID,
		Mode:         cfg.RunMode,
		StrategyName: cfg.Strategy.Name,
		StartTime:    cfg.Backtest.StartTime,
		EndTime:      cfg.Backtest.EndTime,
		InitCapital:  cfg.Backtest.InitCapital,
		ConfigJSON:   configJSON,
	})
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(engine.Config{
		Provider:  provider,
		Universe:  cfg.Data.StockList,
		Period:    period,
		Start:     start,
		End:       end,
		Trigger:   trigger,
		Gate:      gate,
		CheckGate: cfg.Risk.PreTradeCheckEnabled(),
		Manager:   manager,
		Builder:   builder,
		Strategy:  strat,
		Recorder:  recorder,
		Callbacks: cb,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:         cfg,
		cfgPath:     cfgPath,
		runID:       runID,
		marketStore: marketStore,
		resultStore: resultStore,
		gate:        gate,
		builder:     builder,
		eng:         eng,
	}
	if cfg.Server.Enabled {
		a.httpSrv, err = server.New(server.Config{
			Addr:   cfg.Server.Addr,
			Store:  resultStore,
			Engine: eng,
			RunID:  runID,
		})
		if err != nil {
			return nil, err
		}
	}
	return a, nil
}

func buildStrategy(cfg *config.Config, cost *broker.CostModel) (engine.Strategy, error) {
	params, err := json.Marshal(cfg.Strategy.Params)
	if err != nil {
		return nil, fmt.Errorf("策略参数序列化失败: %w", err)
	}
	switch cfg.Strategy.Name {
	case "dual_ma":
		return strategy.NewDualMA(params, cost), nil
	default:
		return nil, fmt.Errorf("未知策略: %s", cfg.Strategy.Name)
	}
}

// Engine 暴露引擎实例（测试与控制用）。
func (a *App) Engine() *engine.Engine {
	return a.eng
}

// RunID 返回本次运行的标识。
func (a *App) RunID() string {
	return a.runID
}

// Run 启动引擎与 HTTP 服务，阻塞直到回放结束或 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	defer a.close()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	group, ctx := errgroup.WithContext(ctx)

	if a.cfg.RunMode == config.ModeSimulate {
		// simulate/live 支持风控参数热更新，回测内参数冻结
		if err := config.Watch(a.cfgPath, func(rc config.RiskConfig) {
			a.gate.Update(risk.Limits{
				PositionLimit: rc.PositionLimit,
				OrderLimit:    int64(rc.OrderLimit),
				LossLimit:     rc.LossLimit,
			})
		}); err != nil {
			logger.Warnf("配置热更新监听启动失败: %v", err)
		}
	}

	if a.httpSrv != nil {
		group.Go(func() error {
			if err := a.httpSrv.Start(ctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer cancel()
		if err := a.eng.Run(ctx); err != nil {
			return err
		}
		a.generateReport()
		return nil
	})

	return group.Wait()
}

func (a *App) generateReport() {
	if a.cfg.Record.ReportPath == "" {
		return
	}
	path := filepath.Join(a.cfg.Record.ReportPath, a.runID+".html")
	if err := report.Generate(a.resultStore, a.runID, path); err != nil {
		logger.Warnf("报告生成失败: %v", err)
		return
	}
	logger.Infof("报告已生成: %s", path)
}

func (a *App) close() {
	if a.marketStore != nil {
		_ = a.marketStore.Close()
	}
	if a.resultStore != nil {
		_ = a.resultStore.Close()
	}
}
