// Package server 提供 Gin 接口：查询运行状态与结果、触发停止、生成报告。
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"khquant/internal/engine"
	"khquant/internal/record"
	"khquant/internal/report"
)

// EngineControl 是服务端对引擎的最小控制面。
type EngineControl interface {
	State() engine.State
	Err() error
	Stop()
}

// HTTPServer 提供查询与控制接口。
type HTTPServer struct {
	addr   string
	store  *record.Store
	eng    EngineControl
	runID  string
	router *gin.Engine
}

type Config struct {
	Addr   string
	Store  *record.Store
	Engine EngineControl
	RunID  string // 本进程正在执行的运行 ID，可为空
}

func New(cfg Config) (*HTTPServer, error) {
	if cfg.Store == nil {
		return nil, errors.New("结果存储不能为空")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &HTTPServer{
		addr:   cfg.Addr,
		store:  cfg.Store,
		eng:    cfg.Engine,
		runID:  cfg.RunID,
		router: router,
	}
	s.registerRoutes()
	return s, nil
}

func (s *HTTPServer) registerRoutes() {
	api := s.router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.POST("/stop", s.handleStop)
	api.GET("/runs", s.handleRunList)
	api.GET("/runs/:id", s.handleRunDetail)
	api.GET("/runs/:id/orders", s.handleRunOrders)
	api.GET("/runs/:id/trades", s.handleRunTrades)
	api.GET("/runs/:id/snapshots", s.handleRunSnapshots)
	api.POST("/runs/:id/report", s.handleRunReport)
}

func (s *HTTPServer) handleStatus(c *gin.Context) {
	if s.eng == nil {
		c.JSON(http.StatusOK, gin.H{"state": "idle", "run_id": ""})
		return
	}
	resp := gin.H{"state": s.eng.State(), "run_id": s.runID}
	if err := s.eng.Err(); err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *HTTPServer) handleStop(c *gin.Context) {
	if s.eng == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "本进程没有运行中的引擎"})
		return
	}
	s.eng.Stop()
	c.JSON(http.StatusAccepted, gin.H{"state": s.eng.State()})
}

func (s *HTTPServer) handleRunList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs, err := s.store.ListRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *HTTPServer) handleRunDetail(c *gin.Context) {
	run, err := s.store.GetRun(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"run": run})
}

func (s *HTTPServer) handleRunOrders(c *gin.Context) {
	orders, err := s.store.ListOrders(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (s *HTTPServer) handleRunTrades(c *gin.Context) {
	trades, err := s.store.ListTrades(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"trades": trades})
}

func (s *HTTPServer) handleRunSnapshots(c *gin.Context) {
	snaps, err := s.store.ListSnapshots(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

func (s *HTTPServer) handleRunReport(c *gin.Context) {
	id := c.Param("id")
	path := c.DefaultQuery("path", fmt.Sprintf("reports/%s.html", id))
	if err := report.Generate(s.store, id, path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

// Start 启动 HTTP 服务，阻塞直到 ctx 取消或出现错误。
func (s *HTTPServer) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
