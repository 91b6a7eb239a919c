// Package record 负责运行结果的持久化：运行元信息、委托、成交和
// 每周期的账户快照各自一张表，同一个 SQLite 文件可累积多次运行。
package record

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store 基于 Gorm + SQLite 的结果存储。
type Store struct {
	db *gorm.DB
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("结果库路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&RunModel{}, &OrderModel{}, &TradeModel{}, &SnapshotModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateRun 新建一条运行记录。
func (s *Store) CreateRun(run *RunModel) error {
	return s.db.Create(run).Error
}

// FinishRun 回写运行终态与统计。
func (s *Store) FinishRun(run *RunModel) error {
	return s.db.Model(&RunModel{}).Where("run_id = ?", run.RunID).Updates(map[string]interface{}{
		"final_asset":  run.FinalAsset,
		"total_return": run.TotalReturn,
		"max_drawdown": run.MaxDrawdown,
		"trade_count":  run.TradeCount,
		"status":       run.Status,
		"message":      run.Message,
		"stats_json":   run.StatsJSON,
		"updated_at":   run.UpdatedAtUnix,
	}).Error
}

// SaveOrders 批量写入委托。
func (s *Store) SaveOrders(orders []OrderModel) error {
	if len(orders) == 0 {
		return nil
	}
	return s.db.CreateInBatches(orders, 200).Error
}

// SaveTrades 批量写入成交。
func (s *Store) SaveTrades(trades []TradeModel) error {
	if len(trades) == 0 {
		return nil
	}
	return s.db.CreateInBatches(trades, 200).Error
}

// SaveSnapshots 批量写入账户快照。
func (s *Store) SaveSnapshots(snaps []SnapshotModel) error {
	if len(snaps) == 0 {
		return nil
	}
	return s.db.CreateInBatches(snaps, 500).Error
}

// MarkStaleRuns 把上次进程异常退出时残留在 running 状态的记录
// 标记为 incomplete。应在进程启动、新建运行之前调用。
func (s *Store) MarkStaleRuns() (int64, error) {
	res := s.db.Model(&RunModel{}).
		Where("status = ?", RunStatusRunning).
		Updates(map[string]interface{}{"status": RunStatusIncomplete, "message": "进程异常退出"})
	return res.RowsAffected, res.Error
}

// GetRun 按 run_id 读取运行记录。
func (s *Store) GetRun(runID string) (*RunModel, error) {
	var run RunModel
	if err := s.db.Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns 返回最近的运行记录（按创建时间倒序）。
func (s *Store) ListRuns(limit int) ([]RunModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var runs []RunModel
	err := s.db.Order("created_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// ListOrders 返回某次运行的全部委托（按时间升序）。
func (s *Store) ListOrders(runID string) ([]OrderModel, error) {
	var orders []OrderModel
	err := s.db.Where("run_id = ?", runID).Order("timestamp ASC, id ASC").Find(&orders).Error
	return orders, err
}

// ListTrades 返回某次运行的全部成交（按时间升序）。
func (s *Store) ListTrades(runID string) ([]TradeModel, error) {
	var trades []TradeModel
	err := s.db.Where("run_id = ?", runID).Order("timestamp ASC, id ASC").Find(&trades).Error
	return trades, err
}

// ListSnapshots 返回某次运行的权益曲线（按时间升序）。
func (s *Store) ListSnapshots(runID string) ([]SnapshotModel, error) {
	var snaps []SnapshotModel
	err := s.db.Where("run_id = ?", runID).Order("timestamp ASC, id ASC").Find(&snaps).Error
	return snaps, err
}
