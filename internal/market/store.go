package market

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "github.com/glebarez/go-sqlite"
)

// Store 以 代码@周期 为单位把历史行情落在本地 SQLite 文件中。
// 回测 loading 阶段一次性读出，循环内不再访问磁盘。
type Store struct {
	root string

	mu  sync.Mutex
	dbs map[string]*sql.DB
}

func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("data root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: root, dbs: make(map[string]*sql.DB)}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for k, db := range s.dbs {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.dbs, k)
	}
	return firstErr
}

func (s *Store) db(code string, period Period) (*sql.DB, error) {
	if code == "" {
		return nil, fmt.Errorf("code 不能为空")
	}
	key := strings.ToUpper(code) + "@" + period.Key
	s.mu.Lock()
	defer s.mu.Unlock()
	if db, ok := s.dbs[key]; ok && db != nil {
		return db, nil
	}
	path := s.dbPath(code, period)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.dbs[key] = db
	return db, nil
}

func (s *Store) dbPath(code string, period Period) string {
	dir := filepath.Join(s.root, strings.ToUpper(code))
	return filepath.Join(dir, period.Key+".db")
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS bars (
		time   INTEGER PRIMARY KEY,
		open   REAL NOT NULL,
		high   REAL NOT NULL,
		low    REAL NOT NULL,
		close  REAL NOT NULL,
		volume REAL NOT NULL,
		amount REAL NOT NULL DEFAULT 0
	);`)
	return err
}

// InsertBars 批量写入行情（重复 time 覆盖）。
func (s *Store) InsertBars(ctx context.Context, code string, period Period, bars []Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	db, err := s.db(code, period)
	if err != nil {
		return 0, err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bars (time, open, high, low, close, volume, amount)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(time) DO UPDATE SET
		    open=excluded.open,
		    high=excluded.high,
		    low=excluded.low,
		    close=excluded.close,
		    volume=excluded.volume,
		    amount=excluded.amount`)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer stmt.Close()
	count := 0
	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, b.Time, b.Open, b.High, b.Low, b.Close, b.Volume, b.Amount); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// RangeBars 按时间升序返回 [start, end] 区间内的行情。
func (s *Store) RangeBars(ctx context.Context, code string, period Period, start, end int64) ([]Bar, error) {
	db, err := s.db(code, period)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT time, open, high, low, close, volume, amount FROM bars
		 WHERE time BETWEEN ? AND ? ORDER BY time ASC`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanBars(rows)
}

// BarsBefore 返回严格早于 ref 的最近 count 条行情（升序返回）。
// 结果永远不含 ref 当刻及之后的观测，保证无未来函数。
func (s *Store) BarsBefore(ctx context.Context, code string, period Period, count int, ref int64) ([]Bar, error) {
	if count <= 0 {
		return nil, nil
	}
	db, err := s.db(code, period)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx,
		`SELECT time, open, high, low, close, volume, amount FROM bars
		 WHERE time < ? ORDER BY time DESC LIMIT ?`, ref, count)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	bars, err := scanBars(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

func scanBars(rows *sql.Rows) ([]Bar, error) {
	var out []Bar
	for rows.Next() {
		var b Bar
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Amount); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
