package backtest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"fxlab/internal/label"
)

// ResultStore 管理 backtest_runs/trades/equity 表。
type ResultStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func NewResultStore(root string) (*ResultStore, error) {
	if root == "" {
		return nil, fmt.Errorf("result store root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "runs.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureResultSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &ResultStore{db: db, path: path}, nil
}

func (s *ResultStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureResultSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS backtest_runs (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			best_threshold REAL NOT NULL DEFAULT 0,
			total_trades INTEGER NOT NULL DEFAULT 0,
			win_rate REAL NOT NULL DEFAULT 0,
			profit_factor REAL NOT NULL DEFAULT 0,
			max_drawdown REAL NOT NULL DEFAULT 0,
			final_equity REAL NOT NULL DEFAULT 0,
			config_json TEXT NOT NULL,
			thresholds_json TEXT NOT NULL,
			report_json TEXT,
			message TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			ts INTEGER NOT NULL,
			direction TEXT NOT NULL,
			confidence REAL NOT NULL,
			entry REAL NOT NULL,
			take_profit REAL NOT NULL,
			stop_loss REAL NOT NULL,
			size REAL NOT NULL,
			outcome INTEGER NOT NULL,
			win INTEGER NOT NULL,
			r REAL NOT NULL,
			pnl REAL NOT NULL,
			equity_after REAL NOT NULL,
			FOREIGN KEY(run_id) REFERENCES backtest_runs(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS backtest_equity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			equity REAL NOT NULL,
			FOREIGN KEY(run_id) REFERENCES backtest_runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_run ON backtest_trades(run_id, ts);`,
		`CREATE INDEX IF NOT EXISTS idx_equity_run ON backtest_equity(run_id, ts);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun 写入一条 run 记录。
func (s *ResultStore) InsertRun(ctx context.Context, run Run) error {
	cfgJSON, err := json.Marshal(run.Config)
	if err != nil {
		return err
	}
	thrJSON, err := json.Marshal(run.Thresholds)
	if err != nil {
		return err
	}
	reportJSON, err := run.MarshalReport()
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO backtest_runs
			(id, status, best_threshold, config_json, thresholds_json, report_json,
			message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Status, run.Best, string(cfgJSON), string(thrJSON),
		bytesOrNil(reportJSON), run.Message, now, now)
	return err
}

func bytesOrNil(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// FinishRun 写入最终指标并收尾。
func (s *ResultStore) FinishRun(ctx context.Context, id string, best float64, rep Report, message string) error {
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		UPDATE backtest_runs
		SET status=?, best_threshold=?, total_trades=?, win_rate=?, profit_factor=?,
		    max_drawdown=?, final_equity=?, report_json=?, message=?, updated_at=?, completed_at=?
		WHERE id=?`,
		RunStatusFinished, best, rep.TotalTrades, rep.WinRate, finiteOrZero(float64(rep.ProfitFactor)),
		rep.MaxDrawdown, rep.FinalEquity, string(reportJSON), message, now, now, id)
	return err
}

// finiteOrZero 把 ±Inf/NaN 压成 0 再落 REAL 列，完整值保留在 report_json 里。
func finiteOrZero(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

// FailRun 标记失败。
func (s *ResultStore) FailRun(ctx context.Context, id, message string) error {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		UPDATE backtest_runs SET status=?, message=?, updated_at=?, completed_at=? WHERE id=?`,
		RunStatusFailed, message, now, now, id)
	return err
}

// InsertTrades 批量写入成交明细。
func (s *ResultStore) InsertTrades(ctx context.Context, runID string, trades []Trade) error {
	if len(trades) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades
			(run_id, symbol, ts, direction, confidence, entry, take_profit, stop_loss,
			size, outcome, win, r, pnl, equity_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, t := range trades {
		win := 0
		if t.Win {
			win = 1
		}
		if _, err := stmt.ExecContext(ctx, runID, t.Symbol, t.Timestamp, string(t.Direction),
			t.Confidence, t.Entry, t.TP, t.SL, t.Size, int(t.Outcome), win, t.R, t.PnL,
			t.EquityAfter); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// InsertEquity 批量写入权益曲线。
func (s *ResultStore) InsertEquity(ctx context.Context, runID string, points []EquityPoint) error {
	if len(points) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_equity (run_id, ts, equity) VALUES (?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, runID, p.Timestamp, p.Equity); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// ListRuns 按创建时间倒序列出 run。
func (s *ResultStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, best_threshold, config_json, thresholds_json, report_json,
		       message, created_at, completed_at
		FROM backtest_runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// GetRun 取单个 run。
func (s *ResultStore) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, best_threshold, config_json, thresholds_json, report_json,
		       message, created_at, completed_at
		FROM backtest_runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListTrades 按时间升序取某 run 的全部成交。
func (s *ResultStore) ListTrades(ctx context.Context, runID string, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, ts, direction, confidence, entry, take_profit, stop_loss,
		       size, outcome, win, r, pnl, equity_after
		FROM backtest_trades WHERE run_id = ? ORDER BY ts ASC LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Trade
	for rows.Next() {
		var t Trade
		var direction string
		var outcome, win int
		if err := rows.Scan(&t.Symbol, &t.Timestamp, &direction, &t.Confidence, &t.Entry,
			&t.TP, &t.SL, &t.Size, &outcome, &win, &t.R, &t.PnL, &t.EquityAfter); err != nil {
			return nil, err
		}
		t.Direction = Direction(direction)
		t.Outcome = label.Outcome(outcome)
		t.Win = win == 1
		out = append(out, t)
	}
	return out, rows.Err()
}

// ListEquity 按时间升序取某 run 的权益曲线。
func (s *ResultStore) ListEquity(ctx context.Context, runID string) ([]EquityPoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, equity FROM backtest_equity WHERE run_id = ? ORDER BY ts ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EquityPoint
	for rows.Next() {
		var p EquityPoint
		if err := rows.Scan(&p.Timestamp, &p.Equity); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var status, cfgJSON, thrJSON string
	var reportJSON, message sql.NullString
	var createdAt int64
	var completedAt sql.NullInt64
	if err := row.Scan(&run.ID, &status, &run.Best, &cfgJSON, &thrJSON, &reportJSON,
		&message, &createdAt, &completedAt); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.Message = message.String
	run.CreatedAt = time.UnixMilli(createdAt)
	if completedAt.Valid {
		run.FinishedAt = time.UnixMilli(completedAt.Int64)
	}
	if err := json.Unmarshal([]byte(cfgJSON), &run.Config); err != nil {
		return Run{}, fmt.Errorf("decode run config: %w", err)
	}
	if err := json.Unmarshal([]byte(thrJSON), &run.Thresholds); err != nil {
		return Run{}, fmt.Errorf("decode run thresholds: %w", err)
	}
	if reportJSON.Valid && reportJSON.String != "" {
		var rep Report
		if err := json.Unmarshal([]byte(reportJSON.String), &rep); err != nil {
			return Run{}, fmt.Errorf("decode run report: %w", err)
		}
		run.Report = &rep
	}
	return run, nil
}
