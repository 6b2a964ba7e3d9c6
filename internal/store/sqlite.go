package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockbt/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

// sqliteTimeLayout is fixed width so created_at sorts correctly as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore implements RunStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id               TEXT PRIMARY KEY,
	user_id          TEXT NOT NULL,
	ticker           TEXT NOT NULL,
	start_date       TEXT NOT NULL,
	end_date         TEXT NOT NULL,
	sma_period       INTEGER NOT NULL,
	rule_condition   TEXT NOT NULL,
	rule_then_action TEXT NOT NULL,
	rule_else_action TEXT NOT NULL,
	initial_capital  REAL NOT NULL,
	total_return     REAL NOT NULL,
	win_rate         REAL NOT NULL,
	num_trades       INTEGER NOT NULL,
	summary          TEXT NOT NULL,
	equity_curve     TEXT NOT NULL,
	created_at       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_backtest_runs_user_created ON backtest_runs (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_backtest_runs_ticker ON backtest_runs (ticker);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema if needed and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers and keeps ":memory:" databases
	// shared across calls.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configuring sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun inserts a completed run.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.BacktestRun) error {
	summary, curve, err := encodeRunJSON(run)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO backtest_runs (
			id, user_id, ticker, start_date, end_date, sma_period,
			rule_condition, rule_then_action, rule_else_action,
			initial_capital, total_return, win_rate, num_trades,
			summary, equity_curve, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.UserID, run.Ticker, run.StartDate, run.EndDate, run.SMAPeriod,
		run.Rule.IfCondition, run.Rule.ThenAction, run.Rule.ElseAction,
		run.InitialCapital, run.TotalReturn, run.WinRate, run.NumTrades,
		string(summary), string(curve), run.CreatedAt.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a single run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.BacktestRun, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, ticker, start_date, end_date, sma_period,
		       rule_condition, rule_then_action, rule_else_action,
		       initial_capital, total_return, win_rate, num_trades,
		       summary, created_at, equity_curve
		FROM backtest_runs WHERE id = ?`, id)

	var curve string
	run, err := scanSQLiteRun(row, &curve)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(curve), &run.EquityCurve); err != nil {
		return nil, fmt.Errorf("decoding equity curve of run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns runs newest first, optionally restricted to one user.
func (s *SQLiteStore) ListRuns(ctx context.Context, userID string, offset, limit int) ([]domain.BacktestRun, error) {
	offset, limit = clampPage(offset, limit)
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, ticker, start_date, end_date, sma_period,
		       rule_condition, rule_then_action, rule_else_action,
		       initial_capital, total_return, win_rate, num_trades,
		       summary, created_at
		FROM backtest_runs
		WHERE (? = '' OR user_id = ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, userID, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.BacktestRun, 0)
	for rows.Next() {
		run, err := scanSQLiteRun(rows, nil)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanSQLiteRun scans the common column list; curve, when non-nil, receives
// the trailing equity_curve column.
func scanSQLiteRun(row rowScanner, curve *string) (*domain.BacktestRun, error) {
	var (
		run     domain.BacktestRun
		summary string
		created string
	)
	dest := []any{
		&run.ID, &run.UserID, &run.Ticker, &run.StartDate, &run.EndDate, &run.SMAPeriod,
		&run.Rule.IfCondition, &run.Rule.ThenAction, &run.Rule.ElseAction,
		&run.InitialCapital, &run.TotalReturn, &run.WinRate, &run.NumTrades,
		&summary, &created,
	}
	if curve != nil {
		dest = append(dest, curve)
	}
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(summary), &run.Summary); err != nil {
		return nil, fmt.Errorf("decoding summary: %w", err)
	}
	ts, err := time.Parse(sqliteTimeLayout, created)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", created, err)
	}
	run.CreatedAt = ts
	return &run, nil
}

func encodeRunJSON(run *domain.BacktestRun) (summary, curve []byte, err error) {
	if run.ID == "" {
		return nil, nil, errors.New("run has no id")
	}
	summary, err = json.Marshal(run.Summary)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding summary: %w", err)
	}
	states := run.EquityCurve
	if states == nil {
		states = []domain.AccountState{}
	}
	curve, err = json.Marshal(states)
	if err != nil {
		return nil, nil, fmt.Errorf("encoding equity curve: %w", err)
	}
	return summary, curve, nil
}
