package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stockbt/internal/domain"
)

// Compile-time interface check.
var _ RunStore = (*PostgresStore)(nil)

// PostgresStore implements RunStore on PostgreSQL through a pgx pool. The
// summary and equity curve are stored as JSONB.
type PostgresStore struct {
	db *pgxpool.Pool
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id               UUID PRIMARY KEY,
	user_id          TEXT NOT NULL,
	ticker           TEXT NOT NULL,
	start_date       DATE NOT NULL,
	end_date         DATE NOT NULL,
	sma_period       INTEGER NOT NULL,
	rule_condition   TEXT NOT NULL,
	rule_then_action TEXT NOT NULL,
	rule_else_action TEXT NOT NULL,
	initial_capital  DOUBLE PRECISION NOT NULL,
	total_return     DOUBLE PRECISION NOT NULL,
	win_rate         DOUBLE PRECISION NOT NULL,
	num_trades       INTEGER NOT NULL,
	summary          JSONB NOT NULL,
	equity_curve     JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_backtest_runs_user_created ON backtest_runs (user_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_backtest_runs_ticker ON backtest_runs (ticker);
`

// NewPostgresStore connects to databaseURL and creates the schema if needed.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	db, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := s.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("creating postgres schema: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// SaveRun inserts a completed run.
func (s *PostgresStore) SaveRun(ctx context.Context, run *domain.BacktestRun) error {
	summary, curve, err := encodeRunJSON(run)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 4*time.Second)
	defer cancel()
	_, err = s.db.Exec(ctx, `
		INSERT INTO backtest_runs (
			id, user_id, ticker, start_date, end_date, sma_period,
			rule_condition, rule_then_action, rule_else_action,
			initial_capital, total_return, win_rate, num_trades,
			summary, equity_curve, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		run.ID, run.UserID, run.Ticker, run.StartDate, run.EndDate, run.SMAPeriod,
		run.Rule.IfCondition, run.Rule.ThenAction, run.Rule.ElseAction,
		run.InitialCapital, run.TotalReturn, run.WinRate, run.NumTrades,
		summary, curve, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun retrieves a single run by ID.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (*domain.BacktestRun, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	row := s.db.QueryRow(ctx, `
		SELECT id::text, user_id, ticker, to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'),
		       sma_period, rule_condition, rule_then_action, rule_else_action,
		       initial_capital, total_return, win_rate, num_trades,
		       summary, created_at, equity_curve
		FROM backtest_runs WHERE id::text = $1`, id)

	var run domain.BacktestRun
	dest := append(runColumns(&run), &run.EquityCurve)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	return &run, nil
}

// ListRuns returns runs newest first, optionally restricted to one user.
func (s *PostgresStore) ListRuns(ctx context.Context, userID string, offset, limit int) ([]domain.BacktestRun, error) {
	offset, limit = clampPage(offset, limit)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := s.db.Query(ctx, `
		SELECT id::text, user_id, ticker, to_char(start_date, 'YYYY-MM-DD'), to_char(end_date, 'YYYY-MM-DD'),
		       sma_period, rule_condition, rule_then_action, rule_else_action,
		       initial_capital, total_return, win_rate, num_trades,
		       summary, created_at
		FROM backtest_runs
		WHERE ($1 = '' OR user_id = $1)
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.BacktestRun, 0)
	for rows.Next() {
		var run domain.BacktestRun
		if err := rows.Scan(runColumns(&run)...); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// runColumns lists scan targets in SELECT order; JSONB summary decodes
// straight into the struct.
func runColumns(run *domain.BacktestRun) []any {
	return []any{
		&run.ID, &run.UserID, &run.Ticker, &run.StartDate, &run.EndDate,
		&run.SMAPeriod, &run.Rule.IfCondition, &run.Rule.ThenAction, &run.Rule.ElseAction,
		&run.InitialCapital, &run.TotalReturn, &run.WinRate, &run.NumTrades,
		&run.Summary, &run.CreatedAt,
	}
}
