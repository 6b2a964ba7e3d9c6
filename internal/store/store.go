// Package store defines storage interfaces for persisting and retrieving
// daily bars and completed backtest runs, with Parquet, SQLite and Postgres
// implementations.
package store

import (
	"context"
	"errors"
	"time"

	"stockbt/internal/domain"
)

// ErrRunNotFound is returned by RunStore.GetRun for an unknown ID.
var ErrRunNotFound = errors.New("backtest run not found")

// DefaultListLimit applies when ListRuns is called with limit <= 0.
const DefaultListLimit = 10

// MaxListLimit caps a single ListRuns page.
const MaxListLimit = 500

// BarStore persists and retrieves daily OHLCV bar data.
type BarStore interface {
	// WriteBars persists a batch of bars to storage, replacing bars with the
	// same symbol and day.
	WriteBars(ctx context.Context, bars []domain.Bar) error

	// ReadBars returns bars for the given symbol within [start, end] in date
	// order.
	ReadBars(ctx context.Context, symbol string, start, end time.Time) ([]domain.Bar, error)

	// ListSymbols returns all distinct symbols that have stored bars.
	ListSymbols(ctx context.Context) ([]string, error)
}

// RunStore persists completed backtests.
type RunStore interface {
	// SaveRun inserts a run. ID and CreatedAt must already be set.
	SaveRun(ctx context.Context, run *domain.BacktestRun) error

	// GetRun retrieves a single run, including its equity curve, or
	// ErrRunNotFound.
	GetRun(ctx context.Context, id string) (*domain.BacktestRun, error)

	// ListRuns returns runs newest first without their equity curves. An
	// empty userID lists every user's runs.
	ListRuns(ctx context.Context, userID string, offset, limit int) ([]domain.BacktestRun, error)

	// Close releases the underlying connection.
	Close() error
}

// clampPage normalises pagination arguments.
func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return offset, limit
}
