// Package domain defines the core types shared across stockbt: daily bars,
// trading rules, simulated account states, realised trades and the summary
// metrics derived from them.
package domain

import "time"

// Bar is a single daily OHLCV price point for one ticker.
type Bar struct {
	Symbol     string    `json:"symbol"`
	Timestamp  time.Time `json:"date"` // UTC midnight of the trading day
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
	TradeCount int64     `json:"trade_count,omitempty"`
	VWAP       float64   `json:"vwap,omitempty"`
}

// Side is the direction of an open position or realised trade.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// AccountState is the end-of-day snapshot of the simulated account. Equity is
// always Cash + PositionSize*ClosePrice.
type AccountState struct {
	Date          time.Time `json:"date"`
	Cash          float64   `json:"cash"`
	PositionSize  float64   `json:"position_size"` // >0 long, <0 short, 0 flat
	Equity        float64   `json:"equity"`
	ClosePrice    float64   `json:"close_price"`
	SMA           *float64  `json:"sma"`            // nil during warm-up
	AverageVolume *float64  `json:"average_volume"` // nil during warm-up
}

// Trade is a closed round trip.
type Trade struct {
	EntryDate  time.Time `json:"entry_date"`
	ExitDate   time.Time `json:"exit_date"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Size       float64   `json:"size"` // absolute number of shares
	Side       Side      `json:"direction"`
	PnL        float64   `json:"pnl"`
}

// DurationDays returns the calendar days between entry and exit.
func (t Trade) DurationDays() float64 {
	return t.ExitDate.Sub(t.EntryDate).Hours() / 24
}

// SummaryMetrics aggregates an equity curve and its trade list.
type SummaryMetrics struct {
	TotalReturnPct       float64 `json:"total_return_pct"`
	WinRatePct           float64 `json:"win_rate_pct"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	MaxDrawdownPct       float64 `json:"max_drawdown_pct"`
	AnnualReturnPct      float64 `json:"annual_return_pct"`
	VolatilityPct        float64 `json:"volatility_pct"`
	TotalTrades          int     `json:"total_trades"`
	WinningTrades        int     `json:"winning_trades"`
	LosingTrades         int     `json:"losing_trades"`
	AvgTradeDurationDays float64 `json:"avg_trade_duration_days"`
	MaxConsecutiveWins   int     `json:"max_consecutive_wins"`
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// DateRange is an inclusive range of calendar days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls on a day inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := TruncateDay(t)
	return !d.Before(TruncateDay(r.Start)) && !d.After(TruncateDay(r.End))
}

// TruncateDay returns UTC midnight of the calendar day t falls on in UTC.
func TruncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"
