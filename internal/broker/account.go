// Package broker provides the simulated brokerage account used by the
// backtester. It holds cash plus at most one open position in one ticker and
// fills every order at the bar's close with no costs or slippage.
package broker

import (
	"time"

	"stockbt/internal/domain"
)

// Account is a single-position, all-in cash account. Sizing spends all
// available cash, fractional shares are allowed, and a position is never
// added to (no pyramiding).
//
// Shorting credits the sale proceeds to cash, so Equity = Cash + Size*Close
// holds for every position.
type Account struct {
	cash       float64
	size       float64 // >0 long, <0 short
	entryPrice float64
	entryDate  time.Time
}

// NewAccount creates a flat account holding startingCash.
func NewAccount(startingCash float64) *Account {
	return &Account{cash: startingCash}
}

// Cash returns the current cash balance.
func (a *Account) Cash() float64 { return a.cash }

// Position returns the signed position size.
func (a *Account) Position() float64 { return a.size }

// Flat reports whether no position is open.
func (a *Account) Flat() bool { return a.size == 0 }

// Equity marks the account to the given price.
func (a *Account) Equity(price float64) float64 {
	return a.cash + a.size*price
}

// Apply executes action at bar.Close and returns the trade it closed, if any.
//
//	buy:  flat -> long; long -> no-op; short -> close, then long
//	sell: flat -> short; short -> no-op; long -> close, then short
//	exit: close any open position
//	hold: nothing
func (a *Account) Apply(action domain.Action, bar domain.Bar) (closed *domain.Trade) {
	switch action {
	case domain.ActionBuy:
		if a.size > 0 {
			return nil
		}
		if a.size < 0 {
			closed = a.close(bar)
		}
		a.open(domain.SideLong, bar)
	case domain.ActionSell:
		if a.size < 0 {
			return nil
		}
		if a.size > 0 {
			closed = a.close(bar)
		}
		a.open(domain.SideShort, bar)
	case domain.ActionExit:
		if a.size != 0 {
			closed = a.close(bar)
		}
	case domain.ActionHold:
	}
	return closed
}

// Snapshot records the post-action state for the bar's day. Indicators are
// left for the caller to fill in.
func (a *Account) Snapshot(bar domain.Bar) domain.AccountState {
	return domain.AccountState{
		Date:         domain.TruncateDay(bar.Timestamp),
		Cash:         a.cash,
		PositionSize: a.size,
		Equity:       a.cash + a.size*bar.Close,
		ClosePrice:   bar.Close,
	}
}

func (a *Account) open(side domain.Side, bar domain.Bar) {
	if a.cash <= 0 || bar.Close <= 0 {
		return
	}
	qty := a.cash / bar.Close
	if side == domain.SideShort {
		qty = -qty
	}
	a.cash -= qty * bar.Close
	a.size = qty
	a.entryPrice = bar.Close
	a.entryDate = domain.TruncateDay(bar.Timestamp)
}

func (a *Account) close(bar domain.Bar) *domain.Trade {
	side := domain.SideLong
	qty := a.size
	if qty < 0 {
		side = domain.SideShort
		qty = -qty
	}
	tr := &domain.Trade{
		EntryDate:  a.entryDate,
		ExitDate:   domain.TruncateDay(bar.Timestamp),
		EntryPrice: a.entryPrice,
		ExitPrice:  bar.Close,
		Size:       qty,
		Side:       side,
		PnL:        a.size * (bar.Close - a.entryPrice),
	}
	a.cash += a.size * bar.Close
	a.size = 0
	a.entryPrice = 0
	a.entryDate = time.Time{}
	return tr
}
