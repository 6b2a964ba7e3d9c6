package domain

import (
	"errors"
	"strings"
)

var (
	// ErrNoData means the market-data source has zero bars for the ticker and
	// range, or does not know the ticker at all.
	ErrNoData = errors.New("no data for this ticker and date range")

	// ErrInsufficientData means there are fewer bars than the SMA period.
	ErrInsufficientData = errors.New("not enough bars for the sma period")
)

// ValidationError collects every problem found in a request. Nothing is
// simulated when one is returned.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid parameters: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) add(msg string) {
	e.Problems = append(e.Problems, msg)
}

func (e *ValidationError) orNil() error {
	if len(e.Problems) == 0 {
		return nil
	}
	return e
}
