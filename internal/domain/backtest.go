package domain

import (
	"fmt"
	"strings"
	"time"
)

// RuleSpec is the wire form of a Rule, as typed by the user.
type RuleSpec struct {
	IfCondition string `json:"if_condition"`
	ThenAction  string `json:"then_action"`
	ElseAction  string `json:"else_action"`
}

// BacktestRequest is the API-level request. Strings are validated into a
// SimulationConfig before anything runs.
type BacktestRequest struct {
	Ticker         string   `json:"ticker"`
	StartDate      string   `json:"start_date"`
	EndDate        string   `json:"end_date"`
	SMAPeriod      int      `json:"sma_period"`
	Rule           RuleSpec `json:"rule"`
	InitialCapital *float64 `json:"initial_capital,omitempty"`
}

// Validate checks every field and returns the typed simulation config and
// date range. All problems are reported together in a *ValidationError.
func (r BacktestRequest) Validate(now time.Time) (SimulationConfig, DateRange, error) {
	verr := &ValidationError{}
	var (
		cfg SimulationConfig
		rng DateRange
	)

	cfg.Ticker = strings.ToUpper(strings.TrimSpace(r.Ticker))
	if cfg.Ticker == "" {
		verr.add("ticker symbol is required")
	}

	start, serr := time.Parse(DateLayout, r.StartDate)
	end, eerr := time.Parse(DateLayout, r.EndDate)
	if serr != nil || eerr != nil {
		verr.add("invalid date format, use YYYY-MM-DD")
	} else {
		if !start.Before(end) {
			verr.add("start date must be before end date")
		}
		if start.After(now) {
			verr.add("start date cannot be in the future")
		}
		rng = DateRange{Start: start, End: end}
	}

	cfg.SMAPeriod = r.SMAPeriod
	if r.SMAPeriod < 1 || r.SMAPeriod > MaxSMAPeriod {
		verr.add(fmt.Sprintf("sma period must be between 1 and %d", MaxSMAPeriod))
	}

	cfg.InitialCapital = DefaultInitialCapital
	if r.InitialCapital != nil {
		cfg.InitialCapital = *r.InitialCapital
		if !(cfg.InitialCapital > 0) {
			verr.add("initial capital must be positive")
		}
	}

	cond, err := ParseCondition(r.Rule.IfCondition)
	if err != nil {
		verr.add(fmt.Sprintf("invalid rule condition, must be one of: %s", joinConditions()))
	}
	then, err := ParseAction(r.Rule.ThenAction)
	if err != nil {
		verr.add(fmt.Sprintf("invalid 'then' action, must be one of: %s", joinActions()))
	}
	els, err := ParseAction(r.Rule.ElseAction)
	if err != nil {
		verr.add(fmt.Sprintf("invalid 'else' action, must be one of: %s", joinActions()))
	}
	cfg.Rule = Rule{Condition: cond, Then: then, Else: els}

	if err := verr.orNil(); err != nil {
		return SimulationConfig{}, DateRange{}, err
	}
	return cfg, rng, nil
}

func joinConditions() string {
	s := make([]string, len(Conditions))
	for i, c := range Conditions {
		s[i] = string(c)
	}
	return strings.Join(s, ", ")
}

func joinActions() string {
	s := make([]string, len(Actions))
	for i, a := range Actions {
		s[i] = string(a)
	}
	return strings.Join(s, ", ")
}

// BacktestResult is the API-level response.
type BacktestResult struct {
	TotalReturn float64        `json:"total_return"` // percent
	WinRate     float64        `json:"win_rate"`     // percent
	NumTrades   int            `json:"num_trades"`
	EquityCurve []AccountState `json:"equity_curve"`
	Trades      []Trade        `json:"trades"`
	Summary     SummaryMetrics `json:"summary"`
	Ticker      string         `json:"ticker"`
	StartDate   string         `json:"start_date"`
	EndDate     string         `json:"end_date"`

	// RunID is set when the run was persisted.
	RunID string `json:"run_id,omitempty"`
}

// BacktestRun is a persisted, completed backtest owned by a user.
type BacktestRun struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Ticker         string         `json:"ticker"`
	StartDate      string         `json:"start_date"`
	EndDate        string         `json:"end_date"`
	SMAPeriod      int            `json:"sma_period"`
	Rule           RuleSpec       `json:"rule"`
	InitialCapital float64        `json:"initial_capital"`
	TotalReturn    float64        `json:"total_return"`
	WinRate        float64        `json:"win_rate"`
	NumTrades      int            `json:"num_trades"`
	Summary        SummaryMetrics `json:"summary"`
	EquityCurve    []AccountState `json:"equity_curve,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
