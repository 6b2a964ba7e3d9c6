package domain

import (
	"fmt"
	"strings"
)

// Condition is the boolean test a Rule evaluates each day.
type Condition string

const (
	PriceAboveSMA        Condition = "price > sma"
	PriceBelowSMA        Condition = "price < sma"
	PriceAtOrAboveSMA    Condition = "price >= sma"
	PriceAtOrBelowSMA    Condition = "price <= sma"
	VolumeAboveAvgVolume Condition = "volume > avg_volume"
	VolumeBelowAvgVolume Condition = "volume < avg_volume"
)

// Conditions lists every supported condition in display order.
var Conditions = []Condition{
	PriceAboveSMA,
	PriceBelowSMA,
	PriceAtOrAboveSMA,
	PriceAtOrBelowSMA,
	VolumeAboveAvgVolume,
	VolumeBelowAvgVolume,
}

// ParseCondition accepts any casing and spacing, e.g. "Price>SMA".
func ParseCondition(s string) (Condition, error) {
	norm := normalizeCondition(s)
	for _, c := range Conditions {
		if normalizeCondition(string(c)) == norm {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown condition %q", s)
}

func normalizeCondition(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}

// UsesVolume reports whether the condition compares volume rather than price.
func (c Condition) UsesVolume() bool {
	return c == VolumeAboveAvgVolume || c == VolumeBelowAvgVolume
}

// Evaluate applies the condition to today's close and volume against the
// trailing indicators. A nil indicator evaluates to false.
func (c Condition) Evaluate(close float64, volume int64, sma, avgVolume *float64) bool {
	switch c {
	case PriceAboveSMA:
		return sma != nil && close > *sma
	case PriceBelowSMA:
		return sma != nil && close < *sma
	case PriceAtOrAboveSMA:
		return sma != nil && close >= *sma
	case PriceAtOrBelowSMA:
		return sma != nil && close <= *sma
	case VolumeAboveAvgVolume:
		return avgVolume != nil && float64(volume) > *avgVolume
	case VolumeBelowAvgVolume:
		return avgVolume != nil && float64(volume) < *avgVolume
	default:
		return false
	}
}

// Action is what the simulator does with the position once the rule has been
// evaluated.
type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
	ActionHold Action = "hold"
	ActionExit Action = "exit"
)

// Actions lists every supported action.
var Actions = []Action{ActionBuy, ActionSell, ActionHold, ActionExit}

// ParseAction is case-insensitive.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Actions {
		if a == known {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// Rule is "if Condition then Then else Else".
type Rule struct {
	Condition Condition
	Then      Action
	Else      Action
}

// Select returns the action for the evaluated condition.
func (r Rule) Select(conditionMet bool) Action {
	if conditionMet {
		return r.Then
	}
	return r.Else
}

func (r Rule) String() string {
	return fmt.Sprintf("if %s then %s else %s", r.Condition, r.Then, r.Else)
}

const (
	DefaultInitialCapital = 10000.0
	DefaultSMAPeriod      = 10
	MaxSMAPeriod          = 200
)

// SimulationConfig fully describes one simulation run. It is not modified
// once the run starts.
type SimulationConfig struct {
	Ticker         string
	InitialCapital float64
	SMAPeriod      int
	Rule           Rule
}
