package strategy

import (
	"math"
	"sort"

	"stockbt/internal/domain"
)

// TradingDaysPerYear annualises daily return statistics.
const TradingDaysPerYear = 252

// Summarize derives the summary metrics from an equity curve and its trade
// list. It never modifies its inputs and never fails: empty inputs and
// degenerate denominators yield zeros.
//
// Trades with pnl <= 0 count as losses.
func Summarize(states []domain.AccountState, trades []domain.Trade, initialCapital float64) domain.SummaryMetrics {
	var m domain.SummaryMetrics
	m.TotalTrades = len(trades)

	if len(states) > 0 {
		last := states[len(states)-1]
		if initialCapital > 0 {
			m.TotalReturnPct = (last.Equity - initialCapital) / initialCapital * 100
		}
		m.AnnualReturnPct = annualize(m.TotalReturnPct, last.Date.Sub(states[0].Date).Hours()/24)

		returns := dailyReturns(states)
		mean, sd := meanStdev(returns)
		if sd > 0 {
			m.VolatilityPct = sd * math.Sqrt(TradingDaysPerYear) * 100
			m.SharpeRatio = mean / sd * math.Sqrt(TradingDaysPerYear)
		}
		m.MaxDrawdownPct = maxDrawdownPct(states)
	}

	if len(trades) == 0 {
		return m
	}

	ordered := make([]domain.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EntryDate.Before(ordered[j].EntryDate)
	})

	var totalDays float64
	winRun, lossRun := 0, 0
	for _, t := range ordered {
		totalDays += t.DurationDays()
		if t.PnL > 0 {
			m.WinningTrades++
			winRun++
			lossRun = 0
		} else {
			m.LosingTrades++
			lossRun++
			winRun = 0
		}
		m.MaxConsecutiveWins = max(m.MaxConsecutiveWins, winRun)
		m.MaxConsecutiveLosses = max(m.MaxConsecutiveLosses, lossRun)
	}
	m.WinRatePct = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	m.AvgTradeDurationDays = totalDays / float64(m.TotalTrades)
	return m
}

// dailyReturns skips days whose previous equity is zero.
func dailyReturns(states []domain.AccountState) []float64 {
	if len(states) < 2 {
		return nil
	}
	out := make([]float64, 0, len(states)-1)
	for i := 1; i < len(states); i++ {
		prev := states[i-1].Equity
		if prev == 0 {
			continue
		}
		out = append(out, states[i].Equity/prev-1)
	}
	return out
}

// meanStdev uses the sample (n-1) standard deviation; sd is 0 for fewer than
// two observations.
func meanStdev(xs []float64) (mean, sd float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	if len(xs) < 2 {
		return mean, 0
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)-1))
}

// annualize compounds a total return over elapsed calendar days to a yearly
// rate. A wiped-out account annualises to -100%. Steep gains over a few days
// overflow float64 and are clamped to math.MaxFloat64 so the summary stays
// JSON encodable.
func annualize(totalReturnPct, days float64) float64 {
	if days <= 0 {
		return totalReturnPct
	}
	growth := 1 + totalReturnPct/100
	if growth <= 0 {
		return -100
	}
	r := (math.Pow(growth, 365/days) - 1) * 100
	switch {
	case math.IsNaN(r):
		return 0
	case math.IsInf(r, 1):
		return math.MaxFloat64
	}
	return r
}

// maxDrawdownPct is the largest fall from the running equity peak, as a
// percentage of that peak, clamped to [0, 100].
func maxDrawdownPct(states []domain.AccountState) float64 {
	var peak, worst float64
	for i, s := range states {
		if i == 0 || s.Equity > peak {
			peak = s.Equity
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - s.Equity) / peak * 100; dd > worst {
			worst = dd
		}
	}
	return math.Min(worst, 100)
}
