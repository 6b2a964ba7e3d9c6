package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"stockbt/internal/domain"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4")).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	boxStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("8")).Padding(0, 1)
)

// signed colours v green when positive and red when negative.
func signed(v float64, format string) string {
	s := fmt.Sprintf(format, v)
	switch {
	case v > 0:
		return gainStyle.Render(s)
	case v < 0:
		return lossStyle.Render(s)
	default:
		return valueStyle.Render(s)
	}
}

func metricRow(label, value string) string {
	return labelStyle.Width(22).Render(label) + value
}

// renderReport formats a result as a terminal report. At most maxTrades of
// the most recent trades are listed.
func renderReport(res *domain.BacktestResult, maxTrades int) string {
	var b strings.Builder

	title := fmt.Sprintf("%s  %s → %s", res.Ticker, res.StartDate, res.EndDate)
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n")

	m := res.Summary
	rows := []string{
		metricRow("Total return", signed(res.TotalReturn, "%+.2f%%")),
		metricRow("Annual return", signed(m.AnnualReturnPct, "%+.2f%%")),
		metricRow("Sharpe ratio", signed(m.SharpeRatio, "%.2f")),
		metricRow("Volatility", valueStyle.Render(fmt.Sprintf("%.2f%%", m.VolatilityPct))),
		metricRow("Max drawdown", signed(-m.MaxDrawdownPct, "%.2f%%")),
		metricRow("Trades", valueStyle.Render(fmt.Sprintf("%d (%d won, %d lost)", res.NumTrades, m.WinningTrades, m.LosingTrades))),
		metricRow("Win rate", valueStyle.Render(fmt.Sprintf("%.1f%%", res.WinRate))),
		metricRow("Avg trade duration", valueStyle.Render(fmt.Sprintf("%.1f days", m.AvgTradeDurationDays))),
		metricRow("Streaks (win/loss)", valueStyle.Render(fmt.Sprintf("%d / %d", m.MaxConsecutiveWins, m.MaxConsecutiveLosses))),
	}
	if n := len(res.EquityCurve); n > 0 {
		first, last := res.EquityCurve[0], res.EquityCurve[n-1]
		rows = append(rows,
			metricRow("Equity", valueStyle.Render(fmt.Sprintf("%.2f → %.2f", first.Equity, last.Equity))),
			metricRow("Final position", valueStyle.Render(fmt.Sprintf("%.4f sh", last.PositionSize))),
		)
	}
	if res.RunID != "" {
		rows = append(rows, metricRow("Run", dimStyle.Render(res.RunID)))
	}
	b.WriteString(boxStyle.Render(strings.Join(rows, "\n")))
	b.WriteString("\n")

	if maxTrades > 0 && len(res.Trades) > 0 {
		trades := res.Trades
		if len(trades) > maxTrades {
			trades = trades[len(trades)-maxTrades:]
		}
		b.WriteString(headerStyle.Render(fmt.Sprintf("%-6s %-10s %-10s %10s %10s %12s", "SIDE", "ENTRY", "EXIT", "IN", "OUT", "PNL")))
		b.WriteString("\n")
		for _, t := range trades {
			fmt.Fprintf(&b, "%-6s %-10s %-10s %10.2f %10.2f ",
				t.Side, t.EntryDate.Format(domain.DateLayout), t.ExitDate.Format(domain.DateLayout), t.EntryPrice, t.ExitPrice)
			b.WriteString(signed(t.PnL, "%12.2f"))
			b.WriteString("\n")
		}
		if hidden := len(res.Trades) - len(trades); hidden > 0 {
			b.WriteString(dimStyle.Render(fmt.Sprintf("… %d earlier trades", hidden)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderRunList formats saved runs one per line.
func renderRunList(runs []domain.BacktestRun) string {
	if len(runs) == 0 {
		return dimStyle.Render("no saved runs") + "\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-36s %-8s %-10s %-10s %4s %10s %7s %-16s",
		"ID", "TICKER", "START", "END", "SMA", "RETURN", "TRADES", "CREATED")))
	b.WriteString("\n")
	for _, r := range runs {
		fmt.Fprintf(&b, "%-36s %-8s %-10s %-10s %4d ", r.ID, r.Ticker, r.StartDate, r.EndDate, r.SMAPeriod)
		b.WriteString(signed(r.TotalReturn, "%+9.2f%%"))
		fmt.Fprintf(&b, " %7d %-16s\n", r.NumTrades, r.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return b.String()
}
