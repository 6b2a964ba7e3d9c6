package gather

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stockbt/internal/domain"
)

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestCSVProviderGetDailyBars(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "AAPL.csv", `Date,Open,High,Low,Close,Volume,Dividends,Stock Splits
2024-01-03 00:00:00-05:00,184.2,185.9,183.4,184.3,58414500,0,0
2024-01-02 00:00:00-05:00,187.1,188.4,183.9,185.6,82488700,0,0
2024-01-04 00:00:00-05:00,182.2,183.1,180.9,181.9,71983600,0,0
`)
	p := NewCSVProvider(dir)

	bars, err := p.GetDailyBars(context.Background(), "aapl", day(2024, 1, 2), day(2024, 1, 3))
	if err != nil {
		t.Fatalf("GetDailyBars: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("got %d bars, want 2", len(bars))
	}
	if !bars[0].Timestamp.Equal(day(2024, 1, 2)) || bars[0].Close != 185.6 || bars[0].Volume != 82488700 {
		t.Errorf("first bar = %+v", bars[0])
	}
	if bars[1].Symbol != "AAPL" {
		t.Errorf("Symbol = %q, want AAPL", bars[1].Symbol)
	}
}

func TestCSVProviderNoData(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "MSFT.csv", "date,open,high,low,close,volume\n2024-01-02,1,1,1,1,10\n")
	p := NewCSVProvider(dir)
	ctx := context.Background()

	tests := []struct {
		name   string
		ticker string
	}{
		{"unknown ticker", "NOPE"},
		{"empty range", "MSFT"},
		{"path traversal", "../MSFT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.GetDailyBars(ctx, tt.ticker, day(2023, 1, 1), day(2023, 12, 31))
			if !errors.Is(err, domain.ErrNoData) {
				t.Errorf("err = %v, want ErrNoData", err)
			}
		})
	}
}

func TestCSVProviderBadFile(t *testing.T) {
	tests := []struct {
		name, content, want string
	}{
		{"missing column", "Date,Open,High,Low,Close\n2024-01-02,1,1,1,1\n", "volume"},
		{"bad date", "Date,Open,High,Low,Close,Volume\n01/02/2024,1,1,1,1,1\n", "line 2"},
		{"bad price", "Date,Open,High,Low,Close,Volume\n2024-01-02,1,x,1,1,1\n", "high"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeCSV(t, dir, "BAD.csv", tt.content)
			_, err := NewCSVProvider(dir).GetDailyBars(context.Background(), "BAD", day(2024, 1, 1), day(2024, 12, 31))
			if err == nil || errors.Is(err, domain.ErrNoData) {
				t.Fatalf("err = %v, want parse error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestCSVProviderTickers(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "TSLA.csv", "")
	writeCSV(t, dir, "AAPL.csv", "")
	writeCSV(t, dir, "notes.txt", "")
	if err := os.Mkdir(filepath.Join(dir, "sub.csv"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := NewCSVProvider(dir).Tickers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "AAPL,TSLA" {
		t.Errorf("Tickers = %v, want [AAPL TSLA]", got)
	}

	got, err = NewCSVProvider(filepath.Join(dir, "missing")).Tickers(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(DefaultTickers) {
		t.Errorf("missing dir Tickers = %v, want defaults", got)
	}
}
