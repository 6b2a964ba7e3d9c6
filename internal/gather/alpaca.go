package gather

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"stockbt/internal/domain"
	"stockbt/internal/util"
)

// Compile-time interface check.
var _ Provider = (*AlpacaProvider)(nil)

// AlpacaProvider fetches split-adjusted daily bars from the Alpaca market
// data API. Calls are paced by a token-bucket limiter and retried with
// exponential backoff.
type AlpacaProvider struct {
	client     *marketdata.Client
	feed       string
	limiter    *util.RateLimiter
	maxRetries int
	retryDelay time.Duration
	log        *slog.Logger
}

// AlpacaOptions configures NewAlpacaProvider.
type AlpacaOptions struct {
	APIKey          string
	APISecret       string
	DataURL         string // empty uses the SDK default
	Feed            string // sip | iex; empty means sip
	RateLimitPerMin int    // <= 0 disables pacing
	MaxRetries      int    // attempts per request; <= 0 means 3
	Logger          *slog.Logger
}

// NewAlpacaProvider creates a provider with the given credentials.
func NewAlpacaProvider(o AlpacaOptions) *AlpacaProvider {
	opts := marketdata.ClientOpts{
		APIKey:    o.APIKey,
		APISecret: o.APISecret,
	}
	if o.DataURL != "" {
		opts.BaseURL = o.DataURL
	}
	if o.Feed == "" {
		o.Feed = "sip"
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = 3
	}
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}
	return &AlpacaProvider{
		client:     marketdata.NewClient(opts),
		feed:       o.Feed,
		limiter:    util.NewRateLimiter(o.RateLimitPerMin),
		maxRetries: o.MaxRetries,
		retryDelay: 500 * time.Millisecond,
		log:        log.With("provider", "alpaca"),
	}
}

// Name returns "alpaca".
func (p *AlpacaProvider) Name() string { return "alpaca" }

// GetDailyBars fetches one ticker's daily bars for the inclusive day range.
func (p *AlpacaProvider) GetDailyBars(ctx context.Context, ticker string, start, end time.Time) ([]domain.Bar, error) {
	sym := NormalizeTicker(ticker)
	if sym == "" {
		return nil, fmt.Errorf("ticker %q: %w", ticker, domain.ErrNoData)
	}

	req := marketdata.GetBarsRequest{
		TimeFrame:  marketdata.OneDay,
		Start:      domain.TruncateDay(start),
		End:        domain.TruncateDay(end).AddDate(0, 0, 1).Add(-time.Second),
		Adjustment: marketdata.Split,
		Feed:       marketdata.Feed(p.feed),
	}

	var raw []marketdata.Bar
	err := util.Retry(ctx, p.maxRetries, p.retryDelay, func() error {
		if err := p.limiter.Wait(ctx); err != nil {
			return util.Permanent(err)
		}
		var err error
		raw, err = p.client.GetBars(sym, req)
		if err != nil {
			p.log.Warn("GetBars failed", "symbol", sym, "err", err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s bars from alpaca: %w", sym, err)
	}

	bars := make([]domain.Bar, 0, len(raw))
	for _, ab := range raw {
		bars = append(bars, domain.Bar{
			Timestamp:  ab.Timestamp,
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
			TradeCount: int64(ab.TradeCount),
			VWAP:       ab.VWAP,
		})
	}
	bars = normalizeBars(sym, bars, start, end)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s between %s and %s: %w", sym,
			start.Format(domain.DateLayout), end.Format(domain.DateLayout), domain.ErrNoData)
	}
	p.log.Debug("fetched bars", "symbol", sym, "count", len(bars))
	return bars, nil
}
