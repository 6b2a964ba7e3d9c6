package gather

import (
	"errors"
	"fmt"
	"log/slog"

	"stockbt/internal/config"
	"stockbt/internal/store"
)

// NewAlpacaFromConfig builds the uncached Alpaca provider.
func NewAlpacaFromConfig(cfg *config.Config, log *slog.Logger) *AlpacaProvider {
	return NewAlpacaProvider(AlpacaOptions{
		APIKey:          cfg.Alpaca.APIKey,
		APISecret:       cfg.Alpaca.APISecret,
		DataURL:         cfg.Alpaca.DataURL,
		Feed:            cfg.Alpaca.Feed,
		RateLimitPerMin: cfg.Gather.RateLimitPerMin,
		MaxRetries:      cfg.Gather.MaxRetries,
		Logger:          log,
	})
}

// NewProvider builds the provider selected by cfg.Gather.Source. Alpaca is
// wrapped in the Parquet read-through cache.
func NewProvider(cfg *config.Config, log *slog.Logger) (Provider, error) {
	switch cfg.Gather.Source {
	case config.SourceCSV:
		return NewCSVProvider(cfg.Storage.CSVDir), nil
	case config.SourceAlpaca:
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			return nil, errors.New("alpaca source needs api_key and api_secret")
		}
		cache := store.NewParquetStore(cfg.Storage.DataDir, cfg.Storage.Market)
		return NewCachedProvider(NewAlpacaFromConfig(cfg, log), cache, log), nil
	default:
		return nil, fmt.Errorf("unknown market-data source %q", cfg.Gather.Source)
	}
}
