package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"stockbt/internal/config"
	"stockbt/internal/gather"
	"stockbt/internal/store"
	"stockbt/internal/util"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config file (default $STOCKBT_CONFIG or "+config.DefaultPath+")")
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
	tickers := flag.String("tickers", "", "comma-separated tickers (default: gather.tickers from config)")
	flag.Parse()

	if err := config.LoadEnvFile(*envFile); err != nil {
		log.Fatalf("failed to load %s: %v", *envFile, err)
	}
	cfg, err := config.Load(config.ResolvePath(*cfgPath))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	var upstream gather.Provider
	switch cfg.Gather.Source {
	case config.SourceAlpaca:
		if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
			log.Fatal("alpaca source needs api_key and api_secret")
		}
		upstream = gather.NewAlpacaFromConfig(cfg, logger)
	case config.SourceCSV:
		upstream = gather.NewCSVProvider(cfg.Storage.CSVDir)
	default:
		log.Fatalf("unknown market-data source %q", cfg.Gather.Source)
	}

	syms := cfg.Gather.Tickers
	if *tickers != "" {
		syms = strings.Split(*tickers, ",")
	}
	if len(syms) == 0 {
		if tl, ok := upstream.(gather.TickerLister); ok {
			syms, err = tl.Tickers(context.Background())
			if err != nil {
				log.Fatalf("failed to list tickers: %v", err)
			}
		} else {
			syms = gather.DefaultTickers
		}
	}

	pstore := store.NewParquetStore(cfg.Storage.DataDir, cfg.Storage.Market)
	g, err := gather.NewDailyBarGatherer(upstream, pstore, syms, cfg.Gather.StartDate, cfg.Gather.MaxWorkers, logger)
	if err != nil {
		log.Fatalf("failed to create gatherer: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("starting stockbt-gather", "source", upstream.Name(), "tickers", len(syms), "dataDir", cfg.Storage.DataDir)
	if err := g.Run(ctx); err != nil {
		log.Fatalf("gather error: %v", err)
	}
}
