package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os/signal"
	"syscall"

	"stockbt/internal/api"
	"stockbt/internal/config"
	"stockbt/internal/gather"
	"stockbt/internal/httpapi"
	"stockbt/internal/store"
	"stockbt/internal/strategy"
	"stockbt/internal/strategy/builtins"
	"stockbt/internal/util"
)

func main() {
	cfgPath := flag.String("config", "", "YAML config file (default $STOCKBT_CONFIG or "+config.DefaultPath+")")
	envFile := flag.String("env", ".env", "dotenv file to load before reading the environment")
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

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider, err := gather.NewProvider(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create market-data provider: %v", err)
	}

	runs, err := store.OpenRunStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("failed to open run store: %v", err)
	}
	defer runs.Close()

	registry := strategy.NewRegistry()
	builtins.Register(registry)

	bt := strategy.NewBacktester(provider, runs, registry, logger)
	bt.SetDefaults(cfg.Backtest.InitialCapital, cfg.Backtest.Timeout)

	handler := httpapi.NewServer(bt, runs, registry.List(), logger).Handler()
	srv := api.NewServer(cfg.Server, handler, api.NewBacktestService(bt, logger), logger)

	slog.Info("stockbt-server starting",
		"http", cfg.Server.Addr(),
		"grpc", cfg.Server.GRPCAddr(),
		"source", provider.Name(),
		"storage", cfg.Storage.Driver,
	)
	if err := srv.ListenAndServe(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	slog.Info("stockbt-server stopped")
}
