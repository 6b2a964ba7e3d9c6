package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"stockbt/internal/api"
	"stockbt/internal/config"
	"stockbt/internal/domain"
	"stockbt/internal/gather"
	"stockbt/internal/store"
	"stockbt/internal/strategy"
	"stockbt/internal/strategy/builtins"
	"stockbt/internal/util"
	"stockbt/pkg/stockbt"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: stockbt-cli <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version    Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  run        Run a backtest locally or against a server\n")
	fmt.Fprintf(os.Stderr, "  tickers    List available tickers\n")
	fmt.Fprintf(os.Stderr, "  runs       List saved backtest runs\n")
	fmt.Fprintf(os.Stderr, "  show       Show one saved run\n")
	fmt.Fprintf(os.Stderr, "\nRun 'stockbt-cli <command> -h' for command options.\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("stockbt-cli %s\n", version)
	case "run":
		err = cmdRun(ctx, os.Args[2:])
	case "tickers":
		err = cmdTickers(ctx, os.Args[2:])
	case "runs":
		err = cmdRuns(ctx, os.Args[2:])
	case "show":
		err = cmdShow(ctx, os.Args[2:])
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", os.Args[1], err)
	}
}

// common holds the flags shared by every command.
type common struct {
	cfgPath string
	envFile string
	remote  string
	user    string
	role    string
	asJSON  bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.cfgPath, "config", "", "YAML config file for local mode")
	fs.StringVar(&c.envFile, "env", ".env", "dotenv file to load in local mode")
	fs.StringVar(&c.remote, "remote", "", "stockbt-server base URL; empty runs locally")
	fs.StringVar(&c.user, "user", os.Getenv("STOCKBT_USER"), "user id sent to the server")
	fs.StringVar(&c.role, "role", "", "user role sent to the server")
	fs.BoolVar(&c.asJSON, "json", false, "print raw JSON instead of a report")
}

func (c *common) client() *stockbt.Client {
	return stockbt.NewClient(c.remote, stockbt.WithUser(c.user, c.role))
}

// loadConfig loads the local config and installs a stderr logger so the
// report on stdout stays clean.
func (c *common) loadConfig() (*config.Config, *slog.Logger, error) {
	if err := config.LoadEnvFile(c.envFile); err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(config.ResolvePath(c.cfgPath))
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: util.ParseLevel(cfg.Logging.Level)}))
	util.SetDefault(logger)
	return cfg, logger, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ---------------------------------------------------------------------------
// Commands
// ---------------------------------------------------------------------------

func cmdRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var c common
	c.register(fs)
	grpcAddr := fs.String("grpc", "", "stockbt-server gRPC address; overrides -remote")
	var req domain.BacktestRequest
	fs.StringVar(&req.Ticker, "ticker", "", "ticker symbol")
	fs.StringVar(&req.StartDate, "start", "", "start date YYYY-MM-DD")
	fs.StringVar(&req.EndDate, "end", "", "end date YYYY-MM-DD")
	fs.IntVar(&req.SMAPeriod, "sma", domain.DefaultSMAPeriod, "SMA period, 1..200")
	fs.StringVar(&req.Rule.IfCondition, "if", string(domain.PriceAboveSMA), "rule condition")
	fs.StringVar(&req.Rule.ThenAction, "then", string(domain.ActionBuy), "action when the condition holds")
	fs.StringVar(&req.Rule.ElseAction, "else", string(domain.ActionExit), "action otherwise")
	capital := fs.Float64("capital", 0, "initial capital (default from config)")
	trades := fs.Int("trades", 10, "number of trades to list in the report")
	fs.Parse(args)

	if *capital != 0 {
		req.InitialCapital = capital
	}

	var (
		res *domain.BacktestResult
		err error
	)
	switch {
	case *grpcAddr != "":
		res, err = api.RunRemote(ctx, *grpcAddr, c.user, req)
	case c.remote != "":
		res, err = c.client().RunBacktest(ctx, req)
	default:
		res, err = runLocal(ctx, &c, req)
	}
	if err != nil {
		return err
	}

	if c.asJSON {
		return printJSON(res)
	}
	fmt.Print(renderReport(res, *trades))
	return nil
}

func runLocal(ctx context.Context, c *common, req domain.BacktestRequest) (*domain.BacktestResult, error) {
	cfg, logger, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	provider, err := gather.NewProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	registry := strategy.NewRegistry()
	builtins.Register(registry)
	bt := strategy.NewBacktester(provider, nil, registry, logger)
	bt.SetDefaults(cfg.Backtest.InitialCapital, cfg.Backtest.Timeout)
	return bt.Run(ctx, req)
}

func cmdTickers(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tickers", flag.ExitOnError)
	var c common
	c.register(fs)
	fs.Parse(args)

	var (
		tickers []string
		err     error
	)
	if c.remote != "" {
		tickers, err = c.client().Tickers(ctx)
	} else {
		var cfg *config.Config
		var logger *slog.Logger
		if cfg, logger, err = c.loadConfig(); err != nil {
			return err
		}
		var provider gather.Provider
		if provider, err = gather.NewProvider(cfg, logger); err != nil {
			return err
		}
		bt := strategy.NewBacktester(provider, nil, strategy.NewRegistry(), logger)
		tickers, err = bt.Tickers(ctx)
	}
	if err != nil {
		return err
	}

	if c.asJSON {
		return printJSON(tickers)
	}
	for _, t := range tickers {
		fmt.Println(t)
	}
	return nil
}

func cmdRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	var c common
	c.register(fs)
	skip := fs.Int("skip", 0, "runs to skip")
	limit := fs.Int("limit", store.DefaultListLimit, "runs to list")
	fs.Parse(args)

	var (
		runs []domain.BacktestRun
		err  error
	)
	if c.remote != "" {
		runs, err = c.client().ListRuns(ctx, *skip, *limit)
	} else {
		var rs store.RunStore
		if rs, err = openLocalRuns(ctx, &c); err != nil {
			return err
		}
		defer rs.Close()
		runs, err = rs.ListRuns(ctx, c.user, *skip, *limit)
	}
	if err != nil {
		return err
	}

	if c.asJSON {
		return printJSON(runs)
	}
	fmt.Print(renderRunList(runs))
	return nil
}

func cmdShow(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("show", flag.ExitOnError)
	var c common
	c.register(fs)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: stockbt-cli show [options] <run-id>")
	}
	id := fs.Arg(0)

	var (
		run *domain.BacktestRun
		err error
	)
	if c.remote != "" {
		run, err = c.client().GetRun(ctx, id)
	} else {
		var rs store.RunStore
		if rs, err = openLocalRuns(ctx, &c); err != nil {
			return err
		}
		defer rs.Close()
		run, err = rs.GetRun(ctx, id)
	}
	if err != nil {
		return err
	}

	if c.asJSON {
		return printJSON(run)
	}
	fmt.Print(renderReport(runResult(run), 0))
	return nil
}

func openLocalRuns(ctx context.Context, c *common) (store.RunStore, error) {
	cfg, _, err := c.loadConfig()
	if err != nil {
		return nil, err
	}
	return store.OpenRunStore(ctx, cfg.Storage)
}

// runResult turns a saved run back into a result for reporting. Saved runs
// do not keep their trade list.
func runResult(run *domain.BacktestRun) *domain.BacktestResult {
	return &domain.BacktestResult{
		TotalReturn: run.TotalReturn,
		WinRate:     run.WinRate,
		NumTrades:   run.NumTrades,
		EquityCurve: run.EquityCurve,
		Summary:     run.Summary,
		Ticker:      run.Ticker,
		StartDate:   run.StartDate,
		EndDate:     run.EndDate,
		RunID:       run.ID,
	}
}
