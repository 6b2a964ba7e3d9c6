package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the binaries look for a config file when neither a
// flag nor STOCKBT_CONFIG names one.
const DefaultPath = "config/stockbt.yaml"

// Storage drivers for backtest run history.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Market-data sources.
const (
	SourceAlpaca = "alpaca"
	SourceCSV    = "csv"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for stockbt.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Server   Server   `yaml:"server"`
	Alpaca   Alpaca   `yaml:"alpaca"`
	Logging  Logging  `yaml:"logging"`
	Gather   Gather   `yaml:"gather"`
	Backtest Backtest `yaml:"backtest"`
}

// Storage holds paths and DSNs for data persistence.
type Storage struct {
	DataDir     string `yaml:"data_dir"` // Parquet bar cache root
	Market      string `yaml:"market"`
	Driver      string `yaml:"driver"` // sqlite | postgres
	SQLitePath  string `yaml:"sqlite_path"`
	DatabaseURL string `yaml:"database_url"`
	CSVDir      string `yaml:"csv_dir"`
}

// Server holds network listener configuration.
type Server struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	GRPCPort int    `yaml:"grpc_port"`
}

// Addr returns the HTTP listen address.
func (s Server) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// GRPCAddr returns the gRPC listen address, or "" when gRPC is disabled.
func (s Server) GRPCAddr() string {
	if s.GRPCPort <= 0 {
		return ""
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(s.GRPCPort))
}

// Alpaca holds credentials and endpoints for the Alpaca market data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
	Feed      string `yaml:"feed"` // sip | iex
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Gather controls where daily bars come from and how the backfill job runs.
type Gather struct {
	Source          string   `yaml:"source"` // alpaca | csv
	Tickers         []string `yaml:"tickers"`
	StartDate       string   `yaml:"start_date"`
	MaxWorkers      int      `yaml:"max_workers"`
	RateLimitPerMin int      `yaml:"rate_limit_per_min"`
	MaxRetries      int      `yaml:"max_retries"`
}

// Backtest holds request defaults and limits.
type Backtest struct {
	InitialCapital float64       `yaml:"initial_capital"`
	Timeout        time.Duration `yaml:"timeout"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// ResolvePath picks the config file: an explicit path wins, then
// STOCKBT_CONFIG, then DefaultPath if it exists. An empty result means
// "defaults and environment only".
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if v := os.Getenv("STOCKBT_CONFIG"); v != "" {
		return v
	}
	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath
	}
	return ""
}

// LoadEnvFile loads KEY=VALUE pairs from a dotenv file into the process
// environment without overriding variables that are already set. A missing
// file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Load reads the YAML configuration file at the given path (skipped when
// path is empty), applies environment variable overrides, fills defaults and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that would make the services fail later.
func (c *Config) Validate() error {
	var problems []string
	switch c.Storage.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Storage.DatabaseURL == "" {
			problems = append(problems, "storage.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage.driver %q", c.Storage.Driver))
	}
	switch c.Gather.Source {
	case SourceAlpaca, SourceCSV:
	default:
		problems = append(problems, fmt.Sprintf("unknown gather.source %q", c.Gather.Source))
	}
	if c.Gather.StartDate != "" {
		if _, err := time.Parse("2006-01-02", c.Gather.StartDate); err != nil {
			problems = append(problems, fmt.Sprintf("gather.start_date %q is not YYYY-MM-DD", c.Gather.StartDate))
		}
	}
	if c.Backtest.InitialCapital <= 0 {
		problems = append(problems, "backtest.initial_capital must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func applyDefaults(cfg *Config) {
	setDefault(&cfg.Storage.DataDir, "data")
	setDefault(&cfg.Storage.Market, "us")
	setDefault(&cfg.Storage.Driver, DriverSQLite)
	setDefault(&cfg.Storage.SQLitePath, "stockbt.db")
	setDefault(&cfg.Storage.CSVDir, "data/csv")

	setDefault(&cfg.Server.Host, "0.0.0.0")
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	setDefault(&cfg.Alpaca.DataURL, "https://data.alpaca.markets")
	setDefault(&cfg.Alpaca.Feed, "sip")

	setDefault(&cfg.Logging.Level, "info")
	setDefault(&cfg.Logging.Format, "json")

	if cfg.Gather.Source == "" {
		cfg.Gather.Source = SourceCSV
		if cfg.Alpaca.APIKey != "" {
			cfg.Gather.Source = SourceAlpaca
		}
	}
	setDefault(&cfg.Gather.StartDate, "2020-01-01")
	if cfg.Gather.MaxWorkers <= 0 {
		cfg.Gather.MaxWorkers = 4
	}
	if cfg.Gather.RateLimitPerMin == 0 {
		cfg.Gather.RateLimitPerMin = 200
	}
	if cfg.Gather.MaxRetries <= 0 {
		cfg.Gather.MaxRetries = 3
	}

	if cfg.Backtest.InitialCapital == 0 {
		cfg.Backtest.InitialCapital = 10000
	}
	if cfg.Backtest.Timeout <= 0 {
		cfg.Backtest.Timeout = 30 * time.Second
	}
}

func setDefault(field *string, value string) {
	if *field == "" {
		*field = value
	}
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("CSV_DIR"); v != "" {
		cfg.Storage.CSVDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
		if cfg.Storage.Driver == "" {
			cfg.Storage.Driver = DriverPostgres
		}
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}

	if v := os.Getenv("PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}
	if v := os.Getenv("ALPACA_FEED"); v != "" {
		cfg.Alpaca.Feed = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Standard Alpaca env vars take precedence; they are the names the SDK reads.
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
