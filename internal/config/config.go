// Package config loads the service configuration from a file, the
// environment (NFT_AMM_*) and optional .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/holiman/uint256"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/nft-amm/internal/global"
	"github.com/rovshanmuradov/nft-amm/internal/logger"
	"github.com/rovshanmuradov/nft-amm/internal/payout"
	"github.com/rovshanmuradov/nft-amm/internal/storage/sqldb"
	"github.com/rovshanmuradov/nft-amm/internal/types"
	"github.com/rovshanmuradov/nft-amm/pkg/fixedpoint"
)

const envPrefix = "NFT_AMM"

// DriverMemory keeps all state in process memory.
const DriverMemory = "memory"

type Config struct {
	HTTP       HTTPConfig       `mapstructure:"http"`
	Database   sqldb.Config     `mapstructure:"database"`
	Logging    logger.Config    `mapstructure:"logging"`
	Global     GlobalConfig     `mapstructure:"global"`
	Royalties  []RoyaltyConfig  `mapstructure:"royalties"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Events     EventsConfig     `mapstructure:"events"`
	History    HistoryConfig    `mapstructure:"history"`
	// DevMode exposes ledger credit and NFT mint endpoints.
	DevMode bool `mapstructure:"dev_mode"`
}

type HTTPConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GlobalConfig is the file form of global.Config. Percentages are decimal
// fractions ("0.01" is 1%) and amounts are base-10 integers.
type GlobalConfig struct {
	FairBurnAddress      string       `mapstructure:"fair_burn_address"`
	FairBurnFeePercent   string       `mapstructure:"fair_burn_fee_percent"`
	MaxRoyaltyFeePercent string       `mapstructure:"max_royalty_fee_percent"`
	MaxSwapFeePercent    string       `mapstructure:"max_swap_fee_percent"`
	PairCreationFee      CoinConfig   `mapstructure:"pair_creation_fee"`
	MinPrices            []CoinConfig `mapstructure:"min_prices"`
}

type CoinConfig struct {
	Denom  string `mapstructure:"denom"`
	Amount string `mapstructure:"amount"`
}

type RoyaltyConfig struct {
	Collection   string `mapstructure:"collection"`
	Recipient    string `mapstructure:"recipient"`
	SharePercent string `mapstructure:"share_percent"`
}

type SettlementConfig struct {
	MaxTries        uint          `mapstructure:"max_tries"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
}

type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
	// Workers is the number of delivery shards; events of one pair stay on one.
	Workers int `mapstructure:"workers"`
}

type HistoryConfig struct {
	// Dir holds the fill CSV files. Empty keeps history in memory only.
	Dir        string `mapstructure:"dir"`
	MaxRecords int    `mapstructure:"max_records"`
}

const (
	DefaultHTTPAddr        = ":8080"
	DefaultMaxTries        = 3
	DefaultInitialInterval = 50 * time.Millisecond
	DefaultEventBuffer     = 256
	DefaultEventWorkers    = 4
	DefaultHistoryRecords  = 1000
)

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"http.addr":                       DefaultHTTPAddr,
		"http.read_timeout":               "10s",
		"http.write_timeout":              "10s",
		"http.shutdown_timeout":           "15s",
		"database.driver":                 DriverMemory,
		"database.dsn":                    "",
		"database.log_level":              "warn",
		"database.slow_threshold":         "200ms",
		"logging.file":                    "logs/ammd.log",
		"logging.max_size":                100,
		"logging.max_age":                 7,
		"logging.max_backups":             3,
		"logging.compress":                true,
		"logging.development":             false,
		"logging.pretty":                  false,
		"global.fair_burn_address":        "fair-burn",
		"global.fair_burn_fee_percent":    "0.005",
		"global.max_royalty_fee_percent":  "0.05",
		"global.max_swap_fee_percent":     "0.1",
		"global.pair_creation_fee.denom":  "",
		"global.pair_creation_fee.amount": "0",
		"global.min_prices": []map[string]interface{}{
			{"denom": "ustars", "amount": "100"},
		},
		"settlement.max_tries":        DefaultMaxTries,
		"settlement.initial_interval": DefaultInitialInterval.String(),
		"events.buffer_size":          DefaultEventBuffer,
		"events.workers":              DefaultEventWorkers,
		"history.dir":                 "logs",
		"history.max_records":         DefaultHistoryRecords,
		"dev_mode":                    false,
	}
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// LoadConfig reads path (optional) and the environment. Environment
// variables take precedence over the file: NFT_AMM_HTTP_ADDR overrides
// http.addr.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	switch c.Database.Driver {
	case DriverMemory:
	case sqldb.DriverSQLite, sqldb.DriverPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for driver %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Settlement.MaxTries == 0 {
		return errors.New("settlement.max_tries must be at least 1")
	}
	if c.Settlement.InitialInterval <= 0 {
		return errors.New("invalid settlement.initial_interval")
	}
	if c.Events.BufferSize <= 0 {
		return errors.New("invalid events.buffer_size")
	}
	if c.History.MaxRecords < 0 {
		return errors.New("invalid history.max_records")
	}

	gc, err := c.Global.Build()
	if err != nil {
		return err
	}
	if err := gc.Validate(); err != nil {
		return fmt.Errorf("invalid global config: %w", err)
	}
	if _, err := c.RoyaltyRegistry(); err != nil {
		return err
	}
	return nil
}

// Build parses the global parameters.
func (g GlobalConfig) Build() (*global.Config, error) {
	burn, err := parseFraction("global.fair_burn_fee_percent", g.FairBurnFeePercent)
	if err != nil {
		return nil, err
	}
	maxRoyalty, err := parseFraction("global.max_royalty_fee_percent", g.MaxRoyaltyFeePercent)
	if err != nil {
		return nil, err
	}
	maxSwap, err := parseFraction("global.max_swap_fee_percent", g.MaxSwapFeePercent)
	if err != nil {
		return nil, err
	}

	creationFee, err := g.PairCreationFee.coin()
	if err != nil {
		return nil, fmt.Errorf("global.pair_creation_fee: %w", err)
	}

	minPrices := make(map[string]uint256.Int, len(g.MinPrices))
	for _, mp := range g.MinPrices {
		coin, err := mp.coin()
		if err != nil {
			return nil, fmt.Errorf("global.min_prices: %w", err)
		}
		if coin.Denom == "" {
			return nil, errors.New("global.min_prices: denom is required")
		}
		if _, dup := minPrices[coin.Denom]; dup {
			return nil, fmt.Errorf("global.min_prices: duplicate denom %s", coin.Denom)
		}
		minPrices[coin.Denom] = coin.Amount
	}

	return &global.Config{
		FairBurnAddress:      g.FairBurnAddress,
		FairBurnFeePercent:   burn,
		MaxRoyaltyFeePercent: maxRoyalty,
		MaxSwapFeePercent:    maxSwap,
		PairCreationFee:      creationFee,
		MinPrices:            minPrices,
	}, nil
}

// RoyaltyRegistry builds the static royalty registry.
func (c *Config) RoyaltyRegistry() (global.StaticRoyalties, error) {
	registry := make(global.StaticRoyalties, len(c.Royalties))
	for _, r := range c.Royalties {
		if r.Collection == "" || r.Recipient == "" {
			return nil, errors.New("royalties: collection and recipient are required")
		}
		share, err := parseFraction("royalties.share_percent", r.SharePercent)
		if err != nil {
			return nil, err
		}
		registry[r.Collection] = payout.RoyaltyEntry{Recipient: r.Recipient, SharePercent: share}
	}
	return registry, nil
}

func (c CoinConfig) coin() (types.Coin, error) {
	amount := c.Amount
	if amount == "" {
		amount = "0"
	}
	a, err := fixedpoint.ParseAmount(amount)
	if err != nil {
		return types.Coin{}, err
	}
	return types.Coin{Denom: c.Denom, Amount: *a}, nil
}

func parseFraction(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	if err := fixedpoint.ValidateFraction(name, d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
