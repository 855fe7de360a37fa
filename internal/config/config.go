// Package config defines the top-level configuration for the trading bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by REVBOT_* environment
// variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Exchange ExchangeConfig `toml:"exchange"`
	Risk     RiskConfig     `toml:"risk"`
	Trading  TradingConfig  `toml:"trading"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the exchange signing key.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ExchangeConfig holds exchange API endpoints and account parameters.
type ExchangeConfig struct {
	BaseURL string `toml:"base_url"`
	WsURL   string `toml:"ws_url"`
	ChainID int    `toml:"chain_id"`
	Asset   string `toml:"asset"` // settlement asset, e.g. "USDC"
}

// RiskConfig holds the position sizing and protective-price parameters.
// These are validated strictly: a bot with a broken risk config must not
// start.
type RiskConfig struct {
	RiskPercent float64 `toml:"risk_percent"` // % of balance risked per trade
	Leverage    float64 `toml:"leverage"`
	TPPercent   float64 `toml:"tp_percent"` // take-profit distance from entry
	SLPercent   float64 `toml:"sl_percent"` // stop-loss distance from entry
}

// TradingConfig holds admission gates and execution pacing.
type TradingConfig struct {
	Symbols          []string `toml:"symbols"` // whitelist
	MaxDailyTrades   int      `toml:"max_daily_trades"`
	MaxOpenPositions int      `toml:"max_open_positions"`
	MinBalance       float64  `toml:"min_balance"`
	SlippagePercent  float64  `toml:"slippage_percent"`

	WindowEnabled bool   `toml:"window_enabled"`
	WindowStart   string `toml:"window_start"` // "HH:MM" UTC
	WindowEnd     string `toml:"window_end"`   // "HH:MM" UTC

	ProtectiveRetries int      `toml:"protective_retries"`
	ProtectiveBackoff duration `toml:"protective_backoff"`
	EntrySettleDelay  duration `toml:"entry_settle_delay"`
	ConfirmTimeout    duration `toml:"confirm_timeout"`
	CallTimeout       duration `toml:"call_timeout"`

	SignalChannel string `toml:"signal_channel"` // redis pub/sub channel
}

// PostgresConfig holds PostgreSQL connection parameters for the trade
// journal and audit log. Leave DSN and Host empty to disable persistence.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`

	PriceTTL duration `toml:"price_ttl"` // mark-price cache expiry
}

// S3Config holds object storage parameters for the daily trade archive.
// Leave Bucket empty to disable archiving.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// NotifyConfig holds notification channel credentials and filtering.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration for TOML decoding of strings like "5m".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration a TOML file is merged over.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			BaseURL: "https://serverprod.vest.exchange/v2",
			WsURL:   "wss://wsprod.vest.exchange/ws",
			ChainID: 42161,
			Asset:   "USDC",
		},
		Risk: RiskConfig{
			RiskPercent: 2.5,
			Leverage:    20,
			TPPercent:   0.8,
			SLPercent:   0.3,
		},
		Trading: TradingConfig{
			Symbols:           []string{"BTC-PERP"},
			MaxDailyTrades:    5,
			MaxOpenPositions:  1,
			MinBalance:        5,
			SlippagePercent:   0.2,
			WindowEnabled:     false,
			WindowStart:       "00:00",
			WindowEnd:         "23:59",
			ProtectiveRetries: 3,
			ProtectiveBackoff: duration{500 * time.Millisecond},
			EntrySettleDelay:  duration{2 * time.Second},
			ConfirmTimeout:    duration{15 * time.Second},
			CallTimeout:       duration{10 * time.Second},
			SignalChannel:     "signals",
		},
		Postgres: PostgresConfig{
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			PriceTTL: duration{30 * time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{}, // empty means all events
		},
		Mode:     "paper",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"trade": true,
	"paper": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the Config for invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: trade, paper)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet is only needed when real orders are signed.
	if strings.ToLower(c.Mode) == "trade" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode trade")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Exchange.BaseURL == "" {
			errs = append(errs, "exchange: base_url must be set for mode trade")
		}
		if c.Exchange.WsURL == "" {
			errs = append(errs, "exchange: ws_url must be set for mode trade")
		}
	}

	// Risk parameters fail hard: trading with a zero stop-loss distance or
	// a >100% risk fraction is never a recoverable situation.
	if c.Risk.RiskPercent <= 0 || c.Risk.RiskPercent > 100 {
		errs = append(errs, fmt.Sprintf("risk: risk_percent must be in (0, 100], got %v", c.Risk.RiskPercent))
	}
	if c.Risk.Leverage < 1 {
		errs = append(errs, fmt.Sprintf("risk: leverage must be >= 1, got %v", c.Risk.Leverage))
	}
	if c.Risk.TPPercent <= 0 {
		errs = append(errs, fmt.Sprintf("risk: tp_percent must be > 0, got %v", c.Risk.TPPercent))
	}
	if c.Risk.SLPercent <= 0 {
		errs = append(errs, fmt.Sprintf("risk: sl_percent must be > 0, got %v", c.Risk.SLPercent))
	}

	if len(c.Trading.Symbols) == 0 {
		errs = append(errs, "trading: symbols whitelist must not be empty")
	}
	if c.Trading.MaxDailyTrades <= 0 {
		errs = append(errs, fmt.Sprintf("trading: max_daily_trades must be > 0, got %d", c.Trading.MaxDailyTrades))
	}
	if c.Trading.MaxOpenPositions <= 0 {
		errs = append(errs, fmt.Sprintf("trading: max_open_positions must be > 0, got %d", c.Trading.MaxOpenPositions))
	}
	if c.Trading.SignalChannel == "" {
		errs = append(errs, "trading: signal_channel must not be empty")
	}
	if c.Trading.WindowEnabled {
		if err := checkClock(c.Trading.WindowStart); err != nil {
			errs = append(errs, fmt.Sprintf("trading: window_start: %v", err))
		}
		if err := checkClock(c.Trading.WindowEnd); err != nil {
			errs = append(errs, fmt.Sprintf("trading: window_end: %v", err))
		}
		if c.Trading.WindowStart == c.Trading.WindowEnd {
			errs = append(errs, "trading: window_start and window_end must differ")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// checkClock validates an "HH:MM" wall-clock string.
func checkClock(s string) error {
	if _, err := time.Parse("15:04", s); err != nil {
		return fmt.Errorf("invalid HH:MM value %q", s)
	}
	return nil
}

// PersistenceEnabled reports whether a PostgreSQL journal is configured.
func (c *Config) PersistenceEnabled() bool {
	return c.Postgres.DSN != "" || c.Postgres.Host != ""
}

// ArchiveEnabled reports whether the S3 trade archive is configured.
func (c *Config) ArchiveEnabled() bool {
	return c.S3.Bucket != ""
}
