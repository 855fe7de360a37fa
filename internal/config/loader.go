package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads configuration in layers: built-in defaults, then the TOML file
// at path (if it exists), then a .env file (if present), then REVBOT_*
// environment variables. The result is validated before being returned.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
	}

	// .env is best-effort; missing files are fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnvOverrides overlays REVBOT_* environment variables onto cfg.
func applyEnvOverrides(cfg *Config) {
	setStr("REVBOT_MODE", &cfg.Mode)
	setStr("REVBOT_LOG_LEVEL", &cfg.LogLevel)

	setStr("REVBOT_WALLET_PRIVATE_KEY", &cfg.Wallet.PrivateKey)
	setStr("REVBOT_WALLET_ENCRYPTED_KEY_PATH", &cfg.Wallet.EncryptedKeyPath)
	setStr("REVBOT_WALLET_KEY_PASSWORD", &cfg.Wallet.KeyPassword)

	setStr("REVBOT_EXCHANGE_BASE_URL", &cfg.Exchange.BaseURL)
	setStr("REVBOT_EXCHANGE_WS_URL", &cfg.Exchange.WsURL)
	setInt("REVBOT_EXCHANGE_CHAIN_ID", &cfg.Exchange.ChainID)
	setStr("REVBOT_EXCHANGE_ASSET", &cfg.Exchange.Asset)

	setFloat64("REVBOT_RISK_PERCENT", &cfg.Risk.RiskPercent)
	setFloat64("REVBOT_RISK_LEVERAGE", &cfg.Risk.Leverage)
	setFloat64("REVBOT_RISK_TP_PERCENT", &cfg.Risk.TPPercent)
	setFloat64("REVBOT_RISK_SL_PERCENT", &cfg.Risk.SLPercent)

	setStringSlice("REVBOT_TRADING_SYMBOLS", &cfg.Trading.Symbols)
	setInt("REVBOT_TRADING_MAX_DAILY_TRADES", &cfg.Trading.MaxDailyTrades)
	setInt("REVBOT_TRADING_MAX_OPEN_POSITIONS", &cfg.Trading.MaxOpenPositions)
	setFloat64("REVBOT_TRADING_MIN_BALANCE", &cfg.Trading.MinBalance)
	setFloat64("REVBOT_TRADING_SLIPPAGE_PERCENT", &cfg.Trading.SlippagePercent)
	setBool("REVBOT_TRADING_WINDOW_ENABLED", &cfg.Trading.WindowEnabled)
	setStr("REVBOT_TRADING_WINDOW_START", &cfg.Trading.WindowStart)
	setStr("REVBOT_TRADING_WINDOW_END", &cfg.Trading.WindowEnd)
	setDuration("REVBOT_TRADING_PROTECTIVE_BACKOFF", &cfg.Trading.ProtectiveBackoff)
	setDuration("REVBOT_TRADING_ENTRY_SETTLE_DELAY", &cfg.Trading.EntrySettleDelay)
	setDuration("REVBOT_TRADING_CONFIRM_TIMEOUT", &cfg.Trading.ConfirmTimeout)
	setStr("REVBOT_TRADING_SIGNAL_CHANNEL", &cfg.Trading.SignalChannel)

	setStr("REVBOT_POSTGRES_DSN", &cfg.Postgres.DSN)
	setStr("REVBOT_POSTGRES_HOST", &cfg.Postgres.Host)
	setInt("REVBOT_POSTGRES_PORT", &cfg.Postgres.Port)
	setStr("REVBOT_POSTGRES_DATABASE", &cfg.Postgres.Database)
	setStr("REVBOT_POSTGRES_USER", &cfg.Postgres.User)
	setStr("REVBOT_POSTGRES_PASSWORD", &cfg.Postgres.Password)
	setStr("REVBOT_POSTGRES_SSL_MODE", &cfg.Postgres.SSLMode)

	setStr("REVBOT_REDIS_ADDR", &cfg.Redis.Addr)
	setStr("REVBOT_REDIS_PASSWORD", &cfg.Redis.Password)
	setInt("REVBOT_REDIS_DB", &cfg.Redis.DB)
	setBool("REVBOT_REDIS_TLS_ENABLED", &cfg.Redis.TLSEnabled)
	setDuration("REVBOT_REDIS_PRICE_TTL", &cfg.Redis.PriceTTL)

	setStr("REVBOT_S3_ENDPOINT", &cfg.S3.Endpoint)
	setStr("REVBOT_S3_REGION", &cfg.S3.Region)
	setStr("REVBOT_S3_BUCKET", &cfg.S3.Bucket)
	setStr("REVBOT_S3_ACCESS_KEY", &cfg.S3.AccessKey)
	setStr("REVBOT_S3_SECRET_KEY", &cfg.S3.SecretKey)
	setBool("REVBOT_S3_USE_SSL", &cfg.S3.UseSSL)
	setBool("REVBOT_S3_FORCE_PATH_STYLE", &cfg.S3.ForcePathStyle)

	setStr("REVBOT_NOTIFY_TELEGRAM_TOKEN", &cfg.Notify.TelegramToken)
	setStr("REVBOT_NOTIFY_TELEGRAM_CHAT_ID", &cfg.Notify.TelegramChatID)
	setStr("REVBOT_NOTIFY_DISCORD_WEBHOOK_URL", &cfg.Notify.DiscordWebhookURL)
	setStringSlice("REVBOT_NOTIFY_EVENTS", &cfg.Notify.Events)
}

func setStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func setInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(key string, dst *duration) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(key string, dst *[]string) {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}
