package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Mode != "paper" {
		t.Errorf("default mode = %q, want paper", cfg.Mode)
	}
	// Must agree with the manager's built-in floor.
	if cfg.Trading.MinBalance != 5 {
		t.Errorf("default min_balance = %v, want 5", cfg.Trading.MinBalance)
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "yolo"
	cfg.Risk.RiskPercent = 0
	cfg.Risk.SLPercent = -1
	cfg.Trading.Symbols = nil
	cfg.Trading.MaxDailyTrades = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"unknown mode",
		"risk_percent",
		"sl_percent",
		"symbols whitelist",
		"max_daily_trades",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestValidateTradeModeRequiresKey(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "trade"
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "private_key or encrypted_key_path") {
		t.Fatalf("expected wallet error, got %v", err)
	}

	cfg.Wallet.PrivateKey = "deadbeef"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("trade mode with key should validate: %v", err)
	}
}

func TestValidateWindowClock(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.WindowEnabled = true
	cfg.Trading.WindowStart = "25:00"
	cfg.Trading.WindowEnd = "09:00"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "window_start") {
		t.Fatalf("expected window_start error, got %v", err)
	}

	// A wrap-around window is legal, only identical endpoints are not.
	cfg.Trading.WindowStart = "22:00"
	cfg.Trading.WindowEnd = "02:00"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("wrap-around window should validate: %v", err)
	}

	cfg.Trading.WindowEnd = "22:00"
	if err := cfg.Validate(); err == nil {
		t.Fatal("identical window endpoints should fail")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REVBOT_MODE", "trade")
	t.Setenv("REVBOT_RISK_PERCENT", "1.5")
	t.Setenv("REVBOT_TRADING_SYMBOLS", "BTC-PERP, ETH-PERP")
	t.Setenv("REVBOT_TRADING_CONFIRM_TIMEOUT", "30s")
	t.Setenv("REVBOT_TRADING_WINDOW_ENABLED", "true")
	t.Setenv("REVBOT_RISK_LEVERAGE", "not-a-number")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Mode != "trade" {
		t.Errorf("mode = %q, want trade", cfg.Mode)
	}
	if cfg.Risk.RiskPercent != 1.5 {
		t.Errorf("risk_percent = %v, want 1.5", cfg.Risk.RiskPercent)
	}
	if len(cfg.Trading.Symbols) != 2 || cfg.Trading.Symbols[1] != "ETH-PERP" {
		t.Errorf("symbols = %v, want [BTC-PERP ETH-PERP]", cfg.Trading.Symbols)
	}
	if cfg.Trading.ConfirmTimeout.Duration != 30*time.Second {
		t.Errorf("confirm_timeout = %v, want 30s", cfg.Trading.ConfirmTimeout.Duration)
	}
	if !cfg.Trading.WindowEnabled {
		t.Error("window_enabled should be true")
	}
	// Unparseable overrides keep the default.
	if cfg.Risk.Leverage != 20 {
		t.Errorf("leverage = %v, want default 20", cfg.Risk.Leverage)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "secret-key"
	cfg.Postgres.Password = "pgpass"
	cfg.Notify.TelegramToken = "tok"

	red := RedactedConfig(cfg)
	if red.Wallet.PrivateKey != redacted || red.Postgres.Password != redacted || red.Notify.TelegramToken != redacted {
		t.Error("secrets not redacted")
	}
	if cfg.Wallet.PrivateKey != "secret-key" {
		t.Error("original config mutated")
	}

	red.Trading.Symbols[0] = "changed"
	if cfg.Trading.Symbols[0] == "changed" {
		t.Error("symbols slice aliased")
	}
}
