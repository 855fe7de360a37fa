package config

const redacted = "***"

// RedactedConfig returns a copy of c safe for logging: credentials and key
// material are replaced with a placeholder and slices are copied so the
// original is never aliased.
func RedactedConfig(c Config) Config {
	out := c

	if out.Wallet.PrivateKey != "" {
		out.Wallet.PrivateKey = redacted
	}
	if out.Wallet.KeyPassword != "" {
		out.Wallet.KeyPassword = redacted
	}
	if out.Postgres.DSN != "" {
		out.Postgres.DSN = redacted
	}
	if out.Postgres.Password != "" {
		out.Postgres.Password = redacted
	}
	if out.Redis.Password != "" {
		out.Redis.Password = redacted
	}
	if out.S3.AccessKey != "" {
		out.S3.AccessKey = redacted
	}
	if out.S3.SecretKey != "" {
		out.S3.SecretKey = redacted
	}
	if out.Notify.TelegramToken != "" {
		out.Notify.TelegramToken = redacted
	}
	if out.Notify.DiscordWebhookURL != "" {
		out.Notify.DiscordWebhookURL = redacted
	}

	out.Trading.Symbols = append([]string(nil), c.Trading.Symbols...)
	out.Notify.Events = append([]string(nil), c.Notify.Events...)

	return out
}
