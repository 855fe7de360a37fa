package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DiscordSender delivers notifications via a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// discordPayload is the webhook execute body. Alerts are sent as a plain
// content message with the title in bold.
type discordPayload struct {
	Content string `json:"content"`
}

// Send posts a message to the Discord webhook. A 429 is retried once after
// the delay Discord reports in its rate-limit body.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	body, err := json.Marshal(discordPayload{
		Content: fmt.Sprintf("**%s**\n%s", title, message),
	})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	retryAfter, err := d.post(ctx, body)
	if err == nil || retryAfter <= 0 {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(retryAfter):
	}
	_, err = d.post(ctx, body)
	return err
}

// post performs one webhook attempt. On HTTP 429 it returns the retry delay
// from Discord's rate-limit response alongside the error.
func (d *DiscordSender) post(ctx context.Context, body []byte) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return 0, nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	err = fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	if resp.StatusCode == http.StatusTooManyRequests {
		var rl struct {
			RetryAfter float64 `json:"retry_after"`
		}
		if jerr := json.Unmarshal(respBody, &rl); jerr == nil && rl.RetryAfter > 0 {
			return time.Duration(rl.RetryAfter * float64(time.Second)), err
		}
		return time.Second, err
	}
	return 0, err
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
