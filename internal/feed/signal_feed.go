// Package feed ingests squeeze signals published by the detection
// collaborator and hands them to the position manager.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voltrade/revbot/internal/domain"
)

// wireSignal is the JSON payload published on the signal channel.
type wireSignal struct {
	ID             string  `json:"id"`
	Symbol         string  `json:"symbol"`
	Type           string  `json:"type"`
	ReferencePrice float64 `json:"referencePrice"`
	DetectedAt     int64   `json:"detectedAt"` // unix millis, optional
}

// Handler receives decoded signals.
type Handler interface {
	OnSignal(domain.Signal)
}

// SignalFeed subscribes to the signal bus channel and forwards decoded
// signals to the handler. Malformed payloads are logged and dropped; the
// manager's own admission gates handle everything semantic.
type SignalFeed struct {
	bus     domain.SignalBus
	channel string
	handler Handler
	logger  *slog.Logger
}

// NewSignalFeed creates a feed reading from the given pub/sub channel.
func NewSignalFeed(bus domain.SignalBus, channel string, handler Handler, logger *slog.Logger) *SignalFeed {
	return &SignalFeed{
		bus:     bus,
		channel: channel,
		handler: handler,
		logger:  logger.With(slog.String("component", "signal_feed")),
	}
}

// Run subscribes and consumes until the context is cancelled.
func (f *SignalFeed) Run(ctx context.Context) error {
	msgs, err := f.bus.Subscribe(ctx, f.channel)
	if err != nil {
		return fmt.Errorf("feed: subscribe %s: %w", f.channel, err)
	}
	f.logger.Info("signal feed started", slog.String("channel", f.channel))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-msgs:
			if !ok {
				return ctx.Err()
			}
			sig, err := decodeSignal(payload, time.Now())
			if err != nil {
				f.logger.Warn("dropping malformed signal",
					slog.String("error", err.Error()),
				)
				continue
			}
			f.logger.Debug("signal received",
				slog.String("signal_id", sig.ID),
				slog.String("symbol", sig.Symbol),
				slog.String("type", string(sig.Type)),
			)
			f.handler.OnSignal(sig)
		}
	}
}

// decodeSignal parses a wire payload into a domain signal, assigning an ID
// when the publisher did not.
func decodeSignal(payload []byte, now time.Time) (domain.Signal, error) {
	var w wireSignal
	if err := json.Unmarshal(payload, &w); err != nil {
		return domain.Signal{}, fmt.Errorf("decode signal: %w", err)
	}
	if w.Symbol == "" {
		return domain.Signal{}, fmt.Errorf("decode signal: missing symbol")
	}

	id := w.ID
	if id == "" {
		id = uuid.New().String()
	}
	receivedAt := now.UTC()
	if w.DetectedAt > 0 {
		receivedAt = time.UnixMilli(w.DetectedAt).UTC()
	}

	return domain.Signal{
		ID:             id,
		Symbol:         w.Symbol,
		Type:           domain.SignalType(w.Type),
		ReferencePrice: w.ReferencePrice,
		ReceivedAt:     receivedAt,
	}, nil
}
