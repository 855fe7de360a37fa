package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voltrade/revbot/internal/domain"
	"github.com/voltrade/revbot/internal/position"
)

// Event types emitted by the trading loop, used for sender-side filtering.
const (
	EventPositionOpened = "position_opened"
	EventPositionClosed = "position_closed"
	EventAlert          = "alert"
	EventDailySummary   = "daily_summary"
)

// TradeNotifier formats trading lifecycle events into operator messages and
// hands them to the multi-channel Notifier. Delivery failures are logged
// and swallowed: a dead webhook must never stall the trading loop.
type TradeNotifier struct {
	notifier *Notifier
	logger   *slog.Logger
}

// NewTradeNotifier wraps a Notifier for use by the position manager.
func NewTradeNotifier(notifier *Notifier, logger *slog.Logger) *TradeNotifier {
	return &TradeNotifier{
		notifier: notifier,
		logger:   logger.With(slog.String("component", "trade_notifier")),
	}
}

func (t *TradeNotifier) PositionOpened(ctx context.Context, pos domain.Position, balance float64) {
	emoji := "🟢"
	if pos.Side == domain.SideShort {
		emoji = "🔴"
	}
	title := fmt.Sprintf("%s %s %s opened", emoji, pos.Side, pos.Symbol)
	msg := strings.Join([]string{
		fmt.Sprintf("Entry: %.4f", pos.EntryPrice),
		fmt.Sprintf("Size: %.2f USD", pos.Size),
		fmt.Sprintf("TP: %.4f / SL: %.4f", pos.TPPrice, pos.SLPrice),
		fmt.Sprintf("Balance: %.2f USD", balance),
	}, "\n")
	t.send(ctx, EventPositionOpened, title, msg)
}

func (t *TradeNotifier) PositionClosed(ctx context.Context, pos domain.Position, reason domain.CloseReason, exitPrice, pnlUSD, pnlPercent, newBalance float64, balanceKnown bool) {
	emoji := "✅"
	label := "take-profit"
	if reason == domain.CloseStopLoss {
		emoji = "🛑"
		label = "stop-loss"
	}
	title := fmt.Sprintf("%s %s %s closed (%s)", emoji, pos.Side, pos.Symbol, label)

	balanceLine := "Balance: unavailable"
	if balanceKnown {
		balanceLine = fmt.Sprintf("Balance: %.2f USD", newBalance)
	}
	msg := strings.Join([]string{
		fmt.Sprintf("Entry: %.4f → Exit: %.4f", pos.EntryPrice, exitPrice),
		fmt.Sprintf("PnL: %+.2f USD (%+.2f%%)", pnlUSD, pnlPercent),
		balanceLine,
	}, "\n")
	t.send(ctx, EventPositionClosed, title, msg)
}

func (t *TradeNotifier) Alert(ctx context.Context, message string) {
	t.send(ctx, EventAlert, "⚠️ Alert", message)
}

func (t *TradeNotifier) DailySummary(ctx context.Context, tradeCount, openCount int, realizedPnL float64, pnlKnown bool) {
	msg := fmt.Sprintf("Trades: %d\nStill open: %d", tradeCount, openCount)
	if pnlKnown {
		msg += fmt.Sprintf("\nRealized PnL: %+.2f USD", realizedPnL)
	}
	t.send(ctx, EventDailySummary, "📊 Daily summary", msg)
}

func (t *TradeNotifier) send(ctx context.Context, event, title, message string) {
	if err := t.notifier.Notify(ctx, event, title, message); err != nil {
		t.logger.Warn("notification delivery failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// Compile-time interface check.
var _ position.Notifier = (*TradeNotifier)(nil)
