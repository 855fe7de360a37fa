package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voltrade/revbot/internal/domain"
	"github.com/voltrade/revbot/internal/risk"
)

// Notifier is the operator-facing notification surface the manager emits
// through. It is typically implemented by notify.TradeNotifier.
type Notifier interface {
	PositionOpened(ctx context.Context, pos domain.Position, balance float64)
	PositionClosed(ctx context.Context, pos domain.Position, reason domain.CloseReason, exitPrice, pnlUSD, pnlPercent, newBalance float64, balanceKnown bool)
	Alert(ctx context.Context, message string)
	DailySummary(ctx context.Context, tradeCount, openCount int, realizedPnL float64, pnlKnown bool)
}

// Config holds the manager's trading limits and pacing knobs.
type Config struct {
	Symbols           []string // whitelist
	MaxDailyTrades    int
	MaxOpenPositions  int
	MinBalance        float64       // quote units; signals abort below this
	SlippagePercent   float64       // taking-order offset past mark price
	ProtectiveRetries int           // attempts per protective order
	ProtectiveBackoff time.Duration // pause between protective attempts
	EntrySettleDelay  time.Duration // pacing before the first status poll
	ConfirmTimeout    time.Duration // entry fill confirmation budget
	CallTimeout       time.Duration // per exchange call
}

func (c *Config) applyDefaults() {
	if c.MinBalance <= 0 {
		c.MinBalance = 5
	}
	if c.SlippagePercent <= 0 {
		c.SlippagePercent = 0.2
	}
	if c.ProtectiveRetries <= 0 {
		c.ProtectiveRetries = 3
	}
	if c.ProtectiveBackoff <= 0 {
		c.ProtectiveBackoff = 500 * time.Millisecond
	}
	if c.ConfirmTimeout <= 0 {
		c.ConfirmTimeout = 10 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 10 * time.Second
	}
}

// Manager owns every mutation of the position store and the daily counter.
// Signals and fill events arrive on bounded mailboxes and are consumed by a
// single loop; exchange and notification I/O happens outside the store's
// lock, and every state transition re-checks the expected state when it is
// applied. That combination keeps duplicate fill delivery, retries, and
// concurrent event sources from ever double-closing a position.
type Manager struct {
	gw       domain.OrderGateway
	store    *Store
	days     *DayCounter
	params   risk.Params
	window   risk.Window
	prices   domain.PriceCache // optional
	notifier Notifier
	trades   domain.TradeStore // optional
	audit    domain.AuditStore // optional
	cfg      Config
	symbols  map[string]bool
	logger   *slog.Logger

	signalCh chan domain.Signal
	fillCh   chan domain.FillEvent

	now func() time.Time
}

// NewManager creates a Manager. The trade journal, audit store, and price
// cache may be nil; everything else is required.
func NewManager(
	gw domain.OrderGateway,
	store *Store,
	params risk.Params,
	window risk.Window,
	notifier Notifier,
	cfg Config,
	logger *slog.Logger,
) *Manager {
	cfg.applyDefaults()
	symbols := make(map[string]bool, len(cfg.Symbols))
	for _, s := range cfg.Symbols {
		symbols[s] = true
	}
	return &Manager{
		gw:       gw,
		store:    store,
		days:     NewDayCounter(time.Now()),
		params:   params,
		window:   window,
		notifier: notifier,
		cfg:      cfg,
		symbols:  symbols,
		logger:   logger.With(slog.String("component", "position_manager")),
		signalCh: make(chan domain.Signal, 32),
		fillCh:   make(chan domain.FillEvent, 128),
		now:      time.Now,
	}
}

// WithStores attaches the optional trade journal and audit log.
func (m *Manager) WithStores(trades domain.TradeStore, audit domain.AuditStore) *Manager {
	m.trades = trades
	m.audit = audit
	return m
}

// WithPriceCache attaches the optional mark-price cache consulted before
// falling back to a signal's reference price.
func (m *Manager) WithPriceCache(prices domain.PriceCache) *Manager {
	m.prices = prices
	return m
}

// OnSignal delivers a signal to the manager's mailbox. It never blocks; a
// full mailbox drops the signal with a warning, which is acceptable because
// a backed-up trading loop must not queue stale entries.
func (m *Manager) OnSignal(sig domain.Signal) {
	select {
	case m.signalCh <- sig:
	default:
		m.logger.Warn("signal mailbox full, dropping signal",
			slog.String("signal_id", sig.ID),
			slog.String("symbol", sig.Symbol),
		)
	}
}

// OnFill delivers an exchange stream event to the manager's mailbox. Fill
// events must not be lost, so this blocks when the mailbox is full.
func (m *Manager) OnFill(ev domain.FillEvent) {
	m.fillCh <- ev
}

// OpenCount returns the number of live positions.
func (m *Manager) OpenCount() int {
	return m.store.Count()
}

// Run consumes the mailboxes until the context is cancelled, then drains
// buffered fill events so in-flight closes finish before shutdown. Buffered
// signals are dropped at shutdown; a trade that never started is safe to
// abandon, a close is not.
func (m *Manager) Run(ctx context.Context) error {
	m.logger.Info("position manager started",
		slog.Int("max_daily_trades", m.cfg.MaxDailyTrades),
		slog.Int("max_open_positions", m.cfg.MaxOpenPositions),
	)
	defer m.logger.Info("position manager stopped")

	rollTicker := time.NewTicker(time.Minute)
	defer rollTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.drain()
			return ctx.Err()

		case sig, ok := <-m.signalCh:
			if !ok {
				return nil
			}
			m.maybeDailySummary(ctx)
			m.handleSignal(ctx, sig)

		case ev, ok := <-m.fillCh:
			if !ok {
				return nil
			}
			m.maybeDailySummary(ctx)
			m.handleFill(ctx, ev)

		case <-rollTicker.C:
			m.maybeDailySummary(ctx)
		}
	}
}

// drain processes fill events already buffered after cancellation, with a
// short-lived context so shutdown cannot hang on exchange calls.
func (m *Manager) drain() {
	for {
		select {
		case ev := <-m.fillCh:
			drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			m.handleFill(drainCtx, ev)
			cancel()
		case sig := <-m.signalCh:
			m.logger.Warn("dropping signal at shutdown", slog.String("signal_id", sig.ID))
		default:
			return
		}
	}
}

// maybeDailySummary emits the end-of-day summary once per UTC rollover.
// Open positions and their state survive the rollover untouched; only the
// trade counter resets.
func (m *Manager) maybeDailySummary(ctx context.Context) {
	prev, rolled := m.days.Roll(m.now())
	if !rolled {
		return
	}
	open := m.store.Count()

	// Realized PnL for the day that just ended, when a journal is wired.
	var (
		pnl      float64
		pnlKnown bool
	)
	if m.trades != nil {
		dayStart := m.now().UTC().AddDate(0, 0, -1).Truncate(24 * time.Hour)
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		sum, err := m.trades.SumPnL(callCtx, dayStart)
		cancel()
		if err != nil {
			m.logger.Warn("daily pnl query failed", slog.String("error", err.Error()))
		} else {
			pnl, pnlKnown = sum, true
		}
	}

	m.logger.Info("utc day rollover",
		slog.Int("trades_yesterday", prev),
		slog.Int("open_positions", open),
		slog.Float64("realized_pnl", pnl),
	)
	m.notifier.DailySummary(ctx, prev, open, pnl, pnlKnown)
}

// handleSignal runs a signal through admission, sizing, entry submission,
// confirmation, and protective placement.
func (m *Manager) handleSignal(ctx context.Context, sig domain.Signal) {
	log := m.logger.With(
		slog.String("signal_id", sig.ID),
		slog.String("symbol", sig.Symbol),
		slog.String("type", string(sig.Type)),
	)

	if reason := m.admit(sig); reason != "" {
		// Admission drops are silent by design: logged, never alerted.
		log.Debug("signal dropped", slog.String("reason", reason))
		m.auditLog(ctx, "signal_dropped", map[string]any{
			"signal_id": sig.ID, "symbol": sig.Symbol, "reason": reason,
		})
		return
	}

	side := sig.Type.Side()

	// Balance. A fetch failure means the balance is unknown: refuse to
	// trade rather than guess.
	bal, err := m.getBalance(ctx)
	if err != nil {
		log.Error("balance fetch failed, aborting signal", slog.String("error", err.Error()))
		m.notifier.Alert(ctx, fmt.Sprintf("balance unavailable, signal for %s aborted: %v", sig.Symbol, err))
		return
	}
	if bal.Available < m.cfg.MinBalance {
		log.Warn("balance below minimum, aborting signal",
			slog.Float64("available", bal.Available),
			slog.Float64("minimum", m.cfg.MinBalance),
		)
		m.notifier.Alert(ctx, fmt.Sprintf("insufficient balance %.2f (minimum %.2f), signal for %s aborted",
			bal.Available, m.cfg.MinBalance, sig.Symbol))
		return
	}

	size, err := m.params.SizeFor(bal.Available)
	if err != nil {
		log.Error("sizing failed", slog.String("error", err.Error()))
		m.notifier.Alert(ctx, fmt.Sprintf("sizing failed for %s: %v", sig.Symbol, err))
		return
	}

	entryPrice, err := m.resolveEntryPrice(ctx, sig, log)
	if err != nil {
		log.Error("no usable entry price, aborting signal", slog.String("error", err.Error()))
		m.notifier.Alert(ctx, fmt.Sprintf("no usable price for %s, signal aborted", sig.Symbol))
		return
	}

	tp, sl, err := m.params.PricesFor(side, entryPrice)
	if err != nil {
		log.Error("protective price computation failed", slog.String("error", err.Error()))
		return
	}

	// Taking order: a limit offset past the mark so it crosses the book.
	execPrice := entryPrice * (1 + m.cfg.SlippagePercent/100)
	if side == domain.SideShort {
		execPrice = entryPrice * (1 - m.cfg.SlippagePercent/100)
	}

	clientID := uuid.New().String()
	entryOrderID, err := m.submitEntry(ctx, domain.OrderRequest{
		Symbol:   sig.Symbol,
		Side:     domain.EntrySide(side),
		Price:    execPrice,
		Size:     size,
		ClientID: clientID,
	})
	if err != nil {
		log.Error("entry submission failed, no position created", slog.String("error", err.Error()))
		m.notifier.Alert(ctx, fmt.Sprintf("entry order for %s failed: %v", sig.Symbol, err))
		return
	}

	pos := domain.Position{
		EntryOrderID: entryOrderID,
		Symbol:       sig.Symbol,
		Side:         side,
		EntryPrice:   entryPrice,
		Size:         size,
		TPPrice:      tp,
		SLPrice:      sl,
		Status:       domain.StatusPendingEntry,
		OpenedAt:     m.now().UTC(),
	}
	if err := m.store.Insert(pos); err != nil {
		// Duplicate entry order IDs mean the exchange broke its contract.
		log.Error("store insert failed", slog.String("error", err.Error()))
		m.notifier.Alert(ctx, fmt.Sprintf("FATAL: duplicate entry order %s for %s", entryOrderID, sig.Symbol))
		return
	}
	m.days.Increment(m.now())

	log.Info("entry accepted",
		slog.String("entry_order_id", entryOrderID),
		slog.String("side", string(side)),
		slog.Float64("entry_price", entryPrice),
		slog.Float64("size", size),
		slog.Float64("tp", tp),
		slog.Float64("sl", sl),
	)

	if !m.confirmEntry(ctx, pos, log) {
		return
	}

	if err := m.store.Promote(entryOrderID); err != nil {
		log.Error("promote failed", slog.String("error", err.Error()))
		return
	}
	pos.Status = domain.StatusOpen

	m.auditLog(ctx, "position_opened", map[string]any{
		"entry_order_id": entryOrderID,
		"symbol":         pos.Symbol,
		"side":           string(pos.Side),
		"entry_price":    pos.EntryPrice,
		"size":           pos.Size,
	})
	m.notifier.PositionOpened(ctx, pos, bal.Available)

	m.placeProtective(ctx, pos, log)
}

// admit runs the admission gates and returns the failed gate's name, or ""
// when the signal passes.
func (m *Manager) admit(sig domain.Signal) string {
	if !m.symbols[sig.Symbol] {
		return "symbol not whitelisted"
	}
	if !sig.Type.Valid() {
		return "unknown signal type"
	}
	if !m.window.Active(m.now()) {
		return "outside trading window"
	}
	if m.days.Count(m.now()) >= m.cfg.MaxDailyTrades {
		return "daily trade cap reached"
	}
	if m.store.Count() >= m.cfg.MaxOpenPositions {
		return "open position cap reached"
	}
	return ""
}

// resolveEntryPrice prefers the live mark price, then the cached mark, and
// only then the price carried on the signal. The signal fallback can be
// stale, so it is logged explicitly rather than taken silently.
func (m *Manager) resolveEntryPrice(ctx context.Context, sig domain.Signal, log *slog.Logger) (float64, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	inst, err := m.gw.GetInstrument(callCtx, sig.Symbol)
	cancel()
	if err == nil && inst.MarkPrice > 0 {
		return inst.MarkPrice, nil
	}
	if err != nil {
		log.Warn("instrument lookup failed", slog.String("error", err.Error()))
	}

	if m.prices != nil {
		price, ts, cacheErr := m.prices.GetPrice(ctx, sig.Symbol)
		if cacheErr == nil && price > 0 {
			log.Info("using cached mark price",
				slog.Float64("price", price),
				slog.Time("as_of", ts),
			)
			return price, nil
		}
	}

	if sig.ReferencePrice > 0 {
		log.Warn("no live price available, falling back to signal reference price; it may be stale",
			slog.Float64("reference_price", sig.ReferencePrice),
		)
		return sig.ReferencePrice, nil
	}

	return 0, fmt.Errorf("resolve entry price for %s: %w", sig.Symbol, domain.ErrInvalidPrice)
}

// submitEntry submits the entry order and returns the exchange order ID. A
// submission timeout is ambiguous (the order may or may not exist), so the
// order status is queried by client ID before deciding; assuming failure
// would risk a duplicate position on retry.
func (m *Manager) submitEntry(ctx context.Context, req domain.OrderRequest) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	res, err := m.gw.SubmitOrder(callCtx, req)
	cancel()

	if err != nil {
		if !errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("submit entry: %w", err)
		}
		info, statusErr := m.orderStatus(ctx, req.ClientID)
		if statusErr != nil {
			return "", fmt.Errorf("submit entry timed out and status query failed: %w", statusErr)
		}
		switch info.State {
		case domain.OrderStateNew, domain.OrderStateFilled:
			m.logger.Warn("entry submission timed out but order exists, adopting it",
				slog.String("client_id", req.ClientID),
				slog.String("order_id", info.OrderID),
			)
			return info.OrderID, nil
		default:
			return "", fmt.Errorf("submit entry timed out, order %s in state %s: %w",
				req.ClientID, info.State, domain.ErrOrderRejected)
		}
	}

	if res.Rejected != nil {
		return "", fmt.Errorf("submit entry: %s: %w", res.Rejected.Reason, domain.ErrOrderRejected)
	}
	if res.Accepted == nil || res.Accepted.OrderID == "" {
		return "", fmt.Errorf("submit entry: gateway returned neither accept nor reject")
	}
	return res.Accepted.OrderID, nil
}

// confirmEntry polls the entry order until it fills. The settle delay is
// pacing before the first poll, not a confirmation mechanism. An entry that
// is still resting when the budget runs out is treated as filled, since it
// was priced to cross the book; a rejected or cancelled entry abandons the
// position. Returns false when the position was abandoned.
func (m *Manager) confirmEntry(ctx context.Context, pos domain.Position, log *slog.Logger) bool {
	if m.cfg.EntrySettleDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(m.cfg.EntrySettleDelay):
		}
	}

	deadline := m.now().Add(m.cfg.ConfirmTimeout)
	for {
		info, err := m.orderStatus(ctx, pos.EntryOrderID)
		if err == nil {
			switch info.State {
			case domain.OrderStateFilled:
				return true
			case domain.OrderStateRejected, domain.OrderStateCancelled:
				log.Warn("entry order did not fill, abandoning position",
					slog.String("entry_order_id", pos.EntryOrderID),
					slog.String("state", string(info.State)),
				)
				if abandonErr := m.store.Abandon(pos.EntryOrderID); abandonErr != nil {
					log.Error("abandon failed", slog.String("error", abandonErr.Error()))
				}
				m.notifier.Alert(ctx, fmt.Sprintf("entry order %s for %s ended %s before filling",
					pos.EntryOrderID, pos.Symbol, info.State))
				return false
			}
		} else {
			log.Warn("entry status poll failed", slog.String("error", err.Error()))
		}

		if m.now().After(deadline) || ctx.Err() != nil {
			log.Warn("entry fill not confirmed within budget, proceeding as filled",
				slog.String("entry_order_id", pos.EntryOrderID),
			)
			return true
		}
		select {
		case <-ctx.Done():
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// placeProtective submits the TP and SL orders with bounded retries. A
// failure here never rolls back the entry: the position stays open and the
// exposure is escalated to the operator channel, because an unprotected
// open position is the most dangerous state this system has.
func (m *Manager) placeProtective(ctx context.Context, pos domain.Position, log *slog.Logger) {
	exitSide := domain.EntrySide(pos.Side).Opposite()

	tpID, tpErr := m.submitWithRetry(ctx, domain.OrderRequest{
		Symbol:     pos.Symbol,
		Side:       exitSide,
		Price:      pos.TPPrice,
		Size:       pos.Size,
		ReduceOnly: true,
		ClientID:   uuid.New().String(),
	}, log)
	if tpErr == nil {
		if err := m.store.SetTPOrder(pos.EntryOrderID, tpID); err != nil {
			log.Error("recording tp order failed", slog.String("error", err.Error()))
		}
	}

	slID, slErr := m.submitWithRetry(ctx, domain.OrderRequest{
		Symbol:     pos.Symbol,
		Side:       exitSide,
		Price:      pos.SLPrice,
		Size:       pos.Size,
		ReduceOnly: true,
		ClientID:   uuid.New().String(),
	}, log)
	if slErr == nil {
		if err := m.store.SetSLOrder(pos.EntryOrderID, slID); err != nil {
			log.Error("recording sl order failed", slog.String("error", err.Error()))
		}
	}

	switch {
	case tpErr != nil && slErr != nil:
		log.Error("UNPROTECTED POSITION: both protective orders failed",
			slog.String("entry_order_id", pos.EntryOrderID),
			slog.String("tp_error", tpErr.Error()),
			slog.String("sl_error", slErr.Error()),
		)
		m.notifier.Alert(ctx, fmt.Sprintf(
			"UNPROTECTED POSITION %s %s: TP and SL placement both failed, manual intervention required",
			pos.Symbol, pos.EntryOrderID))
	case tpErr != nil:
		log.Error("take-profit placement failed", slog.String("error", tpErr.Error()))
		m.notifier.Alert(ctx, fmt.Sprintf("position %s %s has no take-profit order: %v",
			pos.Symbol, pos.EntryOrderID, tpErr))
	case slErr != nil:
		log.Error("stop-loss placement failed", slog.String("error", slErr.Error()))
		m.notifier.Alert(ctx, fmt.Sprintf("position %s %s has NO STOP-LOSS: %v",
			pos.Symbol, pos.EntryOrderID, slErr))
	default:
		log.Info("protective orders placed",
			slog.String("tp_order_id", tpID),
			slog.String("sl_order_id", slID),
		)
	}
}

// submitWithRetry attempts a protective order up to ProtectiveRetries times.
func (m *Manager) submitWithRetry(ctx context.Context, req domain.OrderRequest, log *slog.Logger) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= m.cfg.ProtectiveRetries; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
		res, err := m.gw.SubmitOrder(callCtx, req)
		cancel()

		switch {
		case err != nil:
			lastErr = err
		case res.Rejected != nil:
			lastErr = fmt.Errorf("%s: %w", res.Rejected.Reason, domain.ErrOrderRejected)
		case res.Accepted != nil && res.Accepted.OrderID != "":
			return res.Accepted.OrderID, nil
		default:
			lastErr = fmt.Errorf("gateway returned neither accept nor reject")
		}

		log.Warn("protective order attempt failed",
			slog.String("symbol", req.Symbol),
			slog.Float64("price", req.Price),
			slog.Int("attempt", attempt),
			slog.String("error", lastErr.Error()),
		)
		if attempt < m.cfg.ProtectiveRetries {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %s", domain.ErrProtectiveOrderFailed, lastErr)
			case <-time.After(m.cfg.ProtectiveBackoff):
			}
		}
	}
	return "", fmt.Errorf("%w: %s", domain.ErrProtectiveOrderFailed, lastErr)
}

// handleFill routes an exchange stream event. Only fills of known TP/SL
// orders trigger a close; everything else is informational.
func (m *Manager) handleFill(ctx context.Context, ev domain.FillEvent) {
	if ev.Cancelled != nil {
		m.logger.Debug("order cancellation confirmed", slog.String("order_id", ev.Cancelled.OrderID))
		return
	}
	if ev.Filled == nil {
		return
	}
	fill := *ev.Filled

	pos, ok := m.store.FindByChildOrderID(fill.OrderID)
	if !ok {
		// Entry fills and events for orders we no longer track land here.
		if p, isEntry := m.store.Get(fill.OrderID); isEntry && p.Status == domain.StatusPendingEntry {
			if err := m.store.Promote(fill.OrderID); err == nil {
				m.logger.Info("entry fill promoted position",
					slog.String("entry_order_id", fill.OrderID),
				)
			}
			return
		}
		m.logger.Debug("fill for unknown order ignored", slog.String("order_id", fill.OrderID))
		return
	}

	reason := domain.CloseStopLoss
	siblingID := pos.TPOrderID
	if fill.OrderID == pos.TPOrderID {
		reason = domain.CloseTakeProfit
		siblingID = pos.SLOrderID
	}

	log := m.logger.With(
		slog.String("entry_order_id", pos.EntryOrderID),
		slog.String("symbol", pos.Symbol),
		slog.String("reason", string(reason)),
	)

	// First fill wins; repeats of the same or the sibling order find the
	// position already CLOSING or gone and become no-ops.
	snapshot, ok := m.store.BeginClose(pos.EntryOrderID)
	if !ok {
		log.Debug("duplicate fill event ignored", slog.String("order_id", fill.OrderID))
		return
	}

	m.cancelSibling(ctx, siblingID, log)
	m.finalizeClose(ctx, snapshot, reason, fill, log)
}

// cancelSibling cancels the surviving protective order. Best-effort: a
// cancellation failure is logged and never blocks the close.
func (m *Manager) cancelSibling(ctx context.Context, siblingID string, log *slog.Logger) {
	if siblingID == "" {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	if err := m.gw.CancelOrder(callCtx, siblingID); err != nil {
		log.Warn("sibling order cancellation failed",
			slog.String("sibling_order_id", siblingID),
			slog.String("error", err.Error()),
		)
	}
}

// finalizeClose computes PnL, removes the position, journals the trade, and
// notifies. The close is committed before any lookup that can fail: a
// balance fetch error degrades the notification, never the close itself.
func (m *Manager) finalizeClose(ctx context.Context, pos domain.Position, reason domain.CloseReason, fill domain.OrderFilled, log *slog.Logger) {
	pnlUSD, pnlPercent := pos.PnL(fill.Price)

	if err := m.store.Remove(pos.EntryOrderID); err != nil {
		log.Error("close finalization: store remove failed", slog.String("error", err.Error()))
		return
	}

	log.Info("position closed",
		slog.Float64("exit_price", fill.Price),
		slog.Float64("pnl_usd", pnlUSD),
		slog.Float64("pnl_percent", pnlPercent),
	)

	closedAt := fill.At
	if closedAt.IsZero() {
		closedAt = m.now().UTC()
	}
	if m.trades != nil {
		trade := domain.ClosedTrade{
			ID:           uuid.New().String(),
			EntryOrderID: pos.EntryOrderID,
			Symbol:       pos.Symbol,
			Side:         pos.Side,
			EntryPrice:   pos.EntryPrice,
			ExitPrice:    fill.Price,
			Size:         pos.Size,
			PnLUSD:       pnlUSD,
			PnLPercent:   pnlPercent,
			Reason:       reason,
			OpenedAt:     pos.OpenedAt,
			ClosedAt:     closedAt,
		}
		if err := m.trades.Insert(ctx, trade); err != nil {
			log.Warn("trade journal write failed", slog.String("error", err.Error()))
		}
	}
	m.auditLog(ctx, "position_closed", map[string]any{
		"entry_order_id": pos.EntryOrderID,
		"symbol":         pos.Symbol,
		"reason":         string(reason),
		"exit_price":     fill.Price,
		"pnl_usd":        pnlUSD,
	})

	newBalance, balanceKnown := 0.0, false
	if bal, err := m.getBalance(ctx); err != nil {
		log.Warn("balance fetch for close notification failed", slog.String("error", err.Error()))
	} else {
		newBalance, balanceKnown = bal.Available, true
	}
	m.notifier.PositionClosed(ctx, pos, reason, fill.Price, pnlUSD, pnlPercent, newBalance, balanceKnown)
}

func (m *Manager) getBalance(ctx context.Context) (domain.Balance, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	return m.gw.GetBalance(callCtx)
}

func (m *Manager) orderStatus(ctx context.Context, id string) (domain.OrderStatusInfo, error) {
	callCtx, cancel := context.WithTimeout(ctx, m.cfg.CallTimeout)
	defer cancel()
	return m.gw.OrderStatus(callCtx, id)
}

func (m *Manager) auditLog(ctx context.Context, event string, detail map[string]any) {
	if m.audit == nil {
		return
	}
	if err := m.audit.Log(ctx, event, detail); err != nil {
		m.logger.Warn("audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}
