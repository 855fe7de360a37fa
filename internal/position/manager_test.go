package position

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/voltrade/revbot/internal/domain"
	"github.com/voltrade/revbot/internal/risk"
)

type fakeGateway struct {
	mu         sync.Mutex
	balance    domain.Balance
	balanceErr error
	markPrice  float64
	instErr    error
	submitFn   func(domain.OrderRequest) (domain.SubmitResult, error)
	statusFn   func(string) (domain.OrderStatusInfo, error)
	cancelErr  error

	submits []domain.OrderRequest
	cancels []string
	nextID  int
	fills   chan domain.FillEvent
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		balance:   domain.Balance{Available: 1000},
		markPrice: 50000,
		fills:     make(chan domain.FillEvent, 16),
	}
}

func (g *fakeGateway) GetBalance(ctx context.Context) (domain.Balance, error) {
	return g.balance, g.balanceErr
}

func (g *fakeGateway) GetInstrument(ctx context.Context, symbol string) (domain.Instrument, error) {
	if g.instErr != nil {
		return domain.Instrument{}, g.instErr
	}
	return domain.Instrument{ID: "inst-" + symbol, Symbol: symbol, MarkPrice: g.markPrice}, nil
}

func (g *fakeGateway) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.SubmitResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.submits = append(g.submits, req)
	if g.submitFn != nil {
		return g.submitFn(req)
	}
	g.nextID++
	return domain.SubmitResult{Accepted: &domain.OrderAccepted{OrderID: fmt.Sprintf("ord-%d", g.nextID)}}, nil
}

func (g *fakeGateway) CancelOrder(ctx context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cancels = append(g.cancels, orderID)
	return g.cancelErr
}

func (g *fakeGateway) OrderStatus(ctx context.Context, id string) (domain.OrderStatusInfo, error) {
	if g.statusFn != nil {
		return g.statusFn(id)
	}
	return domain.OrderStatusInfo{State: domain.OrderStateFilled, OrderID: id}, nil
}

func (g *fakeGateway) Fills() <-chan domain.FillEvent { return g.fills }

func (g *fakeGateway) submitCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.submits)
}

type closedRecord struct {
	pos          domain.Position
	reason       domain.CloseReason
	exitPrice    float64
	pnlUSD       float64
	pnlPercent   float64
	newBalance   float64
	balanceKnown bool
}

type summaryRecord struct {
	trades   int
	open     int
	pnl      float64
	pnlKnown bool
}

type recordingNotifier struct {
	mu        sync.Mutex
	opened    []domain.Position
	closed    []closedRecord
	alerts    []string
	summaries []summaryRecord
}

func (n *recordingNotifier) PositionOpened(ctx context.Context, pos domain.Position, balance float64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.opened = append(n.opened, pos)
}

func (n *recordingNotifier) PositionClosed(ctx context.Context, pos domain.Position, reason domain.CloseReason, exitPrice, pnlUSD, pnlPercent, newBalance float64, balanceKnown bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = append(n.closed, closedRecord{pos, reason, exitPrice, pnlUSD, pnlPercent, newBalance, balanceKnown})
}

func (n *recordingNotifier) Alert(ctx context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, message)
}

func (n *recordingNotifier) DailySummary(ctx context.Context, tradeCount, openCount int, realizedPnL float64, pnlKnown bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, summaryRecord{tradeCount, openCount, realizedPnL, pnlKnown})
}

func (n *recordingNotifier) hasAlert(substr string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, a := range n.alerts {
		if strings.Contains(a, substr) {
			return true
		}
	}
	return false
}

func testParams(t *testing.T) risk.Params {
	t.Helper()
	p, err := risk.NewParams(2.5, 20, 0.8, 0.3)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func alwaysOpenWindow(t *testing.T) risk.Window {
	t.Helper()
	w, err := risk.NewWindow(false, "00:00", "00:01")
	if err != nil {
		t.Fatal(err)
	}
	return w
}

func newTestManager(t *testing.T, gw *fakeGateway, cfg Config) (*Manager, *recordingNotifier) {
	t.Helper()
	if cfg.Symbols == nil {
		cfg.Symbols = []string{"BTC-PERP"}
	}
	if cfg.MaxDailyTrades == 0 {
		cfg.MaxDailyTrades = 10
	}
	if cfg.MaxOpenPositions == 0 {
		cfg.MaxOpenPositions = 10
	}
	cfg.ProtectiveBackoff = time.Millisecond
	cfg.ConfirmTimeout = time.Second
	notifier := &recordingNotifier{}
	m := NewManager(gw, NewStore(), testParams(t), alwaysOpenWindow(t), notifier, cfg,
		slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError})))
	m.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
	return m, notifier
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimSpace(string(p)))
	return len(p), nil
}

func shortSqueeze(id string) domain.Signal {
	return domain.Signal{
		ID:             id,
		Symbol:         "BTC-PERP",
		Type:           domain.SignalShortSqueeze,
		ReferencePrice: 50000,
		ReceivedAt:     time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC),
	}
}

// openTestPosition drives a signal all the way through to an OPEN position
// with protective orders and returns it.
func openTestPosition(t *testing.T, m *Manager, gw *fakeGateway) domain.Position {
	t.Helper()
	m.handleSignal(context.Background(), shortSqueeze("sig-1"))
	if m.store.Count() != 1 {
		t.Fatalf("open positions = %d, want 1", m.store.Count())
	}
	all := m.store.All()
	pos := all[0]
	if pos.Status != domain.StatusOpen {
		t.Fatalf("status = %s, want OPEN", pos.Status)
	}
	if pos.TPOrderID == "" || pos.SLOrderID == "" {
		t.Fatalf("protective orders missing: tp=%q sl=%q", pos.TPOrderID, pos.SLOrderID)
	}
	return pos
}

func TestManagerOpensPositionOnSignal(t *testing.T) {
	gw := newFakeGateway()
	m, notifier := newTestManager(t, gw, Config{})

	pos := openTestPosition(t, m, gw)

	// SHORT_SQUEEZE means a short position, sized at balance*risk%*leverage.
	if pos.Side != domain.SideShort {
		t.Errorf("side = %s, want SHORT", pos.Side)
	}
	if pos.Size != 500 {
		t.Errorf("size = %.2f, want 500", pos.Size)
	}
	if pos.TPPrice != 49600 {
		t.Errorf("tp = %.2f, want 49600", pos.TPPrice)
	}
	if pos.SLPrice != 50150 {
		t.Errorf("sl = %.2f, want 50150", pos.SLPrice)
	}

	// Entry plus two protective orders.
	if got := gw.submitCount(); got != 3 {
		t.Errorf("submits = %d, want 3", got)
	}
	entry := gw.submits[0]
	if entry.Side != domain.OrderSideSell || entry.ReduceOnly {
		t.Errorf("entry order: side=%s reduceOnly=%v", entry.Side, entry.ReduceOnly)
	}
	for _, protective := range gw.submits[1:] {
		if protective.Side != domain.OrderSideBuy || !protective.ReduceOnly {
			t.Errorf("protective order: side=%s reduceOnly=%v", protective.Side, protective.ReduceOnly)
		}
	}

	if len(notifier.opened) != 1 {
		t.Errorf("opened notifications = %d, want 1", len(notifier.opened))
	}
	if got := m.days.Count(m.now()); got != 1 {
		t.Errorf("daily trade count = %d, want 1", got)
	}
}

func TestManagerDailyTradeCap(t *testing.T) {
	gw := newFakeGateway()
	m, _ := newTestManager(t, gw, Config{MaxDailyTrades: 5, MaxOpenPositions: 10})

	for i := 0; i < 6; i++ {
		m.handleSignal(context.Background(), shortSqueeze(fmt.Sprintf("sig-%d", i)))
	}
	if got := m.store.Count(); got != 5 {
		t.Errorf("open positions = %d, want 5 (sixth signal over the cap)", got)
	}
	if got := m.days.Count(m.now()); got != 5 {
		t.Errorf("daily trade count = %d, want 5", got)
	}
}

func TestManagerOpenPositionCap(t *testing.T) {
	gw := newFakeGateway()
	m, _ := newTestManager(t, gw, Config{MaxOpenPositions: 1})

	m.handleSignal(context.Background(), shortSqueeze("sig-1"))
	before := gw.submitCount()
	m.handleSignal(context.Background(), shortSqueeze("sig-2"))

	if got := gw.submitCount(); got != before {
		t.Errorf("second signal reached the exchange: submits %d -> %d", before, got)
	}
	if got := m.store.Count(); got != 1 {
		t.Errorf("open positions = %d, want 1", got)
	}
}

func TestManagerAdmissionGates(t *testing.T) {
	gw := newFakeGateway()
	m, notifier := newTestManager(t, gw, Config{})

	unknown := shortSqueeze("sig-1")
	unknown.Symbol = "DOGE-PERP"
	m.handleSignal(context.Background(), unknown)

	badType := shortSqueeze("sig-2")
	badType.Type = "MOON"
	m.handleSignal(context.Background(), badType)

	w, err := risk.NewWindow(true, "09:00", "10:00")
	if err != nil {
		t.Fatal(err)
	}
	m.window = w // now() is 12:00 UTC, outside the window
	m.handleSignal(context.Background(), shortSqueeze("sig-3"))

	if got := gw.submitCount(); got != 0 {
		t.Errorf("submits = %d, want 0", got)
	}
	// Admission drops are silent.
	if len(notifier.alerts) != 0 {
		t.Errorf("alerts = %v, want none", notifier.alerts)
	}
}

func TestManagerBalanceFailureFailsClosed(t *testing.T) {
	gw := newFakeGateway()
	gw.balanceErr = fmt.Errorf("exchange 503")
	m, notifier := newTestManager(t, gw, Config{})

	m.handleSignal(context.Background(), shortSqueeze("sig-1"))

	if got := gw.submitCount(); got != 0 {
		t.Errorf("submits = %d, want 0 when balance is unknown", got)
	}
	if !notifier.hasAlert("balance unavailable") {
		t.Errorf("missing balance alert, got %v", notifier.alerts)
	}
	if got := m.days.Count(m.now()); got != 0 {
		t.Errorf("daily trade count = %d, want 0", got)
	}
}

func TestManagerEntryRejectionLeavesNoPosition(t *testing.T) {
	gw := newFakeGateway()
	gw.submitFn = func(req domain.OrderRequest) (domain.SubmitResult, error) {
		return domain.SubmitResult{Rejected: &domain.OrderRejected{Reason: "margin check failed"}}, nil
	}
	m, notifier := newTestManager(t, gw, Config{})

	m.handleSignal(context.Background(), shortSqueeze("sig-1"))

	if got := m.store.Count(); got != 0 {
		t.Errorf("open positions = %d, want 0", got)
	}
	if got := m.days.Count(m.now()); got != 0 {
		t.Errorf("daily trade count = %d, want 0 after rejection", got)
	}
	if !notifier.hasAlert("entry order") {
		t.Errorf("missing rejection alert, got %v", notifier.alerts)
	}
}

func TestManagerEntryCancelledBeforeFillAbandons(t *testing.T) {
	gw := newFakeGateway()
	gw.statusFn = func(id string) (domain.OrderStatusInfo, error) {
		return domain.OrderStatusInfo{State: domain.OrderStateCancelled, OrderID: id}, nil
	}
	m, notifier := newTestManager(t, gw, Config{})

	m.handleSignal(context.Background(), shortSqueeze("sig-1"))

	if got := m.store.Count(); got != 0 {
		t.Errorf("open positions = %d, want 0 after abandoned entry", got)
	}
	if len(notifier.opened) != 0 {
		t.Error("opened notification sent for abandoned entry")
	}
	if !notifier.hasAlert("before filling") {
		t.Errorf("missing abandon alert, got %v", notifier.alerts)
	}
}

func TestManagerProtectiveFailureAlertsAndKeepsPosition(t *testing.T) {
	gw := newFakeGateway()
	gw.submitFn = func(req domain.OrderRequest) (domain.SubmitResult, error) {
		if req.ReduceOnly {
			return domain.SubmitResult{Rejected: &domain.OrderRejected{Reason: "price band"}}, nil
		}
		gw.nextID++
		return domain.SubmitResult{Accepted: &domain.OrderAccepted{OrderID: fmt.Sprintf("ord-%d", gw.nextID)}}, nil
	}
	m, notifier := newTestManager(t, gw, Config{ProtectiveRetries: 2})

	m.handleSignal(context.Background(), shortSqueeze("sig-1"))

	// A failed protective placement never rolls back the entry.
	if got := m.store.Count(); got != 1 {
		t.Fatalf("open positions = %d, want 1", got)
	}
	pos := m.store.All()[0]
	if pos.Status != domain.StatusOpen {
		t.Errorf("status = %s, want OPEN", pos.Status)
	}
	if !notifier.hasAlert("UNPROTECTED") {
		t.Errorf("missing unprotected-position alert, got %v", notifier.alerts)
	}
}

func TestManagerTakeProfitFillClosesAndCancelsSibling(t *testing.T) {
	gw := newFakeGateway()
	m, notifier := newTestManager(t, gw, Config{})
	pos := openTestPosition(t, m, gw)

	m.handleFill(context.Background(), domain.FillEvent{Filled: &domain.OrderFilled{
		OrderID: pos.TPOrderID,
		Price:   pos.TPPrice,
		At:      m.now(),
	}})

	if got := m.store.Count(); got != 0 {
		t.Errorf("open positions = %d, want 0", got)
	}
	if len(gw.cancels) != 1 || gw.cancels[0] != pos.SLOrderID {
		t.Errorf("cancels = %v, want [%s]", gw.cancels, pos.SLOrderID)
	}
	if len(notifier.closed) != 1 {
		t.Fatalf("closed notifications = %d, want 1", len(notifier.closed))
	}
	rec := notifier.closed[0]
	if rec.reason != domain.CloseTakeProfit {
		t.Errorf("reason = %s, want TP", rec.reason)
	}
	// Short from 50000 exiting at 49600 is +0.8% on 500 notional.
	if diff := rec.pnlPercent - 0.8; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("pnl percent = %v, want 0.8", rec.pnlPercent)
	}
	if diff := rec.pnlUSD - 4.0; diff < -1e-9 || diff > 1e-9 {
		t.Errorf("pnl usd = %v, want 4.0", rec.pnlUSD)
	}
	if !rec.balanceKnown || rec.newBalance != 1000 {
		t.Errorf("balance = %.2f known=%v, want 1000 known", rec.newBalance, rec.balanceKnown)
	}
}

func TestManagerStopLossFillClosesWithLoss(t *testing.T) {
	gw := newFakeGateway()
	m, notifier := newTestManager(t, gw, Config{})
	pos := openTestPosition(t, m, gw)

	m.handleFill(context.Background(), domain.FillEvent{Filled: &domain.OrderFilled{
		OrderID: pos.SLOrderID,
		Price:   pos.SLPrice,
		At:      m.now(),
	}})

	if len(notifier.closed) != 1 {
		t.Fatalf("closed notifications = %d, want 1", len(notifier.closed))
	}
	rec := notifier.closed[0]
	if rec.reason != domain.CloseStopLoss {
		t.Errorf("reason = %s, want SL", rec.reason)
	}
	if rec.pnlUSD >= 0 {
		t.Errorf("pnl usd = %v, want a loss", rec.pnlUSD)
	}
	if len(gw.cancels) != 1 || gw.cancels[0] != pos.TPOrderID {
		t.Errorf("cancels = %v, want [%s]", gw.cancels, pos.TPOrderID)
	}
}

func TestManagerDuplicateFillsCloseOnce(t *testing.T) {
	gw := newFakeGateway()
	m, notifier := newTestManager(t, gw, Config{})
	pos := openTestPosition(t, m, gw)

	fill := domain.FillEvent{Filled: &domain.OrderFilled{
		OrderID: pos.TPOrderID,
		Price:   pos.TPPrice,
		At:      m.now(),
	}}
	m.handleFill(context.Background(), fill)
	m.handleFill(context.Background(), fill)
	// A late fill of the cancelled sibling must also be a no-op.
	m.handleFill(context.Background(), domain.FillEvent{Filled: &domain.OrderFilled{
		OrderID: pos.SLOrderID,
		Price:   pos.SLPrice,
		At:      m.now(),
	}})

	if len(notifier.closed) != 1 {
		t.Errorf("closed notifications = %d, want exactly 1", len(notifier.closed))
	}
	if len(gw.cancels) != 1 {
		t.Errorf("cancels = %d, want exactly 1", len(gw.cancels))
	}
}

func TestManagerBalanceFailureDegradesCloseNotification(t *testing.T) {
	gw := newFakeGateway()
	m, notifier := newTestManager(t, gw, Config{})
	pos := openTestPosition(t, m, gw)

	gw.balanceErr = fmt.Errorf("exchange 503")
	m.handleFill(context.Background(), domain.FillEvent{Filled: &domain.OrderFilled{
		OrderID: pos.TPOrderID,
		Price:   pos.TPPrice,
		At:      m.now(),
	}})

	// The close itself must commit even when the balance lookup fails.
	if got := m.store.Count(); got != 0 {
		t.Errorf("open positions = %d, want 0", got)
	}
	if len(notifier.closed) != 1 {
		t.Fatalf("closed notifications = %d, want 1", len(notifier.closed))
	}
	if notifier.closed[0].balanceKnown {
		t.Error("balanceKnown = true, want false")
	}
}

func TestManagerDayRolloverResetsCounterOnly(t *testing.T) {
	gw := newFakeGateway()
	m, notifier := newTestManager(t, gw, Config{MaxDailyTrades: 2, MaxOpenPositions: 10})

	m.handleSignal(context.Background(), shortSqueeze("sig-1"))
	m.handleSignal(context.Background(), shortSqueeze("sig-2"))
	m.handleSignal(context.Background(), shortSqueeze("sig-3")) // over the cap
	if got := m.store.Count(); got != 2 {
		t.Fatalf("open positions = %d, want 2", got)
	}

	m.now = func() time.Time { return time.Date(2024, 3, 11, 0, 0, 30, 0, time.UTC) }
	m.maybeDailySummary(context.Background())

	if len(notifier.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(notifier.summaries))
	}
	if got := notifier.summaries[0]; got.trades != 2 || got.open != 2 {
		t.Errorf("summary = %+v, want 2 trades and 2 open", got)
	}
	if notifier.summaries[0].pnlKnown {
		t.Error("pnlKnown = true, want false without a journal")
	}
	// Positions survive the rollover; only the counter resets.
	if got := m.store.Count(); got != 2 {
		t.Errorf("open positions = %d, want 2 after rollover", got)
	}
	m.handleSignal(context.Background(), shortSqueeze("sig-4"))
	if got := m.store.Count(); got != 3 {
		t.Errorf("open positions = %d, want 3 (new day admits trades)", got)
	}

	m.maybeDailySummary(context.Background())
	if len(notifier.summaries) != 1 {
		t.Errorf("summaries = %d, want still 1", len(notifier.summaries))
	}
}

func TestManagerSubmitTimeoutAdoptsExistingOrder(t *testing.T) {
	gw := newFakeGateway()
	gw.submitFn = func(req domain.OrderRequest) (domain.SubmitResult, error) {
		if !req.ReduceOnly {
			return domain.SubmitResult{}, context.DeadlineExceeded
		}
		gw.nextID++
		return domain.SubmitResult{Accepted: &domain.OrderAccepted{OrderID: fmt.Sprintf("ord-%d", gw.nextID)}}, nil
	}
	gw.statusFn = func(id string) (domain.OrderStatusInfo, error) {
		return domain.OrderStatusInfo{State: domain.OrderStateFilled, OrderID: "ord-recovered"}, nil
	}
	m, _ := newTestManager(t, gw, Config{})

	m.handleSignal(context.Background(), shortSqueeze("sig-1"))

	// The ambiguous timeout resolves to the order the exchange reports.
	if _, ok := m.store.Get("ord-recovered"); !ok {
		t.Errorf("position not tracked under recovered order id; store=%v", m.store.All())
	}
}

type fakeTradeStore struct {
	sum   float64
	err   error
	since time.Time
}

func (f *fakeTradeStore) Insert(ctx context.Context, trade domain.ClosedTrade) error { return nil }

func (f *fakeTradeStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.ClosedTrade, error) {
	return nil, nil
}

func (f *fakeTradeStore) SumPnL(ctx context.Context, since time.Time) (float64, error) {
	f.since = since
	return f.sum, f.err
}

func TestManagerDailySummaryIncludesRealizedPnL(t *testing.T) {
	gw := newFakeGateway()
	m, notifier := newTestManager(t, gw, Config{})
	trades := &fakeTradeStore{sum: 12.5}
	m.WithStores(trades, nil)

	m.handleSignal(context.Background(), shortSqueeze("sig-1"))
	m.now = func() time.Time { return time.Date(2024, 3, 11, 0, 0, 30, 0, time.UTC) }
	m.maybeDailySummary(context.Background())

	if len(notifier.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(notifier.summaries))
	}
	got := notifier.summaries[0]
	if !got.pnlKnown || got.pnl != 12.5 {
		t.Errorf("summary pnl = %+v, want known 12.5", got)
	}
	// The sum covers the UTC day that just ended.
	want := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	if !trades.since.Equal(want) {
		t.Errorf("pnl window start = %v, want %v", trades.since, want)
	}
}

func TestManagerDailySummaryDegradesOnPnLError(t *testing.T) {
	gw := newFakeGateway()
	m, notifier := newTestManager(t, gw, Config{})
	m.WithStores(&fakeTradeStore{err: context.DeadlineExceeded}, nil)

	m.now = func() time.Time { return time.Date(2024, 3, 11, 0, 0, 30, 0, time.UTC) }
	m.maybeDailySummary(context.Background())

	if len(notifier.summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(notifier.summaries))
	}
	if notifier.summaries[0].pnlKnown {
		t.Error("pnlKnown = true, want false when the journal query fails")
	}
}
