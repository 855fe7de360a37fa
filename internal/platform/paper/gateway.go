// Package paper provides an in-memory OrderGateway for dry runs. Orders
// never leave the process: entries fill immediately at their limit price and
// protective orders rest until a simulated price tick crosses them.
package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voltrade/revbot/internal/domain"
)

type restingOrder struct {
	id  string
	req domain.OrderRequest
}

// Gateway simulates an exchange account.
type Gateway struct {
	mu      sync.Mutex
	balance float64
	marks   map[string]float64
	resting map[string]restingOrder
	states  map[string]domain.OrderState
	events  chan domain.FillEvent
	logger  *slog.Logger
}

// NewGateway creates a paper account with the given starting balance.
func NewGateway(startingBalance float64, logger *slog.Logger) *Gateway {
	return &Gateway{
		balance: startingBalance,
		marks:   make(map[string]float64),
		resting: make(map[string]restingOrder),
		states:  make(map[string]domain.OrderState),
		events:  make(chan domain.FillEvent, 128),
		logger:  logger.With(slog.String("component", "paper_gateway")),
	}
}

func (g *Gateway) GetBalance(ctx context.Context) (domain.Balance, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return domain.Balance{Available: g.balance}, nil
}

func (g *Gateway) GetInstrument(ctx context.Context, symbol string) (domain.Instrument, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	mark, ok := g.marks[symbol]
	if !ok {
		return domain.Instrument{}, fmt.Errorf("paper: instrument %s: %w", symbol, domain.ErrNotFound)
	}
	return domain.Instrument{ID: "paper-" + symbol, Symbol: symbol, MarkPrice: mark}, nil
}

// SubmitOrder accepts every order. Non-reduce-only orders fill immediately
// at their limit price; reduce-only orders rest until SetMark crosses them.
func (g *Gateway) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.SubmitResult, error) {
	if req.Price <= 0 || req.Size <= 0 {
		return domain.SubmitResult{Rejected: &domain.OrderRejected{Reason: "non-positive price or size"}}, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id := "paper-" + uuid.New().String()
	if req.ReduceOnly {
		g.resting[id] = restingOrder{id: id, req: req}
		g.states[id] = domain.OrderStateNew
		g.logger.Debug("protective order resting",
			slog.String("order_id", id),
			slog.String("symbol", req.Symbol),
			slog.Float64("price", req.Price),
		)
		return domain.SubmitResult{Accepted: &domain.OrderAccepted{OrderID: id}}, nil
	}

	g.states[id] = domain.OrderStateFilled
	if _, ok := g.marks[req.Symbol]; !ok {
		// An entry fill seeds the mark so the drift ticker has a
		// starting point before any cached price arrives.
		g.marks[req.Symbol] = req.Price
	}
	g.logger.Debug("entry order filled",
		slog.String("order_id", id),
		slog.String("symbol", req.Symbol),
		slog.Float64("price", req.Price),
	)
	return domain.SubmitResult{Accepted: &domain.OrderAccepted{OrderID: id}}, nil
}

func (g *Gateway) CancelOrder(ctx context.Context, orderID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.resting[orderID]; !ok {
		return fmt.Errorf("paper: cancel %s: %w", orderID, domain.ErrNotFound)
	}
	delete(g.resting, orderID)
	g.states[orderID] = domain.OrderStateCancelled

	ev := domain.FillEvent{Cancelled: &domain.OrderCancelled{OrderID: orderID, At: time.Now().UTC()}}
	select {
	case g.events <- ev:
	default:
	}
	return nil
}

func (g *Gateway) OrderStatus(ctx context.Context, id string) (domain.OrderStatusInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.states[id]
	if !ok {
		return domain.OrderStatusInfo{}, fmt.Errorf("paper: order %s: %w", id, domain.ErrNotFound)
	}
	return domain.OrderStatusInfo{State: state, OrderID: id}, nil
}

func (g *Gateway) Fills() <-chan domain.FillEvent {
	return g.events
}

// SetMark updates a symbol's mark price and fills any resting order the new
// price crosses. A sell fills when the mark rises to its price, a buy when
// the mark falls to it.
func (g *Gateway) SetMark(symbol string, price float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.marks[symbol] = price

	for id, o := range g.resting {
		if o.req.Symbol != symbol {
			continue
		}
		crossed := (o.req.Side == domain.OrderSideSell && price >= o.req.Price) ||
			(o.req.Side == domain.OrderSideBuy && price <= o.req.Price)
		if !crossed {
			continue
		}

		delete(g.resting, id)
		g.states[id] = domain.OrderStateFilled
		g.events <- domain.FillEvent{Filled: &domain.OrderFilled{
			OrderID: id,
			Price:   o.req.Price,
			At:      time.Now().UTC(),
		}}
	}
}

// Mark returns the last mark price set for a symbol.
func (g *Gateway) Mark(symbol string) (float64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	mark, ok := g.marks[symbol]
	return mark, ok
}

// AdjustBalance applies a PnL delta to the simulated account.
func (g *Gateway) AdjustBalance(delta float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.balance += delta
}

var _ domain.OrderGateway = (*Gateway)(nil)
