package vest

import (
	"fmt"
	"time"

	"github.com/voltrade/revbot/internal/domain"
)

// --------------------------------------------------------------------------
// REST wire types
// --------------------------------------------------------------------------

// apiAccount is the response of GET /account.
type apiAccount struct {
	Balances []apiBalance `json:"balances"`
}

type apiBalance struct {
	Asset     string `json:"asset"`
	Available string `json:"available"` // x18
	Total     string `json:"total"`     // x18
}

// apiInstrument is one entry of GET /exchangeInfo.
type apiInstrument struct {
	ID        string `json:"id"`
	Symbol    string `json:"symbol"`
	MarkPrice string `json:"markPrice"` // x18
	Status    string `json:"status"`
}

// apiOrderRequest is the body of POST /orders.
type apiOrderRequest struct {
	Account    string `json:"account"`
	Symbol     string `json:"symbol"`
	Side       string `json:"side"` // BUY | SELL
	Type       string `json:"type"` // LIMIT
	Price      string `json:"price"` // x18
	Size       string `json:"size"`  // x18
	Nonce      int64  `json:"nonce"`
	ReduceOnly bool   `json:"reduceOnly"`
	ClientID   string `json:"clientOrderId,omitempty"`
	Signature  string `json:"signature"`
}

// apiOrderResponse is the response of POST /orders and GET /orders/{id}.
type apiOrderResponse struct {
	OrderID  string `json:"orderId"`
	ClientID string `json:"clientOrderId"`
	Status   string `json:"status"` // NEW | FILLED | CANCELLED | REJECTED
	Reason   string `json:"reason,omitempty"`
}

// apiError is the error envelope the API returns on non-2xx responses.
type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// --------------------------------------------------------------------------
// WebSocket wire types
// --------------------------------------------------------------------------

// wsCommand is a subscription command sent on the account stream.
type wsCommand struct {
	Method string   `json:"method"` // SUBSCRIBE | UNSUBSCRIBE
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// wsEnvelope identifies the channel of an incoming stream message.
type wsEnvelope struct {
	Channel string `json:"channel"`
}

// wsTicker is a mark-price update on the "tickers" channel.
type wsTicker struct {
	Channel   string `json:"channel"`
	Symbol    string `json:"symbol"`
	MarkPrice string `json:"markPrice"` // x18
	Timestamp int64  `json:"timestamp"` // unix millis
}

// wsOrderUpdate is an order lifecycle event on the "orders" channel.
type wsOrderUpdate struct {
	Channel   string `json:"channel"`
	OrderID   string `json:"orderId"`
	Status    string `json:"status"`    // FILLED | CANCELLED | ...
	FillPrice string `json:"fillPrice"` // x18, set when Status == FILLED
	Timestamp int64  `json:"timestamp"` // unix millis
}

// --------------------------------------------------------------------------
// Converters
// --------------------------------------------------------------------------

func (a apiOrderResponse) toStatusInfo() domain.OrderStatusInfo {
	state := domain.OrderStateUnknown
	switch a.Status {
	case "NEW", "PARTIALLY_FILLED":
		state = domain.OrderStateNew
	case "FILLED":
		state = domain.OrderStateFilled
	case "CANCELLED", "EXPIRED":
		state = domain.OrderStateCancelled
	case "REJECTED":
		state = domain.OrderStateRejected
	}
	return domain.OrderStatusInfo{State: state, OrderID: a.OrderID}
}

func (u wsOrderUpdate) toFillEvent() (domain.FillEvent, error) {
	at := time.UnixMilli(u.Timestamp).UTC()
	switch u.Status {
	case "FILLED":
		price, err := fromX18(u.FillPrice)
		if err != nil {
			return domain.FillEvent{}, fmt.Errorf("vest: order update for %s: %w", u.OrderID, err)
		}
		return domain.FillEvent{Filled: &domain.OrderFilled{
			OrderID: u.OrderID,
			Price:   price,
			At:      at,
		}}, nil
	case "CANCELLED", "EXPIRED":
		return domain.FillEvent{Cancelled: &domain.OrderCancelled{
			OrderID: u.OrderID,
			At:      at,
		}}, nil
	default:
		return domain.FillEvent{}, nil
	}
}
