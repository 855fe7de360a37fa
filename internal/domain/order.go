package domain

import "time"

// OrderSide indicates whether an order buys or sells the base asset.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// EntrySide returns the order side that opens a position in the given
// direction; protective orders use the opposite.
func EntrySide(side PositionSide) OrderSide {
	if side == SideLong {
		return OrderSideBuy
	}
	return OrderSideSell
}

// Opposite returns the other order side.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderRequest describes an order to submit. Limit price is always set: taking
// entries are limit orders offset past the mark price by a slippage tolerance
// rather than true market orders, and protective orders rest at their trigger
// level with ReduceOnly set.
type OrderRequest struct {
	Symbol     string
	Side       OrderSide
	Price      float64
	Size       float64 // notional, quote currency
	ReduceOnly bool
	ClientID   string // caller-assigned UUID, echoed by the exchange
}

// SubmitResult is the closed outcome of an order submission: exactly one of
// Accepted or Rejected, never an untyped payload from the SDK.
type SubmitResult struct {
	Accepted *OrderAccepted
	Rejected *OrderRejected
}

// OrderAccepted carries the exchange-assigned order ID.
type OrderAccepted struct {
	OrderID string
}

// OrderRejected carries the exchange's rejection reason.
type OrderRejected struct {
	Reason string
}

// OrderState is the polled status of a previously submitted order.
type OrderState string

const (
	OrderStateNew       OrderState = "NEW"
	OrderStateFilled    OrderState = "FILLED"
	OrderStateCancelled OrderState = "CANCELLED"
	OrderStateRejected  OrderState = "REJECTED"
	OrderStateUnknown   OrderState = "UNKNOWN"
)

// OrderStatusInfo is the result of an order status query. OrderID carries
// the exchange-assigned ID, which may differ from the queried ID when the
// query used a client-assigned one.
type OrderStatusInfo struct {
	State   OrderState
	OrderID string
}

// FillEvent is the closed variant for exchange stream events: exactly one of
// Filled or Cancelled is set.
type FillEvent struct {
	Filled    *OrderFilled
	Cancelled *OrderCancelled
}

// OrderFilled reports an order fill from the exchange stream.
type OrderFilled struct {
	OrderID string
	Price   float64
	At      time.Time
}

// OrderCancelled reports an order cancellation from the exchange stream.
type OrderCancelled struct {
	OrderID string
	At      time.Time
}

// Balance is the account balance snapshot used for sizing.
type Balance struct {
	Available float64 // quote currency
}

// Instrument is the exchange's view of a tradable symbol.
type Instrument struct {
	ID        string
	Symbol    string
	MarkPrice float64
}
