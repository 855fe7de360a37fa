package domain

import "time"

// PositionSide is the direction of a position.
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// PositionStatus tracks a position through its lifecycle. Transitions only
// ever move forward: PENDING_ENTRY -> OPEN -> CLOSING -> CLOSED.
type PositionStatus string

const (
	StatusPendingEntry PositionStatus = "PENDING_ENTRY"
	StatusOpen         PositionStatus = "OPEN"
	StatusClosing      PositionStatus = "CLOSING"
	StatusClosed       PositionStatus = "CLOSED"
)

// CloseReason records which protective order ended a position.
type CloseReason string

const (
	CloseTakeProfit CloseReason = "TP"
	CloseStopLoss   CloseReason = "SL"
)

// Position is the central entity of the lifecycle core. Identity is the
// entry order ID assigned by the exchange when the entry was accepted; it is
// set once and never reused. Entry price, size and the protective price
// levels are computed at creation and immutable afterwards. TPOrderID and
// SLOrderID are filled in asynchronously once protective placement completes
// and stay empty if placement fails.
type Position struct {
	EntryOrderID string
	Symbol       string
	Side         PositionSide
	EntryPrice   float64
	Size         float64 // notional, quote currency
	TPPrice      float64
	SLPrice      float64
	TPOrderID    string
	SLOrderID    string
	Status       PositionStatus
	OpenedAt     time.Time
}

// PnL computes the realized result of closing the position at exitPrice.
// The percentage is relative to entry; USD is relative to notional size.
func (p Position) PnL(exitPrice float64) (pnlUSD, pnlPercent float64) {
	if p.EntryPrice == 0 {
		return 0, 0
	}
	if p.Side == SideLong {
		pnlPercent = (exitPrice - p.EntryPrice) / p.EntryPrice * 100
	} else {
		pnlPercent = (p.EntryPrice - exitPrice) / p.EntryPrice * 100
	}
	pnlUSD = p.Size * pnlPercent / 100
	return pnlUSD, pnlPercent
}

// ClosedTrade is the journal record written when a close is finalized.
type ClosedTrade struct {
	ID           string
	EntryOrderID string
	Symbol       string
	Side         PositionSide
	EntryPrice   float64
	ExitPrice    float64
	Size         float64
	PnLUSD       float64
	PnLPercent   float64
	Reason       CloseReason
	OpenedAt     time.Time
	ClosedAt     time.Time
}
