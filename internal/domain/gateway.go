package domain

import "context"

// OrderGateway is the surface the lifecycle manager consumes from the
// exchange collaborator. Implementations own transport, signing, and
// fixed-point conversion; everything crossing this boundary is plain floats
// and the closed variants in order.go.
//
// All calls must honour the context deadline. GetBalance has no fallback
// semantics: an error means the balance is unknown and the caller must
// refuse to trade, never substitute a placeholder value.
type OrderGateway interface {
	GetBalance(ctx context.Context) (Balance, error)
	GetInstrument(ctx context.Context, symbol string) (Instrument, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (SubmitResult, error)
	CancelOrder(ctx context.Context, orderID string) error

	// OrderStatus resolves the state of a submitted order. The id may be
	// an exchange-assigned order ID or a caller-assigned client ID; the
	// latter is the disambiguation path after a submission timeout, when
	// no exchange ID was ever received. This is also the entry
	// confirmation mechanism: the manager polls rather than assuming a
	// fixed delay means filled.
	OrderStatus(ctx context.Context, id string) (OrderStatusInfo, error)

	// Fills returns the stream of fill/cancel events. The channel is closed
	// when the underlying connection shuts down for good.
	Fills() <-chan FillEvent
}
