package vest

import (
	"github.com/voltrade/revbot/internal/domain"
)

// Gateway combines the REST client and the order stream into a single
// domain.OrderGateway.
type Gateway struct {
	*Client
	stream *Stream
}

// NewGateway wraps an authenticated client and a connected stream.
func NewGateway(client *Client, stream *Stream) *Gateway {
	return &Gateway{Client: client, stream: stream}
}

// Fills returns the exchange's order update stream.
func (g *Gateway) Fills() <-chan domain.FillEvent {
	return g.stream.Events()
}

// Close tears down the stream connection.
func (g *Gateway) Close() error {
	return g.stream.Close()
}

var _ domain.OrderGateway = (*Gateway)(nil)
