package domain

import "time"

// SignalType classifies an inbound trade trigger. The side mapping is fixed
// by the mean-reversion strategy: a short squeeze is faded with a SHORT, a
// long flush is faded with a LONG. Any direction hint carried by the
// ingestion layer is ignored.
type SignalType string

const (
	SignalShortSqueeze SignalType = "SHORT_SQUEEZE"
	SignalLongFlush    SignalType = "LONG_FLUSH"
)

// Valid reports whether the signal type is one of the known values.
func (t SignalType) Valid() bool {
	return t == SignalShortSqueeze || t == SignalLongFlush
}

// Side returns the position side this signal type maps to.
func (t SignalType) Side() PositionSide {
	if t == SignalShortSqueeze {
		return SideShort
	}
	return SideLong
}

// Signal is an inbound trade trigger produced by the ingestion collaborator.
// It is transient and consumed exactly once; the symbol/type pair is
// untrusted input and must pass the manager's admission gates.
type Signal struct {
	ID             string // UUID assigned at ingestion, used for dedup
	Symbol         string
	Type           SignalType
	ReferencePrice float64 // optional; 0 when the message carried no price
	ReceivedAt     time.Time
}
