package domain

import (
	"context"
	"io"
	"time"
)

// TradeStore persists the journal of closed trades.
type TradeStore interface {
	Insert(ctx context.Context, trade ClosedTrade) error
	ListBetween(ctx context.Context, from, to time.Time) ([]ClosedTrade, error)
	SumPnL(ctx context.Context, since time.Time) (float64, error)
}

// AuditStore persists an append-only log of lifecycle events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
}

// BlobWriter uploads data to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports journal data to cold storage.
type Archiver interface {
	ArchiveDay(ctx context.Context, day time.Time) (int, error)
}
