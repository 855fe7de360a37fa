package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest mark prices. The WS feed
// writes into it; the manager reads it as the live-price source before
// falling back to a signal's reference price.
type PriceCache interface {
	SetPrice(ctx context.Context, symbol string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, symbol string) (float64, time.Time, error)
}

// SignalBus carries inbound signals from the ingestion collaborator over
// pub/sub.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// RateLimiter bounds order submission rate per account.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides the single-instance trading lock. Exactly one process
// may trade an account at a time.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}
