package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voltrade/revbot/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Insert appends a closed trade to the journal.
func (s *TradeStore) Insert(ctx context.Context, t domain.ClosedTrade) error {
	const query = `
		INSERT INTO closed_trades
			(id, entry_order_id, symbol, side, entry_price, exit_price,
			 size, pnl_usd, pnl_percent, reason, opened_at, closed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := s.pool.Exec(ctx, query,
		t.ID, t.EntryOrderID, t.Symbol, string(t.Side),
		t.EntryPrice, t.ExitPrice, t.Size,
		t.PnLUSD, t.PnLPercent, string(t.Reason),
		t.OpenedAt, t.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", t.ID, err)
	}
	return nil
}

// ListBetween returns the trades closed within [from, to), oldest first.
func (s *TradeStore) ListBetween(ctx context.Context, from, to time.Time) ([]domain.ClosedTrade, error) {
	const query = `
		SELECT id, entry_order_id, symbol, side, entry_price, exit_price,
		       size, pnl_usd, pnl_percent, reason, opened_at, closed_at
		FROM closed_trades
		WHERE closed_at >= $1 AND closed_at < $2
		ORDER BY closed_at ASC`

	rows, err := s.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.ClosedTrade
	for rows.Next() {
		var t domain.ClosedTrade
		var side, reason string
		if err := rows.Scan(
			&t.ID, &t.EntryOrderID, &t.Symbol, &side,
			&t.EntryPrice, &t.ExitPrice, &t.Size,
			&t.PnLUSD, &t.PnLPercent, &reason,
			&t.OpenedAt, &t.ClosedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		t.Side = domain.PositionSide(side)
		t.Reason = domain.CloseReason(reason)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list trades rows: %w", err)
	}
	return trades, nil
}

// SumPnL returns the total realized PnL of trades closed since the given
// time.
func (s *TradeStore) SumPnL(ctx context.Context, since time.Time) (float64, error) {
	const query = `
		SELECT COALESCE(SUM(pnl_usd), 0)
		FROM closed_trades
		WHERE closed_at >= $1`

	var total float64
	if err := s.pool.QueryRow(ctx, query, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("postgres: sum pnl: %w", err)
	}
	return total, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
