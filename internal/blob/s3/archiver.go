package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voltrade/revbot/internal/domain"
)

// Archiver implements domain.Archiver by exporting a UTC day's closed
// trades from the journal as JSONL and uploading the file to object
// storage. Records are never deleted from the primary store here; archival
// is an export, not a purge.
type Archiver struct {
	writer domain.BlobWriter
	trades domain.TradeStore
	audit  domain.AuditStore // optional
}

// NewArchiver creates an Archiver over the given journal and blob writer.
// The audit store may be nil.
func NewArchiver(writer domain.BlobWriter, trades domain.TradeStore, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer: writer,
		trades: trades,
		audit:  audit,
	}
}

// ArchiveDay exports the trades closed during the UTC day containing the
// given time to archive/trades/YYYY-MM-DD.jsonl and returns the record
// count. A day with no trades uploads nothing and returns zero.
func (a *Archiver) ArchiveDay(ctx context.Context, day time.Time) (int, error) {
	day = day.UTC()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)

	trades, err := a.trades.ListBetween(ctx, from, to)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive day query: %w", err)
	}
	if len(trades) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(trades)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive day marshal: %w", err)
	}

	path := fmt.Sprintf("archive/trades/%s.jsonl", from.Format("2006-01-02"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive day upload: %w", err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.trades", map[string]any{
			"path":  path,
			"count": len(trades),
			"day":   from.Format("2006-01-02"),
		}); err != nil {
			return len(trades), fmt.Errorf("s3blob: archive day audit log: %w", err)
		}
	}

	return len(trades), nil
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
