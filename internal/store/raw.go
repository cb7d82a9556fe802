package store

import (
	"context"
	"time"

	"github.com/sentinelstream/newspipe/internal/domain"
)

// InsertRawItem upserts one fetched item keyed on (source, dedup_key).
// A conflicting row is refreshed — fetched_at, trace_id, and raw_payload
// are overwritten with the latest fetch — rather than skipped, since
// overlapping ingestion windows routinely re-request the same article
// and the freshest payload should win. inserted reports whether this
// call created the row (xmax = 0) as opposed to refreshing an existing
// one, matching Postgres's own upsert-provenance idiom.
func (s *Store) InsertRawItem(ctx context.Context, item domain.RawItem) (inserted bool, out domain.RawItem, err error) {
	out = item
	row := s.db.QueryRow(ctx, `
		INSERT INTO raw_news_items
			(source, trace_id, fetched_at, published_at, url, title, dedup_key, raw_payload, request_ticker, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (source, dedup_key) DO UPDATE
		SET fetched_at = EXCLUDED.fetched_at,
		    trace_id = EXCLUDED.trace_id,
		    raw_payload = EXCLUDED.raw_payload,
		    updated_at = NOW()
		RETURNING raw_id, created_at, updated_at, (xmax = 0) AS inserted
	`, item.Source, item.TraceID, item.FetchedAt, item.PublishedAt, item.URL, item.Title,
		item.DedupKey, item.RawPayload, item.RequestTicker, string(item.Status))

	var createdAt, updatedAt time.Time
	if err := row.Scan(&out.RawID, &createdAt, &updatedAt, &inserted); err != nil {
		return false, domain.RawItem{}, err
	}
	return inserted, out, nil
}

// MarkRawNormalized transitions a raw item to RawNormalized.
func (s *Store) MarkRawNormalized(ctx context.Context, rawID int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE raw_news_items
		SET status = $2, updated_at = NOW()
		WHERE raw_id = $1
	`, rawID, string(domain.RawNormalized))
	return err
}

// MarkRawFailed transitions a raw item to RawFailed, recording the
// normalization error and incrementing the attempt counter.
func (s *Store) MarkRawFailed(ctx context.Context, rawID int64, reason string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE raw_news_items
		SET status = $2, attempts = attempts + 1, last_error = $3, updated_at = NOW()
		WHERE raw_id = $1
	`, rawID, string(domain.RawFailed), reason)
	return err
}

// maxNormalizeAttempts bounds how many times a failed raw item is
// retried before it's excluded from SelectUnnormalized for good —
// it remains in the table with status 'failed' for operator inspection.
const maxNormalizeAttempts = 3

// SelectUnnormalized returns items still awaiting normalization — freshly
// fetched ones, plus previously-failed ones that haven't exhausted
// maxNormalizeAttempts — oldest first, bounded by limit.
func (s *Store) SelectUnnormalized(ctx context.Context, limit int) ([]domain.RawItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT raw_id, source, trace_id, fetched_at, published_at, url, title, dedup_key,
		       raw_payload, request_ticker, status, attempts, last_error
		FROM raw_news_items
		WHERE status IN ($1, $2) AND attempts < $3
		ORDER BY fetched_at ASC
		LIMIT $4
	`, string(domain.RawFetched), string(domain.RawFailed), maxNormalizeAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RawItem
	for rows.Next() {
		var item domain.RawItem
		var status string
		if err := rows.Scan(&item.RawID, &item.Source, &item.TraceID, &item.FetchedAt, &item.PublishedAt,
			&item.URL, &item.Title, &item.DedupKey, &item.RawPayload, &item.RequestTicker,
			&status, &item.Attempts, &item.LastError); err != nil {
			return nil, err
		}
		item.Status = domain.RawStatus(status)
		out = append(out, item)
	}
	return out, rows.Err()
}
