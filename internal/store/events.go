package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/sentinelstream/newspipe/internal/domain"
)

// UpsertNewsEvent inserts a canonical news event, or returns the
// existing row when (source, url) already exists — news items fetched
// from overlapping windows, or independently by more than one ticker
// request, collapse onto the same event. Reports created=false on the
// conflict path.
func (s *Store) UpsertNewsEvent(ctx context.Context, event domain.NewsEvent) (created bool, out domain.NewsEvent, err error) {
	out = event
	row := s.db.QueryRow(ctx, `
		INSERT INTO news_events
			(news_id, trace_id, source, request_ticker, published_at, ingested_at, title, url, content, tickers, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (source, url) DO NOTHING
		RETURNING id
	`, event.NewsID, event.TraceID, event.Source, event.RequestTicker, event.PublishedAt, event.IngestedAt,
		event.Title, event.URL, event.Content, event.Tickers, event.RawPayload)

	scanErr := row.Scan(&out.ID)
	if scanErr == pgx.ErrNoRows {
		existing, getErr := s.GetNewsEventBySourceURL(ctx, event.Source, event.URL)
		if getErr != nil {
			return false, domain.NewsEvent{}, getErr
		}
		return false, existing, nil
	}
	if scanErr != nil {
		return false, domain.NewsEvent{}, scanErr
	}
	return true, out, nil
}

// GetNewsEventBySourceURL looks up a news event by its natural key.
func (s *Store) GetNewsEventBySourceURL(ctx context.Context, source, url string) (domain.NewsEvent, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, news_id, trace_id, source, request_ticker, published_at, ingested_at,
		       title, url, content, tickers, raw_payload
		FROM news_events
		WHERE source = $1 AND url = $2
	`, source, url)
	event, err := scanNewsEvent(row)
	if err == pgx.ErrNoRows {
		return domain.NewsEvent{}, ErrNotFound
	}
	return event, err
}

// GetNewsEventByID looks up a news event by primary key.
func (s *Store) GetNewsEventByID(ctx context.Context, id int64) (domain.NewsEvent, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, news_id, trace_id, source, request_ticker, published_at, ingested_at,
		       title, url, content, tickers, raw_payload
		FROM news_events
		WHERE id = $1
	`, id)
	event, err := scanNewsEvent(row)
	if err == pgx.ErrNoRows {
		return domain.NewsEvent{}, ErrNotFound
	}
	return event, err
}

func scanNewsEvent(row pgx.Row) (domain.NewsEvent, error) {
	var event domain.NewsEvent
	err := row.Scan(&event.ID, &event.NewsID, &event.TraceID, &event.Source, &event.RequestTicker,
		&event.PublishedAt, &event.IngestedAt, &event.Title, &event.URL, &event.Content,
		&event.Tickers, &event.RawPayload)
	return event, err
}
