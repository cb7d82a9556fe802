// Package normalize turns an upstream payload map into a canonical
// domain.NewsEvent (C3 in SPEC_FULL.md). It is the single place that
// reaches into an opaque upstream payload by key — every downstream
// consumer works with domain.NewsEvent instead.
package normalize

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sentinelstream/newspipe/internal/domain"
	"github.com/sentinelstream/newspipe/internal/tsparse"
	"github.com/sentinelstream/newspipe/internal/urlcanon"
)

// DefaultSource is used when an upstream item carries no source field.
const DefaultSource = "finnhub"

// NormalizationError indicates a raw item is missing a required field.
// It is not retried by the pipeline — it requires upstream correction.
type NormalizationError struct {
	msg string
}

func (e *NormalizationError) Error() string { return e.msg }

func newNormalizationError(msg string) error {
	return &NormalizationError{msg: msg}
}

// IsNormalizationError reports whether err is a *NormalizationError.
func IsNormalizationError(err error) bool {
	var target *NormalizationError
	return errors.As(err, &target)
}

// Item is the subset of an upstream payload the normalizer reads by
// name. Everything else in the raw payload stays opaque and is passed
// through verbatim as NewsEvent.RawPayload.
type Item struct {
	URL         string
	Headline    string
	Title       string
	Timestamp   any
	Summary     string
	Content     string
	Related     string
	Source      string
}

// FromMap extracts an Item from an untyped upstream payload map — the
// only place in the codebase allowed to do a dictionary lookup on raw
// upstream JSON.
func FromMap(payload map[string]any) Item {
	item := Item{}
	if v, ok := payload["url"].(string); ok {
		item.URL = v
	}
	if v, ok := payload["headline"].(string); ok {
		item.Headline = v
	}
	if v, ok := payload["title"].(string); ok {
		item.Title = v
	}
	if v, ok := payload["datetime"]; ok {
		item.Timestamp = v
	} else if v, ok := payload["published_at"]; ok {
		item.Timestamp = v
	}
	if v, ok := payload["summary"].(string); ok {
		item.Summary = v
	}
	if v, ok := payload["content"].(string); ok {
		item.Content = v
	}
	if v, ok := payload["related"].(string); ok {
		item.Related = v
	}
	if v, ok := payload["source"].(string); ok {
		item.Source = v
	}
	return item
}

// Normalize builds a canonical domain.NewsEvent from a raw upstream
// payload. rawPayload is the decoded payload map; rawPayloadJSON is the
// original JSON bytes, stored verbatim for audit (when nil, rawPayload
// is re-marshalled instead).
func Normalize(
	rawPayload map[string]any,
	rawPayloadJSON []byte,
	traceID uuid.UUID,
	ingestedAt time.Time,
	requestTicker *string,
) (domain.NewsEvent, error) {
	item := FromMap(rawPayload)

	headline := item.Headline
	if headline == "" {
		headline = item.Title
	}
	publishedAt, ok := tsparse.Parse(item.Timestamp)

	if item.URL == "" || headline == "" || !ok {
		return domain.NewsEvent{}, newNormalizationError("missing required fields: url/headline/datetime")
	}

	canonicalURL, err := urlcanon.Canonicalize(item.URL)
	if err != nil {
		return domain.NewsEvent{}, newNormalizationError("invalid url: " + err.Error())
	}

	var content *string
	c := item.Summary
	if c == "" {
		c = item.Content
	}
	if trimmed := strings.TrimSpace(c); trimmed != "" {
		content = &trimmed
	}

	tickers := dedupPreserveOrder(parseRelated(item.Related))

	source := item.Source
	if source == "" {
		source = DefaultSource
	}

	newsID, err := urlcanon.NewsID(source, canonicalURL)
	if err != nil {
		return domain.NewsEvent{}, newNormalizationError("invalid url: " + err.Error())
	}

	payloadBytes := rawPayloadJSON
	if payloadBytes == nil {
		payloadBytes, _ = json.Marshal(rawPayload)
	}

	return domain.NewsEvent{
		NewsID:        newsID,
		TraceID:       traceID,
		Source:        source,
		RequestTicker: requestTicker,
		PublishedAt:   publishedAt,
		IngestedAt:    ingestedAt,
		Title:         headline,
		URL:           canonicalURL,
		Content:       content,
		Tickers:       tickers,
		RawPayload:    payloadBytes,
	}, nil
}

func parseRelated(related string) []string {
	if strings.TrimSpace(related) == "" {
		return nil
	}
	parts := strings.Split(related, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func dedupPreserveOrder(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
