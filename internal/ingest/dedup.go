package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/sentinelstream/newspipe/internal/urlcanon"
)

// dedupKeyFor computes the stable, cross-run dedup key for a raw item:
// sha256("{source}|{canonical url}") when a URL is present, falling back
// to the raw url if it fails to canonicalize, else
// sha256("{source}|{title}|{published_at}") so that wire-format variance
// in upstream payloads (query-string churn, redirects) never produces a
// duplicate row for the same article. trace_id never participates here —
// the whole point of this key is to match across separate ingestion runs.
func dedupKeyFor(source, rawURL, title string, publishedAt *time.Time) string {
	if rawURL != "" {
		canonical, err := urlcanon.Canonicalize(rawURL)
		if err != nil {
			canonical = rawURL
		}
		return sha256Hex(source + "|" + canonical)
	}

	published := ""
	if publishedAt != nil {
		published = publishedAt.UTC().Format(time.RFC3339Nano)
	}
	return sha256Hex(source + "|" + title + "|" + published)
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
