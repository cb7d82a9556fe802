package ingest

import (
	"testing"
	"time"
)

func TestDedupKeyForIsStableAcrossQueryStringChurn(t *testing.T) {
	published := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := dedupKeyFor("finnhub", "https://example.com/a?utm_source=x", "Title", &published)
	b := dedupKeyFor("finnhub", "https://example.com/a?utm_source=y&utm_campaign=z", "Title", &published)
	if a != b {
		t.Fatalf("expected dedup keys to match across tracking-param churn, got %s vs %s", a, b)
	}
}

func TestDedupKeyForFallsBackToTitleAndPublishedAtWithoutURL(t *testing.T) {
	published := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := dedupKeyFor("finnhub", "", "Same Title", &published)
	b := dedupKeyFor("finnhub", "", "Same Title", &published)
	c := dedupKeyFor("finnhub", "", "Different Title", &published)

	if a != b {
		t.Fatal("expected identical title/published_at to produce identical dedup keys")
	}
	if a == c {
		t.Fatal("expected different titles to produce different dedup keys")
	}
}

func TestDedupKeyForIgnoresMalformedURLByFallingBackToRawValue(t *testing.T) {
	published := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	key := dedupKeyFor("finnhub", "://not-a-valid-url", "Title", &published)
	if key == "" {
		t.Fatal("expected a non-empty dedup key even for a malformed url")
	}
}
