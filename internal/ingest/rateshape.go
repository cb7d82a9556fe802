package ingest

import (
	"sort"
	"time"

	"github.com/sentinelstream/newspipe/internal/tsparse"
)

type rankedItem struct {
	publishedAt *time.Time
	item        map[string]any
}

// rankItems parses each item's datetime/published_at field and sorts
// newest-first; items whose timestamp can't be parsed sort as if
// minimally old, so they never crowd out items with a real timestamp.
func rankItems(items []map[string]any) []rankedItem {
	ranked := make([]rankedItem, 0, len(items))
	for _, item := range items {
		var ts any
		if v, ok := item["datetime"]; ok {
			ts = v
		} else if v, ok := item["published_at"]; ok {
			ts = v
		}
		var publishedAt *time.Time
		if parsed, ok := tsparse.Parse(ts); ok {
			publishedAt = &parsed
		}
		ranked = append(ranked, rankedItem{publishedAt: publishedAt, item: item})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		ti, tj := ranked[i].publishedAt, ranked[j].publishedAt
		if ti == nil {
			return false
		}
		if tj == nil {
			return true
		}
		return ti.After(*tj)
	})
	return ranked
}

// limitPerDay caps items at `limit` per NYC-local calendar day,
// keeping the newest-ranked items for each day; items with no parsed
// timestamp fall into a shared "unknown" bucket rather than being
// dropped outright. limit <= 0 disables the cap.
func limitPerDay(ranked []rankedItem, limit int) (kept []map[string]any, dropped int) {
	if limit <= 0 {
		kept = make([]map[string]any, len(ranked))
		for i, r := range ranked {
			kept[i] = r.item
		}
		return kept, 0
	}

	counts := map[string]int{}
	for _, r := range ranked {
		key := "unknown"
		if r.publishedAt != nil {
			key = r.publishedAt.In(nycLocation).Format("2006-01-02")
		}
		if counts[key] >= limit {
			dropped++
			continue
		}
		counts[key]++
		kept = append(kept, r.item)
	}
	return kept, dropped
}

// limitLatestPerRun caps the (already daily-capped) item slice at the
// first `limit` entries — items are still newest-first at this point,
// so this keeps the most recent ones. limit <= 0 disables the cap.
func limitLatestPerRun(items []map[string]any, limit int) (kept []map[string]any, dropped int) {
	if limit <= 0 || len(items) <= limit {
		return items, 0
	}
	return items[:limit], len(items) - limit
}
