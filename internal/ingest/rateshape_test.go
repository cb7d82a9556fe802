package ingest

import (
	"testing"
)

func itemWithDatetime(id string, unix int64) map[string]any {
	return map[string]any{"id": id, "datetime": unix}
}

func TestRankItemsOrdersNewestFirst(t *testing.T) {
	items := []map[string]any{
		itemWithDatetime("old", 1000),
		itemWithDatetime("new", 3000),
		itemWithDatetime("mid", 2000),
	}
	ranked := rankItems(items)
	if len(ranked) != 3 {
		t.Fatalf("expected 3 ranked items, got %d", len(ranked))
	}
	if ranked[0].item["id"] != "new" || ranked[1].item["id"] != "mid" || ranked[2].item["id"] != "old" {
		t.Fatalf("expected new,mid,old order, got %v,%v,%v", ranked[0].item["id"], ranked[1].item["id"], ranked[2].item["id"])
	}
}

func TestRankItemsPutsUnparseableTimestampsLast(t *testing.T) {
	items := []map[string]any{
		{"id": "no-ts"},
		itemWithDatetime("has-ts", 1000),
	}
	ranked := rankItems(items)
	if ranked[0].item["id"] != "has-ts" {
		t.Fatalf("expected has-ts first, got %v", ranked[0].item["id"])
	}
	if ranked[1].item["id"] != "no-ts" {
		t.Fatalf("expected no-ts last, got %v", ranked[1].item["id"])
	}
}

func TestLimitPerDayCapsEachNYCDaySeparately(t *testing.T) {
	// Two days apart in UTC seconds, clearly distinct NYC calendar days.
	day1 := int64(1700000000)
	day2 := day1 + 86400*2

	items := []map[string]any{
		itemWithDatetime("d1-a", day1),
		itemWithDatetime("d1-b", day1+10),
		itemWithDatetime("d1-c", day1+20),
		itemWithDatetime("d2-a", day2),
	}
	ranked := rankItems(items)
	kept, dropped := limitPerDay(ranked, 2)

	if dropped != 1 {
		t.Fatalf("expected 1 dropped, got %d", dropped)
	}
	if len(kept) != 3 {
		t.Fatalf("expected 3 kept, got %d", len(kept))
	}
}

func TestLimitPerDayUnknownBucketGroupsUnparseableTimestamps(t *testing.T) {
	items := []map[string]any{
		{"id": "a"},
		{"id": "b"},
		{"id": "c"},
	}
	ranked := rankItems(items)
	kept, dropped := limitPerDay(ranked, 2)

	if len(kept) != 2 || dropped != 1 {
		t.Fatalf("expected 2 kept/1 dropped for unknown bucket, got %d/%d", len(kept), dropped)
	}
}

func TestLimitPerDayZeroLimitDisablesCap(t *testing.T) {
	items := []map[string]any{
		itemWithDatetime("a", 1000),
		itemWithDatetime("b", 1000),
		itemWithDatetime("c", 1000),
	}
	ranked := rankItems(items)
	kept, dropped := limitPerDay(ranked, 0)

	if len(kept) != 3 || dropped != 0 {
		t.Fatalf("expected no capping with limit<=0, got %d kept/%d dropped", len(kept), dropped)
	}
}

func TestLimitLatestPerRunTruncatesToFirstN(t *testing.T) {
	items := []map[string]any{
		{"id": "a"}, {"id": "b"}, {"id": "c"},
	}
	kept, dropped := limitLatestPerRun(items, 2)
	if len(kept) != 2 || dropped != 1 {
		t.Fatalf("expected 2 kept/1 dropped, got %d/%d", len(kept), dropped)
	}
	if kept[0]["id"] != "a" || kept[1]["id"] != "b" {
		t.Fatalf("expected first two items kept in order, got %v", kept)
	}
}
