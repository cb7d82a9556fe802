package ingest

import (
	"testing"
	"time"
)

func TestComputeWindowUsesNYCLocalDates(t *testing.T) {
	// 2026-01-15 04:30 UTC is 2026-01-14 23:30 in New York (EST, UTC-5).
	now := time.Date(2026, 1, 15, 4, 30, 0, 0, time.UTC)

	w := ComputeWindow(now, 60)

	if w.DateTo != "2026-01-14" {
		t.Fatalf("expected DateTo 2026-01-14, got %s", w.DateTo)
	}
	if w.DateFrom != "2026-01-14" {
		t.Fatalf("expected DateFrom 2026-01-14, got %s", w.DateFrom)
	}
	if !w.ToUTC.Equal(now) {
		t.Fatalf("expected ToUTC %v, got %v", now, w.ToUTC)
	}
	wantFrom := now.Add(-60 * time.Minute)
	if !w.FromUTC.Equal(wantFrom) {
		t.Fatalf("expected FromUTC %v, got %v", wantFrom, w.FromUTC)
	}
}

func TestComputeWindowCrossesNYCMidnight(t *testing.T) {
	// 2026-01-15 05:30 UTC is 2026-01-15 00:30 in New York; 90 minutes
	// back is 2026-01-14 23:00 local, so the window spans NYC midnight.
	now := time.Date(2026, 1, 15, 5, 30, 0, 0, time.UTC)
	w := ComputeWindow(now, 90)

	if w.DateFrom != "2026-01-14" {
		t.Fatalf("expected DateFrom 2026-01-14, got %s", w.DateFrom)
	}
	if w.DateTo != "2026-01-15" {
		t.Fatalf("expected DateTo 2026-01-15, got %s", w.DateTo)
	}
}
