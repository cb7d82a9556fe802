// Package ingest implements C7, the ingestion orchestrator: advisory
// lock acquisition, the NYC-local fetch window, per-ticker fetch with
// two-stage rate shaping, raw persistence, and the normalize-and-enqueue
// loop that turns raw items into news events and analysis jobs.
package ingest

import (
	"time"
)

// nycLocation is looked up once; Finnhub's daily news volume is scoped
// to the US trading day, so the ingestion window and the per-day rate
// cap are both computed in America/New_York local time regardless of
// where the ingestion process itself runs.
var nycLocation = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		// A missing tzdata is an environment defect, not a runtime
		// condition callers can recover from.
		panic("ingest: failed to load timezone " + name + ": " + err.Error())
	}
	return loc
}

// Window is the [From, To] fetch range, expressed both in UTC (for
// ingestion_runs bookkeeping) and as Finnhub's YYYY-MM-DD date strings
// in NYC local time.
type Window struct {
	FromUTC  time.Time
	ToUTC    time.Time
	DateFrom string
	DateTo   string
}

// ComputeWindow builds the ingestion window ending at now, minutesBack
// minutes wide, anchored to NYC local time.
func ComputeWindow(now time.Time, minutesBack int) Window {
	nowNYC := now.In(nycLocation)
	startNYC := nowNYC.Add(-time.Duration(minutesBack) * time.Minute)

	return Window{
		FromUTC:  startNYC.UTC(),
		ToUTC:    nowNYC.UTC(),
		DateFrom: startNYC.Format("2006-01-02"),
		DateTo:   nowNYC.Format("2006-01-02"),
	}
}
