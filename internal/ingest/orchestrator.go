package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sentinelstream/newspipe/internal/domain"
	"github.com/sentinelstream/newspipe/internal/normalize"
	"github.com/sentinelstream/newspipe/internal/store"
	"github.com/sentinelstream/newspipe/internal/tsparse"
	"github.com/sentinelstream/newspipe/internal/upstream"
)

// sourceName is the upstream source recorded on every raw item and news
// event this orchestrator produces.
const sourceName = "finnhub"

// llmAnalysisJobType is the sole job_type this orchestrator publishes.
const llmAnalysisJobType = "llm_analysis"

// JobName identifies this orchestrator's ingestion_runs rows and its
// advisory lock key — one run of this job may be in flight at a time.
const JobName = "finnhub_ingestion"

// Options configures one Run invocation, mirroring cmd/ingest's flags.
type Options struct {
	RequestedTickers []string
	MinutesBack      int
	ProcessLimit     int
	ReplayOnly       bool
}

// Summary reports what one Run invocation did, for logging and for the
// read-only status surface.
type Summary struct {
	LockAcquired bool
	RunID        int64
	Meta         domain.RunMeta
}

// Orchestrator wires the upstream fetch client and the store together
// to drive one ingestion attempt end to end.
type Orchestrator struct {
	store         *store.Store
	finnhub       *upstream.FinnhubClient
	latestPerRun  int
	dailyMax      int
	log           zerolog.Logger
}

// New builds an Orchestrator. finnhub may be nil only if every call to
// Run uses Options.ReplayOnly — a nil client used for a live fetch
// panics, the same way a missing FINNHUB_TOKEN aborts the Python
// reference implementation before it dials out.
func New(s *store.Store, finnhub *upstream.FinnhubClient, latestPerRun, dailyMax int, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{store: s, finnhub: finnhub, latestPerRun: latestPerRun, dailyMax: dailyMax, log: log}
}

// Run executes one ingestion attempt: acquire the advisory lock, fetch
// (unless replay-only), normalize and enqueue, and record the run's
// outcome. A false Summary.LockAcquired with a nil error means another
// invocation was already in flight and this one did nothing.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Summary, error) {
	traceID := uuid.New()

	lock, acquired, err := o.store.TryAdvisoryLock(ctx, JobName)
	if err != nil {
		return Summary{}, err
	}
	if !acquired {
		o.log.Info().Str("trace_id", traceID.String()).Msg("ingestion_lock_not_acquired")
		return Summary{LockAcquired: false}, nil
	}
	defer lock.Release(ctx)

	now := time.Now().UTC()
	window := ComputeWindow(now, opts.MinutesBack)
	o.log.Info().Str("trace_id", traceID.String()).
		Time("window_from", window.FromUTC).Time("window_to", window.ToUTC).Msg("finnhub_window")

	tickers, err := o.resolveTickers(ctx, opts)
	if err != nil {
		return Summary{}, err
	}

	run, err := o.store.InsertIngestionRun(ctx, domain.IngestionRun{
		JobName:    JobName,
		TraceID:    traceID,
		Tickers:    tickers,
		WindowFrom: window.FromUTC,
		WindowTo:   window.ToUTC,
	})
	if err != nil {
		return Summary{}, err
	}

	counters := &runCounters{}
	meta := func() domain.RunMeta {
		return domain.RunMeta{
			RawInsertedCount:      counters.rawInserted,
			RawUpdatedCount:       counters.rawUpdated,
			NormalizedOKCount:     counters.normalizedOK,
			NormalizedFailedCount: counters.normalizedFailed,
			JobsEnqueuedCount:     counters.jobsEnqueued,
			JobsSkippedCount:      counters.jobsSkipped,
			LatestPerRun:          o.latestPerRun,
			DailyMax:              o.dailyMax,
			ProcessLimit:          opts.ProcessLimit,
			MinutesBack:           opts.MinutesBack,
		}
	}

	if len(tickers) == 0 && !opts.ReplayOnly {
		o.log.Info().Str("trace_id", traceID.String()).Msg("no_tickers_found")
		if err := o.store.FinishIngestionRun(ctx, run.ID, domain.RunSucceeded, meta(), 0, 0, 0, nil); err != nil {
			return Summary{}, err
		}
		return Summary{LockAcquired: true, RunID: run.ID, Meta: meta()}, nil
	}

	if !opts.ReplayOnly {
		if err := o.fetchAndStoreRaw(ctx, traceID, tickers, window, now, counters); err != nil {
			errMsg := err.Error()
			_ = o.store.FinishIngestionRun(ctx, run.ID, domain.RunFailed, meta(), counters.fetched, counters.newsInserted, dedupedCount(counters), &errMsg)
			return Summary{}, err
		}
	}

	if err := o.normalizeAndEnqueue(ctx, traceID, opts.ProcessLimit, counters); err != nil {
		errMsg := err.Error()
		_ = o.store.FinishIngestionRun(ctx, run.ID, domain.RunFailed, meta(), counters.fetched, counters.newsInserted, dedupedCount(counters), &errMsg)
		return Summary{}, err
	}

	finalMeta := meta()
	if err := o.store.FinishIngestionRun(ctx, run.ID, domain.RunSucceeded, finalMeta, counters.fetched, counters.newsInserted, dedupedCount(counters), nil); err != nil {
		return Summary{}, err
	}

	o.log.Info().Str("trace_id", traceID.String()).
		Int("fetched_count", counters.fetched).
		Int("raw_inserted_count", counters.rawInserted).
		Int("normalized_ok_count", counters.normalizedOK).
		Int("normalized_failed_count", counters.normalizedFailed).
		Int("jobs_enqueued_count", counters.jobsEnqueued).
		Int("jobs_skipped_count", counters.jobsSkipped).
		Msg("finnhub_run_summary")

	return Summary{LockAcquired: true, RunID: run.ID, Meta: finalMeta}, nil
}

type runCounters struct {
	fetched          int
	rawInserted      int
	rawUpdated       int
	normalizedOK     int
	normalizedFailed int
	newsUpsertCount  int
	newsInserted     int
	jobsEnqueued     int
	jobsSkipped      int
}

func dedupedCount(c *runCounters) int {
	d := c.newsUpsertCount - c.newsInserted
	if d < 0 {
		return 0
	}
	return d
}

func (o *Orchestrator) resolveTickers(ctx context.Context, opts Options) ([]string, error) {
	requested := make([]string, 0, len(opts.RequestedTickers))
	for _, t := range opts.RequestedTickers {
		if t != "" {
			requested = append(requested, t)
		}
	}

	if opts.ReplayOnly {
		return requested, nil
	}

	if len(requested) > 0 {
		resolved, err := o.store.ResolveTickerSymbols(ctx, requested)
		if err != nil {
			return nil, err
		}
		return resolved, nil
	}
	return o.store.AllTickerSymbols(ctx)
}

func (o *Orchestrator) fetchAndStoreRaw(ctx context.Context, traceID uuid.UUID, tickers []string, window Window, fetchedAt time.Time, counters *runCounters) error {
	var rawItems []map[string]any

	for _, symbol := range tickers {
		items, _, err := o.finnhub.FetchCompanyNews(ctx, traceID, symbol, window.DateFrom, window.DateTo)
		if err != nil {
			o.log.Error().Str("trace_id", traceID.String()).Str("ticker", symbol).Err(err).Msg("finnhub_fetch_failed")
			continue
		}

		ranked := rankItems(items)
		dailyLimited, droppedDaily := limitPerDay(ranked, o.dailyMax)
		if droppedDaily > 0 {
			o.log.Info().Str("trace_id", traceID.String()).Str("ticker", symbol).
				Int("limit", o.dailyMax).Int("dropped", droppedDaily).Msg("finnhub_daily_limit_applied")
		}

		latestItems, droppedLatest := limitLatestPerRun(dailyLimited, o.latestPerRun)
		if droppedLatest > 0 {
			o.log.Info().Str("trace_id", traceID.String()).Str("ticker", symbol).
				Int("limit", o.latestPerRun).Int("dropped", droppedLatest).Msg("finnhub_latest_limit_applied")
		}

		for _, item := range latestItems {
			enriched := make(map[string]any, len(item)+1)
			for k, v := range item {
				enriched[k] = v
			}
			enriched["request_ticker"] = symbol
			rawItems = append(rawItems, enriched)
		}
	}

	counters.fetched = len(rawItems)

	for _, item := range rawItems {
		raw, err := buildRawItem(item, traceID, fetchedAt)
		if err != nil {
			continue
		}
		inserted, _, err := o.store.InsertRawItem(ctx, raw)
		if err != nil {
			return err
		}
		if inserted {
			counters.rawInserted++
		} else {
			counters.rawUpdated++
		}
	}
	return nil
}

// normalizeAndEnqueue drains up to processLimit not-yet-normalized raw
// items, normalizes each into a canonical news event, upserts the event
// and a pending llm_analysis job, and marks the raw row normalized or
// failed. One bad item never aborts the batch — its error is recorded
// against that row alone.
func (o *Orchestrator) normalizeAndEnqueue(ctx context.Context, traceID uuid.UUID, processLimit int, counters *runCounters) error {
	rawRows, err := o.store.SelectUnnormalized(ctx, processLimit)
	if err != nil {
		return err
	}

	for _, raw := range rawRows {
		var payload map[string]any
		if err := json.Unmarshal(raw.RawPayload, &payload); err != nil {
			_ = o.store.MarkRawFailed(ctx, raw.RawID, "unexpected_error: "+err.Error())
			counters.normalizedFailed++
			continue
		}

		event, err := normalize.Normalize(payload, raw.RawPayload, raw.TraceID, time.Now().UTC(), raw.RequestTicker)
		if err != nil {
			if normalize.IsNormalizationError(err) {
				_ = o.store.MarkRawFailed(ctx, raw.RawID, err.Error())
				counters.normalizedFailed++
				continue
			}
			_ = o.store.MarkRawFailed(ctx, raw.RawID, "unexpected_error: "+err.Error())
			counters.normalizedFailed++
			continue
		}

		newsCreated, newsEvent, err := o.store.UpsertNewsEvent(ctx, event)
		if err != nil {
			_ = o.store.MarkRawFailed(ctx, raw.RawID, "unexpected_error: "+err.Error())
			counters.normalizedFailed++
			continue
		}
		counters.newsUpsertCount++
		if newsCreated {
			counters.newsInserted++
		}

		jobEnqueued, _, err := o.store.PublishJob(ctx, domain.AnalysisJob{
			NewsEventID: newsEvent.ID,
			JobType:     llmAnalysisJobType,
			TraceID:     traceID,
			RunAfter:    time.Now().UTC(),
		})
		if err != nil {
			_ = o.store.MarkRawFailed(ctx, raw.RawID, "unexpected_error: "+err.Error())
			counters.normalizedFailed++
			continue
		}
		if jobEnqueued {
			counters.jobsEnqueued++
		} else {
			counters.jobsSkipped++
		}

		if err := o.store.MarkRawNormalized(ctx, raw.RawID); err != nil {
			return err
		}
		counters.normalizedOK++
	}
	return nil
}

func buildRawItem(payload map[string]any, traceID uuid.UUID, fetchedAt time.Time) (domain.RawItem, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return domain.RawItem{}, err
	}

	item := normalize.FromMap(payload)
	var requestTicker *string
	if v, ok := payload["request_ticker"].(string); ok && v != "" {
		requestTicker = &v
	}

	headline := item.Headline
	if headline == "" {
		headline = item.Title
	}

	var urlPtr, titlePtr *string
	if item.URL != "" {
		urlPtr = &item.URL
	}
	if headline != "" {
		titlePtr = &headline
	}

	var publishedAt *time.Time
	if parsed, ok := tsparse.Parse(item.Timestamp); ok {
		publishedAt = &parsed
	}

	dedupKey := dedupKeyFor(sourceName, item.URL, headline, publishedAt)

	return domain.RawItem{
		Source:        sourceName,
		TraceID:       traceID,
		FetchedAt:     fetchedAt,
		PublishedAt:   publishedAt,
		URL:           urlPtr,
		Title:         titlePtr,
		DedupKey:      dedupKey,
		RawPayload:    payloadJSON,
		RequestTicker: requestTicker,
		Status:        domain.RawFetched,
	}, nil
}
