package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinelstream/newspipe/internal/domain"
	"github.com/sentinelstream/newspipe/internal/store"
)

func dialTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := os.Getenv("PIPELINE_DB_DSN")
	if dsn == "" {
		t.Skip("PIPELINE_DB_DSN is required")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("pgxpool.New: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := store.Migrate(context.Background(), pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store.New(pool)
}

func TestRawItemInsertIsIdempotentOnDedupKey(t *testing.T) {
	s := dialTestStore(t)
	ctx := context.Background()

	item := domain.RawItem{
		Source:     "finnhub",
		TraceID:    uuid.New(),
		FetchedAt:  time.Now().UTC(),
		DedupKey:   "dup-1",
		RawPayload: []byte(`{"headline":"a"}`),
		Status:     domain.RawFetched,
	}

	ok1, first, err := s.InsertRawItem(ctx, item)
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if !ok1 {
		t.Fatal("expected first insert to succeed")
	}

	ok2, _, err := s.InsertRawItem(ctx, item)
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if ok2 {
		t.Fatal("expected duplicate dedup_key to refresh the existing row, not insert a new one")
	}

	if err := s.MarkRawNormalized(ctx, first.RawID); err != nil {
		t.Fatalf("mark normalized: %v", err)
	}
}

func TestNewsEventUpsertReturnsExistingOnConflict(t *testing.T) {
	s := dialTestStore(t)
	ctx := context.Background()

	event := domain.NewsEvent{
		NewsID:      "n1",
		TraceID:     uuid.New(),
		Source:      "finnhub",
		PublishedAt: time.Now().UTC(),
		IngestedAt:  time.Now().UTC(),
		Title:       "headline",
		URL:         "https://example.com/a",
		Tickers:     []string{"AAPL"},
		RawPayload:  []byte(`{}`),
	}

	created, first, err := s.UpsertNewsEvent(ctx, event)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if !created {
		t.Fatal("expected first upsert to create")
	}

	created2, second, err := s.UpsertNewsEvent(ctx, event)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if created2 {
		t.Fatal("expected second upsert to hit conflict path")
	}
	if second.ID != first.ID {
		t.Fatalf("expected same event id, got %d and %d", first.ID, second.ID)
	}
}

func TestClaimJobsSkipsLockedRows(t *testing.T) {
	s := dialTestStore(t)
	ctx := context.Background()

	event := domain.NewsEvent{
		NewsID: "claim-test", TraceID: uuid.New(), Source: "finnhub",
		PublishedAt: time.Now().UTC(), IngestedAt: time.Now().UTC(),
		Title: "x", URL: "https://example.com/claim-test", RawPayload: []byte(`{}`),
	}
	_, event, err := s.UpsertNewsEvent(ctx, event)
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}

	job := domain.AnalysisJob{
		NewsEventID: event.ID,
		JobType:     "sentiment",
		TraceID:     uuid.New(),
		RunAfter:    time.Now().UTC().Add(-time.Minute),
	}
	enqueued, published, err := s.PublishJob(ctx, job)
	if err != nil || !enqueued {
		t.Fatalf("publish job: enqueued=%v err=%v", enqueued, err)
	}

	claimed, err := s.ClaimJobs(ctx, "worker-1", 10, 3)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(claimed) != 1 || claimed[0].ID != published.ID {
		t.Fatalf("expected to claim published job, got %+v", claimed)
	}

	claimedAgain, err := s.ClaimJobs(ctx, "worker-2", 10, 3)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if len(claimedAgain) != 0 {
		t.Fatalf("expected no jobs available for second worker, got %d", len(claimedAgain))
	}

	if err := s.MarkJobDone(ctx, published.ID); err != nil {
		t.Fatalf("mark done: %v", err)
	}
}

func TestAdvisoryLockExcludesConcurrentRun(t *testing.T) {
	s := dialTestStore(t)
	ctx := context.Background()

	lock, acquired, err := s.TryAdvisoryLock(ctx, "ingest:AAPL")
	if err != nil || !acquired {
		t.Fatalf("expected to acquire lock, acquired=%v err=%v", acquired, err)
	}
	defer lock.Release(ctx)

	_, acquired2, err := s.TryAdvisoryLock(ctx, "ingest:AAPL")
	if err != nil {
		t.Fatalf("second lock attempt: %v", err)
	}
	if acquired2 {
		t.Fatal("expected concurrent lock attempt to fail while held")
	}
}
