package ingest_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/sentinelstream/newspipe/internal/ingest"
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

func TestReplayOnlyRunSkipsFetchAndStillNormalizes(t *testing.T) {
	s := dialTestStore(t)
	ctx := context.Background()

	if err := s.RegisterTicker(ctx, "AAPL"); err != nil {
		t.Fatalf("RegisterTicker: %v", err)
	}

	orch := ingest.New(s, nil, 50, 10, zerolog.Nop())

	summary, err := orch.Run(ctx, ingest.Options{
		RequestedTickers: []string{"AAPL"},
		MinutesBack:      60,
		ProcessLimit:     100,
		ReplayOnly:       true,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !summary.LockAcquired {
		t.Fatal("expected the advisory lock to be acquired for a solo run")
	}
}

func TestSecondConcurrentRunDoesNotAcquireLock(t *testing.T) {
	s := dialTestStore(t)
	ctx := context.Background()

	lock, acquired, err := s.TryAdvisoryLock(ctx, ingest.JobName)
	if err != nil {
		t.Fatalf("TryAdvisoryLock: %v", err)
	}
	if !acquired {
		t.Fatal("expected first lock attempt to succeed")
	}
	defer lock.Release(ctx)

	orch := ingest.New(s, nil, 50, 10, zerolog.Nop())
	summary, err := orch.Run(ctx, ingest.Options{ReplayOnly: true, MinutesBack: 60})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.LockAcquired {
		t.Fatal("expected Run to report the lock as unavailable while held")
	}
}
