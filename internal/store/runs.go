package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinelstream/newspipe/internal/domain"
)

// RunLock holds a session-level advisory lock for the lifetime of one
// ingestion run. Session-level locks (unlike the ledger teacher's
// pg_advisory_xact_lock) outlive a single transaction, so the lock must
// be taken and released on the same physical connection — Release
// unlocks and returns the connection to the pool.
type RunLock struct {
	conn *pgxpool.Conn
	key  string
}

// Release unlocks the advisory lock and returns the connection to the
// pool. Safe to call once; the zero value is a no-op.
func (l *RunLock) Release(ctx context.Context) error {
	if l == nil || l.conn == nil {
		return nil
	}
	_, err := l.conn.Exec(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, l.key)
	l.conn.Release()
	l.conn = nil
	return err
}

// TryAdvisoryLock attempts to take a session-level advisory lock keyed
// by jobName, hashed the same way the ledger teacher keys its
// idempotency lock: pg_try_advisory_lock(hashtext(key)). It does not
// block — a held lock means another ingestion run for the same job is
// already in flight, and the caller should skip this invocation
// entirely rather than queue behind it. A nil RunLock with acquired
// false means the caller owns nothing and must not call Release.
func (s *Store) TryAdvisoryLock(ctx context.Context, jobName string) (lock *RunLock, acquired bool, err error) {
	conn, err := s.db.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}

	row := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, jobName)
	if err := row.Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, err
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}
	return &RunLock{conn: conn, key: jobName}, true, nil
}

// InsertIngestionRun records the start of an ingestion attempt.
func (s *Store) InsertIngestionRun(ctx context.Context, run domain.IngestionRun) (domain.IngestionRun, error) {
	tickersJSON, err := json.Marshal(run.Tickers)
	if err != nil {
		return domain.IngestionRun{}, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO ingestion_runs (job_name, trace_id, status, tickers, window_from, window_to, meta)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, started_at
	`, run.JobName, run.TraceID, string(domain.RunRunning), tickersJSON, run.WindowFrom, run.WindowTo, "{}")

	out := run
	out.Status = domain.RunRunning
	var startedAt time.Time
	if err := row.Scan(&out.ID, &startedAt); err != nil {
		return domain.IngestionRun{}, err
	}
	return out, nil
}

// FinishIngestionRun records the terminal state and counters of an
// ingestion run. errMsg is nil on success.
func (s *Store) FinishIngestionRun(ctx context.Context, runID int64, status domain.RunStatus, meta domain.RunMeta, fetched, inserted, deduped int, errMsg *string) error {
	metaJSON, err := canonicalJSON(meta)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		UPDATE ingestion_runs
		SET status = $2, finished_at = NOW(), fetched_count = $3, inserted_count = $4,
		    deduped_count = $5, error_message = $6, meta = $7
		WHERE id = $1
	`, runID, string(status), fetched, inserted, deduped, errMsg, metaJSON)
	return err
}

// LatestIngestionRun returns the most recent run for jobName, used by
// the read-only status surface.
func (s *Store) LatestIngestionRun(ctx context.Context, jobName string) (domain.IngestionRun, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, job_name, trace_id, status, tickers, window_from, window_to,
		       fetched_count, inserted_count, deduped_count, error_message, meta
		FROM ingestion_runs
		WHERE job_name = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, jobName)

	var run domain.IngestionRun
	var status string
	var tickersJSON, metaJSON []byte
	err := row.Scan(&run.ID, &run.JobName, &run.TraceID, &status, &tickersJSON, &run.WindowFrom, &run.WindowTo,
		&run.FetchedCount, &run.InsertedCount, &run.DedupedCount, &run.ErrorMessage, &metaJSON)
	if err == pgx.ErrNoRows {
		return domain.IngestionRun{}, ErrNotFound
	}
	if err != nil {
		return domain.IngestionRun{}, err
	}
	run.Status = domain.RunStatus(status)
	_ = json.Unmarshal(tickersJSON, &run.Tickers)
	_ = json.Unmarshal(metaJSON, &run.Meta)
	return run, nil
}
