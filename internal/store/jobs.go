package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/sentinelstream/newspipe/internal/domain"
)

// PublishJob enqueues one analysis job for a news event. A conflict on
// (news_event_id, job_type) means the job already exists — the
// publisher is idempotent across repeated ingestion runs touching the
// same event, and reports enqueued=false rather than erroring.
func (s *Store) PublishJob(ctx context.Context, job domain.AnalysisJob) (enqueued bool, out domain.AnalysisJob, err error) {
	out = job
	row := s.db.QueryRow(ctx, `
		INSERT INTO analysis_jobs (news_event_id, job_type, trace_id, status, run_after)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (news_event_id, job_type) DO NOTHING
		RETURNING id, job_uuid, created_at, updated_at
	`, job.NewsEventID, job.JobType, job.TraceID, string(domain.JobPending), job.RunAfter)

	scanErr := row.Scan(&out.ID, &out.JobUUID, &out.CreatedAt, &out.UpdatedAt)
	if scanErr == pgx.ErrNoRows {
		return false, domain.AnalysisJob{}, nil
	}
	if scanErr != nil {
		return false, domain.AnalysisJob{}, scanErr
	}
	out.Status = domain.JobPending
	return true, out, nil
}

// ClaimJobs leases up to limit due jobs for workerID, using
// SELECT ... FOR UPDATE SKIP LOCKED so concurrent workers never claim
// the same row. A claimed job is marked running and locked_at/locked_by
// are stamped so SweepExpiredLeases can recover it if workerID dies
// mid-job. maxAttempts excludes jobs that have already exhausted their
// retry budget — the terminal-failed transition keeps this from
// mattering in the steady state, but it also guards a row a sweep just
// recovered from a dead worker before the failing worker's own
// over-budget check ran.
func (s *Store) ClaimJobs(ctx context.Context, workerID string, limit, maxAttempts int) ([]domain.AnalysisJob, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := fmt.Sprintf(`
		SELECT id, job_uuid, news_event_id, job_type, trace_id, status, attempts, %s, created_at, updated_at
		FROM analysis_jobs
		WHERE status = $1 AND %s <= NOW() AND attempts < $3
		ORDER BY %s ASC, created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, s.schedulingColumn, s.schedulingColumn, s.schedulingColumn)

	rows, err := tx.Query(ctx, query, string(domain.JobPending), limit, maxAttempts)
	if err != nil {
		return nil, err
	}

	var jobs []domain.AnalysisJob
	for rows.Next() {
		var job domain.AnalysisJob
		var status string
		if err := rows.Scan(&job.ID, &job.JobUUID, &job.NewsEventID, &job.JobType, &job.TraceID,
			&status, &job.Attempts, &job.RunAfter, &job.CreatedAt, &job.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		job.Status = domain.JobStatus(status)
		jobs = append(jobs, job)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range jobs {
		_, err := tx.Exec(ctx, `
			UPDATE analysis_jobs
			SET status = $2, locked_at = NOW(), locked_by = $3, updated_at = NOW()
			WHERE id = $1
		`, jobs[i].ID, string(domain.JobRunning), workerID)
		if err != nil {
			return nil, err
		}
		jobs[i].Status = domain.JobRunning
		jobs[i].LockedBy = &workerID
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkJobDone transitions a running job to done.
func (s *Store) MarkJobDone(ctx context.Context, jobID int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $2, locked_at = NULL, locked_by = NULL, updated_at = NOW()
		WHERE id = $1
	`, jobID, string(domain.JobDone))
	return err
}

// RetryJob reschedules a job for another attempt after delay, recording
// the failure reason and incrementing attempts. The caller (worker
// package) computes delay from the retry backoff formula.
func (s *Store) RetryJob(ctx context.Context, jobID int64, reason string, delay time.Duration) error {
	query := fmt.Sprintf(`
		UPDATE analysis_jobs
		SET status = $2, attempts = attempts + 1, last_error = $3,
		    locked_at = NULL, locked_by = NULL, %s = NOW() + ($4 * INTERVAL '1 second'), updated_at = NOW()
		WHERE id = $1
	`, s.schedulingColumn)
	_, err := s.db.Exec(ctx, query, jobID, string(domain.JobPending), reason, delay.Seconds())
	return err
}

// MarkJobFailed transitions a job to its terminal failed state — used
// for non-retryable errors instead of RetryJob.
func (s *Store) MarkJobFailed(ctx context.Context, jobID int64, reason string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $2, attempts = attempts + 1, last_error = $3,
		    locked_at = NULL, locked_by = NULL, updated_at = NOW()
		WHERE id = $1
	`, jobID, string(domain.JobFailed), reason)
	return err
}

// SweepExpiredLeases reclaims jobs stuck in running past visibilityTimeout
// — a worker that crashed mid-lease never marks its jobs done or failed,
// so a periodic sweep is the only way those jobs become claimable again.
func (s *Store) SweepExpiredLeases(ctx context.Context, visibilityTimeout time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE analysis_jobs
		SET status = $1, locked_at = NULL, locked_by = NULL, updated_at = NOW()
		WHERE status = $2 AND locked_at < NOW() - ($3 * INTERVAL '1 second')
	`, string(domain.JobPending), string(domain.JobRunning), visibilityTimeout.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetJobByUUID looks up a job by its externally-visible UUID, used by
// the read-only status surface.
func (s *Store) GetJobByUUID(ctx context.Context, jobUUID string) (domain.AnalysisJob, error) {
	row := s.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT id, job_uuid, news_event_id, job_type, trace_id, status, attempts, %s, last_error, created_at, updated_at
		FROM analysis_jobs
		WHERE job_uuid = $1
	`, s.schedulingColumn), jobUUID)

	var job domain.AnalysisJob
	var status string
	err := row.Scan(&job.ID, &job.JobUUID, &job.NewsEventID, &job.JobType, &job.TraceID,
		&status, &job.Attempts, &job.RunAfter, &job.LastError, &job.CreatedAt, &job.UpdatedAt)
	if err == pgx.ErrNoRows {
		return domain.AnalysisJob{}, ErrNotFound
	}
	if err != nil {
		return domain.AnalysisJob{}, err
	}
	job.Status = domain.JobStatus(status)
	return job, nil
}
