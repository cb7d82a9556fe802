package worker

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentinelstream/newspipe/internal/domain"
)

// jobStore is the subset of *store.Store the worker loop needs.
type jobStore interface {
	ClaimJobs(ctx context.Context, workerID string, limit, maxAttempts int) ([]domain.AnalysisJob, error)
	MarkJobDone(ctx context.Context, jobID int64) error
	MarkJobFailed(ctx context.Context, jobID int64, reason string) error
	RetryJob(ctx context.Context, jobID int64, reason string, delay time.Duration) error
	SweepExpiredLeases(ctx context.Context, visibilityTimeout time.Duration) (int64, error)
}

// Handler processes one claimed job. A returned error's message is
// classified by IsRetryable to decide whether the job is rescheduled
// or marked terminally failed.
type Handler func(ctx context.Context, job domain.AnalysisJob) error

// Worker polls for due jobs and dispatches them by job type.
type Worker struct {
	store             jobStore
	dispatch          map[string]Handler
	workerID          string
	pollInterval      time.Duration
	batchSize         int
	visibilityTimeout time.Duration
	maxAttempts       int
	log               zerolog.Logger
}

// Config holds Worker's tunables, matching the CLI flags in
// SPEC_FULL.md's cmd/worker section.
type Config struct {
	WorkerID          string
	PollInterval      time.Duration
	BatchSize         int
	VisibilityTimeout time.Duration
	MaxAttempts       int
}

// New builds a Worker. dispatch maps job_type to its Handler; a job
// whose type has no registered handler is marked failed, non-retryably.
func New(s jobStore, dispatch map[string]Handler, cfg Config, log zerolog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = 5 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	return &Worker{
		store:             s,
		dispatch:          dispatch,
		workerID:          cfg.WorkerID,
		pollInterval:      cfg.PollInterval,
		batchSize:         cfg.BatchSize,
		visibilityTimeout: cfg.VisibilityTimeout,
		maxAttempts:       cfg.MaxAttempts,
		log:               log,
	}
}

// Run polls and processes jobs until ctx is canceled, or — when once
// is true — returns after a single claim cycle, whether that cycle
// claimed a batch of jobs or found none.
func (w *Worker) Run(ctx context.Context, once bool) error {
	for {
		if swept, err := w.store.SweepExpiredLeases(ctx, w.visibilityTimeout); err != nil {
			w.log.Error().Err(err).Msg("sweep_expired_leases_failed")
		} else if swept > 0 {
			w.log.Warn().Int64("count", swept).Msg("swept_expired_leases")
		}

		jobs, err := w.store.ClaimJobs(ctx, w.workerID, w.batchSize, w.maxAttempts)
		if err != nil {
			return err
		}

		if len(jobs) == 0 {
			if once {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.pollInterval):
			}
			continue
		}

		for _, job := range jobs {
			w.processJob(ctx, job)
		}

		if once {
			return nil
		}
	}
}

func (w *Worker) processJob(ctx context.Context, job domain.AnalysisJob) {
	handler, ok := w.dispatch[job.JobType]
	if !ok {
		w.log.Error().Int64("job_id", job.ID).Str("job_type", job.JobType).Msg("no_handler_registered")
		if err := w.store.MarkJobFailed(ctx, job.ID, "unknown job_type: "+job.JobType); err != nil {
			w.log.Error().Err(err).Int64("job_id", job.ID).Msg("mark_job_failed_error")
		}
		return
	}

	err := handler(ctx, job)
	if err == nil {
		w.log.Info().Int64("job_id", job.ID).Str("job_type", job.JobType).Msg("job_done")
		if err := w.store.MarkJobDone(ctx, job.ID); err != nil {
			w.log.Error().Err(err).Int64("job_id", job.ID).Msg("mark_job_done_error")
		}
		return
	}

	if errors.Is(err, context.Canceled) {
		return
	}

	reason := err.Error()
	if IsRetryable(reason) && job.Attempts+1 < w.maxAttempts {
		delay := Backoff(job.Attempts)
		w.log.Warn().Int64("job_id", job.ID).Str("job_type", job.JobType).Str("error", reason).
			Dur("retry_in", delay).Msg("job_retrying")
		if err := w.store.RetryJob(ctx, job.ID, reason, delay); err != nil {
			w.log.Error().Err(err).Int64("job_id", job.ID).Msg("retry_job_error")
		}
		return
	}

	w.log.Error().Int64("job_id", job.ID).Str("job_type", job.JobType).Str("error", reason).Msg("job_failed")
	if err := w.store.MarkJobFailed(ctx, job.ID, reason); err != nil {
		w.log.Error().Err(err).Int64("job_id", job.ID).Msg("mark_job_failed_error")
	}
}
