package store

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/sentinelstream/newspipe/internal/domain"
)

// UpsertAnalysisPending creates the pending row for a (news_event_id,
// provider, model) triple, or resets the existing row to pending on
// conflict — a re-attempt of an already-failed or already-succeeded
// event must reset its status and pick up the fresh trace_id, not sit
// frozen in its prior terminal state.
func (s *Store) UpsertAnalysisPending(ctx context.Context, a domain.LLMAnalysis) (created bool, out domain.LLMAnalysis, err error) {
	out = a
	row := s.db.QueryRow(ctx, `
		INSERT INTO llm_analyses (news_event_id, trace_id, provider, model, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (news_event_id, provider, model) DO UPDATE
		SET trace_id = EXCLUDED.trace_id,
		    status = EXCLUDED.status,
		    error_message = NULL,
		    updated_at = NOW()
		RETURNING id, (xmax = 0) AS inserted
	`, a.NewsEventID, a.TraceID, a.Provider, a.Model, string(domain.AnalysisPending))

	if err := row.Scan(&out.ID, &created); err != nil {
		return false, domain.LLMAnalysis{}, err
	}
	out.Status = domain.AnalysisPending
	return created, out, nil
}

// RecordAttempt persists one LLM request/response attempt — whether it
// ultimately succeeds or fails — onto the analysis row, canonicalizing
// both the outbound request and the raw provider response through JCS
// so the audit columns are reproducible byte-for-byte across retries
// that resend logically-identical payloads.
func (s *Store) RecordAttempt(ctx context.Context, analysisID int64, request any, rawOutput any) error {
	requestJSON, err := canonicalJSON(request)
	if err != nil {
		return err
	}
	rawJSON, err := canonicalJSON(rawOutput)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		UPDATE llm_analyses
		SET request = $2, raw_output = $3, updated_at = NOW()
		WHERE id = $1
	`, analysisID, requestJSON, rawJSON)
	return err
}

// CompleteAnalysisSuccess stores the validated AnalysisResult and the
// resolved ticker set, marking the analysis succeeded.
func (s *Store) CompleteAnalysisSuccess(ctx context.Context, analysisID int64, result domain.AnalysisResult) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	entitiesJSON, err := canonicalJSON(result.Tickers)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE llm_analyses
		SET status = $2, sentiment = $3, confidence = $4, summary = $5, entities = $6, updated_at = NOW()
		WHERE id = $1
	`, analysisID, string(domain.AnalysisSucceeded), string(result.Sentiment), result.Confidence, result.ReasoningSummary, entitiesJSON)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM analysis_tickers WHERE analysis_id = $1`, analysisID); err != nil {
		return err
	}
	for _, ticker := range result.Tickers {
		if _, err := tx.Exec(ctx, `INSERT INTO analysis_tickers (analysis_id, ticker) VALUES ($1, $2)`, analysisID, ticker); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// CompleteAnalysisFailure marks an analysis terminally failed after the
// retry-with-reprompt loop exhausts its attempts or hits a
// non-retryable provider error.
func (s *Store) CompleteAnalysisFailure(ctx context.Context, analysisID int64, reason string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE llm_analyses
		SET status = $2, error_message = $3, updated_at = NOW()
		WHERE id = $1
	`, analysisID, string(domain.AnalysisFailed), reason)
	return err
}

// GetLatestAnalysisByNewsEventID returns the most recently updated
// analysis for a news event — used by the read-only status surface,
// which doesn't know which provider/model produced a given job's result.
func (s *Store) GetLatestAnalysisByNewsEventID(ctx context.Context, newsEventID int64) (domain.LLMAnalysis, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, news_event_id, trace_id, provider, model, status, sentiment, confidence, summary, error_message
		FROM llm_analyses
		WHERE news_event_id = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`, newsEventID)

	var a domain.LLMAnalysis
	var status string
	var sentiment *string
	err := row.Scan(&a.ID, &a.NewsEventID, &a.TraceID, &a.Provider, &a.Model, &status, &sentiment,
		&a.Confidence, &a.Summary, &a.ErrorMessage)
	if err == pgx.ErrNoRows {
		return domain.LLMAnalysis{}, ErrNotFound
	}
	if err != nil {
		return domain.LLMAnalysis{}, err
	}
	a.Status = domain.AnalysisStatus(status)
	if sentiment != nil {
		s := domain.Sentiment(*sentiment)
		a.Sentiment = &s
	}
	return a, nil
}
