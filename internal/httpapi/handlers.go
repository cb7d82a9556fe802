// Package httpapi is the read-only operator status surface: a pool
// health check, the most recent ingestion run, and a job's current
// state for on-call debugging. It is adapted from the teacher's
// synchronous ledger API — nothing here accepts writes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sentinelstream/newspipe/internal/domain"
	"github.com/sentinelstream/newspipe/internal/ingest"
	"github.com/sentinelstream/newspipe/internal/store"
)

// Handlers wraps the store methods the status surface reads from.
type Handlers struct {
	st *store.Store
}

// NewHandlers builds Handlers over an already-migrated store.
func NewHandlers(st *store.Store) *Handlers { return &Handlers{st: st} }

// Healthz reports whether the handler can reach the store at all —
// any successful store call proves the pool is live.
func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if _, err := h.st.LatestIngestionRun(ctx, ingest.JobName); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeErr(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func httpStatusForErr(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, store.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func publicErrMessage(code int, err error) string {
	if code >= 500 {
		return "internal error"
	}
	return err.Error()
}

// runResponse mirrors domain.IngestionRun for the wire, keeping the
// status API's shape independent of the internal struct's field order.
type runResponse struct {
	ID            int64           `json:"id"`
	JobName       string          `json:"job_name"`
	TraceID       string          `json:"trace_id"`
	Status        domain.RunStatus `json:"status"`
	Tickers       []string        `json:"tickers"`
	WindowFrom    time.Time       `json:"window_from"`
	WindowTo      time.Time       `json:"window_to"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	Meta          domain.RunMeta  `json:"meta"`
}

// GetLatestRun handles GET /v1/runs/latest.
func (h *Handlers) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	run, err := h.st.LatestIngestionRun(ctx, ingest.JobName)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		ID:           run.ID,
		JobName:      run.JobName,
		TraceID:      run.TraceID.String(),
		Status:       run.Status,
		Tickers:      run.Tickers,
		WindowFrom:   run.WindowFrom,
		WindowTo:     run.WindowTo,
		ErrorMessage: run.ErrorMessage,
		Meta:         run.Meta,
	})
}

type analysisResponse struct {
	Provider     string           `json:"provider"`
	Model        string           `json:"model"`
	Status       domain.AnalysisStatus `json:"status"`
	Sentiment    *domain.Sentiment `json:"sentiment,omitempty"`
	Confidence   *float64         `json:"confidence,omitempty"`
	Summary      *string          `json:"summary,omitempty"`
	ErrorMessage *string          `json:"error_message,omitempty"`
}

type jobResponse struct {
	JobUUID   string             `json:"job_uuid"`
	JobType   string             `json:"job_type"`
	Status    domain.JobStatus   `json:"status"`
	Attempts  int                `json:"attempts"`
	LastError *string            `json:"last_error,omitempty"`
	Analysis  *analysisResponse  `json:"analysis,omitempty"`
}

// GetJobByUUID handles GET /v1/jobs/{job_uuid}.
func (h *Handlers) GetJobByUUID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	jobUUID := strings.TrimPrefix(r.URL.Path, "/v1/jobs/")
	if jobUUID == "" {
		writeErr(w, http.StatusNotFound, "not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	job, err := h.st.GetJobByUUID(ctx, jobUUID)
	if err != nil {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	resp := jobResponse{
		JobUUID:   job.JobUUID.String(),
		JobType:   job.JobType,
		Status:    job.Status,
		Attempts:  job.Attempts,
		LastError: job.LastError,
	}

	analysis, err := h.st.GetLatestAnalysisByNewsEventID(ctx, job.NewsEventID)
	if err == nil {
		resp.Analysis = &analysisResponse{
			Provider:     analysis.Provider,
			Model:        analysis.Model,
			Status:       analysis.Status,
			Sentiment:    analysis.Sentiment,
			Confidence:   analysis.Confidence,
			Summary:      analysis.Summary,
			ErrorMessage: analysis.ErrorMessage,
		}
	} else if !errors.Is(err, store.ErrNotFound) {
		code := httpStatusForErr(err)
		writeErr(w, code, publicErrMessage(code, err))
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
