// Package domain holds the boundary types shared across the ingestion,
// worker, and LLM-orchestration packages. Every consumer of an upstream
// or provider payload extracts fields into one of these types at the
// earliest opportunity — raw maps never cross a package boundary.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RawStatus is the lifecycle state of a RawItem.
type RawStatus string

const (
	RawFetched    RawStatus = "fetched"
	RawNormalized RawStatus = "normalized"
	RawFailed     RawStatus = "failed"
)

// RawItem is an upstream payload captured verbatim.
type RawItem struct {
	RawID         int64
	Source        string
	TraceID       uuid.UUID
	FetchedAt     time.Time
	PublishedAt   *time.Time
	URL           *string
	Title         *string
	DedupKey      string
	RawPayload    []byte
	RequestTicker *string
	Status        RawStatus
	Attempts      int
	LastError     *string
}

// NewsEvent is the canonical, deduplicated article.
type NewsEvent struct {
	ID            int64
	NewsID        string
	TraceID       uuid.UUID
	Source        string
	RequestTicker *string
	PublishedAt   time.Time
	IngestedAt    time.Time
	Title         string
	URL           string
	Content       *string
	Tickers       []string
	RawPayload    []byte
}

// JobStatus is the lifecycle state of an AnalysisJob.
type JobStatus string

const (
	JobPending JobStatus = "pending"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// AnalysisJob is a unit of work dispatched to a worker.
type AnalysisJob struct {
	ID          int64
	JobUUID     uuid.UUID
	NewsEventID int64
	JobType     string
	TraceID     uuid.UUID
	Status      JobStatus
	Attempts    int
	RunAfter    time.Time
	LockedAt    *time.Time
	LockedBy    *string
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AnalysisStatus is the lifecycle state of an LLMAnalysis.
type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisSucceeded AnalysisStatus = "succeeded"
	AnalysisFailed    AnalysisStatus = "failed"
)

// Sentiment is one of the three allowed AnalysisResult sentiment values.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// LLMAnalysis is the persisted verdict for a news event.
type LLMAnalysis struct {
	ID           int64
	NewsEventID  int64
	TraceID      uuid.UUID
	Provider     string
	Model        string
	Status       AnalysisStatus
	Sentiment    *Sentiment
	Confidence   *float64
	Summary      *string
	Entities     []string
	Request      []byte
	RawOutput    []byte
	ErrorMessage *string
}

// AnalysisResult is the schema-validated contract produced by C9 and
// consumed by the persistence layer. No extra fields are permitted —
// the llm package rejects unknown keys when decoding a provider
// response, and llm.ValidateAndNormalize checks the values.
type AnalysisResult struct {
	Tickers          []string  `json:"tickers"`
	Sentiment        Sentiment `json:"sentiment"`
	Confidence       float64   `json:"confidence"`
	ReasoningSummary string    `json:"reasoning_summary"`
}

// RunStatus is the lifecycle state of an IngestionRun.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunMeta is the fixed set of counters an IngestionRun reports. Kept as
// a named struct (not a free-form map) so every run produces the same
// dashboard contract; see SPEC_FULL.md §11.
type RunMeta struct {
	RawInsertedCount      int `json:"raw_inserted_count"`
	RawUpdatedCount       int `json:"raw_updated_count"`
	NormalizedOKCount     int `json:"normalized_ok_count"`
	NormalizedFailedCount int `json:"normalized_failed_count"`
	JobsEnqueuedCount     int `json:"jobs_enqueued_count"`
	JobsSkippedCount      int `json:"jobs_skipped_count"`
	LatestPerRun          int `json:"latest_per_run"`
	DailyMax              int `json:"daily_max"`
	ProcessLimit          int `json:"process_limit"`
	MinutesBack           int `json:"minutes_back"`
}

// IngestionRun is per-invocation bookkeeping for one ingestion attempt.
type IngestionRun struct {
	ID            int64
	JobName       string
	TraceID       uuid.UUID
	Status        RunStatus
	Tickers       []string
	WindowFrom    time.Time
	WindowTo      time.Time
	FetchedCount  int
	InsertedCount int
	DedupedCount  int
	ErrorMessage  *string
	Meta          RunMeta
}
