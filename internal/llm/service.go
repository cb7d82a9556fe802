package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/sentinelstream/newspipe/internal/domain"
	"github.com/sentinelstream/newspipe/internal/store"
)

// Outcome is the result of one AnalyzeNewsEvent call, returned for
// logging by the worker dispatcher.
type Outcome struct {
	AnalysisID   int64
	Succeeded    bool
	ErrorMessage string
}

// eventStore is the subset of *store.Store the analysis service needs
// — kept narrow so tests can supply a fake without a live database.
type eventStore interface {
	GetNewsEventByID(ctx context.Context, id int64) (domain.NewsEvent, error)
	UpsertAnalysisPending(ctx context.Context, a domain.LLMAnalysis) (bool, domain.LLMAnalysis, error)
	RecordAttempt(ctx context.Context, analysisID int64, request any, rawOutput any) error
	CompleteAnalysisSuccess(ctx context.Context, analysisID int64, result domain.AnalysisResult) error
	CompleteAnalysisFailure(ctx context.Context, analysisID int64, reason string) error
}

// AnalyzeNewsEvent fetches the news event, builds the provider client
// via buildClient, runs the retry-with-reprompt loop, and persists the
// outcome — the single entry point C8's worker dispatch table calls
// for an "llm_analysis" job. Provider construction happens here, inside
// the per-event path, rather than once at worker startup: a
// construction failure (a missing API key, say) must still produce an
// observable failed llm_analyses row instead of aborting the whole
// process. fallbackProvider/fallbackModel label that row when
// buildClient fails, since the real client never came into existence
// to report its own name.
func AnalyzeNewsEvent(ctx context.Context, s eventStore, buildClient func() (*Client, error), fallbackProvider, fallbackModel string, newsEventID int64) (Outcome, error) {
	event, err := s.GetNewsEventByID(ctx, newsEventID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Outcome{Succeeded: false, ErrorMessage: "news_event_not_found"}, nil
		}
		return Outcome{}, err
	}

	client, buildErr := buildClient()
	provider, model := fallbackProvider, fallbackModel
	if buildErr == nil {
		provider, model = client.ProviderName(), client.Model()
	}

	_, analysis, err := s.UpsertAnalysisPending(ctx, domain.LLMAnalysis{
		NewsEventID: newsEventID,
		TraceID:     uuid.New(),
		Provider:    provider,
		Model:       model,
		Status:      domain.AnalysisPending,
	})
	if err != nil {
		return Outcome{}, err
	}

	if buildErr != nil {
		errMsg := "llm_init_error: " + buildErr.Error()
		if err := s.CompleteAnalysisFailure(ctx, analysis.ID, errMsg); err != nil {
			return Outcome{}, err
		}
		return Outcome{AnalysisID: analysis.ID, Succeeded: false, ErrorMessage: errMsg}, nil
	}

	inputText := buildInputText(event)
	result, attempts, request, analyzeErr := client.AnalyzeNews(inputText)

	var lastAttempt *Attempt
	if len(attempts) > 0 {
		lastAttempt = &attempts[len(attempts)-1]
	}
	rawOutput := buildRawOutput(lastAttempt)

	if analyzeErr != nil {
		var lastErr string
		if lastAttempt != nil {
			lastErr = lastAttempt.Error
		}
		errMsg := analyzeErr.Error()
		if lastErr != "" {
			errMsg = errMsg + ": " + lastErr
		}
		if err := s.RecordAttempt(ctx, analysis.ID, request, rawOutput); err != nil {
			return Outcome{}, err
		}
		if err := s.CompleteAnalysisFailure(ctx, analysis.ID, errMsg); err != nil {
			return Outcome{}, err
		}
		return Outcome{AnalysisID: analysis.ID, Succeeded: false, ErrorMessage: errMsg}, nil
	}

	if err := s.RecordAttempt(ctx, analysis.ID, request, rawOutput); err != nil {
		return Outcome{}, err
	}
	if err := s.CompleteAnalysisSuccess(ctx, analysis.ID, result); err != nil {
		return Outcome{}, err
	}
	return Outcome{AnalysisID: analysis.ID, Succeeded: true}, nil
}

func buildInputText(event domain.NewsEvent) string {
	parts := []string{"Title: " + event.Title}
	if event.URL != "" {
		parts = append(parts, "URL: "+event.URL)
	}
	if event.Content != nil && *event.Content != "" {
		parts = append(parts, "Content: "+*event.Content)
	}
	return strings.Join(parts, "\n")
}

func buildRawOutput(attempt *Attempt) map[string]any {
	if attempt == nil {
		return map[string]any{
			"error":       "no_attempts",
			"response":    nil,
			"output_text": nil,
			"output_json": nil,
		}
	}
	var errVal any
	if attempt.Error != "" {
		errVal = attempt.Error
	}
	return map[string]any{
		"error":       errVal,
		"response":    attempt.Response,
		"output_text": attempt.OutputText,
		"output_json": attempt.OutputJSON,
	}
}
