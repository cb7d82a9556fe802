// Package llm orchestrates C9: turning a news event into a validated
// AnalysisResult via a provider, with a bounded retry-with-reprompt
// loop and a persisted audit trail of the attempt that decided the
// outcome.
package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sentinelstream/newspipe/internal/domain"
)

const maxReasoningSummaryLen = 280

// ValidationError indicates a provider's JSON output parsed but failed
// the AnalysisResult schema — treated the same as a JSON parse failure
// by the retry loop (a reason to reprompt, not to abort).
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

// ValidateAndNormalize checks result against the schema the reference
// implementation enforces (sentiment enum, confidence in [0,1], a
// non-empty trimmed summary under the length cap) and normalizes
// tickers to upper-case with order-preserving dedup.
func ValidateAndNormalize(result domain.AnalysisResult) (domain.AnalysisResult, error) {
	switch result.Sentiment {
	case domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative:
	default:
		return domain.AnalysisResult{}, &ValidationError{msg: "sentiment must be positive|neutral|negative"}
	}

	if result.Confidence < 0 || result.Confidence > 1 {
		return domain.AnalysisResult{}, &ValidationError{msg: "confidence must be between 0 and 1"}
	}

	summary := strings.TrimSpace(result.ReasoningSummary)
	if summary == "" {
		return domain.AnalysisResult{}, &ValidationError{msg: "reasoning_summary must be non-empty"}
	}
	if utf8.RuneCountInString(summary) > maxReasoningSummaryLen {
		return domain.AnalysisResult{}, &ValidationError{msg: fmt.Sprintf("reasoning_summary must be <= %d chars", maxReasoningSummaryLen)}
	}

	seen := make(map[string]bool, len(result.Tickers))
	tickers := make([]string, 0, len(result.Tickers))
	for _, t := range result.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			return domain.AnalysisResult{}, &ValidationError{msg: "tickers must be non-empty"}
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		tickers = append(tickers, t)
	}

	result.ReasoningSummary = summary
	result.Tickers = tickers
	return result, nil
}
