package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sentinelstream/newspipe/internal/domain"
	"github.com/sentinelstream/newspipe/internal/llmprovider"
)

// retryDelay is the fixed pause between reprompt attempts.
const retryDelay = 2 * time.Second

// nonRetryableCodes aborts the retry loop immediately instead of
// reprompting — a quota or auth failure will not be fixed by a
// stricter prompt.
var nonRetryableCodes = map[string]bool{
	"insufficient_quota": true,
	"401":                true,
	"403":                true,
}

// Attempt records one provider round-trip for the audit trail.
type Attempt struct {
	Prompt     string
	OutputText string
	OutputJSON map[string]any
	Response   map[string]any
	Error      string
}

// AnalysisError is returned when every attempt in the retry loop fails.
// Attempts holds the full trail for logging and persistence.
type AnalysisError struct {
	Attempts []Attempt
}

func (e *AnalysisError) Error() string { return "LLM analysis failed" }

// Client drives the retry-with-reprompt loop against one provider.
type Client struct {
	provider   llmprovider.Provider
	timeoutSec int
	maxRetries int
	log        zerolog.Logger
}

// NewClient builds a Client. maxRetries is additional attempts beyond
// the first — a Client analyzes a news item at most maxRetries+1 times.
func NewClient(provider llmprovider.Provider, timeoutSeconds, maxRetries int, log zerolog.Logger) *Client {
	return &Client{provider: provider, timeoutSec: timeoutSeconds, maxRetries: maxRetries, log: log}
}

func (c *Client) ProviderName() string { return c.provider.Name() }
func (c *Client) Model() string        { return c.provider.Model() }

// AnalyzeNews runs the retry-with-reprompt loop and returns the first
// validated AnalysisResult, the full attempt trail (for audit), and the
// request payload that was in flight when the loop concluded.
func (c *Client) AnalyzeNews(inputText string) (domain.AnalysisResult, []Attempt, map[string]any, error) {
	var attempts []Attempt
	var request map[string]any
	retryPrompt := buildRetryPrompt(inputText)

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}
		prompt := buildPrompt(inputText)
		if attempt > 0 {
			prompt = retryPrompt
		}

		request = map[string]any{
			"prompt":          prompt,
			"provider":        c.provider.Name(),
			"model":           c.provider.Model(),
			"timeout_seconds": c.timeoutSec,
			"max_retries":     c.maxRetries,
		}

		c.log.Info().Str("provider", c.provider.Name()).Str("model", c.provider.Model()).
			Int("attempt", attempt+1).Msg("llm_attempt")

		resp, err := c.provider.Generate(prompt, c.timeoutSec)
		if err != nil {
			var providerErr *llmprovider.ProviderError
			errMsg := err.Error()
			if pe, ok := err.(*llmprovider.ProviderError); ok {
				providerErr = pe
			}
			attempts = append(attempts, Attempt{Prompt: prompt, Error: errMsg})
			c.log.Warn().Str("provider", c.provider.Name()).Str("model", c.provider.Model()).
				Int("attempt", attempt+1).Str("error", errMsg).Msg("llm_attempt_failed")

			if providerErr != nil && nonRetryableCodes[providerErr.Code] {
				return domain.AnalysisResult{}, attempts, request, &AnalysisError{Attempts: attempts}
			}
			continue
		}

		var outputJSON map[string]any
		if err := json.Unmarshal([]byte(resp.OutputText), &outputJSON); err != nil {
			attempts = append(attempts, Attempt{Prompt: prompt, OutputText: resp.OutputText, Response: resp.Raw, Error: err.Error()})
			c.log.Warn().Str("provider", c.provider.Name()).Str("model", c.provider.Model()).
				Int("attempt", attempt+1).Str("error", err.Error()).Msg("llm_attempt_failed")
			continue
		}

		var result domain.AnalysisResult
		if err := decodeAnalysisResult(outputJSON, &result); err != nil {
			attempts = append(attempts, Attempt{Prompt: prompt, OutputText: resp.OutputText, OutputJSON: outputJSON, Response: resp.Raw, Error: err.Error()})
			c.log.Warn().Str("provider", c.provider.Name()).Str("model", c.provider.Model()).
				Int("attempt", attempt+1).Str("error", err.Error()).Msg("llm_attempt_failed")
			continue
		}

		validated, err := ValidateAndNormalize(result)
		if err != nil {
			attempts = append(attempts, Attempt{Prompt: prompt, OutputText: resp.OutputText, OutputJSON: outputJSON, Response: resp.Raw, Error: err.Error()})
			c.log.Warn().Str("provider", c.provider.Name()).Str("model", c.provider.Model()).
				Int("attempt", attempt+1).Str("error", err.Error()).Msg("llm_attempt_failed")
			continue
		}

		attempts = append(attempts, Attempt{Prompt: prompt, OutputText: resp.OutputText, OutputJSON: outputJSON, Response: resp.Raw})
		c.log.Info().Str("provider", c.provider.Name()).Str("model", c.provider.Model()).
			Int("attempt", attempt+1).Msg("llm_attempt_success")
		return validated, attempts, request, nil
	}

	return domain.AnalysisResult{}, attempts, request, &AnalysisError{Attempts: attempts}
}

func decodeAnalysisResult(payload map[string]any, out *domain.AnalysisResult) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode analysis result: %w", err)
	}
	return nil
}
