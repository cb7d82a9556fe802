// Package llmprovider is the adapter layer for LLM analysis (C10 in
// SPEC_FULL.md). Providers are hand-written net/http clients — neither
// the OpenAI nor Google Generative Language Go SDKs appear anywhere in
// the dependency pack, so this package follows the retrieved corpus's
// own HTTP-client idiom for third-party model providers instead of
// importing one (see DESIGN.md).
package llmprovider

import "fmt"

// Response is what a Provider returns for one generate call: the raw
// text it expects the caller to parse as JSON, and the full decoded
// response body for audit.
type Response struct {
	OutputText string
	Raw        map[string]any
}

// Provider generates one completion for prompt. Implementations must
// return *ProviderError for upstream failures so the orchestrator can
// distinguish retryable from terminal conditions.
type Provider interface {
	Name() string
	Model() string
	Generate(prompt string, timeoutSeconds int) (Response, error)
}

// ProviderError carries an upstream error code (e.g. "insufficient_quota",
// "401", "403") alongside the message, mirroring the reference
// implementation's ProviderError(message, code). The llm orchestrator
// treats a non-empty Code matching its non-retryable set as a reason to
// abort the retry-with-reprompt loop immediately.
type ProviderError struct {
	Message string
	Code    string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("provider_error:%s:%s", e.Code, e.Message)
	}
	return fmt.Sprintf("provider_error: %s", e.Message)
}

// NewProviderError constructs a *ProviderError.
func NewProviderError(message, code string) *ProviderError {
	return &ProviderError{Message: message, Code: code}
}
