package llm

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/sentinelstream/newspipe/internal/llmprovider"
)

type scriptedProvider struct {
	responses []llmprovider.Response
	errs      []error
	calls     int
}

func (p *scriptedProvider) Name() string  { return "test" }
func (p *scriptedProvider) Model() string { return "test-model" }
func (p *scriptedProvider) Generate(prompt string, timeoutSeconds int) (llmprovider.Response, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return llmprovider.Response{}, p.errs[i]
	}
	return p.responses[i], nil
}

func TestAnalyzeNewsSucceedsOnFirstAttempt(t *testing.T) {
	provider := &scriptedProvider{
		responses: []llmprovider.Response{
			{OutputText: `{"tickers":["AAPL"],"sentiment":"positive","confidence":0.8,"reasoning_summary":"good"}`},
		},
		errs: []error{nil},
	}
	client := NewClient(provider, 30, 2, zerolog.Nop())

	result, attempts, _, err := client.AnalyzeNews("Title: x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(attempts))
	}
	if result.Sentiment != "positive" || result.Tickers[0] != "AAPL" {
		t.Fatalf("got %+v", result)
	}
}

func TestAnalyzeNewsRepromptsAfterMalformedJSON(t *testing.T) {
	provider := &scriptedProvider{
		responses: []llmprovider.Response{
			{OutputText: `not json`},
			{OutputText: `{"tickers":["MSFT"],"sentiment":"neutral","confidence":0.4,"reasoning_summary":"ok"}`},
		},
		errs: []error{nil, nil},
	}
	client := NewClient(provider, 30, 2, zerolog.Nop())

	result, attempts, _, err := client.AnalyzeNews("Title: x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	if result.Sentiment != "neutral" {
		t.Fatalf("got %+v", result)
	}
}

func TestAnalyzeNewsAbortsImmediatelyOnInsufficientQuota(t *testing.T) {
	provider := &scriptedProvider{
		responses: []llmprovider.Response{{}, {}, {}},
		errs: []error{
			llmprovider.NewProviderError("no quota", "insufficient_quota"),
			nil, nil,
		},
	}
	client := NewClient(provider, 30, 2, zerolog.Nop())

	_, attempts, _, err := client.AnalyzeNews("Title: x")
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*AnalysisError); !ok {
		t.Fatalf("expected *AnalysisError, got %T", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected to abort after 1 attempt, got %d", len(attempts))
	}
	if provider.calls != 1 {
		t.Fatalf("expected provider called once, got %d", provider.calls)
	}
}

func TestAnalyzeNewsExhaustsRetriesAndFails(t *testing.T) {
	provider := &scriptedProvider{
		responses: []llmprovider.Response{{}, {}, {}},
		errs: []error{
			llmprovider.NewProviderError("boom", "timeout"),
			llmprovider.NewProviderError("boom", "timeout"),
			llmprovider.NewProviderError("boom", "timeout"),
		},
	}
	client := NewClient(provider, 30, 2, zerolog.Nop())

	_, attempts, _, err := client.AnalyzeNews("Title: x")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 3 attempts (maxRetries=2 => 3 total), got %d", len(attempts))
	}
}
