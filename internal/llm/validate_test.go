package llm

import (
	"testing"

	"github.com/sentinelstream/newspipe/internal/domain"
)

func TestValidateAndNormalizeRejectsBadSentiment(t *testing.T) {
	_, err := ValidateAndNormalize(domain.AnalysisResult{
		Sentiment: "bullish", Confidence: 0.5, ReasoningSummary: "ok",
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateAndNormalizeRejectsOutOfRangeConfidence(t *testing.T) {
	_, err := ValidateAndNormalize(domain.AnalysisResult{
		Sentiment: domain.SentimentNeutral, Confidence: 1.5, ReasoningSummary: "ok",
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateAndNormalizeRejectsEmptySummary(t *testing.T) {
	_, err := ValidateAndNormalize(domain.AnalysisResult{
		Sentiment: domain.SentimentNeutral, Confidence: 0.5, ReasoningSummary: "   ",
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateAndNormalizeRejectsOverlongSummary(t *testing.T) {
	long := make([]byte, maxReasoningSummaryLen+1)
	for i := range long {
		long[i] = 'a'
	}
	_, err := ValidateAndNormalize(domain.AnalysisResult{
		Sentiment: domain.SentimentNeutral, Confidence: 0.5, ReasoningSummary: string(long),
	})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestValidateAndNormalizeDedupsAndUppercasesTickers(t *testing.T) {
	result, err := ValidateAndNormalize(domain.AnalysisResult{
		Sentiment: domain.SentimentPositive, Confidence: 0.9, ReasoningSummary: "good news",
		Tickers: []string{"aapl", "AAPL", " msft "},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"AAPL", "MSFT"}
	if len(result.Tickers) != len(want) {
		t.Fatalf("got %v", result.Tickers)
	}
	for i := range want {
		if result.Tickers[i] != want[i] {
			t.Fatalf("got %v want %v", result.Tickers, want)
		}
	}
}

func TestValidateAndNormalizeAcceptsWellFormedResult(t *testing.T) {
	result, err := ValidateAndNormalize(domain.AnalysisResult{
		Sentiment: domain.SentimentNegative, Confidence: 0, ReasoningSummary: "bad earnings",
		Tickers: []string{"tsla"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.Tickers[0] != "TSLA" {
		t.Fatalf("got %v", result.Tickers)
	}
}
