package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestBackoffDoublesPerAttempt(t *testing.T) {
	if backoff(1) != time.Second {
		t.Fatalf("attempt 1: got %v", backoff(1))
	}
	if backoff(2) != 2*time.Second {
		t.Fatalf("attempt 2: got %v", backoff(2))
	}
	if backoff(3) != 4*time.Second {
		t.Fatalf("attempt 3: got %v", backoff(3))
	}
}

func TestRetryAfterSecondsParsesDigitsOnly(t *testing.T) {
	if got := retryAfterSeconds("5"); got != 5 {
		t.Fatalf("got %d", got)
	}
	if got := retryAfterSeconds("Wed, 21 Oct 2026 07:28:00 GMT"); got != 0 {
		t.Fatalf("expected 0 for HTTP-date form, got %d", got)
	}
	if got := retryAfterSeconds(""); got != 0 {
		t.Fatalf("got %d", got)
	}
}

func TestFetchCompanyNewsRetriesOn500ThenSucceeds(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"headline":"a","url":"https://x.com/a","datetime":1700000000}]`))
	}))
	defer server.Close()

	client := NewFinnhubClient("tok", zerolog.Nop())
	client.httpClient = server.Client()

	origBase := finnhubBaseURLOverride
	finnhubBaseURLOverride = server.URL
	defer func() { finnhubBaseURLOverride = origBase }()

	items, status, err := client.FetchCompanyNews(context.Background(), uuid.New(), "AAPL", "2026-07-01", "2026-07-31")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if status != http.StatusOK {
		t.Fatalf("got status %d", status)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items", len(items))
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}
