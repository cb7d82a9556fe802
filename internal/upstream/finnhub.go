// Package upstream fetches raw news payloads from the external news
// provider (C10's sibling on the adapter layer — see SPEC_FULL.md §4).
// Only this package and internal/normalize are allowed to read an
// upstream payload by field name; everything else in the pipeline
// works with domain types.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const maxAttempts = 3

// finnhubBaseURLOverride lets tests point the client at an httptest
// server instead of the real Finnhub API.
var finnhubBaseURLOverride = "https://finnhub.io/api/v1"

// Error wraps a failed upstream fetch after retries are exhausted.
type Error struct {
	msg string
}

func (e *Error) Error() string { return e.msg }

// FinnhubClient fetches company news from the Finnhub REST API with
// the same retry shape as the reference Python client: exponential
// backoff on connection errors and 5xx, honoring Retry-After on 429.
type FinnhubClient struct {
	httpClient *http.Client
	token      string
	log        zerolog.Logger
}

// NewFinnhubClient builds a client with a bounded-timeout transport,
// matching the provider connectors' pattern of a dedicated *http.Client
// per upstream rather than sharing http.DefaultClient.
func NewFinnhubClient(token string, log zerolog.Logger) *FinnhubClient {
	return &FinnhubClient{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		token: token,
		log:   log,
	}
}

// FetchCompanyNews returns the raw JSON items Finnhub reports for
// symbol within [dateFrom, dateTo] (YYYY-MM-DD, inclusive), and the
// response status code of the call that ultimately succeeded.
func (c *FinnhubClient) FetchCompanyNews(ctx context.Context, traceID uuid.UUID, symbol, dateFrom, dateTo string) ([]map[string]any, int, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("from", dateFrom)
	q.Set("to", dateTo)
	q.Set("token", c.token)
	reqURL := finnhubBaseURLOverride + "/company-news?" + q.Encode()

	resp, err := c.doWithRetries(ctx, reqURL, traceID, symbol)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &Error{msg: "reading finnhub response: " + err.Error()}
	}

	var payload []map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, 0, &Error{msg: fmt.Sprintf("unexpected finnhub payload: %s", string(body))}
	}

	c.log.Info().
		Str("trace_id", traceID.String()).
		Str("ticker", symbol).
		Int("status", resp.StatusCode).
		Int("items", len(payload)).
		Msg("finnhub_items")

	return payload, resp.StatusCode, nil
}

func (c *FinnhubClient) doWithRetries(ctx context.Context, reqURL string, traceID uuid.UUID, ticker string) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.log.Warn().Str("trace_id", traceID.String()).Str("ticker", ticker).
				Int("attempt", attempt).Err(err).Msg("finnhub_http_error")
			if attempt == maxAttempts {
				break
			}
			sleep(ctx, backoff(attempt))
			continue
		}

		c.log.Info().Str("trace_id", traceID.String()).Str("ticker", ticker).
			Int("status", resp.StatusCode).Int("attempt", attempt).Msg("finnhub_http_response")

		if resp.StatusCode < 400 {
			return resp, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
			resp.Body.Close()
			if attempt == maxAttempts {
				return nil, &Error{msg: fmt.Sprintf("finnhub request failed with status %d", resp.StatusCode)}
			}
			wait := backoff(attempt)
			if ra := retryAfterSeconds(resp.Header.Get("Retry-After")); ra > 0 {
				wait = time.Duration(ra) * time.Second
			}
			sleep(ctx, wait)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &Error{msg: fmt.Sprintf("finnhub request failed with status %d: %s", resp.StatusCode, string(body))}
	}

	return nil, &Error{msg: "finnhub request failed: " + lastErr.Error()}
}

func backoff(attempt int) time.Duration {
	return time.Duration(1<<(attempt-1)) * time.Second
}

func retryAfterSeconds(header string) int {
	if header == "" {
		return 0
	}
	secs, err := strconv.Atoi(header)
	if err != nil || secs < 1 {
		return 0
	}
	return secs
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
