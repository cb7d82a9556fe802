package httpapi

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/sentinelstream/newspipe/internal/store"
)

func TestWithConcurrencyLimitRejectsOverCapacity(t *testing.T) {
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(1)

	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started.Done()
		<-release
		w.WriteHeader(http.StatusOK)
	})
	limited := withConcurrencyLimit(slow, 1)

	go func() {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		limited.ServeHTTP(httptest.NewRecorder(), req)
	}()
	started.Wait()

	rec := httptest.NewRecorder()
	limited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while at capacity, got %d", rec.Code)
	}

	close(release)
}

func TestHTTPStatusForErrMapsNotFoundAndValidation(t *testing.T) {
	if code := httpStatusForErr(nil); code != http.StatusOK {
		t.Fatalf("expected 200 for nil err, got %d", code)
	}
	if code := httpStatusForErr(store.ErrNotFound); code != http.StatusNotFound {
		t.Fatalf("expected 404 for ErrNotFound, got %d", code)
	}
	if code := httpStatusForErr(store.ErrValidation); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for ErrValidation, got %d", code)
	}
}
