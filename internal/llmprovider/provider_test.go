package llmprovider

import (
	"net/http"
	"testing"
)

func TestErrorCodeForStatusMapsKnownCodes(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusUnauthorized, "", "401"},
		{http.StatusForbidden, "", "403"},
		{http.StatusTooManyRequests, `{"error":"insufficient_quota"}`, "insufficient_quota"},
		{http.StatusTooManyRequests, `{"error":"rate limited"}`, "rate_limit"},
		{http.StatusInternalServerError, "", ""},
	}
	for _, c := range cases {
		got := errorCodeForStatus(c.status, []byte(c.body))
		if got != c.want {
			t.Errorf("status=%d body=%q: got %q want %q", c.status, c.body, got, c.want)
		}
	}
}

func TestProviderErrorIncludesCode(t *testing.T) {
	err := NewProviderError("quota exceeded", "insufficient_quota")
	want := "provider_error:insufficient_quota:quota exceeded"
	if err.Error() != want {
		t.Fatalf("got %q want %q", err.Error(), want)
	}
}
