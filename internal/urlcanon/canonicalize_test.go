package urlcanon_test

import (
	"testing"

	"github.com/sentinelstream/newspipe/internal/urlcanon"
)

func TestFragmentRemoved(t *testing.T) {
	got, err := urlcanon.Canonicalize("https://example.com/path#section")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://example.com/path" {
		t.Fatalf("got %q", got)
	}
}

func TestUTMParamsRemoved(t *testing.T) {
	got, err := urlcanon.Canonicalize("https://example.com/article?id=123&utm_source=a&utm_medium=b")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://example.com/article?id=123" {
		t.Fatalf("got %q", got)
	}
}

func TestTrackingParamsRemoved(t *testing.T) {
	got, err := urlcanon.Canonicalize("https://example.com/article?id=123&gclid=aaa&fbclid=bbb")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://example.com/article?id=123" {
		t.Fatalf("got %q", got)
	}
}

func TestQueryParamsSortedStably(t *testing.T) {
	got, err := urlcanon.Canonicalize("https://example.com/path?b=2&a=1&a=0")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://example.com/path?a=0&a=1&b=2" {
		t.Fatalf("got %q", got)
	}
}

func TestTrailingSlashNormalized(t *testing.T) {
	cases := map[string]string{
		"https://example.com/path/": "https://example.com/path",
		"https://example.com/":      "https://example.com/",
	}
	for in, want := range cases {
		got, err := urlcanon.Canonicalize(in)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Fatalf("Canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSchemeAndHostLowercased(t *testing.T) {
	got, err := urlcanon.Canonicalize("HTTPS://Example.COM/Path")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://example.com/Path" {
		t.Fatalf("got %q", got)
	}
}

func TestNewsIDSameForTrackingVariants(t *testing.T) {
	id1, err := urlcanon.NewsID("finnhub", "https://example.com/article?id=123&utm_source=a")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := urlcanon.NewsID("finnhub", "https://example.com/article?id=123&utm_campaign=b")
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("expected identical news ids, got %q vs %q", id1, id2)
	}
}

func TestCanonicalizeIdempotent(t *testing.T) {
	in := "https://Example.com/Path/?b=2&a=1&utm_source=x#frag"
	once, err := urlcanon.Canonicalize(in)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := urlcanon.Canonicalize(once)
	if err != nil {
		t.Fatal(err)
	}
	if once != twice {
		t.Fatalf("not idempotent: %q != %q", once, twice)
	}
}

func TestEmptyURLErrors(t *testing.T) {
	if _, err := urlcanon.Canonicalize(""); err == nil {
		t.Fatal("expected error")
	}
	if _, err := urlcanon.Canonicalize("   "); err == nil {
		t.Fatal("expected error")
	}
}
