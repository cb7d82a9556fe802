package tsparse_test

import (
	"testing"
	"time"

	"github.com/sentinelstream/newspipe/internal/tsparse"
)

func TestParseEpochInt(t *testing.T) {
	got, ok := tsparse.Parse(1700000000)
	if !ok {
		t.Fatal("expected ok")
	}
	want := time.Unix(1700000000, 0).UTC()
	if !got.Equal(want) {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestParseEpochFloat(t *testing.T) {
	got, ok := tsparse.Parse(1700000000.0)
	if !ok {
		t.Fatal("expected ok")
	}
	if !got.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("got %v", got)
	}
}

func TestParseDigitString(t *testing.T) {
	got, ok := tsparse.Parse("1700000000")
	if !ok {
		t.Fatal("expected ok")
	}
	if !got.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("got %v", got)
	}
}

func TestParseISOWithZ(t *testing.T) {
	got, ok := tsparse.Parse("2023-11-14T22:13:20Z")
	if !ok {
		t.Fatal("expected ok")
	}
	if !got.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("got %v", got)
	}
}

func TestParseNaiveISOAssumedUTC(t *testing.T) {
	got, ok := tsparse.Parse("2023-11-14T22:13:20")
	if !ok {
		t.Fatal("expected ok")
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
	if !got.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Fatalf("got %v", got)
	}
}

func TestParseNilAbsent(t *testing.T) {
	if _, ok := tsparse.Parse(nil); ok {
		t.Fatal("expected not ok")
	}
}

func TestParseUnparseableAbsent(t *testing.T) {
	if _, ok := tsparse.Parse("not-a-timestamp"); ok {
		t.Fatal("expected not ok")
	}
}
