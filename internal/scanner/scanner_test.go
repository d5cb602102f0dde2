package scanner

import (
	"context"
	"testing"
	"time"

	"NewsCurator/internal/domain"
)

type stubScanner struct{ name string }

func (s stubScanner) Name() string { return s.name }

func (s stubScanner) Scan(context.Context, Request) (domain.ScanResult, error) {
	return domain.ScanResult{}, nil
}

func TestRegistryResolveFallback(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	reg.Register(stubScanner{name: "selectors"})
	reg.Register(stubScanner{name: "generic"})

	if _, err := reg.Resolve("feed"); err == nil {
		t.Fatalf("expected error without fallback")
	}

	reg.SetFallback("generic")
	sc, err := reg.Resolve("feed")
	if err != nil {
		t.Fatalf("resolve with fallback: %v", err)
	}
	if sc.Name() != "generic" {
		t.Fatalf("expected generic fallback, got %s", sc.Name())
	}

	sc, err = reg.Resolve("selectors")
	if err != nil || sc.Name() != "selectors" {
		t.Fatalf("expected selectors, got %v %v", sc, err)
	}
}

func TestRequestInPeriod(t *testing.T) {
	t.Parallel()

	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	req := Request{Mode: ModePeriod, Start: start, End: end}

	at := func(t time.Time) *time.Time { return &t }

	cases := []struct {
		name string
		ts   *time.Time
		want bool
	}{
		{"undated", nil, false},
		{"before start", at(start.Add(-time.Second)), false},
		{"at start", at(start), true},
		{"late on end day", at(end.Add(23*time.Hour + 59*time.Minute)), true},
		{"next day", at(end.Add(24 * time.Hour)), false},
	}
	for _, tc := range cases {
		if got := req.InPeriod(tc.ts); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}

	latest := Request{Mode: ModeLatest}
	if !latest.InPeriod(nil) {
		t.Fatalf("latest mode must accept undated items")
	}
}
