package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/series/core/labels"
	"dashboard-refresher/internal/series/core/ports"
)

// fakeBackend, QueryBackendPort'u test için fake'ler.
type fakeBackend struct {
	mu      sync.Mutex
	RunFn   func(ctx context.Context, q ports.Query) ([]ports.Row, error)
	queries []ports.Query
}

func (f *fakeBackend) RunQuery(ctx context.Context, q ports.Query) ([]ports.Row, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	f.mu.Unlock()
	if f.RunFn != nil {
		return f.RunFn(ctx, q)
	}
	return nil, nil
}

func (f *fakeBackend) calls() []ports.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.Query(nil), f.queries...)
}

// recordingSleep records requested waits without blocking.
type recordingSleep struct {
	waits []time.Duration
}

func (r *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

var products = domain.MustVocabulary("AFib", "Cardio", "CnO Pro", "Respiratory", "Tesla")

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := domain.ParseDay(s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func testNormalizer(t *testing.T) *labels.Normalizer {
	t.Helper()
	n, err := labels.New(
		products,
		map[string]string{
			"afib":                "AFib",
			"cardio":              "Cardio",
			"cardio adaptability": "Cardio",
			"cno_pro_n_plus":      "CnO Pro",
			"cno pro":             "CnO Pro",
			"respiratory_health":  "Respiratory",
			"tesla":               "Tesla",
		},
		domain.MustVocabulary("USA", "India", "UK + IR"),
		map[string]string{
			"united states of america": "USA",
			"united kingdom":           "UK + IR",
			"ireland":                  "UK + IR",
		},
	)
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}
	return n
}
