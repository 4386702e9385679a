package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dashboard-refresher/internal/dashboard/core/domain"
	"dashboard-refresher/internal/dashboard/core/usecase"
	series "dashboard-refresher/internal/series/core/domain"
	seriesuc "dashboard-refresher/internal/series/core/usecase"
	stats "dashboard-refresher/internal/stats/core/domain"
	statsuc "dashboard-refresher/internal/stats/core/usecase"
)

var (
	products  = series.MustVocabulary("AFib", "Tesla")
	countries = series.MustVocabulary("USA", "India", series.Other)
	start     = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	now       = time.Date(2025, 9, 2, 15, 4, 0, 0, time.UTC)
)

func dense(t *testing.T, metrics []series.Metric, obs ...series.Observation) *series.Series {
	t.Helper()
	b := seriesuc.SeriesBuilder{Metrics: metrics, Vocabulary: products}
	s, _, err := b.BuildDense(obs, start, series.Day(now))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	return s
}

// ------------------------------------------------------------
// STAGE FAKES
// ------------------------------------------------------------

type fakeRevenue struct {
	ExecuteFn func(ctx context.Context, in seriesuc.RevenueInput) (*seriesuc.RevenueResult, error)
	called    bool
	in        seriesuc.RevenueInput
}

func (f *fakeRevenue) Execute(ctx context.Context, in seriesuc.RevenueInput) (*seriesuc.RevenueResult, error) {
	f.called, f.in = true, in
	return f.ExecuteFn(ctx, in)
}

type fakeTrials struct {
	ExecuteFn func(ctx context.Context, in seriesuc.TrialsInput) (*seriesuc.TrialsResult, error)
	called    bool
}

func (f *fakeTrials) Execute(ctx context.Context, in seriesuc.TrialsInput) (*seriesuc.TrialsResult, error) {
	f.called = true
	return f.ExecuteFn(ctx, in)
}

type fakePlanMix struct {
	ExecuteFn func(ctx context.Context, in seriesuc.PlanMixInput) (*series.PlanMix, error)
}

func (f *fakePlanMix) Execute(ctx context.Context, in seriesuc.PlanMixInput) (*series.PlanMix, error) {
	return f.ExecuteFn(ctx, in)
}

type fakeUsers struct {
	ExecuteFn func(ctx context.Context, in seriesuc.ActiveUsersInput) (*seriesuc.ActiveUsersResult, error)
}

func (f *fakeUsers) Execute(ctx context.Context, in seriesuc.ActiveUsersInput) (*seriesuc.ActiveUsersResult, error) {
	return f.ExecuteFn(ctx, in)
}

type fakeStats struct {
	overlap    statsuc.OverlapOutcome
	cumulative statsuc.CumulativeOutcome
}

func (f *fakeStats) Overlap(context.Context) statsuc.OverlapOutcome { return f.overlap }

func (f *fakeStats) Cumulative(context.Context, time.Time, time.Time) statsuc.CumulativeOutcome {
	return f.cumulative
}

// stages returns fakes that all succeed with small fixed data.
func stages(t *testing.T) (*fakeRevenue, *fakeTrials, *fakePlanMix, *fakeUsers, *fakeStats) {
	t.Helper()
	usa := dense(t, seriesuc.RevenueMetrics,
		series.Observation{Date: start, Category: "AFib", Values: []float64{10.5, 1}},
	)
	rev := &fakeRevenue{ExecuteFn: func(ctx context.Context, in seriesuc.RevenueInput) (*seriesuc.RevenueResult, error) {
		purchases, err := seriesuc.PurchasesFrom(usa)
		if err != nil {
			return nil, err
		}
		return &seriesuc.RevenueResult{
			ByCountry: map[series.Category]*series.Series{"India": usa, "USA": usa},
			Global:    usa,
			Purchases: purchases,
		}, nil
	}}
	trials := &fakeTrials{ExecuteFn: func(ctx context.Context, in seriesuc.TrialsInput) (*seriesuc.TrialsResult, error) {
		return &seriesuc.TrialsResult{Series: dense(t, seriesuc.TrialMetrics,
			series.Observation{Date: start, Category: "Tesla", Values: []float64{3, 1}},
		)}, nil
	}}
	mix := &fakePlanMix{ExecuteFn: func(ctx context.Context, in seriesuc.PlanMixInput) (*series.PlanMix, error) {
		m := series.NewPlanMix(products)
		m.Add("2025-09", "AFib", "Monthly", 10.5, 1)
		return m, nil
	}}
	users := &fakeUsers{ExecuteFn: func(ctx context.Context, in seriesuc.ActiveUsersInput) (*seriesuc.ActiveUsersResult, error) {
		g := series.NewUserBreakdown(products)
		g.ByProduct["AFib"] = series.UserStat{Users: 2, Paid: 2}
		g.Total = &series.UserTotals{Users: 2}
		usa := series.NewUserBreakdown(products)
		usa.ByProduct["AFib"] = series.UserStat{Users: 2, Paid: 2}
		return &seriesuc.ActiveUsersResult{Global: g, ByCountry: map[series.Category]*series.UserBreakdown{"USA": usa}}, nil
	}}
	cum := stats.NewCumulativeSeries(products)
	if err := cum.Set("2025-09", map[series.Category]int{"AFib": 2}, 2); err != nil {
		t.Fatalf("cumulative: %v", err)
	}
	st := &fakeStats{
		overlap: statsuc.OverlapOutcome{
			Result: &stats.OverlapResult{
				TotalUnique: 2,
				PerCategory: []stats.CategoryCount{{Category: "AFib", Count: 2}},
				Histogram:   []stats.HistogramBin{{Size: 1, Count: 2}},
			},
			Source: stats.SourceLive,
		},
		cumulative: statsuc.CumulativeOutcome{Result: cum, Source: stats.SourceLive},
	}
	return rev, trials, mix, users, st
}

func newRefresh(rev *fakeRevenue, trials *fakeTrials, mix *fakePlanMix, users *fakeUsers, st *fakeStats, static *series.UserBreakdown) *usecase.RefreshUseCase {
	clock := now
	return usecase.NewRefreshUseCase(usecase.RefreshDeps{
		Revenue:     rev,
		Trials:      trials,
		PlanMix:     mix,
		Users:       users,
		Stats:       st,
		Products:    products,
		Countries:   countries,
		StaticUsers: static,
		Start:       start,
		Now: func() time.Time {
			t := clock
			clock = clock.Add(time.Second)
			return t
		},
		NewRunID: func() string { return "run-1" },
	})
}

// ------------------------------------------------------------
// SERVICE FAKES
// ------------------------------------------------------------

type fakeStore struct {
	mu       sync.Mutex
	template string
	ReadErr  error
	WriteErr error
	written  []string
}

func (f *fakeStore) ReadTemplate(context.Context) (string, error) {
	if f.ReadErr != nil {
		return "", f.ReadErr
	}
	return f.template, nil
}

func (f *fakeStore) WriteOutput(_ context.Context, doc string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.WriteErr != nil {
		return f.WriteErr
	}
	f.written = append(f.written, doc)
	return nil
}

func (f *fakeStore) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.written) == 0 {
		return ""
	}
	return f.written[len(f.written)-1]
}

type fakeNotifier struct {
	reports []*domain.Report
	err     error
}

func (f *fakeNotifier) Notify(_ context.Context, r *domain.Report) error {
	f.reports = append(f.reports, r)
	return f.err
}

type fakeObserver struct {
	calls        int
	degradations int
	lastErr      error
}

func (f *fakeObserver) RefreshFinished(_ time.Duration, degradations int, err error) {
	f.calls++
	f.degradations = degradations
	f.lastErr = err
}

type fakeRefresher struct {
	ExecuteFn func(ctx context.Context) (*domain.Payload, *domain.Report, error)
}

func (f *fakeRefresher) Execute(ctx context.Context) (*domain.Payload, *domain.Report, error) {
	return f.ExecuteFn(ctx)
}

var errBoom = errors.New("boom")
