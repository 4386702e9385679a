package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/series/core/labels"
	"dashboard-refresher/internal/series/core/ports"
)

const (
	MetricTrial     = "trial"
	MetricConverted = "converted"
)

var TrialMetrics = []domain.Metric{{Name: MetricTrial, Kind: domain.Count}, {Name: MetricConverted, Kind: domain.Count}}

type trialFact struct {
	product   string
	date      time.Time
	trials    int64
	converted int64
}

func parseTrialRow(r ports.Row) (trialFact, bool) {
	d, ok := r.Date(1)
	if !ok {
		return trialFact{}, false
	}
	return trialFact{product: r.String(0), date: d, trials: r.Int(2), converted: r.Int(3)}, true
}

type TrialsInput struct {
	Start time.Time
	Today time.Time
}

type TrialsResult struct {
	Series   *domain.Series
	Stats    BuildStats
	Products *labels.Tally
}

type TrialsUseCase struct {
	fetcher *Fetcher
	labels  *labels.Normalizer
	source  string
}

func NewTrialsUseCase(f *Fetcher, n *labels.Normalizer, source string) *TrialsUseCase {
	return &TrialsUseCase{fetcher: f, labels: n, source: source}
}

// Execute fetches trial starts and conversions month by month and builds a
// dense per-product series over [Start, Today].
func (uc *TrialsUseCase) Execute(ctx context.Context, in TrialsInput) (*TrialsResult, error) {
	facts, err := Fetch(ctx, uc.fetcher, FetchSpec[trialFact]{
		Name:  "trials",
		Chunk: CalendarMonths(),
		Build: func(w Window) ports.Query { return trialQuery(uc.source, w) },
		Parse: parseTrialRow,
	}, in.Start, in.Today)
	if err != nil {
		return nil, err
	}

	products := labels.NewTally(labels.Product)
	obs := make([]domain.Observation, 0, len(facts))
	for _, f := range facts {
		p, ok := products.Product(uc.labels, f.product)
		if !ok {
			continue
		}
		obs = append(obs, domain.Observation{
			Date:     f.date,
			Category: p,
			Values:   []float64{float64(f.trials), float64(f.converted)},
		})
	}
	reportTally(uc.fetcher, "trials", products)

	builder := SeriesBuilder{Metrics: TrialMetrics, Vocabulary: uc.labels.Products()}
	s, stats, err := builder.BuildDense(obs, in.Start, in.Today)
	if err != nil {
		return nil, err
	}
	if stats.OutOfWindow > 0 {
		uc.fetcher.Logger().Warn("trial rows outside window", zap.Int("rows", stats.OutOfWindow))
	}
	return &TrialsResult{Series: s, Stats: stats, Products: products}, nil
}
