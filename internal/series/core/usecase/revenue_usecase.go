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
	MetricRevenue       = "revenue"
	MetricSubscriptions = "subscriptions"
	MetricPurchases     = "purchases"
)

var (
	RevenueMetrics  = []domain.Metric{{Name: MetricRevenue, Kind: domain.Amount}, {Name: MetricSubscriptions, Kind: domain.Count}}
	PurchaseMetrics = []domain.Metric{{Name: MetricPurchases, Kind: domain.Count}}
)

// revenueFact is one parsed row of the per-country revenue source.
type revenueFact struct {
	country string
	product string
	date    time.Time
	amount  float64
	count   int64
}

func parseRevenueRow(r ports.Row) (revenueFact, bool) {
	d, ok := r.Date(2)
	if !ok {
		return revenueFact{}, false
	}
	return revenueFact{
		country: r.String(0),
		product: r.String(1),
		date:    d,
		amount:  r.Float(3),
		count:   r.Int(4),
	}, true
}

type RevenueInput struct {
	Start time.Time
	Today time.Time
}

// RevenueResult bundles every revenue-derived payload.
type RevenueResult struct {
	ByCountry map[domain.Category]*domain.Series // observed dates only
	Global    *domain.Series                     // dense over [Start, Today]
	Purchases *domain.Series
	Products  *labels.Tally
	Countries *labels.Tally
}

type RevenueUseCase struct {
	fetcher     *Fetcher
	labels      *labels.Normalizer
	source      string
	parallelism int
}

func NewRevenueUseCase(f *Fetcher, n *labels.Normalizer, source string, parallelism int) *RevenueUseCase {
	return &RevenueUseCase{fetcher: f, labels: n, source: source, parallelism: parallelism}
}

// Execute fetches per-country revenue in 14-day windows, builds one shard per
// country and derives the global view from the shards.
func (uc *RevenueUseCase) Execute(ctx context.Context, in RevenueInput) (*RevenueResult, error) {
	facts, err := Fetch(ctx, uc.fetcher, FetchSpec[revenueFact]{
		Name:  "country_revenue",
		Chunk: FixedSpan(14),
		Build: func(w Window) ports.Query { return countryRevenueQuery(uc.source, w) },
		Parse: parseRevenueRow,
	}, in.Start, in.Today)
	if err != nil {
		return nil, err
	}

	products, countries := labels.NewTally(labels.Product), labels.NewTally(labels.Country)
	byCountry := map[domain.Category][]domain.Observation{}
	for _, f := range facts {
		p, ok := products.Product(uc.labels, f.product)
		if !ok {
			continue
		}
		c := countries.Country(uc.labels, f.country)
		byCountry[c] = append(byCountry[c], domain.Observation{
			Date:     f.date,
			Category: p,
			Values:   []float64{f.amount, float64(f.count)},
		})
	}
	reportTally(uc.fetcher, "country_revenue", products)
	reportTally(uc.fetcher, "country_revenue", countries)

	builder := SeriesBuilder{Metrics: RevenueMetrics, Vocabulary: uc.labels.Products()}
	res := &RevenueResult{
		ByCountry: make(map[domain.Category]*domain.Series, len(byCountry)),
		Products:  products,
		Countries: countries,
	}
	shards := make(map[string]*domain.Series, len(byCountry))
	for c, obs := range byCountry {
		s, _, err := builder.BuildObserved(obs)
		if err != nil {
			return nil, err
		}
		res.ByCountry[c] = s
		shards[string(c)] = s
	}

	agg := ShardAggregator{Metrics: RevenueMetrics, Vocabulary: uc.labels.Products(), Parallelism: uc.parallelism}
	global, err := agg.Aggregate(ctx, shards)
	if err != nil {
		return nil, err
	}
	// Boş sonuç boş seri olarak kalır; sıfırla doldurulmaz.
	if global.Len() > 0 {
		if global, err = Densify(global, in.Start, in.Today); err != nil {
			return nil, err
		}
	}
	res.Global = global

	if res.Purchases, err = PurchasesFrom(global); err != nil {
		return nil, err
	}

	uc.fetcher.Logger().Info("revenue built",
		zap.Int("countries", len(res.ByCountry)),
		zap.Int("months", global.Len()),
	)
	return res, nil
}

// PurchasesFrom copies the subscriptions metric of a revenue series into a
// purchases series; one subscription row is one purchase.
func PurchasesFrom(revenue *domain.Series) (*domain.Series, error) {
	out := domain.NewSeries(PurchaseMetrics, revenue.Vocabulary())
	for _, month := range revenue.Months() {
		src, _ := revenue.Bucket(month)
		dst := domain.NewMonthlyBucket(month, src.Dates(), PurchaseMetrics, revenue.Vocabulary())
		for _, c := range revenue.Vocabulary().Categories() {
			for i, v := range src.Values(MetricSubscriptions, c) {
				if err := dst.Set(MetricPurchases, c, i, v); err != nil {
					return nil, err
				}
			}
		}
		if err := out.Put(dst); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func reportTally(f *Fetcher, query string, t *labels.Tally) {
	kind := t.Kind.String()
	for raw, n := range t.Dropped {
		f.Logger().Debug("dropped unmapped label", zap.String("query", query), zap.String("kind", kind), zap.String("label", raw), zap.Int("rows", n))
	}
	for raw, n := range t.Other {
		f.Logger().Debug("label bucketed to Other", zap.String("query", query), zap.String("kind", kind), zap.String("label", raw), zap.Int("rows", n))
	}
	if n := t.DroppedTotal(); n > 0 {
		f.Observer().LabelsDropped(kind, n)
	}
	if n := t.OtherTotal(); n > 0 {
		f.Observer().LabelsOther(kind, n)
	}
	f.Logger().Info("labels normalized",
		zap.String("query", query),
		zap.String("kind", kind),
		zap.Int("mapped", t.Mapped),
		zap.Int("dropped", t.DroppedTotal()),
		zap.Int("other", t.OtherTotal()),
	)
}
