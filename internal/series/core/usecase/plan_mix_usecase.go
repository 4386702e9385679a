package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/series/core/labels"
)

type PlanMixInput struct {
	Start time.Time
	Today time.Time
}

type PlanMixUseCase struct {
	fetcher *Fetcher
	labels  *labels.Normalizer
	table   string
}

func NewPlanMixUseCase(f *Fetcher, n *labels.Normalizer, purchaseTable string) *PlanMixUseCase {
	return &PlanMixUseCase{fetcher: f, labels: n, table: purchaseTable}
}

// Execute runs one native query; rows are [month, product, plan_type, revenue, purchases].
func (uc *PlanMixUseCase) Execute(ctx context.Context, in PlanMixInput) (*domain.PlanMix, error) {
	if in.Start.After(in.Today) {
		return nil, domain.ErrInvalidWindow
	}
	rows, err := uc.fetcher.Run(ctx, planMixQuery(uc.table, in.Start, in.Today))
	if err != nil {
		return nil, err
	}

	products := labels.NewTally(labels.Product)
	mix := domain.NewPlanMix(uc.labels.Products())
	malformed := 0
	for _, r := range rows {
		month := r.String(0)
		if _, err := domain.ParseMonth(month); err != nil {
			malformed++
			continue
		}
		p, ok := products.Product(uc.labels, r.String(1))
		if !ok {
			continue
		}
		mix.Add(month, p, r.String(2), r.Float(3), r.Int(4))
	}
	if malformed > 0 {
		uc.fetcher.Observer().RowsMalformed("plan_mix", malformed)
	}
	reportTally(uc.fetcher, "plan_mix", products)

	uc.fetcher.Logger().Info("plan mix built", zap.Int("rows", len(rows)), zap.Int("months", mix.Len()))
	return mix, nil
}
