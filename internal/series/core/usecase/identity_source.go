package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/series/core/labels"
	stats "dashboard-refresher/internal/stats/core/domain"
)

// IdentitySource reads identity-level rows for the dedup statistics and
// normalizes their product labels. Rows with unmapped products are dropped.
type IdentitySource struct {
	fetcher *Fetcher
	labels  *labels.Normalizer
	table   string
}

func NewIdentitySource(f *Fetcher, n *labels.Normalizer, purchaseTable string) *IdentitySource {
	return &IdentitySource{fetcher: f, labels: n, table: purchaseTable}
}

// ActiveMemberships returns (identity, product) for currently active paid users.
func (s *IdentitySource) ActiveMemberships(ctx context.Context) ([]stats.Membership, error) {
	rows, err := s.fetcher.Run(ctx, activeMembershipsQuery(s.table))
	if err != nil {
		return nil, err
	}
	products := labels.NewTally(labels.Product)
	out := make([]stats.Membership, 0, len(rows))
	for _, r := range rows {
		p, ok := products.Product(s.labels, r.String(1))
		if !ok {
			continue
		}
		out = append(out, stats.Membership{Identity: r.String(0), Category: p})
	}
	reportTally(s.fetcher, "active_memberships", products)
	return out, nil
}

// FirstAppearances returns each identity's first purchase month per product
// within [start, today].
func (s *IdentitySource) FirstAppearances(ctx context.Context, start, today time.Time) ([]stats.FirstAppearance, error) {
	if start.After(today) {
		return nil, domain.ErrInvalidWindow
	}
	rows, err := s.fetcher.Run(ctx, firstPurchaseQuery(s.table, start, today))
	if err != nil {
		return nil, err
	}
	products := labels.NewTally(labels.Product)
	out := make([]stats.FirstAppearance, 0, len(rows))
	malformed := 0
	for _, r := range rows {
		month := r.String(2)
		if _, err := domain.ParseMonth(month); err != nil {
			malformed++
			continue
		}
		p, ok := products.Product(s.labels, r.String(1))
		if !ok {
			continue
		}
		out = append(out, stats.FirstAppearance{Identity: r.String(0), Category: p, Month: month})
	}
	if malformed > 0 {
		s.fetcher.Observer().RowsMalformed("first_purchases", malformed)
		s.fetcher.Logger().Warn("skipped malformed rows", zap.String("query", "first_purchases"), zap.Int("rows", malformed))
	}
	reportTally(s.fetcher, "first_purchases", products)
	return out, nil
}
