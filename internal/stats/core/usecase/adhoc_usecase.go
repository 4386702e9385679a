package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	series "dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/stats/core/domain"
)

var (
	ErrInvalidMembership = errors.New("invalid membership")
	ErrTooManyRecords    = errors.New("too many records")
)

// MaxAdHocRecords bounds one ad-hoc request.
const MaxAdHocRecords = 100_000

// CategoryResolver maps raw category labels to canonical categories.
type CategoryResolver interface {
	Product(raw string) (series.Category, bool)
}

type MembershipRecord struct {
	Identity string
	Category string
	Month    string // only for cumulative requests
}

type AdHocOverlapInput struct {
	Records []MembershipRecord
	TopK    int
}

type AdHocCumulativeInput struct {
	Records []MembershipRecord
	Through string // YYYY-MM, optional
}

// AdHocResult carries how many records were usable.
type AdHocResult[T any] struct {
	Result   T
	Accepted int
	Ignored  int
}

// AdHocStatsUseCase computes overlap and cumulative statistics from posted
// records instead of the warehouse. Nothing is stored.
type AdHocStatsUseCase struct {
	resolver CategoryResolver
	vocab    series.Vocabulary
}

func NewAdHocStatsUseCase(resolver CategoryResolver, vocab series.Vocabulary) *AdHocStatsUseCase {
	return &AdHocStatsUseCase{resolver: resolver, vocab: vocab}
}

func (uc *AdHocStatsUseCase) Overlap(_ context.Context, in AdHocOverlapInput) (AdHocResult[*domain.OverlapResult], error) {
	if err := validate(in.Records, false); err != nil {
		return AdHocResult[*domain.OverlapResult]{}, err
	}
	ms := make([]domain.Membership, 0, len(in.Records))
	ignored := 0
	for _, r := range in.Records {
		c, ok := uc.resolver.Product(r.Category)
		if !ok {
			ignored++
			continue
		}
		ms = append(ms, domain.Membership{Identity: r.Identity, Category: c})
	}
	topK := in.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	return AdHocResult[*domain.OverlapResult]{
		Result:   ComputeOverlap(ms, uc.vocab, topK),
		Accepted: len(ms),
		Ignored:  ignored,
	}, nil
}

func (uc *AdHocStatsUseCase) Cumulative(_ context.Context, in AdHocCumulativeInput) (AdHocResult[*domain.CumulativeSeries], error) {
	if err := validate(in.Records, true); err != nil {
		return AdHocResult[*domain.CumulativeSeries]{}, err
	}
	if in.Through != "" {
		if _, err := series.ParseMonth(in.Through); err != nil {
			return AdHocResult[*domain.CumulativeSeries]{}, fmt.Errorf("%w: through %q", domain.ErrInvalidMonth, in.Through)
		}
	}
	first := make([]domain.FirstAppearance, 0, len(in.Records))
	ignored := 0
	for _, r := range in.Records {
		c, ok := uc.resolver.Product(r.Category)
		if !ok {
			ignored++
			continue
		}
		first = append(first, domain.FirstAppearance{Identity: r.Identity, Category: c, Month: strings.TrimSpace(r.Month)})
	}
	s, err := ComputeCumulative(first, uc.vocab, in.Through)
	if err != nil {
		return AdHocResult[*domain.CumulativeSeries]{}, err
	}
	return AdHocResult[*domain.CumulativeSeries]{Result: s, Accepted: len(first), Ignored: ignored}, nil
}

func validate(records []MembershipRecord, needMonth bool) error {
	if len(records) == 0 {
		return domain.ErrEmptyMemberships
	}
	if len(records) > MaxAdHocRecords {
		return fmt.Errorf("%w: %d > %d", ErrTooManyRecords, len(records), MaxAdHocRecords)
	}
	for i, r := range records {
		if domain.IdentityKey(r.Identity) == "" {
			return fmt.Errorf("%w: record %d has no identity", ErrInvalidMembership, i)
		}
		if strings.TrimSpace(r.Category) == "" {
			return fmt.Errorf("%w: record %d has no category", ErrInvalidMembership, i)
		}
		if needMonth {
			if _, err := series.ParseMonth(strings.TrimSpace(r.Month)); err != nil {
				return fmt.Errorf("%w: record %d month %q", domain.ErrInvalidMonth, i, r.Month)
			}
		}
	}
	return nil
}
