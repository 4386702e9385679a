package usecase

import (
	"fmt"
	"time"

	series "dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/stats/core/domain"
)

// ComputeCumulative counts, for every month from the earliest first
// appearance through `through` (or the latest first appearance if later),
// the identities whose first month in each category is at or before it.
// The total counts each identity once, from its earliest month in any
// category. An identity listed twice for a category keeps the earlier month.
func ComputeCumulative(first []domain.FirstAppearance, vocab series.Vocabulary, through string) (*domain.CumulativeSeries, error) {
	type key struct {
		id string
		c  series.Category
	}
	firstIn := map[key]string{}
	firstAny := map[string]string{}
	for _, f := range first {
		id := domain.IdentityKey(f.Identity)
		if id == "" || !vocab.Contains(f.Category) {
			continue
		}
		if _, err := series.ParseMonth(f.Month); err != nil {
			return nil, fmt.Errorf("%w: %q for %s", domain.ErrInvalidMonth, f.Month, f.Category)
		}
		k := key{id, f.Category}
		if cur, ok := firstIn[k]; !ok || f.Month < cur {
			firstIn[k] = f.Month
		}
		if cur, ok := firstAny[id]; !ok || f.Month < cur {
			firstAny[id] = f.Month
		}
	}

	out := domain.NewCumulativeSeries(vocab)
	if len(firstAny) == 0 {
		return out, nil
	}

	// new identities per month; the running sum makes the result monotonic
	// by construction
	newIn := map[string]map[series.Category]int{}
	newAny := map[string]int{}
	lo, hi := "", through
	for k, m := range firstIn {
		if newIn[m] == nil {
			newIn[m] = map[series.Category]int{}
		}
		newIn[m][k.c]++
	}
	for _, m := range firstAny {
		newAny[m]++
		if lo == "" || m < lo {
			lo = m
		}
		if m > hi {
			hi = m
		}
	}

	months, err := monthRange(lo, hi)
	if err != nil {
		return nil, err
	}
	running := map[series.Category]int{}
	total := 0
	for _, m := range months {
		for c, n := range newIn[m] {
			running[c] += n
		}
		total += newAny[m]
		if err := out.Set(m, running, total); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func monthRange(lo, hi string) ([]string, error) {
	from, err := series.ParseMonth(lo)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMonth, lo)
	}
	to, err := series.ParseMonth(hi)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMonth, hi)
	}
	var out []string
	for m := from; !m.After(to); m = m.AddDate(0, 1, 0) {
		out = append(out, m.Format(series.MonthLayout))
	}
	return out, nil
}

// MonthOf is the month key a cumulative series should run through for today.
func MonthOf(today time.Time) string { return series.MonthKey(today) }
