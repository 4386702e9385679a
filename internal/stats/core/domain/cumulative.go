package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	series "dashboard-refresher/internal/series/core/domain"
)

// CumulativeSeries holds, per month, the running count of distinct identities
// seen so far in each category and in any category.
type CumulativeSeries struct {
	vocab  series.Vocabulary
	months []string
	counts map[string]map[series.Category]int
	totals map[string]int
}

func NewCumulativeSeries(vocab series.Vocabulary) *CumulativeSeries {
	return &CumulativeSeries{
		vocab:  vocab,
		counts: map[string]map[series.Category]int{},
		totals: map[string]int{},
	}
}

// Set stores the counts of one month. Months must be set in ascending order.
func (s *CumulativeSeries) Set(month string, counts map[series.Category]int, total int) error {
	if _, err := series.ParseMonth(month); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	if n := len(s.months); n > 0 && s.months[n-1] >= month {
		return fmt.Errorf("%w: %s after %s", ErrInvalidMonth, month, s.months[n-1])
	}
	cp := make(map[series.Category]int, len(counts))
	for c, n := range counts {
		cp[c] = n
	}
	s.months = append(s.months, month)
	s.counts[month] = cp
	s.totals[month] = total
	return nil
}

func (s *CumulativeSeries) Months() []string { return append([]string(nil), s.months...) }
func (s *CumulativeSeries) Len() int         { return len(s.months) }
func (s *CumulativeSeries) Empty() bool      { return s == nil || len(s.months) == 0 }

func (s *CumulativeSeries) Count(month string, c series.Category) int { return s.counts[month][c] }
func (s *CumulativeSeries) Total(month string) int                    { return s.totals[month] }

func (s *CumulativeSeries) WithVocabulary(v series.Vocabulary) *CumulativeSeries {
	s.vocab = v
	return s
}

func (s *CumulativeSeries) categories() []series.Category {
	seen := map[series.Category]struct{}{}
	var cats []series.Category
	for _, c := range s.vocab.Categories() {
		seen[c] = struct{}{}
		cats = append(cats, c)
	}
	var extra []series.Category
	for _, m := range s.months {
		for c := range s.counts[m] {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				extra = append(extra, c)
			}
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(cats, extra...)
}

// Check verifies that no per-category count or total ever decreases.
func (s *CumulativeSeries) Check() error {
	cats := s.categories()
	for i := 1; i < len(s.months); i++ {
		prev, cur := s.months[i-1], s.months[i]
		for _, c := range cats {
			if s.counts[cur][c] < s.counts[prev][c] {
				return fmt.Errorf("%w: %s %s -> %s", ErrNotMonotonic, c, prev, cur)
			}
		}
		if s.totals[cur] < s.totals[prev] {
			return fmt.Errorf("%w: total %s -> %s", ErrNotMonotonic, prev, cur)
		}
	}
	return nil
}

// MarshalJSON renders {"<month>":{"<category>":N,...,"_total":N}}.
func (s *CumulativeSeries) MarshalJSON() ([]byte, error) {
	cats := s.categories()
	month := series.OrderedObject{Values: map[string]any{}}
	for _, m := range s.months {
		inner := series.OrderedCounts{Counts: map[string]int{}}
		for _, c := range cats {
			inner.Keys = append(inner.Keys, string(c))
			inner.Counts[string(c)] = s.counts[m][c]
		}
		inner.Keys = append(inner.Keys, series.TotalKey)
		inner.Counts[series.TotalKey] = s.totals[m]
		month.Keys = append(month.Keys, m)
		month.Values[m] = inner
	}
	return json.Marshal(month)
}

// UnmarshalJSON accepts the MarshalJSON form. Categories come back in lexical
// order until WithVocabulary is called.
func (s *CumulativeSeries) UnmarshalJSON(data []byte) error {
	var raw map[string]map[string]int
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(&raw); err != nil {
		return err
	}
	out := NewCumulativeSeries(series.Vocabulary{})
	months := make([]string, 0, len(raw))
	for m := range raw {
		months = append(months, m)
	}
	sort.Strings(months)
	for _, m := range months {
		counts := map[series.Category]int{}
		for k, n := range raw[m] {
			if k != series.TotalKey {
				counts[series.Category(k)] = n
			}
		}
		if err := out.Set(m, counts, raw[m][series.TotalKey]); err != nil {
			return err
		}
	}
	*s = *out
	return nil
}
