package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	series "dashboard-refresher/internal/series/core/domain"
)

// ComboSeparator joins category names into a combination label.
const ComboSeparator = " + "

type CategoryCount struct {
	Category series.Category
	Count    int
}

// HistogramBin counts identities that belong to exactly Size categories.
type HistogramBin struct {
	Size  int
	Count int
}

type Combination struct {
	Label string `json:"combo" yaml:"combo"`
	Count int    `json:"users" yaml:"users"`
}

// OverlapResult is the deduplicated view of memberships.
type OverlapResult struct {
	TotalUnique     int
	PerCategory     []CategoryCount // vocabulary order
	Histogram       []HistogramBin  // ascending size, empty bins omitted
	TopCombinations []Combination   // descending count, then label
}

func (r *OverlapResult) Empty() bool { return r == nil || r.TotalUnique == 0 }

func (r *OverlapResult) PerCategorySum() int {
	n := 0
	for _, c := range r.PerCategory {
		n += c.Count
	}
	return n
}

func (r *OverlapResult) HistogramSum() int {
	n := 0
	for _, b := range r.Histogram {
		n += b.Count
	}
	return n
}

// Check verifies the counting invariants.
func (r *OverlapResult) Check() error {
	if h := r.HistogramSum(); h != r.TotalUnique {
		return fmt.Errorf("histogram sums to %d, total unique is %d", h, r.TotalUnique)
	}
	if s := r.PerCategorySum(); s < r.TotalUnique {
		return fmt.Errorf("per-category sum %d below total unique %d", s, r.TotalUnique)
	}
	return nil
}

// Reorder puts PerCategory in vocabulary order; unknown categories go last.
func (r *OverlapResult) Reorder(v series.Vocabulary) {
	cats := make([]series.Category, len(r.PerCategory))
	counts := make(map[series.Category]int, len(r.PerCategory))
	for i, c := range r.PerCategory {
		cats[i] = c.Category
		counts[c.Category] = c.Count
	}
	v.Sort(cats)
	for i, c := range cats {
		r.PerCategory[i] = CategoryCount{Category: c, Count: counts[c]}
	}
}

// OverlapSnapshot is the dashboard wire form of an OverlapResult, also used
// for snapshots and the static fallback in configuration.
type OverlapSnapshot struct {
	TotalUnique int            `json:"total_unique" yaml:"total_unique"`
	PerPP       map[string]int `json:"per_pp" yaml:"per_pp"`
	Overlap     map[string]int `json:"overlap" yaml:"overlap"`
	TopCombos   []Combination  `json:"top_combos" yaml:"top_combos"`
}

// Result converts the snapshot, ordering categories by v.
func (s OverlapSnapshot) Result(v series.Vocabulary) (*OverlapResult, error) {
	r := &OverlapResult{TotalUnique: s.TotalUnique, TopCombinations: append([]Combination{}, s.TopCombos...)}
	for c, n := range s.PerPP {
		r.PerCategory = append(r.PerCategory, CategoryCount{Category: series.Category(c), Count: n})
	}
	sort.Slice(r.PerCategory, func(i, j int) bool { return r.PerCategory[i].Category < r.PerCategory[j].Category })
	r.Reorder(v)

	for k, n := range s.Overlap {
		size, err := strconv.Atoi(k)
		if err != nil || size < 1 {
			return nil, fmt.Errorf("overlap bin %q: not a positive integer", k)
		}
		if n > 0 {
			r.Histogram = append(r.Histogram, HistogramBin{Size: size, Count: n})
		}
	}
	sort.Slice(r.Histogram, func(i, j int) bool { return r.Histogram[i].Size < r.Histogram[j].Size })
	return r, nil
}

// MarshalJSON renders
// {"total_unique":N,"per_pp":{...},"overlap":{"1":N,...},"top_combos":[{"combo":..,"users":N}]}
// with per_pp in category order and overlap bins ascending.
func (r *OverlapResult) MarshalJSON() ([]byte, error) {
	per := series.OrderedCounts{Counts: map[string]int{}}
	for _, c := range r.PerCategory {
		per.Keys = append(per.Keys, string(c.Category))
		per.Counts[string(c.Category)] = c.Count
	}
	hist := series.OrderedCounts{Counts: map[string]int{}}
	for _, b := range r.Histogram {
		k := strconv.Itoa(b.Size)
		hist.Keys = append(hist.Keys, k)
		hist.Counts[k] = b.Count
	}
	combos := r.TopCombinations
	if combos == nil {
		combos = []Combination{}
	}
	return json.Marshal(series.OrderedObject{
		Keys: []string{"total_unique", "per_pp", "overlap", "top_combos"},
		Values: map[string]any{
			"total_unique": r.TotalUnique,
			"per_pp":       per,
			"overlap":      hist,
			"top_combos":   combos,
		},
	})
}

// UnmarshalJSON accepts the MarshalJSON form. per_pp keys come back in
// lexical order; call Reorder to restore a vocabulary order.
func (r *OverlapResult) UnmarshalJSON(data []byte) error {
	var s OverlapSnapshot
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return err
	}
	out, err := s.Result(series.Vocabulary{})
	if err != nil {
		return err
	}
	*r = *out
	return nil
}
