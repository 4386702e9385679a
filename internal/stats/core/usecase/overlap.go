package usecase

import (
	"sort"
	"strings"

	series "dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/stats/core/domain"
)

// DefaultTopK is how many combinations ComputeOverlap keeps.
const DefaultTopK = 10

// ComputeOverlap groups memberships by identity and counts overlaps.
// Repeated (identity, category) pairs collapse into one membership; empty
// identities and categories outside vocab are ignored. Combinations of two or
// more categories are ranked by count descending, ties by label ascending.
func ComputeOverlap(memberships []domain.Membership, vocab series.Vocabulary, topK int) *domain.OverlapResult {
	if topK <= 0 {
		topK = DefaultTopK
	}

	// identity -> bitmask over vocabulary indexes
	sets := map[string][]bool{}
	for _, m := range memberships {
		id := domain.IdentityKey(m.Identity)
		ci, ok := vocab.Index(m.Category)
		if id == "" || !ok {
			continue
		}
		set := sets[id]
		if set == nil {
			set = make([]bool, vocab.Len())
			sets[id] = set
		}
		set[ci] = true
	}

	categories := vocab.Categories()
	perCategory := make([]int, len(categories))
	histogram := make([]int, len(categories)+1)
	combos := map[string]int{}
	for _, set := range sets {
		var members []string
		for ci, in := range set {
			if in {
				perCategory[ci]++
				members = append(members, string(categories[ci]))
			}
		}
		histogram[len(members)]++
		if len(members) >= 2 {
			combos[strings.Join(members, domain.ComboSeparator)]++
		}
	}

	r := &domain.OverlapResult{TotalUnique: len(sets)}
	for ci, c := range categories {
		r.PerCategory = append(r.PerCategory, domain.CategoryCount{Category: c, Count: perCategory[ci]})
	}
	for size := 1; size < len(histogram); size++ {
		if histogram[size] > 0 {
			r.Histogram = append(r.Histogram, domain.HistogramBin{Size: size, Count: histogram[size]})
		}
	}
	for label, n := range combos {
		r.TopCombinations = append(r.TopCombinations, domain.Combination{Label: label, Count: n})
	}
	sort.Slice(r.TopCombinations, func(i, j int) bool {
		a, b := r.TopCombinations[i], r.TopCombinations[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Label < b.Label
	})
	if len(r.TopCombinations) > topK {
		r.TopCombinations = r.TopCombinations[:topK]
	}
	return r
}
