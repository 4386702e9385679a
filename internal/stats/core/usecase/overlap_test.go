package usecase_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	series "dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/stats/core/domain"
	"dashboard-refresher/internal/stats/core/usecase"
)

var products = series.MustVocabulary("AFib", "Cardio", "CnO Pro", "Respiratory", "Tesla")

func m(id string, c series.Category) domain.Membership {
	return domain.Membership{Identity: id, Category: c}
}

// ------------------------------------------------------------
// BASIC COUNTS
// ------------------------------------------------------------

func TestComputeOverlap_ThreeIdentitiesTwoCategories(t *testing.T) {
	vocab := series.MustVocabulary("X", "Y")
	r := usecase.ComputeOverlap([]domain.Membership{
		m("a", "X"),
		m("b", "X"), m("b", "Y"),
		m("c", "Y"),
	}, vocab, 10)

	assert.Equal(t, 3, r.TotalUnique)
	assert.Equal(t, []domain.CategoryCount{{Category: "X", Count: 2}, {Category: "Y", Count: 2}}, r.PerCategory)
	assert.Equal(t, []domain.HistogramBin{{Size: 1, Count: 2}, {Size: 2, Count: 1}}, r.Histogram)
	assert.Equal(t, []domain.Combination{{Label: "X + Y", Count: 1}}, r.TopCombinations)
	require.NoError(t, r.Check())

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t,
		`{"total_unique":3,"per_pp":{"X":2,"Y":2},"overlap":{"1":2,"2":1},"top_combos":[{"combo":"X + Y","users":1}]}`,
		string(raw))
}

// ------------------------------------------------------------
// DEDUP
// ------------------------------------------------------------

func TestComputeOverlap_CollapsesRepeatsAndFoldsIdentity(t *testing.T) {
	r := usecase.ComputeOverlap([]domain.Membership{
		m("Ann@Example.com", "Cardio"),
		m(" ann@example.com ", "Cardio"),
		m("ann@example.com", "AFib"),
		m("", "AFib"),
		m("bob@example.com", "Unknown"),
	}, products, 10)

	assert.Equal(t, 1, r.TotalUnique)
	assert.Equal(t, []domain.HistogramBin{{Size: 2, Count: 1}}, r.Histogram)
	// label follows category order, not insertion order
	assert.Equal(t, "AFib + Cardio", r.TopCombinations[0].Label)
}

func TestComputeOverlap_Invariants(t *testing.T) {
	var ms []domain.Membership
	cats := products.Categories()
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("user-%d", i)
		for j, c := range cats {
			if (i+j)%(j+2) == 0 {
				ms = append(ms, m(id, c))
			}
		}
	}

	r := usecase.ComputeOverlap(ms, products, 10)
	require.NoError(t, r.Check())
	assert.Equal(t, r.TotalUnique, r.HistogramSum())
	assert.GreaterOrEqual(t, r.PerCategorySum(), r.TotalUnique)
}

func TestComputeOverlap_NoOverlapSumsEqualTotal(t *testing.T) {
	r := usecase.ComputeOverlap([]domain.Membership{m("a", "AFib"), m("b", "Tesla")}, products, 10)
	assert.Equal(t, r.TotalUnique, r.PerCategorySum())
	assert.Empty(t, r.TopCombinations)
}

// ------------------------------------------------------------
// RANKING
// ------------------------------------------------------------

func TestComputeOverlap_TieBreakIsLabelAscending(t *testing.T) {
	r := usecase.ComputeOverlap([]domain.Membership{
		m("a", "Cardio"), m("a", "Tesla"),
		m("b", "AFib"), m("b", "Tesla"),
		m("c", "AFib"), m("c", "Cardio"),
		m("d", "AFib"), m("d", "Cardio"),
	}, products, 10)

	assert.Equal(t, []domain.Combination{
		{Label: "AFib + Cardio", Count: 2},
		{Label: "AFib + Tesla", Count: 1},
		{Label: "Cardio + Tesla", Count: 1},
	}, r.TopCombinations)
}

func TestComputeOverlap_TruncatesToTopK(t *testing.T) {
	var ms []domain.Membership
	cats := products.Categories()
	n := 0
	for i := range cats {
		for j := i + 1; j < len(cats); j++ {
			id := fmt.Sprintf("pair-%d", n)
			ms = append(ms, m(id, cats[i]), m(id, cats[j]))
			n++
		}
	}
	ms = append(ms, m("triple", "AFib"), m("triple", "Cardio"), m("triple", "Tesla"))

	assert.Len(t, usecase.ComputeOverlap(ms, products, 0).TopCombinations, usecase.DefaultTopK)
	assert.Len(t, usecase.ComputeOverlap(ms, products, 3).TopCombinations, 3)
}

func TestComputeOverlap_Empty(t *testing.T) {
	r := usecase.ComputeOverlap(nil, products, 10)
	assert.True(t, r.Empty())

	raw, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"total_unique":0,"per_pp":{"AFib":0,"Cardio":0,"CnO Pro":0,"Respiratory":0,"Tesla":0},"overlap":{},"top_combos":[]}`, string(raw))
}

func TestOverlapResult_JSONRoundTripKeepsOrderAfterReorder(t *testing.T) {
	vocab := series.MustVocabulary("Tesla", "AFib")
	r := usecase.ComputeOverlap([]domain.Membership{m("a", "Tesla"), m("a", "AFib"), m("b", "AFib")}, vocab, 10)
	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var back domain.OverlapResult
	require.NoError(t, json.Unmarshal(raw, &back))
	back.Reorder(vocab)

	again, err := json.Marshal(&back)
	require.NoError(t, err)
	assert.JSONEq(t, string(raw), string(again))
	assert.Equal(t, string(raw), string(again))
}
