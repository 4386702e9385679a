package usecase_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	series "dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/stats/core/domain"
	"dashboard-refresher/internal/stats/core/usecase"
)

func fa(id string, c series.Category, month string) domain.FirstAppearance {
	return domain.FirstAppearance{Identity: id, Category: c, Month: month}
}

func TestComputeCumulative_RunningCountsAndDedupTotal(t *testing.T) {
	s, err := usecase.ComputeCumulative([]domain.FirstAppearance{
		fa("a", "AFib", "2025-09"),
		fa("a", "Cardio", "2025-10"),
		fa("b", "Cardio", "2025-09"),
		fa("c", "Tesla", "2025-11"),
	}, products, "2025-12")
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-09", "2025-10", "2025-11", "2025-12"}, s.Months())
	assert.Equal(t, 1, s.Count("2025-09", "AFib"))
	assert.Equal(t, 1, s.Count("2025-09", "Cardio"))
	assert.Equal(t, 2, s.Count("2025-10", "Cardio"))
	assert.Equal(t, 1, s.Count("2025-12", "Tesla"))

	// a counted once even though it appears in two categories
	assert.Equal(t, 2, s.Total("2025-09"))
	assert.Equal(t, 2, s.Total("2025-10"))
	assert.Equal(t, 3, s.Total("2025-11"))
	assert.Equal(t, 3, s.Total("2025-12"))
	require.NoError(t, s.Check())
}

func TestComputeCumulative_KeepsEarliestMonthAndFoldsIdentity(t *testing.T) {
	s, err := usecase.ComputeCumulative([]domain.FirstAppearance{
		fa("A@x.io", "AFib", "2025-11"),
		fa("a@x.io", "AFib", "2025-09"),
	}, products, "")
	require.NoError(t, err)

	assert.Equal(t, []string{"2025-09", "2025-10", "2025-11"}, s.Months())
	assert.Equal(t, 1, s.Count("2025-09", "AFib"))
	assert.Equal(t, 1, s.Count("2025-11", "AFib"))
	assert.Equal(t, 1, s.Total("2025-11"))
}

func TestComputeCumulative_Monotonic(t *testing.T) {
	months := []string{"2025-09", "2025-12", "2025-10", "2026-02", "2025-09", "2026-01"}
	var in []domain.FirstAppearance
	for i, m := range months {
		for j, c := range products.Categories() {
			if (i+j)%2 == 0 {
				in = append(in, fa(string(rune('a'+i)), c, m))
			}
		}
	}

	s, err := usecase.ComputeCumulative(in, products, "2026-03")
	require.NoError(t, err)
	require.NoError(t, s.Check())

	got := s.Months()
	for i := 1; i < len(got); i++ {
		for _, c := range products.Categories() {
			assert.LessOrEqual(t, s.Count(got[i-1], c), s.Count(got[i], c))
		}
		assert.LessOrEqual(t, s.Total(got[i-1]), s.Total(got[i]))
	}
}

func TestComputeCumulative_RejectsBadMonth(t *testing.T) {
	_, err := usecase.ComputeCumulative([]domain.FirstAppearance{fa("a", "AFib", "Sept")}, products, "")
	if !errors.Is(err, domain.ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
}

func TestComputeCumulative_EmptyInput(t *testing.T) {
	s, err := usecase.ComputeCumulative(nil, products, "2025-10")
	require.NoError(t, err)
	assert.True(t, s.Empty())
}

func TestCumulativeSeries_JSON(t *testing.T) {
	vocab := series.MustVocabulary("Tesla", "AFib")
	s, err := usecase.ComputeCumulative([]domain.FirstAppearance{
		fa("a", "AFib", "2025-09"),
		fa("b", "Tesla", "2025-10"),
	}, vocab, "2025-10")
	require.NoError(t, err)

	raw, err := json.Marshal(s)
	require.NoError(t, err)
	want := `{"2025-09":{"Tesla":0,"AFib":1,"_total":1},"2025-10":{"Tesla":1,"AFib":1,"_total":2}}`
	assert.Equal(t, want, string(raw))

	var back domain.CumulativeSeries
	require.NoError(t, json.Unmarshal(raw, &back))
	again, err := json.Marshal(back.WithVocabulary(vocab))
	require.NoError(t, err)
	assert.Equal(t, want, string(again))
}

func TestCumulativeSeries_CheckDetectsDecrease(t *testing.T) {
	s := domain.NewCumulativeSeries(products)
	require.NoError(t, s.Set("2025-09", map[series.Category]int{"AFib": 3}, 3))
	require.NoError(t, s.Set("2025-10", map[series.Category]int{"AFib": 2}, 3))
	if err := s.Check(); !errors.Is(err, domain.ErrNotMonotonic) {
		t.Fatalf("expected ErrNotMonotonic, got %v", err)
	}
	assert.Error(t, s.Set("2025-09", nil, 0))
}
