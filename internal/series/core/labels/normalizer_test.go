package labels

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard-refresher/internal/series/core/domain"
)

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New(
		domain.MustVocabulary("AFib", "Cardio", "CnO Pro", "Respiratory", "Tesla"),
		map[string]string{
			"cardio adaptability": "Cardio",
			"cno_pro_n_plus":      "CnO Pro",
			"c&o_pro_offering":    "CnO Pro",
			"respiratory_health":  "Respiratory",
		},
		domain.MustVocabulary("USA", "India", "UK + IR"),
		map[string]string{
			"united states of america": "USA",
			"us":                       "USA",
			"united kingdom":           "UK + IR",
			"ireland":                  "UK + IR",
		},
	)
	require.NoError(t, err)
	return n
}

func TestNormalize_Products(t *testing.T) {
	n := newTestNormalizer(t)

	tests := []struct {
		raw  string
		want domain.Category
		ok   bool
	}{
		{"afib", "AFib", true},
		{"  AFIB ", "AFib", true},
		{"Cardio Adaptability", "Cardio", true},
		{"cno_pro_n_plus", "CnO Pro", true},
		{"C&O_PRO_OFFERING", "CnO Pro", true},
		{"respiratory_health", "Respiratory", true},
		{"CnO Pro", "CnO Pro", true},
		{"sleep_coach", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := n.Normalize(tt.raw, Product)
		assert.Equal(t, tt.ok, ok, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestNormalize_CountriesFallBackToOther(t *testing.T) {
	n := newTestNormalizer(t)

	got, ok := n.Normalize("United States of America", Country)
	assert.True(t, ok)
	assert.Equal(t, domain.Category("USA"), got)

	got, ok = n.Normalize("Ireland", Country)
	assert.True(t, ok)
	assert.Equal(t, domain.Category("UK + IR"), got)

	got, ok = n.Normalize("Atlantis", Country)
	assert.True(t, ok, "country misses are still aggregated")
	assert.Equal(t, domain.Other, got)
}

func TestNormalize_IdempotentOnDisplayForm(t *testing.T) {
	n := newTestNormalizer(t)

	for _, raw := range []string{"afib", "Cardio Adaptability", "cno_pro_n_plus", "RESPIRATORY_HEALTH", "tesla"} {
		first, ok := n.Product(raw)
		require.True(t, ok, raw)
		again, ok := n.Product(DisplayForm(first))
		require.True(t, ok, raw)
		assert.Equal(t, first, again, raw)
	}
	for _, raw := range []string{"us", "united kingdom", "India"} {
		first := n.Country(raw)
		assert.Equal(t, first, n.Country(DisplayForm(first)), raw)
	}
}

func TestNew_RejectsAliasToUnknownCategory(t *testing.T) {
	_, err := New(
		domain.MustVocabulary("AFib"),
		map[string]string{"cardio": "Cardio"},
		domain.MustVocabulary("USA"),
		nil,
	)
	require.Error(t, err)
}

func TestTally_CountsDropsAndOther(t *testing.T) {
	n := newTestNormalizer(t)
	products := NewTally(Product)
	countries := NewTally(Country)

	products.Product(n, "afib")
	products.Product(n, "sleep_coach")
	products.Product(n, "Sleep_Coach ")
	countries.Country(n, "us")
	countries.Country(n, "Atlantis")

	assert.Equal(t, 1, products.Mapped)
	assert.Equal(t, 2, products.DroppedTotal())
	assert.Equal(t, 2, products.Dropped["sleep_coach"])
	assert.Equal(t, 1, countries.Mapped)
	assert.Equal(t, 1, countries.OtherTotal())
}

func TestCountries_IncludesOther(t *testing.T) {
	n := newTestNormalizer(t)
	cs := n.Countries().Categories()
	assert.Equal(t, domain.Other, cs[len(cs)-1])
}

func TestNew_RejectsConflictingFoldedAliases(t *testing.T) {
	products := domain.MustVocabulary("AFib", "Cardio")
	countries := domain.MustVocabulary("USA")

	tests := []struct {
		name     string
		products domain.Vocabulary
		aliases  map[string]string
	}{
		{"two spellings, two categories", products, map[string]string{"AFib ": "AFib", " afib": "Cardio"}},
		{"alias shadows a category", products, map[string]string{"CARDIO": "AFib"}},
		{"categories differ in case", domain.MustVocabulary("AFib", "afib"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// map order varies between runs; repeat to cover both orders
			for i := 0; i < 20; i++ {
				_, err := New(tt.products, tt.aliases, countries, nil)
				require.Error(t, err)
			}
		})
	}
}

func TestNew_AcceptsRepeatedAliasesToSameCategory(t *testing.T) {
	n, err := New(
		domain.MustVocabulary("AFib"),
		map[string]string{"afib": "AFib", " AFIB ": "AFib"},
		domain.MustVocabulary("USA"),
		map[string]string{"usa": "USA"},
	)
	require.NoError(t, err)
	c, ok := n.Product("Afib")
	assert.True(t, ok)
	assert.Equal(t, domain.Category("AFib"), c)
}
