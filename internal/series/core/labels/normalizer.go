// Package labels maps raw upstream labels onto canonical categories.
package labels

import (
	"fmt"
	"strings"

	"dashboard-refresher/internal/series/core/domain"
)

type Kind int

const (
	Product Kind = iota
	Country
)

func (k Kind) String() string {
	switch k {
	case Product:
		return "product"
	case Country:
		return "country"
	default:
		return "unknown"
	}
}

type table struct {
	vocab   domain.Vocabulary
	aliases map[string]domain.Category
}

// Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	products  table
	countries table
}

// New builds a normalizer from the product and country vocabularies and their
// alias tables (raw spelling -> canonical name). Every canonical name is also
// an alias of itself, so normalizing a display form is a no-op.
func New(products domain.Vocabulary, productAliases map[string]string, countries domain.Vocabulary, countryAliases map[string]string) (*Normalizer, error) {
	p, err := newTable(products, productAliases)
	if err != nil {
		return nil, fmt.Errorf("product labels: %w", err)
	}
	c, err := newTable(countries, countryAliases)
	if err != nil {
		return nil, fmt.Errorf("country labels: %w", err)
	}
	return &Normalizer{products: p, countries: c}, nil
}

func newTable(vocab domain.Vocabulary, aliases map[string]string) (table, error) {
	if vocab.Len() == 0 {
		return table{}, domain.ErrEmptyVocabulary
	}
	t := table{vocab: vocab, aliases: make(map[string]domain.Category, len(aliases)+vocab.Len())}
	for _, c := range vocab.Categories() {
		if prev, ok := t.aliases[fold(string(c))]; ok {
			return table{}, fmt.Errorf("categories %q and %q differ only in case or spacing", prev, c)
		}
		t.aliases[fold(string(c))] = c
	}
	for raw, canonical := range aliases {
		c := domain.Category(canonical)
		if !vocab.Contains(c) {
			return table{}, fmt.Errorf("alias %q points at unknown category %q", raw, canonical)
		}
		if prev, ok := t.aliases[fold(raw)]; ok && prev != c {
			return table{}, fmt.Errorf("alias %q maps to %q, but %q already maps to %q", raw, c, fold(raw), prev)
		}
		t.aliases[fold(raw)] = c
	}
	return t, nil
}

func fold(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Normalize maps raw to its canonical category. Product misses return
// ("", false) and the row must be skipped; country misses return Other and
// the row is still aggregated.
func (n *Normalizer) Normalize(raw string, kind Kind) (domain.Category, bool) {
	switch kind {
	case Product:
		return n.Product(raw)
	case Country:
		return n.Country(raw), true
	default:
		return "", false
	}
}

func (n *Normalizer) Product(raw string) (domain.Category, bool) {
	c, ok := n.products.aliases[fold(raw)]
	return c, ok
}

func (n *Normalizer) Country(raw string) domain.Category {
	if c, ok := n.countries.aliases[fold(raw)]; ok {
		return c
	}
	return domain.Other
}

// KnownCountry reports whether raw maps to a vocabulary country (not Other).
func (n *Normalizer) KnownCountry(raw string) bool {
	_, ok := n.countries.aliases[fold(raw)]
	return ok
}

func (n *Normalizer) Products() domain.Vocabulary { return n.products.vocab }

// Countries returns the country vocabulary, Other included.
func (n *Normalizer) Countries() domain.Vocabulary { return n.countries.vocab.With(domain.Other) }

// DisplayForm is the label shown on the dashboard for c.
func DisplayForm(c domain.Category) string { return string(c) }

// Tally counts labels that did not map cleanly during one fetch.
type Tally struct {
	Kind    Kind
	Mapped  int
	Dropped map[string]int
	Other   map[string]int
}

func NewTally(kind Kind) *Tally {
	return &Tally{Kind: kind, Dropped: map[string]int{}, Other: map[string]int{}}
}

// Product normalizes raw as a product label and records the outcome.
func (t *Tally) Product(n *Normalizer, raw string) (domain.Category, bool) {
	c, ok := n.Product(raw)
	if !ok {
		t.Dropped[fold(raw)]++
		return "", false
	}
	t.Mapped++
	return c, true
}

// Country normalizes raw as a country label and records the outcome.
func (t *Tally) Country(n *Normalizer, raw string) domain.Category {
	if !n.KnownCountry(raw) {
		t.Other[fold(raw)]++
		return domain.Other
	}
	t.Mapped++
	return n.Country(raw)
}

func (t *Tally) DroppedTotal() int { return sum(t.Dropped) }
func (t *Tally) OtherTotal() int   { return sum(t.Other) }

func sum(m map[string]int) int {
	total := 0
	for _, v := range m {
		total += v
	}
	return total
}
