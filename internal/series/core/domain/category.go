package domain

import (
	"fmt"
	"sort"
)

// Category is a canonical, dashboard-recognized label (a product line or a country).
type Category string

// Other collects country labels that are not part of the vocabulary.
const Other Category = "Other"

// Vocabulary is a closed, ordered set of categories. The order is the one
// consumers see in every serialized output.
type Vocabulary struct {
	order []Category
	index map[Category]int
}

func NewVocabulary(categories ...Category) (Vocabulary, error) {
	if len(categories) == 0 {
		return Vocabulary{}, ErrEmptyVocabulary
	}

	v := Vocabulary{
		order: make([]Category, 0, len(categories)),
		index: make(map[Category]int, len(categories)),
	}
	for _, c := range categories {
		if c == "" {
			return Vocabulary{}, fmt.Errorf("%w: blank category", ErrEmptyVocabulary)
		}
		if _, dup := v.index[c]; dup {
			return Vocabulary{}, fmt.Errorf("%w: %s", ErrDuplicateCategory, c)
		}
		v.index[c] = len(v.order)
		v.order = append(v.order, c)
	}
	return v, nil
}

// MustVocabulary panics on invalid input. Only for package-level tables and tests.
func MustVocabulary(categories ...Category) Vocabulary {
	v, err := NewVocabulary(categories...)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Vocabulary) Len() int { return len(v.order) }

func (v Vocabulary) Categories() []Category {
	out := make([]Category, len(v.order))
	copy(out, v.order)
	return out
}

func (v Vocabulary) Contains(c Category) bool {
	_, ok := v.index[c]
	return ok
}

func (v Vocabulary) Index(c Category) (int, bool) {
	i, ok := v.index[c]
	return i, ok
}

// With returns a vocabulary that also contains c (appended last) when it is missing.
func (v Vocabulary) With(c Category) Vocabulary {
	if v.Contains(c) {
		return v
	}
	next, _ := NewVocabulary(append(v.Categories(), c)...)
	return next
}

// Sort orders cs by vocabulary position; unknown categories go last, lexically.
func (v Vocabulary) Sort(cs []Category) {
	sort.SliceStable(cs, func(i, j int) bool {
		ii, iok := v.index[cs[i]]
		jj, jok := v.index[cs[j]]
		switch {
		case iok && jok:
			return ii < jj
		case iok != jok:
			return iok
		default:
			return cs[i] < cs[j]
		}
	})
}
