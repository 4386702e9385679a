package domain

import (
	"bytes"
	"math"
)

// TotalKey is the reserved key for cross-category totals in dashboard payloads.
const TotalKey = "_total"

type UserStat struct {
	Users   int64 `json:"users" yaml:"users"`
	Paid    int64 `json:"paid" yaml:"paid"`
	OnTrial int64 `json:"on_trial" yaml:"on_trial"`
	Male    int   `json:"male" yaml:"male"`
	Female  int   `json:"female" yaml:"female"`
}

type UserTotals struct {
	Users  int64 `json:"users" yaml:"users"`
	Male   int   `json:"male" yaml:"male"`
	Female int   `json:"female" yaml:"female"`
}

// GenderCounts accumulates raw gender counts; percentages are derived on output.
type GenderCounts struct {
	Male, Female, Other int64
}

func (g GenderCounts) Total() int64 { return g.Male + g.Female + g.Other }

func (g *GenderCounts) Add(o GenderCounts) {
	g.Male += o.Male
	g.Female += o.Female
	g.Other += o.Other
}

// Percentages returns whole male/female percentages, half to even. A zero
// total yields 0/0.
func (g GenderCounts) Percentages() (male, female int) {
	total := float64(max(g.Total(), 1))
	return int(math.RoundToEven(float64(g.Male) / total * 100)), int(math.RoundToEven(float64(g.Female) / total * 100))
}

// UserBreakdown is the active-user payload of one partition: one entry per
// product, plus an optional "_total" entry.
type UserBreakdown struct {
	vocab     Vocabulary
	ByProduct map[Category]UserStat
	Total     *UserTotals
}

func NewUserBreakdown(vocab Vocabulary) *UserBreakdown {
	return &UserBreakdown{vocab: vocab, ByProduct: map[Category]UserStat{}}
}

func (u *UserBreakdown) Vocabulary() Vocabulary { return u.vocab }

// MarshalJSON renders products in vocabulary order, then "_total".
func (u *UserBreakdown) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	w := newObjectWriter(&buf)
	for _, c := range u.vocab.order {
		if err := w.value(string(c), u.ByProduct[c]); err != nil {
			return nil, err
		}
	}
	if u.Total != nil {
		if err := w.value(TotalKey, u.Total); err != nil {
			return nil, err
		}
	}
	w.close()
	return buf.Bytes(), nil
}
