package domain

import (
	"bytes"
	"sort"
)

// PlanTypes is the fixed rendering order of plan types.
var PlanTypes = []string{"Monthly", "Yearly", "2-Year", "Other"}

type PlanTotals struct {
	Revenue   float64 `json:"revenue"`
	Purchases int64   `json:"purchases"`
}

// PlanMix holds revenue and purchase totals per month, product and plan type.
type PlanMix struct {
	vocab  Vocabulary
	months map[string]map[Category]map[string]PlanTotals
}

func NewPlanMix(vocab Vocabulary) *PlanMix {
	return &PlanMix{vocab: vocab, months: map[string]map[Category]map[string]PlanTotals{}}
}

// Add accumulates a row; unknown plan types are folded into "Other".
func (p *PlanMix) Add(month string, c Category, planType string, revenue float64, purchases int64) {
	if !knownPlanType(planType) {
		planType = "Other"
	}
	if p.months[month] == nil {
		p.months[month] = map[Category]map[string]PlanTotals{}
	}
	if p.months[month][c] == nil {
		p.months[month][c] = map[string]PlanTotals{}
	}
	t := p.months[month][c][planType]
	t.Revenue = Round2(t.Revenue + revenue)
	t.Purchases += purchases
	p.months[month][c][planType] = t
}

func (p *PlanMix) Get(month string, c Category, planType string) (PlanTotals, bool) {
	t, ok := p.months[month][c][planType]
	return t, ok
}

func (p *PlanMix) Months() []string {
	out := make([]string, 0, len(p.months))
	for m := range p.months {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

func (p *PlanMix) Len() int { return len(p.months) }

func knownPlanType(s string) bool {
	for _, t := range PlanTypes {
		if t == s {
			return true
		}
	}
	return false
}

// MarshalJSON renders months ascending, products in vocabulary order and plan
// types in PlanTypes order. Absent combinations are omitted.
func (p *PlanMix) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	months := newObjectWriter(&buf)
	for _, month := range p.Months() {
		months.key(month)
		prods := newObjectWriter(&buf)
		for _, c := range p.vocab.order {
			plans, ok := p.months[month][c]
			if !ok {
				continue
			}
			prods.key(string(c))
			pw := newObjectWriter(&buf)
			for _, t := range PlanTypes {
				v, ok := plans[t]
				if !ok {
					continue
				}
				if err := pw.value(t, v); err != nil {
					return nil, err
				}
			}
			pw.close()
		}
		prods.close()
	}
	months.close()
	return buf.Bytes(), nil
}
