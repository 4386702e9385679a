package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// MonthlyBucket holds one calendar month of a series: an ascending date list
// and, per metric and category, a value slice aligned by index with the dates.
// All value slices are allocated with the dates, so they can never drift in
// length.
type MonthlyBucket struct {
	month   string
	dates   []string
	metrics []Metric
	vocab   Vocabulary
	values  [][][]float64 // metric, category, date
}

func NewMonthlyBucket(month string, dates []string, metrics []Metric, vocab Vocabulary) *MonthlyBucket {
	b := &MonthlyBucket{
		month:   month,
		dates:   append([]string(nil), dates...),
		metrics: append([]Metric(nil), metrics...),
		vocab:   vocab,
		values:  make([][][]float64, len(metrics)),
	}
	for mi := range metrics {
		b.values[mi] = make([][]float64, vocab.Len())
		for ci := 0; ci < vocab.Len(); ci++ {
			b.values[mi][ci] = make([]float64, len(dates))
		}
	}
	return b
}

func (b *MonthlyBucket) Month() string { return b.month }
func (b *MonthlyBucket) Len() int      { return len(b.dates) }

func (b *MonthlyBucket) Dates() []string {
	return append([]string(nil), b.dates...)
}

func (b *MonthlyBucket) Metrics() []Metric {
	return append([]Metric(nil), b.metrics...)
}

func (b *MonthlyBucket) Vocabulary() Vocabulary { return b.vocab }

// IndexOf finds date in the (ascending) date list.
func (b *MonthlyBucket) IndexOf(date string) (int, bool) {
	i := sort.SearchStrings(b.dates, date)
	if i < len(b.dates) && b.dates[i] == date {
		return i, true
	}
	return -1, false
}

func (b *MonthlyBucket) cell(metric string, c Category) ([]float64, error) {
	ci, ok := b.vocab.Index(c)
	if !ok {
		return nil, fmt.Errorf("category %q not in bucket vocabulary", c)
	}
	for mi, m := range b.metrics {
		if m.Name == metric {
			return b.values[mi][ci], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
}

// Values returns a copy of the per-date values of metric for c.
func (b *MonthlyBucket) Values(metric string, c Category) []float64 {
	vals, err := b.cell(metric, c)
	if err != nil {
		return nil
	}
	return append([]float64(nil), vals...)
}

func (b *MonthlyBucket) At(metric string, c Category, i int) float64 {
	vals, err := b.cell(metric, c)
	if err != nil || i < 0 || i >= len(vals) {
		return 0
	}
	return vals[i]
}

func (b *MonthlyBucket) Add(metric string, c Category, i int, v float64) error {
	vals, err := b.cell(metric, c)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(vals) {
		return fmt.Errorf("date index %d out of range for %s", i, b.month)
	}
	vals[i] += v
	return nil
}

func (b *MonthlyBucket) Set(metric string, c Category, i int, v float64) error {
	vals, err := b.cell(metric, c)
	if err != nil {
		return err
	}
	if i < 0 || i >= len(vals) {
		return fmt.Errorf("date index %d out of range for %s", i, b.month)
	}
	vals[i] = v
	return nil
}

// Round applies every metric's rounding rule to every cell.
func (b *MonthlyBucket) Round() {
	for mi, m := range b.metrics {
		if m.Kind != Amount {
			continue
		}
		for _, vals := range b.values[mi] {
			for i := range vals {
				vals[i] = Round2(vals[i])
			}
		}
	}
}

func (b *MonthlyBucket) Validate() error {
	if !sort.StringsAreSorted(b.dates) {
		return fmt.Errorf("%w: %s dates are not ascending", ErrMisalignedBucket, b.month)
	}
	for mi := range b.values {
		for ci := range b.values[mi] {
			if len(b.values[mi][ci]) != len(b.dates) {
				return fmt.Errorf("%w: %s/%s/%s", ErrMisalignedBucket, b.month, b.metrics[mi].Name, b.vocab.order[ci])
			}
		}
	}
	return nil
}

// MarshalJSON renders {"dates":[...],"<metric>":{"<category>":[...]}}.
func (b *MonthlyBucket) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	w := newObjectWriter(&buf)
	if err := w.value("dates", nonNil(b.dates)); err != nil {
		return nil, err
	}
	for mi, m := range b.metrics {
		w.key(m.Name)
		inner := newObjectWriter(&buf)
		for ci, c := range b.vocab.order {
			inner.key(string(c))
			writeNumbers(&buf, b.values[mi][ci], m.Kind)
		}
		inner.close()
	}
	w.close()
	return buf.Bytes(), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Series is a partition's set of monthly buckets sharing metrics and vocabulary.
type Series struct {
	metrics []Metric
	vocab   Vocabulary
	buckets map[string]*MonthlyBucket
}

func NewSeries(metrics []Metric, vocab Vocabulary) *Series {
	return &Series{
		metrics: append([]Metric(nil), metrics...),
		vocab:   vocab,
		buckets: make(map[string]*MonthlyBucket),
	}
}

func (s *Series) Metrics() []Metric      { return append([]Metric(nil), s.metrics...) }
func (s *Series) Vocabulary() Vocabulary { return s.vocab }
func (s *Series) Len() int               { return len(s.buckets) }

func (s *Series) Metric(name string) (Metric, bool) {
	for _, m := range s.metrics {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}

// Months returns bucket keys in ascending order.
func (s *Series) Months() []string {
	months := make([]string, 0, len(s.buckets))
	for m := range s.buckets {
		months = append(months, m)
	}
	sort.Strings(months)
	return months
}

func (s *Series) Bucket(month string) (*MonthlyBucket, bool) {
	b, ok := s.buckets[month]
	return b, ok
}

// Put stores b, replacing any bucket of the same month.
func (s *Series) Put(b *MonthlyBucket) error {
	if !sameMetrics(s.metrics, b.metrics) || !sameVocabulary(s.vocab, b.vocab) {
		return fmt.Errorf("%w: bucket %s", ErrIncompatibleShards, b.month)
	}
	if err := b.Validate(); err != nil {
		return err
	}
	s.buckets[b.month] = b
	return nil
}

// Compatible reports whether other shares metrics and vocabulary with s.
func (s *Series) Compatible(other *Series) bool {
	return sameMetrics(s.metrics, other.metrics) && sameVocabulary(s.vocab, other.vocab)
}

// Total sums metric for c over every bucket.
func (s *Series) Total(metric string, c Category) float64 {
	var total float64
	for _, b := range s.buckets {
		for _, v := range b.Values(metric, c) {
			total += v
		}
	}
	return total
}

func (s *Series) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	w := newObjectWriter(&buf)
	for _, month := range s.Months() {
		raw, err := s.buckets[month].MarshalJSON()
		if err != nil {
			return nil, err
		}
		w.raw(month, raw)
	}
	w.close()
	return buf.Bytes(), nil
}

// ByCategory renders the series pivoted per category:
// {"<category>":{"<month>":{"dates":[...],"<metric>":[...]}}}.
func (s *Series) ByCategory() json.Marshaler {
	return categoryView{s: s}
}

type categoryView struct{ s *Series }

func (v categoryView) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	outer := newObjectWriter(&buf)
	months := v.s.Months()
	for ci, c := range v.s.vocab.order {
		outer.key(string(c))
		mw := newObjectWriter(&buf)
		for _, month := range months {
			b := v.s.buckets[month]
			mw.key(month)
			inner := newObjectWriter(&buf)
			if err := inner.value("dates", nonNil(b.dates)); err != nil {
				return nil, err
			}
			for mi, m := range b.metrics {
				inner.key(m.Name)
				writeNumbers(&buf, b.values[mi][ci], m.Kind)
			}
			inner.close()
		}
		mw.close()
	}
	outer.close()
	return buf.Bytes(), nil
}

func sameMetrics(a, b []Metric) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameVocabulary(a, b Vocabulary) bool {
	if a.Len() != b.Len() {
		return false
	}
	for i := range a.order {
		if a.order[i] != b.order[i] {
			return false
		}
	}
	return true
}
