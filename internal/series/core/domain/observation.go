package domain

import (
	"math"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

type MetricKind int

const (
	// Count metrics are whole numbers and are never rounded.
	Count MetricKind = iota
	// Amount metrics are money-like floats, rounded to cents on insertion.
	Amount
)

type Metric struct {
	Name string
	Kind MetricKind
}

// Normalize applies the metric's rounding rule.
func (m Metric) Normalize(v float64) float64 {
	if m.Kind == Amount {
		return Round2(v)
	}
	return v
}

func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Observation is one upstream fact: values for a (day, category) pair, aligned
// with the metric list of the series it feeds.
type Observation struct {
	Date     time.Time
	Category Category
	Values   []float64
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func DateKey(t time.Time) string  { return t.Format(DateLayout) }
func MonthKey(t time.Time) string { return t.Format(MonthLayout) }

func ParseDay(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func ParseMonth(s string) (time.Time, error) {
	return time.Parse(MonthLayout, s)
}

// DaysIn returns the number of days of the month containing t.
func DaysIn(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}
