package usecase

import (
	"fmt"
	"sort"
	"time"

	"dashboard-refresher/internal/series/core/domain"
)

// BuildStats reports observations the builder could not place.
type BuildStats struct {
	Placed          int
	OutOfWindow     int
	UnknownCategory int
}

// SeriesBuilder turns sparse observations into monthly buckets for a fixed
// metric list and category vocabulary.
type SeriesBuilder struct {
	Metrics    []domain.Metric
	Vocabulary domain.Vocabulary
}

// BuildDense emits every day of [start, end] for every category, zero-filled
// where nothing was observed. The last month stops at end's day; the first
// month starts at start's day.
func (b SeriesBuilder) BuildDense(obs []domain.Observation, start, end time.Time) (*domain.Series, BuildStats, error) {
	s, err := b.emptyDense(start, end)
	if err != nil {
		return nil, BuildStats{}, err
	}
	stats := b.accumulate(s, obs)
	roundAll(s)
	return s, stats, nil
}

// BuildObserved emits only the days that have at least one observation for a
// known category. Used for shards that are later merged by the aggregator.
func (b SeriesBuilder) BuildObserved(obs []domain.Observation) (*domain.Series, BuildStats, error) {
	byMonth := map[string]map[string]struct{}{}
	for _, o := range obs {
		if !b.Vocabulary.Contains(o.Category) {
			continue
		}
		month := domain.MonthKey(o.Date)
		if byMonth[month] == nil {
			byMonth[month] = map[string]struct{}{}
		}
		byMonth[month][domain.DateKey(o.Date)] = struct{}{}
	}

	s := domain.NewSeries(b.Metrics, b.Vocabulary)
	for month, set := range byMonth {
		dates := make([]string, 0, len(set))
		for d := range set {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		if err := s.Put(domain.NewMonthlyBucket(month, dates, b.Metrics, b.Vocabulary)); err != nil {
			return nil, BuildStats{}, err
		}
	}

	stats := b.accumulate(s, obs)
	roundAll(s)
	return s, stats, nil
}

// Densify re-indexes src onto the full day range [start, end]; days src lacks
// become zero and days outside the range are dropped.
func Densify(src *domain.Series, start, end time.Time) (*domain.Series, error) {
	b := SeriesBuilder{Metrics: src.Metrics(), Vocabulary: src.Vocabulary()}
	dst, err := b.emptyDense(start, end)
	if err != nil {
		return nil, err
	}

	categories := src.Vocabulary().Categories()
	for _, month := range src.Months() {
		from, _ := src.Bucket(month)
		to, ok := dst.Bucket(month)
		if !ok {
			continue
		}
		for si, date := range from.Dates() {
			di, ok := to.IndexOf(date)
			if !ok {
				continue
			}
			for _, m := range b.Metrics {
				for _, c := range categories {
					if err := to.Set(m.Name, c, di, from.At(m.Name, c, si)); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return dst, nil
}

func (b SeriesBuilder) emptyDense(start, end time.Time) (*domain.Series, error) {
	start, end = domain.Day(start), domain.Day(end)
	if start.After(end) {
		return nil, fmt.Errorf("%s > %s: %w", domain.DateKey(start), domain.DateKey(end), domain.ErrInvalidWindow)
	}

	s := domain.NewSeries(b.Metrics, b.Vocabulary)
	for first := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !first.After(end); first = first.AddDate(0, 1, 0) {
		fromDay, toDay := 1, domain.DaysIn(first)
		if sameMonth(first, start) {
			fromDay = start.Day()
		}
		if sameMonth(first, end) {
			toDay = end.Day()
		}

		dates := make([]string, 0, toDay-fromDay+1)
		for day := fromDay; day <= toDay; day++ {
			dates = append(dates, domain.DateKey(time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)))
		}
		if err := s.Put(domain.NewMonthlyBucket(domain.MonthKey(first), dates, b.Metrics, b.Vocabulary)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// accumulate adds observations into the pre-shaped buckets. Observations for
// the same (day, category) are summed, never overwritten; amounts are rounded
// to cents before they are added.
func (b SeriesBuilder) accumulate(s *domain.Series, obs []domain.Observation) BuildStats {
	var stats BuildStats
	for _, o := range obs {
		if !b.Vocabulary.Contains(o.Category) {
			stats.UnknownCategory++
			continue
		}
		bucket, ok := s.Bucket(domain.MonthKey(o.Date))
		if !ok {
			stats.OutOfWindow++
			continue
		}
		idx, ok := bucket.IndexOf(domain.DateKey(o.Date))
		if !ok {
			stats.OutOfWindow++
			continue
		}
		for mi, m := range b.Metrics {
			if mi >= len(o.Values) {
				break
			}
			// category and index were checked above
			_ = bucket.Add(m.Name, o.Category, idx, m.Normalize(o.Values[mi]))
		}
		stats.Placed++
	}
	return stats
}

func roundAll(s *domain.Series) {
	for _, month := range s.Months() {
		b, _ := s.Bucket(month)
		b.Round()
	}
}

func sameMonth(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month()
}
