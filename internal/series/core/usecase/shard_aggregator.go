package usecase

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"dashboard-refresher/internal/series/core/domain"
)

// ShardAggregator sums per-partition series (e.g. one per country) into a
// single global series without re-querying the backend.
type ShardAggregator struct {
	Metrics    []domain.Metric
	Vocabulary domain.Vocabulary
	// Parallelism bounds the goroutines that re-index shards; <= 1 is sequential.
	Parallelism int
}

// aligned is one shard's values for one month, re-indexed onto the union dates.
type aligned [][][]float64 // metric, category, union date

// Aggregate merges shards month by month. The output dates of a month are the
// sorted union of every shard's dates; a shard missing a date contributes zero.
// Shards are re-indexed independently (optionally in parallel) and reduced in
// sorted shard-key order so the result never depends on scheduling.
func (a ShardAggregator) Aggregate(ctx context.Context, shards map[string]*domain.Series) (*domain.Series, error) {
	out := domain.NewSeries(a.Metrics, a.Vocabulary)

	keys := make([]string, 0, len(shards))
	for k, s := range shards {
		if s == nil {
			continue
		}
		if !out.Compatible(s) {
			return nil, fmt.Errorf("shard %q: %w", k, domain.ErrIncompatibleShards)
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	union := map[string]map[string]struct{}{}
	for _, k := range keys {
		for _, month := range shards[k].Months() {
			b, _ := shards[k].Bucket(month)
			if union[month] == nil {
				union[month] = map[string]struct{}{}
			}
			for _, d := range b.Dates() {
				union[month][d] = struct{}{}
			}
		}
	}

	months := make([]string, 0, len(union))
	for m := range union {
		months = append(months, m)
	}
	sort.Strings(months)

	categories := a.Vocabulary.Categories()
	for _, month := range months {
		dates := make([]string, 0, len(union[month]))
		for d := range union[month] {
			dates = append(dates, d)
		}
		sort.Strings(dates)

		global := domain.NewMonthlyBucket(month, dates, a.Metrics, a.Vocabulary)
		partials := make([]aligned, len(keys))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(max(1, a.Parallelism))
		for i, k := range keys {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				b, ok := shards[k].Bucket(month)
				if !ok {
					return nil
				}
				partials[i] = a.align(b, global, categories)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		for _, p := range partials {
			if p == nil {
				continue
			}
			for mi, m := range a.Metrics {
				for ci, c := range categories {
					for di, v := range p[mi][ci] {
						if v == 0 {
							continue
						}
						if err := global.Add(m.Name, c, di, v); err != nil {
							return nil, err
						}
					}
				}
			}
		}

		global.Round()
		if err := out.Put(global); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (a ShardAggregator) align(shard, global *domain.MonthlyBucket, categories []domain.Category) aligned {
	shardDates := shard.Dates()
	pos := make([]int, len(shardDates))
	for si, d := range shardDates {
		pos[si], _ = global.IndexOf(d)
	}

	p := make(aligned, len(a.Metrics))
	for mi, m := range a.Metrics {
		p[mi] = make([][]float64, len(categories))
		for ci, c := range categories {
			row := make([]float64, global.Len())
			for si, v := range shard.Values(m.Name, c) {
				row[pos[si]] = v
			}
			p[mi][ci] = row
		}
	}
	return p
}
