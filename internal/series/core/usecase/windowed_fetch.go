package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/series/core/ports"
)

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) From() string { return domain.DateKey(w.Start) }
func (w Window) To() string   { return domain.DateKey(w.End) }

func (w Window) String() string { return w.From() + ".." + w.To() }

// Chunker splits [start, end] into windows small enough for the backend.
type Chunker func(start, end time.Time) []Window

// FixedSpan yields windows [s, s+days], each next one starting the day after
// the previous end.
func FixedSpan(days int) Chunker {
	return func(start, end time.Time) []Window {
		start, end = domain.Day(start), domain.Day(end)
		var out []Window
		for cur := start; !cur.After(end); {
			wEnd := cur.AddDate(0, 0, days)
			if wEnd.After(end) {
				wEnd = end
			}
			out = append(out, Window{Start: cur, End: wEnd})
			cur = wEnd.AddDate(0, 0, 1)
		}
		return out
	}
}

// CalendarMonths yields one window per calendar month, clipped to [start, end].
func CalendarMonths() Chunker {
	return func(start, end time.Time) []Window {
		start, end = domain.Day(start), domain.Day(end)
		var out []Window
		for cur := start; !cur.After(end); {
			next := time.Date(cur.Year(), cur.Month()+1, 1, 0, 0, 0, 0, time.UTC)
			wEnd := next.AddDate(0, 0, -1)
			if wEnd.After(end) {
				wEnd = end
			}
			out = append(out, Window{Start: cur, End: wEnd})
			cur = next
		}
		return out
	}
}

type RetryPolicy struct {
	Attempts int           // total tries, at least 1
	Base     time.Duration // wait = Base * attempt number
}

// FetchObserver receives fetch events for metrics. All methods must be cheap.
type FetchObserver interface {
	FetchRetried(query string)
	RowsMalformed(query string, n int)
	LabelsDropped(kind string, n int)
	LabelsOther(kind string, n int)
}

type nopObserver struct{}

func (nopObserver) FetchRetried(string)       {}
func (nopObserver) RowsMalformed(string, int) {}
func (nopObserver) LabelsDropped(string, int) {}
func (nopObserver) LabelsOther(string, int)   {}

// Fetcher runs queries against a backend with linear backoff on transient errors.
type Fetcher struct {
	backend  ports.QueryBackendPort
	retry    RetryPolicy
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
	observer FetchObserver
}

type FetcherOption func(*Fetcher)

func WithRetry(p RetryPolicy) FetcherOption {
	return func(f *Fetcher) { f.retry = p }
}

func WithSleep(sleep func(ctx context.Context, d time.Duration) error) FetcherOption {
	return func(f *Fetcher) { f.sleep = sleep }
}

func WithLogger(l *zap.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

func WithObserver(o FetchObserver) FetcherOption {
	return func(f *Fetcher) {
		if o != nil {
			f.observer = o
		}
	}
}

func NewFetcher(backend ports.QueryBackendPort, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		backend:  backend,
		retry:    RetryPolicy{Attempts: 3, Base: 10 * time.Second},
		sleep:    sleepContext,
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.retry.Attempts < 1 {
		f.retry.Attempts = 1
	}
	return f
}

func (f *Fetcher) Logger() *zap.Logger     { return f.logger }
func (f *Fetcher) Observer() FetchObserver { return f.observer }

// Run executes q, retrying transient failures. After the last attempt the
// error is returned as-is.
func (f *Fetcher) Run(ctx context.Context, q ports.Query) ([]ports.Row, error) {
	var lastErr error
	for attempt := 1; attempt <= f.retry.Attempts; attempt++ {
		rows, err := f.backend.RunQuery(ctx, q)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if !domain.IsTransient(err) || attempt == f.retry.Attempts {
			break
		}

		wait := f.retry.Base * time.Duration(attempt)
		f.observer.FetchRetried(q.Name)
		f.logger.Warn("query failed, retrying",
			zap.String("query", q.Name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", f.retry.Attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if err := f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// FetchSpec describes one windowed data source: how to split the range, how
// to build the query for a window and how to read a row.
type FetchSpec[T any] struct {
	Name  string
	Chunk Chunker
	Build func(w Window) ports.Query
	// Parse returns false for rows that cannot be used at all (e.g. no date).
	Parse func(row ports.Row) (T, bool)
}

// Fetch walks the windows of [start, end] in order. If any window fails after
// retries, everything collected so far is discarded and the error returned.
func Fetch[T any](ctx context.Context, f *Fetcher, spec FetchSpec[T], start, end time.Time) ([]T, error) {
	if start.After(end) {
		return nil, fmt.Errorf("%s: %w", spec.Name, domain.ErrInvalidWindow)
	}

	var (
		out       []T
		malformed int
	)
	for _, w := range spec.Chunk(start, end) {
		q := spec.Build(w)
		if q.Name == "" {
			q.Name = spec.Name
		}

		rows, err := f.Run(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("%s window %s: %w", spec.Name, w, err)
		}
		f.logger.Debug("window fetched",
			zap.String("query", spec.Name),
			zap.String("window", w.String()),
			zap.Int("rows", len(rows)),
		)

		for _, row := range rows {
			v, ok := spec.Parse(row)
			if !ok {
				malformed++
				continue
			}
			out = append(out, v)
		}
	}

	if malformed > 0 {
		f.observer.RowsMalformed(spec.Name, malformed)
		f.logger.Warn("skipped malformed rows", zap.String("query", spec.Name), zap.Int("rows", malformed))
	}
	f.logger.Info("fetch complete", zap.String("query", spec.Name), zap.Int("rows", len(out)))
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
