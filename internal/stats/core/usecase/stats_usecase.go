package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	series "dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/stats/core/domain"
	"dashboard-refresher/internal/stats/core/ports"
)

const (
	SnapshotOverlap    = "overlap"
	SnapshotCumulative = "cumulative"
)

// StaticFallback is the last resort when neither live data nor a stored
// snapshot is available. Either field may be nil.
type StaticFallback struct {
	Overlap    *domain.OverlapResult
	Cumulative *domain.CumulativeSeries
}

// FallbackObserver is told whenever a statistic is served from a fallback.
type FallbackObserver interface {
	StatFallback(stat string, source domain.Source)
}

type OverlapOutcome struct {
	Result      *domain.OverlapResult
	Source      domain.Source
	Degradation *series.Degradation
}

type CumulativeOutcome struct {
	Result      *domain.CumulativeSeries
	Source      domain.Source
	Degradation *series.Degradation
}

type StatsUseCase struct {
	source    ports.IdentitySourcePort
	snapshots ports.SnapshotStorePort // optional
	static    StaticFallback
	vocab     series.Vocabulary
	topK      int
	logger    *zap.Logger
	observer  FallbackObserver
}

type StatsOption func(*StatsUseCase)

func WithSnapshots(s ports.SnapshotStorePort) StatsOption {
	return func(uc *StatsUseCase) { uc.snapshots = s }
}

func WithStaticFallback(f StaticFallback) StatsOption {
	return func(uc *StatsUseCase) { uc.static = f }
}

func WithTopK(k int) StatsOption {
	return func(uc *StatsUseCase) { uc.topK = k }
}

func WithLogger(l *zap.Logger) StatsOption {
	return func(uc *StatsUseCase) {
		if l != nil {
			uc.logger = l
		}
	}
}

func WithFallbackObserver(o FallbackObserver) StatsOption {
	return func(uc *StatsUseCase) { uc.observer = o }
}

func NewStatsUseCase(source ports.IdentitySourcePort, vocab series.Vocabulary, opts ...StatsOption) *StatsUseCase {
	uc := &StatsUseCase{source: source, vocab: vocab, topK: DefaultTopK, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Overlap computes live overlap statistics. On a source error or an empty
// result it serves the stored snapshot, then the static fallback, then an
// empty result; every fallback carries a degradation. Live results are saved
// as the new snapshot.
func (uc *StatsUseCase) Overlap(ctx context.Context) OverlapOutcome {
	reason := ""
	ms, err := uc.source.ActiveMemberships(ctx)
	switch {
	case err != nil:
		reason = err.Error()
	case len(ms) == 0:
		reason = domain.ErrEmptyMemberships.Error()
	default:
		r := ComputeOverlap(ms, uc.vocab, uc.topK)
		if r.Empty() {
			reason = "no membership maps to a known category"
			break
		}
		uc.save(ctx, SnapshotOverlap, r)
		uc.logger.Info("overlap computed",
			zap.Int("total_unique", r.TotalUnique),
			zap.Int("per_category_sum", r.PerCategorySum()),
		)
		return OverlapOutcome{Result: r, Source: domain.SourceLive}
	}

	uc.logger.Warn("overlap unavailable, falling back", zap.String("reason", reason))
	var snap domain.OverlapResult
	if uc.load(ctx, SnapshotOverlap, &snap) && !snap.Empty() {
		snap.Reorder(uc.vocab)
		return uc.overlapFallback(&snap, domain.SourceSnapshot, reason)
	}
	if !uc.static.Overlap.Empty() {
		return uc.overlapFallback(uc.static.Overlap, domain.SourceStatic, reason)
	}
	return uc.overlapFallback(&domain.OverlapResult{}, domain.SourceEmpty, reason)
}

func (uc *StatsUseCase) overlapFallback(r *domain.OverlapResult, src domain.Source, reason string) OverlapOutcome {
	uc.notify("overlap", src)
	return OverlapOutcome{
		Result:      r,
		Source:      src,
		Degradation: &series.Degradation{Stage: "user_overlap", Reason: reason, Fallback: string(src)},
	}
}

// Cumulative computes running distinct-user counts through today's month,
// with the same fallback chain as Overlap.
func (uc *StatsUseCase) Cumulative(ctx context.Context, start, today time.Time) CumulativeOutcome {
	reason := ""
	first, err := uc.source.FirstAppearances(ctx, start, today)
	switch {
	case err != nil:
		reason = err.Error()
	case len(first) == 0:
		reason = domain.ErrEmptyMemberships.Error()
	default:
		s, err := ComputeCumulative(first, uc.vocab, MonthOf(today))
		if err != nil {
			reason = err.Error()
			break
		}
		if s.Empty() {
			reason = "no first appearance maps to a known category"
			break
		}
		uc.save(ctx, SnapshotCumulative, s)
		uc.logger.Info("cumulative users computed", zap.Int("months", s.Len()))
		return CumulativeOutcome{Result: s, Source: domain.SourceLive}
	}

	uc.logger.Warn("cumulative users unavailable, falling back", zap.String("reason", reason))
	var snap domain.CumulativeSeries
	if uc.load(ctx, SnapshotCumulative, &snap) && !snap.Empty() {
		return uc.cumulativeFallback(snap.WithVocabulary(uc.vocab), domain.SourceSnapshot, reason)
	}
	if !uc.static.Cumulative.Empty() {
		return uc.cumulativeFallback(uc.static.Cumulative, domain.SourceStatic, reason)
	}
	return uc.cumulativeFallback(domain.NewCumulativeSeries(uc.vocab), domain.SourceEmpty, reason)
}

func (uc *StatsUseCase) cumulativeFallback(s *domain.CumulativeSeries, src domain.Source, reason string) CumulativeOutcome {
	uc.notify("cumulative_users", src)
	return CumulativeOutcome{
		Result:      s,
		Source:      src,
		Degradation: &series.Degradation{Stage: "cumulative_users", Reason: reason, Fallback: string(src)},
	}
}

func (uc *StatsUseCase) notify(stat string, src domain.Source) {
	if uc.observer != nil {
		uc.observer.StatFallback(stat, src)
	}
}

// save is best effort; failures are only logged.
func (uc *StatsUseCase) save(ctx context.Context, key string, v json.Marshaler) {
	if uc.snapshots == nil {
		return
	}
	data, err := v.MarshalJSON()
	if err == nil {
		err = uc.snapshots.Save(ctx, key, data)
	}
	if err != nil {
		uc.logger.Warn("snapshot not saved", zap.String("key", key), zap.Error(err))
	}
}

func (uc *StatsUseCase) load(ctx context.Context, key string, into json.Unmarshaler) bool {
	if uc.snapshots == nil {
		return false
	}
	data, err := uc.snapshots.Load(ctx, key)
	if err == nil {
		err = into.UnmarshalJSON(data)
	}
	switch {
	case err == nil:
		return true
	case errors.Is(err, ports.ErrSnapshotNotFound):
		uc.logger.Debug("no snapshot stored", zap.String("key", key))
	default:
		uc.logger.Warn("snapshot unreadable", zap.String("key", key), zap.Error(fmt.Errorf("load %s: %w", key, err)))
	}
	return false
}
