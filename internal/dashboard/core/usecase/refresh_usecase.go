package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dashboard-refresher/internal/dashboard/core/domain"
	series "dashboard-refresher/internal/series/core/domain"
	seriesuc "dashboard-refresher/internal/series/core/usecase"
	statsuc "dashboard-refresher/internal/stats/core/usecase"
)

// Stage contracts, satisfied by the series and stats usecases.
type (
	RevenueStage interface {
		Execute(ctx context.Context, in seriesuc.RevenueInput) (*seriesuc.RevenueResult, error)
	}
	TrialsStage interface {
		Execute(ctx context.Context, in seriesuc.TrialsInput) (*seriesuc.TrialsResult, error)
	}
	PlanMixStage interface {
		Execute(ctx context.Context, in seriesuc.PlanMixInput) (*series.PlanMix, error)
	}
	ActiveUsersStage interface {
		Execute(ctx context.Context, in seriesuc.ActiveUsersInput) (*seriesuc.ActiveUsersResult, error)
	}
	StatsStage interface {
		Overlap(ctx context.Context) statsuc.OverlapOutcome
		Cumulative(ctx context.Context, start, today time.Time) statsuc.CumulativeOutcome
	}
)

type RefreshDeps struct {
	Revenue   RevenueStage
	Trials    TrialsStage
	PlanMix   PlanMixStage
	Users     ActiveUsersStage
	Stats     StatsStage
	Products  series.Vocabulary
	Countries series.Vocabulary // includes Other
	// StaticUsers replaces USER_DATA when every active-user query fails.
	StaticUsers *series.UserBreakdown
	Start       time.Time
	Logger      *zap.Logger
	Now         func() time.Time
	NewRunID    func() string
}

type RefreshUseCase struct {
	deps RefreshDeps
}

func NewRefreshUseCase(deps RefreshDeps) *RefreshUseCase {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewRunID == nil {
		deps.NewRunID = uuid.NewString
	}
	return &RefreshUseCase{deps: deps}
}

// Execute runs every stage in order. Revenue and trials are required: when
// either fails the run aborts with a *series.FatalError. The remaining stages
// degrade to fallbacks and the run continues. The report is returned in
// both cases.
func (uc *RefreshUseCase) Execute(ctx context.Context) (*domain.Payload, *domain.Report, error) {
	started := uc.deps.Now()
	report := &domain.Report{RunID: uc.deps.NewRunID(), StartedAt: started, Degradations: []series.Degradation{}}
	logger := uc.deps.Logger.With(zap.String("run_id", report.RunID))

	payload, err := uc.run(ctx, logger, report, series.Day(started))
	report.Finish(uc.deps.Now(), err)
	if err != nil {
		logger.Error("refresh aborted", zap.Error(err), zap.String("duration", report.Duration))
		return nil, report, err
	}
	logger.Info("refresh finished",
		zap.String("duration", report.Duration),
		zap.Int("degradations", len(report.Degradations)),
	)
	return payload, report, nil
}

func (uc *RefreshUseCase) run(ctx context.Context, logger *zap.Logger, report *domain.Report, today time.Time) (*domain.Payload, error) {
	start := uc.deps.Start
	p := domain.NewPayload(report.RunID, report.StartedAt)
	live := func(stage string) {
		report.Sources = append(report.Sources, domain.StageSource{Stage: stage, Source: "live"})
	}
	degrade := func(d series.Degradation) {
		logger.Warn("stage degraded", zap.String("stage", d.Stage), zap.String("reason", d.Reason), zap.String("fallback", d.Fallback))
		report.Degradations = append(report.Degradations, d)
	}

	// Revenue, country revenue, purchases
	logger.Info("stage started", zap.String("stage", "revenue"))
	rev, err := uc.deps.Revenue.Execute(ctx, seriesuc.RevenueInput{Start: start, Today: today})
	if err != nil {
		return nil, &series.FatalError{Stage: "revenue", Err: err}
	}
	if err := uc.setAll(p, map[domain.Section]any{
		domain.SectionRevenue:        rev.Global,
		domain.SectionPurchase:       rev.Purchases,
		domain.SectionCountryRevenue: uc.byCountry(toMarshalers(rev.ByCountry)),
	}); err != nil {
		return nil, &series.FatalError{Stage: "revenue", Err: err}
	}
	live("revenue")

	// Trials
	logger.Info("stage started", zap.String("stage", "trials"))
	trials, err := uc.deps.Trials.Execute(ctx, seriesuc.TrialsInput{Start: start, Today: today})
	if err != nil {
		return nil, &series.FatalError{Stage: "trials", Err: err}
	}
	if err := p.Set(domain.SectionTrial, trials.Series.ByCategory()); err != nil {
		return nil, &series.FatalError{Stage: "trials", Err: err}
	}
	live("trials")

	// Active users
	logger.Info("stage started", zap.String("stage", "users"))
	users, err := uc.deps.Users.Execute(ctx, seriesuc.ActiveUsersInput{Start: start, Today: today})
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		fallback, src := uc.deps.StaticUsers, "static"
		if fallback == nil {
			fallback, src = series.NewUserBreakdown(uc.deps.Products), "empty"
		}
		degrade(series.Degradation{Stage: "users", Reason: err.Error(), Fallback: src})
		report.Sources = append(report.Sources, domain.StageSource{Stage: "users", Source: src})
		if err := uc.setAll(p, map[domain.Section]any{
			domain.SectionUser:        fallback,
			domain.SectionCountryUser: struct{}{},
		}); err != nil {
			return nil, err
		}
	default:
		for _, d := range users.Degradations {
			degrade(d)
		}
		byCountry := make(map[series.Category]json.Marshaler, len(users.ByCountry))
		for c, b := range users.ByCountry {
			byCountry[c] = b
		}
		if err := uc.setAll(p, map[domain.Section]any{
			domain.SectionUser:        users.Global,
			domain.SectionCountryUser: uc.byCountry(byCountry),
		}); err != nil {
			return nil, err
		}
		live("users")
	}

	// Overlap and cumulative users
	logger.Info("stage started", zap.String("stage", "stats"))
	overlap := uc.deps.Stats.Overlap(ctx)
	if overlap.Degradation != nil {
		degrade(*overlap.Degradation)
	}
	cumulative := uc.deps.Stats.Cumulative(ctx, start, today)
	if cumulative.Degradation != nil {
		degrade(*cumulative.Degradation)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	report.Sources = append(report.Sources,
		domain.StageSource{Stage: "user_overlap", Source: string(overlap.Source)},
		domain.StageSource{Stage: "cumulative_users", Source: string(cumulative.Source)},
	)
	if err := uc.setAll(p, map[domain.Section]any{
		domain.SectionUserOverlap:     overlap.Result,
		domain.SectionCumulativeUsers: cumulative.Result,
	}); err != nil {
		return nil, err
	}

	// Plan mix
	logger.Info("stage started", zap.String("stage", "plan_mix"))
	mix, err := uc.deps.PlanMix.Execute(ctx, seriesuc.PlanMixInput{Start: start, Today: today})
	switch {
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case err != nil:
		degrade(series.Degradation{Stage: "plan_mix", Reason: err.Error(), Fallback: "empty"})
		report.Sources = append(report.Sources, domain.StageSource{Stage: "plan_mix", Source: "empty"})
		mix = series.NewPlanMix(uc.deps.Products)
	default:
		live("plan_mix")
	}
	if err := p.Set(domain.SectionPlanMix, mix); err != nil {
		return nil, err
	}

	return p, nil
}

func (uc *RefreshUseCase) setAll(p *domain.Payload, values map[domain.Section]any) error {
	for s, v := range values {
		if err := p.Set(s, v); err != nil {
			return err
		}
	}
	return nil
}

func toMarshalers(m map[series.Category]*series.Series) map[series.Category]json.Marshaler {
	out := make(map[series.Category]json.Marshaler, len(m))
	for c, s := range m {
		out[c] = s
	}
	return out
}

// byCountry renders per-country values in country vocabulary order.
func (uc *RefreshUseCase) byCountry(m map[series.Category]json.Marshaler) series.OrderedObject {
	obj := series.OrderedObject{Values: make(map[string]any, len(m))}
	for _, c := range uc.deps.Countries.Categories() {
		if v, ok := m[c]; ok {
			obj.Keys = append(obj.Keys, string(c))
			obj.Values[string(c)] = v
		}
	}
	return obj
}
