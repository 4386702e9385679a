package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/series/core/labels"
)

// TrialWindow is how far back a trial start still counts as an active trial
// for one raw product code.
type TrialWindow struct {
	RawProduct string `yaml:"product"`
	Days       int    `yaml:"days"`
}

type ActiveUsersInput struct {
	Start time.Time
	Today time.Time
}

// ActiveUsersResult is the global view (every country shard summed, Other
// included) and the per-country view (Other excluded).
type ActiveUsersResult struct {
	Global       *domain.UserBreakdown
	ByCountry    map[domain.Category]*domain.UserBreakdown
	Degradations []domain.Degradation
}

type ActiveUsersUseCase struct {
	fetcher      *Fetcher
	labels       *labels.Normalizer
	sources      Sources
	trialWindows []TrialWindow
}

func NewActiveUsersUseCase(f *Fetcher, n *labels.Normalizer, sources Sources, windows []TrialWindow) *ActiveUsersUseCase {
	return &ActiveUsersUseCase{fetcher: f, labels: n, sources: sources, trialWindows: windows}
}

// userShard holds raw counts for one country.
type userShard struct {
	paid    map[domain.Category]int64
	onTrial map[domain.Category]int64
	gender  map[domain.Category]*domain.GenderCounts
	active  bool // seen in paid or trial data
}

func newUserShard() *userShard {
	return &userShard{
		paid:    map[domain.Category]int64{},
		onTrial: map[domain.Category]int64{},
		gender:  map[domain.Category]*domain.GenderCounts{},
	}
}

type userShards map[domain.Category]*userShard

func (s userShards) get(c domain.Category) *userShard {
	if s[c] == nil {
		s[c] = newUserShard()
	}
	return s[c]
}

// Execute gathers active paid users, active trials and the gender split. Each
// part that fails is replaced by zeros and reported as a degradation; only
// when every part fails is an error returned.
func (uc *ActiveUsersUseCase) Execute(ctx context.Context, in ActiveUsersInput) (*ActiveUsersResult, error) {
	shards := userShards{}
	res := &ActiveUsersResult{}
	parts := []struct {
		name string
		run  func(context.Context, userShards, ActiveUsersInput) error
	}{
		{"active_paid", uc.collectPaid},
		{"active_trials", uc.collectTrials},
		{"gender_split", uc.collectGender},
	}

	var errs []string
	for _, p := range parts {
		if err := p.run(ctx, shards, in); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			uc.fetcher.Logger().Warn("active users part failed", zap.String("part", p.name), zap.Error(err))
			res.Degradations = append(res.Degradations, domain.Degradation{
				Stage:    "users/" + p.name,
				Reason:   err.Error(),
				Fallback: "zeros",
			})
			errs = append(errs, p.name+": "+err.Error())
		}
	}
	if len(errs) == len(parts) {
		return nil, fmt.Errorf("active users: %s", strings.Join(errs, "; "))
	}

	products := uc.labels.Products()
	global := newUserShard()
	res.ByCountry = map[domain.Category]*domain.UserBreakdown{}
	for country, s := range shards {
		for _, p := range products.Categories() {
			global.paid[p] += s.paid[p]
			global.onTrial[p] += s.onTrial[p]
			if g := s.gender[p]; g != nil {
				if global.gender[p] == nil {
					global.gender[p] = &domain.GenderCounts{}
				}
				global.gender[p].Add(*g)
			}
		}
		if country == domain.Other || !s.active {
			continue
		}
		res.ByCountry[country] = breakdown(products, s, false)
	}
	res.Global = breakdown(products, global, true)

	uc.fetcher.Logger().Info("active users built",
		zap.Int64("users", res.Global.Total.Users),
		zap.Int("countries", len(res.ByCountry)),
	)
	return res, nil
}

func breakdown(products domain.Vocabulary, s *userShard, withTotal bool) *domain.UserBreakdown {
	out := domain.NewUserBreakdown(products)
	var all domain.GenderCounts
	var users int64
	for _, p := range products.Categories() {
		var g domain.GenderCounts
		if s.gender[p] != nil {
			g = *s.gender[p]
		}
		all.Add(g)
		male, female := g.Percentages()
		stat := domain.UserStat{
			Paid:    s.paid[p],
			OnTrial: s.onTrial[p],
			Users:   s.paid[p] + s.onTrial[p],
			Male:    male,
			Female:  female,
		}
		users += stat.Users
		out.ByProduct[p] = stat
	}
	if withTotal {
		male, female := all.Percentages()
		out.Total = &domain.UserTotals{Users: users, Male: male, Female: female}
	}
	return out
}

// Rows: [country, product, active_paid]
func (uc *ActiveUsersUseCase) collectPaid(ctx context.Context, shards userShards, _ ActiveUsersInput) error {
	rows, err := uc.fetcher.Run(ctx, activePaidByCountryQuery(uc.sources.PurchaseTable))
	if err != nil {
		return err
	}
	products, countries := labels.NewTally(labels.Product), labels.NewTally(labels.Country)
	for _, r := range rows {
		p, ok := products.Product(uc.labels, r.String(1))
		if !ok {
			continue
		}
		s := shards.get(countries.Country(uc.labels, r.String(0)))
		s.paid[p] += r.Int(2)
		s.active = true
	}
	reportTally(uc.fetcher, "active_paid", products)
	reportTally(uc.fetcher, "active_paid", countries)
	return nil
}

// One query per product: rows are [product, country, trials, converted].
func (uc *ActiveUsersUseCase) collectTrials(ctx context.Context, shards userShards, _ ActiveUsersInput) error {
	products, countries := labels.NewTally(labels.Product), labels.NewTally(labels.Country)
	for _, w := range uc.trialWindows {
		p, ok := uc.labels.Product(w.RawProduct)
		if !ok {
			return fmt.Errorf("trial window for unknown product %q", w.RawProduct)
		}
		rows, err := uc.fetcher.Run(ctx, activeTrialsQuery(uc.sources.TrialSource, w.RawProduct, w.Days))
		if err != nil {
			return fmt.Errorf("%s: %w", w.RawProduct, err)
		}
		for _, r := range rows {
			if _, ok := products.Product(uc.labels, r.String(0)); !ok {
				continue
			}
			s := shards.get(countries.Country(uc.labels, r.String(1)))
			s.onTrial[p] += max(0, r.Int(2)-r.Int(3))
			s.active = true
		}
	}
	reportTally(uc.fetcher, "active_trials", products)
	reportTally(uc.fetcher, "active_trials", countries)
	return nil
}

// Rows: [product, country, gender, trial users]
func (uc *ActiveUsersUseCase) collectGender(ctx context.Context, shards userShards, in ActiveUsersInput) error {
	rows, err := uc.fetcher.Run(ctx, genderQuery(uc.sources.TrialSource, in.Start, in.Today))
	if err != nil {
		return err
	}
	products := labels.NewTally(labels.Product)
	for _, r := range rows {
		p, ok := products.Product(uc.labels, r.String(0))
		if !ok {
			continue
		}
		s := shards.get(uc.labels.Country(r.String(1)))
		if s.gender[p] == nil {
			s.gender[p] = &domain.GenderCounts{}
		}
		n := r.Int(3)
		switch strings.ToLower(strings.TrimSpace(r.String(2))) {
		case "male":
			s.gender[p].Male += n
		case "female":
			s.gender[p].Female += n
		default:
			s.gender[p].Other += n
		}
	}
	reportTally(uc.fetcher, "gender_split", products)
	return nil
}
