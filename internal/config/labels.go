package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	series "dashboard-refresher/internal/series/core/domain"
	"dashboard-refresher/internal/series/core/labels"
	seriesuc "dashboard-refresher/internal/series/core/usecase"
	stats "dashboard-refresher/internal/stats/core/domain"
	statsuc "dashboard-refresher/internal/stats/core/usecase"
)

// Labels is the category configuration: canonical vocabularies, raw label
// aliases, trial windows and last-resort static data.
type Labels struct {
	Products       []string               `yaml:"products"`
	Countries      []string               `yaml:"countries"`
	ProductAliases map[string]string      `yaml:"product_aliases"`
	CountryAliases map[string]string      `yaml:"country_aliases"`
	TrialWindows   []seriesuc.TrialWindow `yaml:"trial_windows"`
	Static         StaticData             `yaml:"static"`
}

// StaticData is served when neither live data nor a stored snapshot exists.
type StaticData struct {
	Overlap    *stats.OverlapSnapshot     `yaml:"overlap"`
	Cumulative map[string]map[string]int  `yaml:"cumulative"` // month -> category or "_total" -> count
	Users      map[string]series.UserStat `yaml:"users"`
}

// LoadLabels reads a YAML labels file. Keys left out of the file keep their
// built-in defaults; an empty path returns the defaults.
func LoadLabels(path string) (*Labels, error) {
	l := DefaultLabels()
	if path == "" {
		return l, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("labels file: %w", err)
	}
	var file Labels
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("labels file %s: %w", path, err)
	}
	if len(file.Products) > 0 {
		// the built-in static data names the built-in products
		l.Products, l.ProductAliases = file.Products, file.ProductAliases
		l.Static = StaticData{}
	} else if file.ProductAliases != nil {
		l.ProductAliases = file.ProductAliases
	}
	if len(file.Countries) > 0 {
		l.Countries, l.CountryAliases = file.Countries, file.CountryAliases
	} else if file.CountryAliases != nil {
		l.CountryAliases = file.CountryAliases
	}
	if file.TrialWindows != nil {
		l.TrialWindows = file.TrialWindows
	}
	if file.Static.Overlap != nil {
		l.Static.Overlap = file.Static.Overlap
	}
	if file.Static.Cumulative != nil {
		l.Static.Cumulative = file.Static.Cumulative
	}
	if file.Static.Users != nil {
		l.Static.Users = file.Static.Users
	}
	return l, nil
}

func (l *Labels) Validate() error {
	var errs []error
	if len(l.Products) == 0 {
		errs = append(errs, errors.New("labels: no products"))
	}
	if len(l.Countries) == 0 {
		errs = append(errs, errors.New("labels: no countries"))
	}
	if slices.Contains(l.Countries, string(series.Other)) {
		errs = append(errs, fmt.Errorf("labels: %q is implicit and must not be listed", series.Other))
	}
	for _, w := range l.TrialWindows {
		if w.Days <= 0 {
			errs = append(errs, fmt.Errorf("labels: trial window for %q must be positive", w.RawProduct))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}
	_, err := l.Normalizer()
	return err
}

func (l *Labels) Normalizer() (*labels.Normalizer, error) {
	products, err := vocabulary(l.Products)
	if err != nil {
		return nil, fmt.Errorf("products: %w", err)
	}
	countries, err := vocabulary(l.Countries)
	if err != nil {
		return nil, fmt.Errorf("countries: %w", err)
	}
	return labels.New(products, l.ProductAliases, countries, l.CountryAliases)
}

func vocabulary(names []string) (series.Vocabulary, error) {
	cs := make([]series.Category, len(names))
	for i, n := range names {
		cs[i] = series.Category(n)
	}
	return series.NewVocabulary(cs...)
}

// StaticFallback builds the stats fallbacks for vocab.
func (l *Labels) StaticFallback(vocab series.Vocabulary) (statsuc.StaticFallback, error) {
	var out statsuc.StaticFallback
	if l.Static.Overlap != nil {
		r, err := l.Static.Overlap.Result(vocab)
		if err != nil {
			return out, fmt.Errorf("static overlap: %w", err)
		}
		out.Overlap = r
	}
	if len(l.Static.Cumulative) > 0 {
		s := stats.NewCumulativeSeries(vocab)
		months := make([]string, 0, len(l.Static.Cumulative))
		for m := range l.Static.Cumulative {
			months = append(months, m)
		}
		slices.Sort(months)
		for _, m := range months {
			counts := map[series.Category]int{}
			for k, n := range l.Static.Cumulative[m] {
				if k != series.TotalKey {
					counts[series.Category(k)] = n
				}
			}
			if err := s.Set(m, counts, l.Static.Cumulative[m][series.TotalKey]); err != nil {
				return out, fmt.Errorf("static cumulative %s: %w", m, err)
			}
		}
		out.Cumulative = s
	}
	return out, nil
}

// StaticUsers returns the configured user data, nil when there is none.
func (l *Labels) StaticUsers(vocab series.Vocabulary) *series.UserBreakdown {
	if len(l.Static.Users) == 0 {
		return nil
	}
	b := series.NewUserBreakdown(vocab)
	var users int64
	for _, c := range vocab.Categories() {
		st := l.Static.Users[string(c)]
		b.ByProduct[c] = st
		users += st.Users
	}
	total := l.Static.Users[series.TotalKey]
	if total.Users == 0 {
		total.Users = users
	}
	b.Total = &series.UserTotals{Users: total.Users, Male: total.Male, Female: total.Female}
	return b
}
