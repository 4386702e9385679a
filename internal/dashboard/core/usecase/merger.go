package usecase

import (
	"maps"
	"slices"
	"strings"
	"time"

	"dashboard-refresher/internal/dashboard/core/domain"
)

const LastUpdatedLayout = "Jan 02, 2006 at 03:04 PM"

// Passthrough values are substituted verbatim into %%NAME%% tokens.
type Passthrough map[string]string

// Merger substitutes payload sections and passthrough values into a template.
// Replacement is literal; placeholders missing from the template are ignored.
type Merger struct {
	Passthrough Passthrough
	Location    *time.Location
}

func (m Merger) Merge(template string, p *domain.Payload) string {
	loc := m.Location
	if loc == nil {
		loc = time.Local
	}

	pairs := make([]string, 0, 2*(len(domain.Sections)+1+len(m.Passthrough)))
	for _, s := range domain.Sections {
		pairs = append(pairs, s.Placeholder(), string(p.Section(s)))
	}
	pairs = append(pairs, domain.LastUpdatedPlaceholder, p.GeneratedAt.In(loc).Format(LastUpdatedLayout))
	for _, name := range slices.Sorted(maps.Keys(m.Passthrough)) {
		pairs = append(pairs, "%%"+name+"%%", m.Passthrough[name])
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
