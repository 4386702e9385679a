package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	series "dashboard-refresher/internal/series/core/domain"
)

var (
	ErrNoPayload         = errors.New("no dashboard payload yet")
	ErrRefreshInProgress = errors.New("a refresh is already running")
	ErrNoTemplate        = errors.New("template not found")
)

// Section is one data block of the dashboard. Its template placeholder is
// /*__<Section>__*/{}.
type Section string

const (
	SectionRevenue         Section = "REVENUE_DATA"
	SectionPurchase        Section = "PURCHASE_DATA"
	SectionTrial           Section = "TRIAL_DATA"
	SectionUser            Section = "USER_DATA"
	SectionCountryRevenue  Section = "COUNTRY_REVENUE_DATA"
	SectionUserOverlap     Section = "USER_OVERLAP"
	SectionCumulativeUsers Section = "CUMULATIVE_USERS"
	SectionPlanMix         Section = "PLAN_MIX"
	SectionCountryUser     Section = "COUNTRY_USER_DATA"
)

// Sections in template order.
var Sections = []Section{
	SectionRevenue,
	SectionPurchase,
	SectionTrial,
	SectionUser,
	SectionCountryRevenue,
	SectionUserOverlap,
	SectionCumulativeUsers,
	SectionPlanMix,
	SectionCountryUser,
}

func (s Section) Placeholder() string { return "/*__" + string(s) + "__*/{}" }

const LastUpdatedPlaceholder = "/*__LAST_UPDATED__*/"

// Payload is the rendered output of one refresh: compact JSON per section.
type Payload struct {
	RunID       string
	GeneratedAt time.Time
	Data        map[Section]json.RawMessage
}

func NewPayload(runID string, at time.Time) *Payload {
	return &Payload{RunID: runID, GeneratedAt: at, Data: make(map[Section]json.RawMessage, len(Sections))}
}

// Set stores v rendered as compact JSON.
func (p *Payload) Set(s Section, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return err
	}
	p.Data[s] = buf.Bytes()
	return nil
}

// Section returns the stored JSON, "{}" when the section was never set.
func (p *Payload) Section(s Section) json.RawMessage {
	if raw, ok := p.Data[s]; ok {
		return raw
	}
	return json.RawMessage("{}")
}

func (p *Payload) MarshalJSON() ([]byte, error) {
	keys := make([]string, 0, len(Sections))
	data := make(map[string]any, len(Sections))
	for _, s := range Sections {
		keys = append(keys, string(s))
		data[string(s)] = p.Section(s)
	}
	return series.OrderedObject{
		Keys: []string{"run_id", "generated_at", "data"},
		Values: map[string]any{
			"run_id":       p.RunID,
			"generated_at": p.GeneratedAt.UTC().Format(time.RFC3339),
			"data":         series.OrderedObject{Keys: keys, Values: data},
		},
	}.MarshalJSON()
}

// StageSource tells where a stage's data came from.
type StageSource struct {
	Stage  string `json:"stage"`
	Source string `json:"source"`
}

// Report summarizes one refresh run.
type Report struct {
	RunID        string               `json:"run_id"`
	StartedAt    time.Time            `json:"started_at"`
	FinishedAt   time.Time            `json:"finished_at"`
	Duration     string               `json:"duration"`
	Sources      []StageSource        `json:"sources"`
	Degradations []series.Degradation `json:"degradations"`
	Error        string               `json:"error,omitempty"`
}

func (r *Report) Degraded() bool { return len(r.Degradations) > 0 }

func (r *Report) Failed() bool { return r.Error != "" }

func (r *Report) Finish(at time.Time, err error) {
	r.FinishedAt = at
	r.Duration = at.Sub(r.StartedAt).Round(time.Millisecond).String()
	if err != nil {
		r.Error = err.Error()
	}
}
