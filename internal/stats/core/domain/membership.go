package domain

import (
	"errors"
	"strings"

	series "dashboard-refresher/internal/series/core/domain"
)

var (
	ErrEmptyMemberships = errors.New("no memberships")
	ErrNotMonotonic     = errors.New("cumulative counts decrease")
	ErrInvalidMonth     = errors.New("invalid month")
)

// Membership says an identity belongs to a category. Identities are opaque
// dedup keys (emails in practice).
type Membership struct {
	Identity string          `json:"identity"`
	Category series.Category `json:"category"`
}

// FirstAppearance is the month (YYYY-MM) an identity first showed up in a category.
type FirstAppearance struct {
	Identity string          `json:"identity"`
	Category series.Category `json:"category"`
	Month    string          `json:"month"`
}

// IdentityKey folds an identity for dedup: trimmed and lowercased.
func IdentityKey(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Source tells where a statistic came from.
type Source string

const (
	SourceLive     Source = "live"
	SourceSnapshot Source = "snapshot"
	SourceStatic   Source = "static"
	SourceEmpty    Source = "empty"
)
