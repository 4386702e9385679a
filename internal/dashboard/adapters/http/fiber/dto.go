package fiber

import (
	series "dashboard-refresher/internal/series/core/domain"
)

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

// RefreshResponse represents the outcome of a triggered refresh
// @Description Refresh outcome DTO
type RefreshResponse struct {
	Status       string               `json:"status" example:"refreshed"`
	RunID        string               `json:"run_id" example:"5f0c8a2e-1f7c-4b8e-9a57-3c1d2e4f6a7b"`
	Duration     string               `json:"duration" example:"42.1s"`
	Degradations []series.Degradation `json:"degradations"`
}

type membershipItem struct {
	Identity string `json:"identity" example:"user@example.com"`
	Category string `json:"category" example:"AFib"`
}

// OverlapRequest represents an ad-hoc overlap computation
// @Description Ad-hoc overlap DTO
type OverlapRequest struct {
	Memberships []membershipItem `json:"memberships"`
	TopK        int              `json:"top_k" example:"10"`
}

type firstAppearanceItem struct {
	Identity string `json:"identity" example:"user@example.com"`
	Category string `json:"category" example:"AFib"`
	Month    string `json:"month" example:"2025-09"`
}

// CumulativeRequest represents an ad-hoc cumulative count
// @Description Ad-hoc cumulative users DTO
type CumulativeRequest struct {
	FirstAppearances []firstAppearanceItem `json:"first_appearances"`
	Through          string                `json:"through" example:"2025-12"`
}

type StatsResponse struct {
	Accepted int `json:"accepted" example:"120"`
	Ignored  int `json:"ignored" example:"3"`
	Result   any `json:"result"`
}

type ErrorResponse struct {
	Error   string `json:"error" example:"invalid_request"`
	Message string `json:"message,omitempty" example:"record 3 has no identity"`
}
