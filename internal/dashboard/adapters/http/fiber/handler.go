package fiber

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"dashboard-refresher/internal/dashboard/core/domain"
	series "dashboard-refresher/internal/series/core/domain"
	stats "dashboard-refresher/internal/stats/core/domain"
	statsuc "dashboard-refresher/internal/stats/core/usecase"
)

type DashboardService interface {
	Refresh(ctx context.Context) (*domain.Report, error)
	Latest() (*domain.Payload, error)
	LastReport() (*domain.Report, bool)
}

type AdHocStats interface {
	Overlap(ctx context.Context, in statsuc.AdHocOverlapInput) (statsuc.AdHocResult[*stats.OverlapResult], error)
	Cumulative(ctx context.Context, in statsuc.AdHocCumulativeInput) (statsuc.AdHocResult[*stats.CumulativeSeries], error)
}

type DashboardHandler struct {
	svc   DashboardService
	stats AdHocStats
}

func NewDashboardHandler(svc DashboardService, stats AdHocStats) *DashboardHandler {
	return &DashboardHandler{svc: svc, stats: stats}
}

// Register mounts every route on r.
func (h *DashboardHandler) Register(r fiber.Router) {
	r.Get("/healthz", h.Health)
	api := r.Group("/api")
	api.Get("/dashboard", h.GetDashboard)
	api.Get("/dashboard/report", h.GetReport)
	api.Post("/refresh", h.TriggerRefresh)
	api.Post("/stats/overlap", h.ComputeOverlap)
	api.Post("/stats/cumulative", h.ComputeCumulative)
}

// Health godoc
// @Summary Liveness probe
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (h *DashboardHandler) Health(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{Status: "ok"})
}

// GetDashboard godoc
// @Summary Latest dashboard payload
// @Description Returns every data section of the last successful refresh
// @Tags Dashboard
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 404 {object} ErrorResponse
// @Router /api/dashboard [get]
func (h *DashboardHandler) GetDashboard(c *fiber.Ctx) error {
	p, err := h.svc.Latest()
	if errors.Is(err, domain.ErrNoPayload) {
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{Error: "not_refreshed_yet"})
	}
	if err != nil {
		return internalError(c)
	}
	body, err := p.MarshalJSON()
	if err != nil {
		return internalError(c)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return c.Status(http.StatusOK).Send(body)
}

// GetReport godoc
// @Summary Last refresh report
// @Tags Dashboard
// @Produce json
// @Success 200 {object} domain.Report
// @Failure 404 {object} ErrorResponse
// @Router /api/dashboard/report [get]
func (h *DashboardHandler) GetReport(c *fiber.Ctx) error {
	r, ok := h.svc.LastReport()
	if !ok {
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{Error: "not_refreshed_yet"})
	}
	return c.JSON(r)
}

// TriggerRefresh godoc
// @Summary Run a refresh now
// @Description Runs a full refresh synchronously and publishes the dashboard
// @Tags Dashboard
// @Produce json
// @Success 200 {object} RefreshResponse
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse "Upstream data unavailable"
// @Failure 500 {object} ErrorResponse
// @Router /api/refresh [post]
func (h *DashboardHandler) TriggerRefresh(c *fiber.Ctx) error {
	report, err := h.svc.Refresh(c.UserContext())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrRefreshInProgress):
			return c.Status(http.StatusConflict).JSON(ErrorResponse{Error: "refresh_in_progress"})
		case series.IsFatal(err):
			return c.Status(http.StatusBadGateway).JSON(ErrorResponse{Error: "refresh_failed", Message: err.Error()})
		default:
			return internalError(c)
		}
	}

	status := "refreshed"
	if report.Degraded() {
		status = "degraded"
	}
	return c.Status(http.StatusOK).JSON(RefreshResponse{
		Status:       status,
		RunID:        report.RunID,
		Duration:     report.Duration,
		Degradations: report.Degradations,
	})
}

// ComputeOverlap godoc
// @Summary Ad-hoc user overlap
// @Description Computes dedup overlap statistics from posted memberships
// @Tags Stats
// @Accept json
// @Produce json
// @Param request body OverlapRequest true "Memberships"
// @Success 200 {object} StatsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/stats/overlap [post]
func (h *DashboardHandler) ComputeOverlap(c *fiber.Ctx) error {
	var req OverlapRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "invalid_json"})
	}

	in := statsuc.AdHocOverlapInput{TopK: req.TopK, Records: make([]statsuc.MembershipRecord, len(req.Memberships))}
	for i, m := range req.Memberships {
		in.Records[i] = statsuc.MembershipRecord{Identity: m.Identity, Category: m.Category}
	}

	res, err := h.stats.Overlap(c.UserContext(), in)
	if err != nil {
		return statsError(c, err)
	}
	return c.JSON(StatsResponse{Accepted: res.Accepted, Ignored: res.Ignored, Result: res.Result})
}

// ComputeCumulative godoc
// @Summary Ad-hoc cumulative users
// @Description Computes running distinct-user counts from posted first appearances
// @Tags Stats
// @Accept json
// @Produce json
// @Param request body CumulativeRequest true "First appearances"
// @Success 200 {object} StatsResponse
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /api/stats/cumulative [post]
func (h *DashboardHandler) ComputeCumulative(c *fiber.Ctx) error {
	var req CumulativeRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Error: "invalid_json"})
	}

	in := statsuc.AdHocCumulativeInput{Through: req.Through, Records: make([]statsuc.MembershipRecord, len(req.FirstAppearances))}
	for i, f := range req.FirstAppearances {
		in.Records[i] = statsuc.MembershipRecord{Identity: f.Identity, Category: f.Category, Month: f.Month}
	}

	res, err := h.stats.Cumulative(c.UserContext(), in)
	if err != nil {
		return statsError(c, err)
	}
	return c.JSON(StatsResponse{Accepted: res.Accepted, Ignored: res.Ignored, Result: res.Result})
}

func statsError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, stats.ErrEmptyMemberships),
		errors.Is(err, stats.ErrInvalidMonth),
		errors.Is(err, statsuc.ErrInvalidMembership),
		errors.Is(err, statsuc.ErrTooManyRecords):
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: err.Error(),
		})
	default:
		return internalError(c)
	}
}

func internalError(c *fiber.Ctx) error {
	return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{
		Error: "internal_server_error",
	})
}
