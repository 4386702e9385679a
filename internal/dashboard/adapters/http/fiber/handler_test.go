package fiber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"dashboard-refresher/internal/dashboard/core/domain"
	series "dashboard-refresher/internal/series/core/domain"
	stats "dashboard-refresher/internal/stats/core/domain"
	statsuc "dashboard-refresher/internal/stats/core/usecase"
)

type fakeDashboardService struct {
	RefreshFn    func(ctx context.Context) (*domain.Report, error)
	payload      *domain.Payload
	report       *domain.Report
	refreshCalls int
}

func (f *fakeDashboardService) Refresh(ctx context.Context) (*domain.Report, error) {
	f.refreshCalls++
	if f.RefreshFn != nil {
		return f.RefreshFn(ctx)
	}
	return &domain.Report{RunID: "r"}, nil
}

func (f *fakeDashboardService) Latest() (*domain.Payload, error) {
	if f.payload == nil {
		return nil, domain.ErrNoPayload
	}
	return f.payload, nil
}

func (f *fakeDashboardService) LastReport() (*domain.Report, bool) {
	return f.report, f.report != nil
}

type fakeAdHocStats struct {
	OverlapFn      func(ctx context.Context, in statsuc.AdHocOverlapInput) (statsuc.AdHocResult[*stats.OverlapResult], error)
	CumulativeFn   func(ctx context.Context, in statsuc.AdHocCumulativeInput) (statsuc.AdHocResult[*stats.CumulativeSeries], error)
	lastOverlap    statsuc.AdHocOverlapInput
	lastCumulative statsuc.AdHocCumulativeInput
}

func (f *fakeAdHocStats) Overlap(ctx context.Context, in statsuc.AdHocOverlapInput) (statsuc.AdHocResult[*stats.OverlapResult], error) {
	f.lastOverlap = in
	if f.OverlapFn != nil {
		return f.OverlapFn(ctx, in)
	}
	return statsuc.AdHocResult[*stats.OverlapResult]{Result: &stats.OverlapResult{}}, nil
}

func (f *fakeAdHocStats) Cumulative(ctx context.Context, in statsuc.AdHocCumulativeInput) (statsuc.AdHocResult[*stats.CumulativeSeries], error) {
	f.lastCumulative = in
	if f.CumulativeFn != nil {
		return f.CumulativeFn(ctx, in)
	}
	return statsuc.AdHocResult[*stats.CumulativeSeries]{}, nil
}

// helper: create fiber app and routes
func setupTestApp(svc DashboardService, st AdHocStats) *fiber.App {
	app := fiber.New()
	NewDashboardHandler(svc, st).Register(app)
	return app
}

// helper: send request
func doRequest(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		b, ok := body.([]byte)
		if !ok {
			var err error
			if b, err = json.Marshal(body); err != nil {
				t.Fatalf("failed to marshal body: %v", err)
			}
		}
		buf = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test error: %v", err)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	_ = resp.Body.Close()

	return resp, respBody
}

// ------------------------------------------------------------
// DASHBOARD
// ------------------------------------------------------------

func TestDashboardHandler_Health(t *testing.T) {
	app := setupTestApp(&fakeDashboardService{}, &fakeAdHocStats{})
	resp, body := doRequest(t, app, http.MethodGet, "/healthz", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"ok"`) {
		t.Fatalf("unexpected health response: %d %s", resp.StatusCode, body)
	}
}

func TestDashboardHandler_GetDashboard(t *testing.T) {
	svc := &fakeDashboardService{}
	app := setupTestApp(svc, &fakeAdHocStats{})

	resp, _ := doRequest(t, app, http.MethodGet, "/api/dashboard", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 before first refresh, got %d", resp.StatusCode)
	}

	svc.payload = domain.NewPayload("run-1", time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC))
	if err := svc.payload.Set(domain.SectionPlanMix, map[string]int{"x": 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, body := doRequest(t, app, http.MethodGet, "/api/dashboard", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.HasPrefix(string(body), `{"run_id":"run-1",`) || !strings.Contains(string(body), `"PLAN_MIX":{"x":1}`) {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestDashboardHandler_GetReport(t *testing.T) {
	svc := &fakeDashboardService{}
	app := setupTestApp(svc, &fakeAdHocStats{})

	resp, _ := doRequest(t, app, http.MethodGet, "/api/dashboard/report", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	svc.report = &domain.Report{RunID: "run-9", Duration: "3s"}
	resp, body := doRequest(t, app, http.MethodGet, "/api/dashboard/report", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), `"run_id":"run-9"`) {
		t.Fatalf("unexpected report response: %d %s", resp.StatusCode, body)
	}
}

// ------------------------------------------------------------
// REFRESH
// ------------------------------------------------------------

func TestDashboardHandler_TriggerRefresh(t *testing.T) {
	cases := []struct {
		name   string
		report *domain.Report
		err    error
		status int
		want   string
	}{
		{"refreshed", &domain.Report{RunID: "r1"}, nil, http.StatusOK, `"status":"refreshed"`},
		{"degraded", &domain.Report{RunID: "r2", Degradations: []series.Degradation{{Stage: "plan_mix"}}}, nil, http.StatusOK, `"status":"degraded"`},
		{"busy", nil, domain.ErrRefreshInProgress, http.StatusConflict, `"refresh_in_progress"`},
		{"fatal", &domain.Report{}, &series.FatalError{Stage: "revenue", Err: errors.New("boom")}, http.StatusBadGateway, `"refresh_failed"`},
		{"other", &domain.Report{}, errors.New("disk full"), http.StatusInternalServerError, `"internal_server_error"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeDashboardService{RefreshFn: func(context.Context) (*domain.Report, error) {
				return tc.report, tc.err
			}}
			resp, body := doRequest(t, setupTestApp(svc, &fakeAdHocStats{}), http.MethodPost, "/api/refresh", nil)
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d (%s)", tc.status, resp.StatusCode, body)
			}
			if !strings.Contains(string(body), tc.want) {
				t.Fatalf("expected %s in %s", tc.want, body)
			}
			if svc.refreshCalls != 1 {
				t.Fatalf("expected one refresh call, got %d", svc.refreshCalls)
			}
		})
	}
}

// ------------------------------------------------------------
// STATS
// ------------------------------------------------------------

func TestDashboardHandler_ComputeOverlap(t *testing.T) {
	st := &fakeAdHocStats{OverlapFn: func(ctx context.Context, in statsuc.AdHocOverlapInput) (statsuc.AdHocResult[*stats.OverlapResult], error) {
		return statsuc.AdHocResult[*stats.OverlapResult]{
			Result:   &stats.OverlapResult{TotalUnique: 1, Histogram: []stats.HistogramBin{{Size: 1, Count: 1}}},
			Accepted: 1,
			Ignored:  1,
		}, nil
	}}
	app := setupTestApp(&fakeDashboardService{}, st)

	resp, body := doRequest(t, app, http.MethodPost, "/api/stats/overlap", OverlapRequest{
		Memberships: []membershipItem{{Identity: "a@x.com", Category: "AFib"}, {Identity: "b@x.com", Category: "??"}},
		TopK:        5,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", resp.StatusCode, body)
	}
	if len(st.lastOverlap.Records) != 2 || st.lastOverlap.TopK != 5 || st.lastOverlap.Records[0].Identity != "a@x.com" {
		t.Fatalf("unexpected usecase input: %+v", st.lastOverlap)
	}
	if !strings.Contains(string(body), `"accepted":1,"ignored":1`) || !strings.Contains(string(body), `"total_unique":1`) {
		t.Fatalf("unexpected body: %s", body)
	}
}

func TestDashboardHandler_ComputeOverlap_InvalidJSON(t *testing.T) {
	st := &fakeAdHocStats{}
	resp, body := doRequest(t, setupTestApp(&fakeDashboardService{}, st), http.MethodPost, "/api/stats/overlap", []byte("{"))
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(body), "invalid_json") {
		t.Fatalf("unexpected response: %d %s", resp.StatusCode, body)
	}
}

func TestDashboardHandler_ComputeCumulative_Errors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{stats.ErrEmptyMemberships, http.StatusBadRequest},
		{stats.ErrInvalidMonth, http.StatusBadRequest},
		{statsuc.ErrInvalidMembership, http.StatusBadRequest},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		st := &fakeAdHocStats{CumulativeFn: func(context.Context, statsuc.AdHocCumulativeInput) (statsuc.AdHocResult[*stats.CumulativeSeries], error) {
			return statsuc.AdHocResult[*stats.CumulativeSeries]{}, tc.err
		}}
		resp, body := doRequest(t, setupTestApp(&fakeDashboardService{}, st), http.MethodPost, "/api/stats/cumulative", CumulativeRequest{
			FirstAppearances: []firstAppearanceItem{{Identity: "a", Category: "AFib", Month: "2025-09"}},
			Through:          "2025-10",
		})
		if resp.StatusCode != tc.status {
			t.Fatalf("%v: expected %d, got %d (%s)", tc.err, tc.status, resp.StatusCode, body)
		}
		if st.lastCumulative.Through != "2025-10" || st.lastCumulative.Records[0].Month != "2025-09" {
			t.Fatalf("unexpected usecase input: %+v", st.lastCumulative)
		}
	}
}
