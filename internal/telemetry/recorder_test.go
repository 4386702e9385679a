package telemetry_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dashboard "dashboard-refresher/internal/dashboard/core/domain"
	series "dashboard-refresher/internal/series/core/domain"
	stats "dashboard-refresher/internal/stats/core/domain"
	"dashboard-refresher/internal/telemetry"
)

func TestRecorder_Observers(t *testing.T) {
	r := telemetry.NewRecorder(false)

	r.FetchRetried("trials")
	r.FetchRetried("trials")
	r.RowsMalformed("country_revenue", 3)
	r.LabelsDropped("product", 5)
	r.LabelsOther("country", 2)
	r.StatFallback("overlap", stats.SourceSnapshot)

	expected := `
# HELP dashboard_refresher_fetch_retries_total Transient query failures that were retried, by query.
# TYPE dashboard_refresher_fetch_retries_total counter
dashboard_refresher_fetch_retries_total{query="trials"} 2
# HELP dashboard_refresher_labels_dropped_total Rows dropped because their label matched no category.
# TYPE dashboard_refresher_labels_dropped_total counter
dashboard_refresher_labels_dropped_total{kind="product"} 5
# HELP dashboard_refresher_stat_fallbacks_total Statistics served from a fallback instead of live data.
# TYPE dashboard_refresher_stat_fallbacks_total counter
dashboard_refresher_stat_fallbacks_total{source="snapshot",stat="overlap"} 1
`
	err := testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected),
		"dashboard_refresher_fetch_retries_total",
		"dashboard_refresher_labels_dropped_total",
		"dashboard_refresher_stat_fallbacks_total",
	)
	assert.NoError(t, err)
}

func TestRecorder_RefreshFinished(t *testing.T) {
	r := telemetry.NewRecorder(false)

	r.RefreshFinished(40*time.Second, 0, nil)
	r.RefreshFinished(50*time.Second, 2, nil)
	r.RefreshFinished(10*time.Second, 0, errors.New("boom"))

	n, err := testutil.GatherAndCount(r.Registry(), "dashboard_refresher_refreshes_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n, "one series per outcome")

	expected := `
# HELP dashboard_refresher_refresh_degradations Degradations recorded by the last refresh.
# TYPE dashboard_refresher_refresh_degradations gauge
dashboard_refresher_refresh_degradations 0
`
	assert.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "dashboard_refresher_refresh_degradations"))
}

func TestRecorder_Handler(t *testing.T) {
	r := telemetry.NewRecorder(true)
	r.FetchRetried("plan_mix")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `dashboard_refresher_fetch_retries_total{query="plan_mix"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRecorder_Push(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		method, path = req.Method, req.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	r := telemetry.NewRecorder(false)
	r.RefreshFinished(time.Second, 0, nil)

	require.NoError(t, r.Push(context.Background(), srv.URL, "dashboard_refresh"))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/metrics/job/dashboard_refresh", path)
}

func TestRecorder_PushWithoutGateway(t *testing.T) {
	r := telemetry.NewRecorder(false)
	assert.ErrorIs(t, r.Push(context.Background(), "", "job"), telemetry.ErrNoPushgateway)
}

func TestReportCollector(t *testing.T) {
	var report *dashboard.Report
	c := telemetry.NewReportCollector(func() (*dashboard.Report, bool) { return report, report != nil })

	assert.Equal(t, 0, testutil.CollectAndCount(c))

	report = &dashboard.Report{
		Sources: []dashboard.StageSource{
			{Stage: "user_overlap", Source: "snapshot"},
			{Stage: "cumulative_users", Source: "live"},
		},
		Degradations: []series.Degradation{
			{Stage: "user_overlap", Reason: "timeout", Fallback: "snapshot"},
			{Stage: "user_overlap", Reason: "timeout again", Fallback: "snapshot"},
		},
	}
	assert.Equal(t, 3, testutil.CollectAndCount(c))

	r := telemetry.NewRecorder(false)
	require.NoError(t, r.Register(c))
	expected := `
# HELP dashboard_refresher_stage_degraded Stages of the last refresh that fell back.
# TYPE dashboard_refresher_stage_degraded gauge
dashboard_refresher_stage_degraded{fallback="snapshot",stage="user_overlap"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "dashboard_refresher_stage_degraded"))
}
