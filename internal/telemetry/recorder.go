// Package telemetry exposes refresh metrics to Prometheus, either scraped
// from the serve mode or pushed to a Pushgateway after a one-shot run.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	dashboard "dashboard-refresher/internal/dashboard/core/domain"
	series "dashboard-refresher/internal/series/core/domain"
	stats "dashboard-refresher/internal/stats/core/domain"
)

const namespace = "dashboard_refresher"

// Recorder implements the fetch, fallback and refresh observers on top of
// its own registry.
type Recorder struct {
	registry *prometheus.Registry

	retries      *prometheus.CounterVec
	malformed    *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	other        *prometheus.CounterVec
	fallbacks    *prometheus.CounterVec
	refreshes    *prometheus.CounterVec
	duration     prometheus.Histogram
	degradations prometheus.Gauge
	lastSuccess  prometheus.Gauge
}

// NewRecorder registers every metric on a fresh registry. withRuntime adds
// the Go and process collectors, which only make sense for a long-lived
// process.
func NewRecorder(withRuntime bool) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "fetch_retries_total",
			Help: "Transient query failures that were retried, by query.",
		}, []string{"query"}),
		malformed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "rows_malformed_total",
			Help: "Rows skipped because a required field could not be parsed.",
		}, []string{"query"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "labels_dropped_total",
			Help: "Rows dropped because their label matched no category.",
		}, []string{"kind"}),
		other: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "labels_other_total",
			Help: "Rows whose label was bucketed into Other.",
		}, []string{"kind"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "stat_fallbacks_total",
			Help: "Statistics served from a fallback instead of live data.",
		}, []string{"stat", "source"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "refreshes_total",
			Help: "Finished refreshes by outcome (ok, degraded, failed).",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "refresh_duration_seconds",
			Help:    "Wall time of a refresh.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		}),
		degradations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "refresh_degradations",
			Help: "Degradations recorded by the last refresh.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_success_timestamp_seconds",
			Help: "Unix time of the last refresh that published a payload.",
		}),
	}
	r.registry.MustRegister(r.retries, r.malformed, r.dropped, r.other, r.fallbacks,
		r.refreshes, r.duration, r.degradations, r.lastSuccess)
	if withRuntime {
		r.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	return r
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Register adds an extra collector, e.g. a ReportCollector.
func (r *Recorder) Register(c prometheus.Collector) error {
	return r.registry.Register(c)
}

// ---------------------------------------------------------------------------
// Observers
// ---------------------------------------------------------------------------

func (r *Recorder) FetchRetried(query string) { r.retries.WithLabelValues(query).Inc() }

func (r *Recorder) RowsMalformed(query string, n int) {
	r.malformed.WithLabelValues(query).Add(float64(n))
}

func (r *Recorder) LabelsDropped(kind string, n int) { r.dropped.WithLabelValues(kind).Add(float64(n)) }

func (r *Recorder) LabelsOther(kind string, n int) { r.other.WithLabelValues(kind).Add(float64(n)) }

func (r *Recorder) StatFallback(stat string, source stats.Source) {
	r.fallbacks.WithLabelValues(stat, string(source)).Inc()
}

func (r *Recorder) RefreshFinished(d time.Duration, degradations int, err error) {
	r.duration.Observe(d.Seconds())
	r.degradations.Set(float64(degradations))
	switch {
	case err != nil:
		r.refreshes.WithLabelValues("failed").Inc()
		return
	case degradations > 0:
		r.refreshes.WithLabelValues("degraded").Inc()
	default:
		r.refreshes.WithLabelValues("ok").Inc()
	}
	r.lastSuccess.SetToCurrentTime()
}

// ---------------------------------------------------------------------------
// Exposition
// ---------------------------------------------------------------------------

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

var ErrNoPushgateway = errors.New("no pushgateway configured")

// Push sends every metric to the Pushgateway at url under job, replacing
// what the job pushed last time.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return ErrNoPushgateway
	}
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics to %s: %w", url, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Report collector
// ---------------------------------------------------------------------------

var (
	stageSourceDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "stage_source"),
		"Where each stage of the last refresh got its data (1 for the source in use).",
		[]string{"stage", "source"},
		nil,
	)
	degradedStageDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "stage_degraded"),
		"Stages of the last refresh that fell back.",
		[]string{"stage", "fallback"},
		nil,
	)
)

// ReportCollector reads the last refresh report on each scrape.
type ReportCollector struct {
	last func() (*dashboard.Report, bool)
}

func NewReportCollector(last func() (*dashboard.Report, bool)) *ReportCollector {
	return &ReportCollector{last: last}
}

func (c *ReportCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- stageSourceDesc
	ch <- degradedStageDesc
}

func (c *ReportCollector) Collect(ch chan<- prometheus.Metric) {
	report, ok := c.last()
	if !ok || report == nil {
		return
	}
	for _, s := range report.Sources {
		ch <- prometheus.MustNewConstMetric(stageSourceDesc, prometheus.GaugeValue, 1, s.Stage, s.Source)
	}
	seen := map[series.Degradation]bool{}
	for _, d := range report.Degradations {
		key := series.Degradation{Stage: d.Stage, Fallback: d.Fallback}
		if seen[key] {
			continue
		}
		seen[key] = true
		ch <- prometheus.MustNewConstMetric(degradedStageDesc, prometheus.GaugeValue, 1, d.Stage, d.Fallback)
	}
}
