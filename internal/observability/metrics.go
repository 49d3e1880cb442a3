// Package observability carries run metrics.
package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Site outcome labels.
const (
	SiteWritten = "written"
	SiteSkipped = "skipped"
	SiteFailed  = "failed"
)

// Metrics holds the run counters on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	pages      *prometheus.CounterVec
	records    *prometheus.CounterVec
	fetchErrs  *prometheus.CounterVec
	variations *prometheus.CounterVec
	sites      *prometheus.CounterVec
	rows       *prometheus.CounterVec
	siteTime   *prometheus.HistogramVec

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetscrape_pages_scraped_total",
			Help: "Pages scraped, by site type.",
		}, []string{"type"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetscrape_records_total",
			Help: "Records kept after the any-data guard, by site type.",
		}, []string{"type"}),
		fetchErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetscrape_fetch_errors_total",
			Help: "Failed fetch attempts, by source.",
		}, []string{"source"}),
		variations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetscrape_variation_triggers_total",
			Help: "Variation triggers, by axis and result.",
		}, []string{"axis", "result"}),
		sites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetscrape_sites_total",
			Help: "Processed sites, by outcome.",
		}, []string{"outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sheetscrape_rows_written_total",
			Help: "Rows handed to each sink.",
		}, []string{"sink"}),
		siteTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sheetscrape_site_duration_seconds",
			Help:    "Wall time per site scrape.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}, []string{"type"}),
		logger: logger.With("component", "metrics"),
	}

	m.registry.MustRegister(m.pages, m.records, m.fetchErrs, m.variations, m.sites, m.rows, m.siteTime)
	return m
}

// Registry exposes the registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// PageScraped counts one page.
func (m *Metrics) PageScraped(siteType string) {
	if m == nil {
		return
	}
	m.pages.WithLabelValues(siteType).Inc()
}

// RecordsKept counts records.
func (m *Metrics) RecordsKept(siteType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.records.WithLabelValues(siteType).Add(float64(n))
}

// FetchFailed counts one failed fetch attempt.
func (m *Metrics) FetchFailed(source string) {
	if m == nil {
		return
	}
	m.fetchErrs.WithLabelValues(source).Inc()
}

// VariationTriggered counts one variation trigger.
func (m *Metrics) VariationTriggered(axis string, ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "failed"
	}
	m.variations.WithLabelValues(axis, result).Inc()
}

// SiteDone counts a site outcome and its duration.
func (m *Metrics) SiteDone(siteType, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.sites.WithLabelValues(outcome).Inc()
	if siteType != "" {
		m.siteTime.WithLabelValues(siteType).Observe(d.Seconds())
	}
}

// RowsWritten counts rows handed to a sink.
func (m *Metrics) RowsWritten(sink string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rows.WithLabelValues(sink).Add(float64(n))
}

// Push sends the registry to a Pushgateway. An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if m == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return err
	}
	m.logger.Info("metrics pushed", "url", url, "job", job)
	return nil
}
