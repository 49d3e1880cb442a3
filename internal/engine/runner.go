package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/observability"
	"github.com/IshaanNene/sheetscrape/internal/pipeline"
	"github.com/IshaanNene/sheetscrape/internal/storage"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

// Scraper returns the raw records of one site.
type Scraper interface {
	Scrape(ctx context.Context, site *config.SiteConfig) ([]*types.Record, error)
}

// Summary counts what a run did.
type Summary struct {
	Sites   int
	Written int
	Skipped int
	Failed  int
	Records int
}

// Runner processes sites one after another: scrape, clean, write one table
// per site.
type Runner struct {
	scraper  Scraper
	sink     storage.Sink
	pipeline *pipeline.Pipeline
	namer    *storage.Namer
	metrics  *observability.Metrics
	logger   *slog.Logger
}

// NewRunner creates a Runner writing to sink.
func NewRunner(s Scraper, sink storage.Sink, p *pipeline.Pipeline, m *observability.Metrics, logger *slog.Logger) *Runner {
	return &Runner{
		scraper:  s,
		sink:     sink,
		pipeline: p,
		namer:    storage.NewNamer(),
		metrics:  m,
		logger:   logger.With("component", "runner"),
	}
}

// Run processes every site. A failing site is logged and counted; it never
// stops the run.
func (r *Runner) Run(ctx context.Context, sites []config.SiteConfig) Summary {
	var sum Summary
	start := time.Now()

	for i := range sites {
		site := &sites[i]
		sum.Sites++

		siteStart := time.Now()
		outcome, rows := r.runSite(ctx, site)
		r.metrics.SiteDone(string(site.Type), outcome, time.Since(siteStart))

		switch outcome {
		case observability.SiteWritten:
			sum.Written++
			sum.Records += rows
		case observability.SiteSkipped:
			sum.Skipped++
		default:
			sum.Failed++
		}
	}

	r.logger.Info("run finished",
		"sites", sum.Sites,
		"written", sum.Written,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
		"records", sum.Records,
		"elapsed", time.Since(start).String(),
	)
	return sum
}

// runSite returns the site's outcome and the number of rows written.
func (r *Runner) runSite(ctx context.Context, site *config.SiteConfig) (outcome string, rows int) {
	log := r.logger.With("site", site.Label(), "index", site.Index)

	if err := config.ValidateSite(site); err != nil {
		log.Error("invalid site config, skipping", "error", err)
		return observability.SiteFailed, 0
	}

	log.Info("scraping site", "url", site.URL, "type", site.Type)
	records, err := r.scrape(ctx, site)
	if err != nil {
		log.Error("site failed", "error", err)
		return observability.SiteFailed, 0
	}

	records = r.pipeline.ProcessAll(records)
	if len(records) == 0 {
		log.Warn("no data scraped")
		return observability.SiteSkipped, 0
	}

	table := storage.NewTable(r.namer.Unique(tableName(site)), site.URL, records)
	if err := r.sink.WriteTable(ctx, table); err != nil {
		log.Error("failed to write table", "table", table.Name, "error", err)
		return observability.SiteFailed, 0
	}

	r.metrics.RowsWritten(r.sink.Name(), table.Len())
	log.Info("table written", "table", table.Name, "rows", table.Len(), "columns", len(table.Columns))
	return observability.SiteWritten, table.Len()
}

// scrape runs the scraper, turning a panic into a site error.
func (r *Runner) scrape(ctx context.Context, site *config.SiteConfig) (records []*types.Record, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Debug("site panic", "site", site.Label(), "stack", string(debug.Stack()))
			records = nil
			err = &types.SiteError{Site: site.Label(), URL: site.URL, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	return r.scraper.Scrape(ctx, site)
}

// tableName is the site name, else "<host[:port]>_<index>".
func tableName(site *config.SiteConfig) string {
	if site.Name != "" {
		return site.Name
	}
	host := "site"
	if u, err := url.Parse(site.URL); err == nil && u.Host != "" {
		host = u.Host
	}
	return host + "_" + strconv.Itoa(site.Index)
}
