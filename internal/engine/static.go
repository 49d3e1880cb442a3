package engine

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/fetcher"
	"github.com/IshaanNene/sheetscrape/internal/observability"
	"github.com/IshaanNene/sheetscrape/internal/parser"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

// StaticWalker scrapes server-rendered pages, following href pagination.
type StaticWalker struct {
	fetcher   fetcher.Fetcher
	extractor *parser.Extractor
	delay     time.Duration
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewStaticWalker creates a StaticWalker. delay is the minimum spacing
// between two page fetches of the same site.
func NewStaticWalker(f fetcher.Fetcher, ex *parser.Extractor, delay time.Duration, m *observability.Metrics, logger *slog.Logger) *StaticWalker {
	return &StaticWalker{
		fetcher:   f,
		extractor: ex,
		delay:     delay,
		metrics:   m,
		logger:    logger.With("component", "static_walker"),
	}
}

// Walk scrapes up to site.Limit pages. A failed fetch ends the walk; the
// records collected so far are kept.
func (w *StaticWalker) Walk(ctx context.Context, site *config.SiteConfig) []*types.Record {
	var records []*types.Record
	limiter := w.limiter()
	current := site.URL

	for pages := 0; current != "" && pages < site.Limit; {
		if err := limiter.Wait(ctx); err != nil {
			w.logger.Error("politeness wait aborted", "site", site.Label(), "url", current, "error", err)
			break
		}

		resp, err := w.fetcher.Get(ctx, current, nil)
		if err != nil {
			w.logger.Error("failed to fetch page", "site", site.Label(), "url", current, "error", err)
			w.metrics.FetchFailed(string(config.SiteStatic))
			break
		}

		root, err := parser.ResponseNode(resp)
		if err != nil {
			w.logger.Error("failed to parse page", "site", site.Label(), "url", current, "error", err)
			break
		}

		rec := types.NewRecord()
		if w.extractor.ExtractInto(rec, root, site.Fields, current) {
			records = append(records, rec)
			w.metrics.RecordsKept(string(config.SiteStatic), 1)
		}

		current = w.nextPage(root, site)
		pages++
		w.metrics.PageScraped(string(config.SiteStatic))
		w.logger.Info("scraped static page", "site", site.Label(), "page", pages, "next", current)
	}

	return records
}

// nextPage returns the absolute URL of the first pagination link, or "".
// Links resolve against the site's starting URL.
func (w *StaticWalker) nextPage(root parser.Node, site *config.SiteConfig) string {
	if site.Pagination.IsZero() {
		return ""
	}

	links, err := root.QueryAll(site.Pagination)
	if err != nil {
		w.logger.Warn("pagination lookup failed", "site", site.Label(), "error", err)
		return ""
	}
	if len(links) == 0 {
		return ""
	}

	href, ok, err := links[0].Attr("href")
	if err != nil || !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	return resolveURL(site.URL, strings.TrimSpace(href))
}

func (w *StaticWalker) limiter() *rate.Limiter {
	if w.delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(w.delay), 1)
}

// resolveURL joins href onto base. An unparsable base leaves href as is.
func resolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}
