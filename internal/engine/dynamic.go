package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/sheetscrape/internal/automation"
	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/observability"
	"github.com/IshaanNene/sheetscrape/internal/parser"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

// DynamicWalker scrapes script-rendered pages in a browser session,
// following click pagination.
type DynamicWalker struct {
	opener     automation.Opener
	extractor  *parser.Extractor
	variations *VariationEnumerator
	cfg        *config.BrowserSettings
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewDynamicWalker creates a DynamicWalker that opens one session per
// Walk through opener.
func NewDynamicWalker(opener automation.Opener, ex *parser.Extractor, cfg *config.BrowserSettings, m *observability.Metrics, logger *slog.Logger) *DynamicWalker {
	return &DynamicWalker{
		opener:     opener,
		extractor:  ex,
		variations: NewVariationEnumerator(ex, cfg, m, logger),
		cfg:        cfg,
		metrics:    m,
		logger:     logger.With("component", "dynamic_walker"),
	}
}

// Walk scrapes up to site.Limit pages. Failing to open a session is
// returned; every later failure ends the walk and keeps what was collected.
func (w *DynamicWalker) Walk(ctx context.Context, site *config.SiteConfig) ([]*types.Record, error) {
	browser := site.Browser
	if browser == "" {
		browser = config.DefaultBrowser
	}

	sess, err := w.opener.Open(ctx, browser)
	if err != nil {
		return nil, &types.SiteError{Site: site.Label(), URL: site.URL, Err: err}
	}
	defer func() {
		if err := sess.Close(); err != nil {
			w.logger.Warn("session close failed", "site", site.Label(), "error", err)
		}
	}()

	ready := w.readySelector(site)
	data := site.DataFields()

	var records []*types.Record
	current := site.URL
	for pages := 0; current != "" && pages < site.Limit; {
		if err := sess.Navigate(ctx, current); err != nil {
			w.logger.Error("navigation failed", "site", site.Label(), "url", current, "error", err)
			break
		}

		if _, err := automation.WaitAny(ctx, w.cfg.ReadyTimeout, w.cfg.PollInterval, automation.Present(sess, ready)); err != nil {
			w.logger.Error("timeout waiting for page", "site", site.Label(), "url", current, "ready", ready.String(), "error", err)
			break
		}

		kept := 0
		base := types.NewRecord()
		if w.extractor.ExtractInto(base, sess.Document(), data, current) {
			records = append(records, base)
			kept++
		}

		vars := w.variations.Enumerate(ctx, sess, site.Fields, ready, current)
		records = append(records, vars...)
		kept += len(vars)
		w.metrics.RecordsKept(string(config.SiteDynamic), kept)

		current = w.nextPage(ctx, sess, site, current)
		pages++
		w.metrics.PageScraped(string(config.SiteDynamic))
		w.logger.Info("scraped dynamic page", "site", site.Label(), "page", pages, "records", kept, "next", current)
	}

	return records, nil
}

// nextPage clicks the pagination trigger and returns the location it led
// to, or "" when there is no further page.
func (w *DynamicWalker) nextPage(ctx context.Context, sess automation.Session, site *config.SiteConfig, current string) string {
	if site.Pagination.IsZero() {
		return ""
	}

	triggers, err := sess.FindAll(site.Pagination)
	if err == nil && len(triggers) == 0 {
		err = fmt.Errorf("%w: %s", types.ErrElementNotFound, site.Pagination.String())
	}
	if err != nil {
		w.logger.Info("no next page found", "site", site.Label(), "url", current, "error", err)
		return ""
	}

	before, err := sess.CurrentURL()
	if err != nil {
		before = current
	}

	if err := sess.Trigger(triggers[0]); err != nil {
		w.logger.Info("next page click failed", "site", site.Label(), "url", current, "error", err)
		return ""
	}

	if _, err := automation.WaitAny(ctx, w.cfg.PaginationTimeout, w.cfg.PollInterval, automation.URLChanged(sess, before)); err != nil {
		w.logger.Info("no next page found", "site", site.Label(), "url", current, "error", err)
		return ""
	}

	next, err := sess.CurrentURL()
	if err != nil {
		w.logger.Warn("location unreadable after pagination", "site", site.Label(), "error", err)
		return ""
	}
	return next
}

// readySelector is the site's wait_for marker, else the run default.
func (w *DynamicWalker) readySelector(site *config.SiteConfig) config.Selector {
	if !site.WaitFor.IsZero() {
		return site.WaitFor
	}
	if sel := config.ParseSelector(w.cfg.ReadySelector); !sel.IsZero() {
		return sel
	}
	return config.Selector{Expr: "body"}
}
