// Package engine scrapes configured sites and hands their tables to a sink.
package engine

import (
	"context"
	"log/slog"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/fetcher"
	"github.com/IshaanNene/sheetscrape/internal/observability"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

// Driver scrapes one site with the walker that matches its type.
type Driver struct {
	static  *StaticWalker
	dynamic *DynamicWalker
	api     *fetcher.APIFetcher
	retries int
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewDriver creates a Driver. retries is the number of attempts per API
// site.
func NewDriver(static *StaticWalker, dynamic *DynamicWalker, api *fetcher.APIFetcher, retries int, m *observability.Metrics, logger *slog.Logger) *Driver {
	return &Driver{
		static:  static,
		dynamic: dynamic,
		api:     api,
		retries: retries,
		metrics: m,
		logger:  logger.With("component", "driver"),
	}
}

// Scrape returns the raw records of site. An error means the site as a
// whole could not be scraped.
func (d *Driver) Scrape(ctx context.Context, site *config.SiteConfig) ([]*types.Record, error) {
	switch site.Type {
	case config.SiteStatic:
		return d.static.Walk(ctx, site), nil

	case config.SiteDynamic:
		return d.dynamic.Walk(ctx, site)

	case config.SiteAPI:
		records, ok := d.api.Fetch(ctx, site.URL, site.JSONPath, fetcher.BearerHeader(site.APIKey), d.retries)
		if !ok {
			d.metrics.FetchFailed(string(config.SiteAPI))
			return nil, nil
		}
		d.metrics.PageScraped(string(config.SiteAPI))
		d.metrics.RecordsKept(string(config.SiteAPI), len(records))
		return records, nil

	default:
		return nil, &types.SiteError{Site: site.Label(), URL: site.URL, Err: config.ErrUnsupportedType}
	}
}
