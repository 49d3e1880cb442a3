package observability

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics(testLogger)

	m.PageScraped("static")
	m.PageScraped("static")
	m.PageScraped("dynamic")
	m.RecordsKept("static", 3)
	m.RecordsKept("static", 0)
	m.VariationTriggered("color", true)
	m.VariationTriggered("color", false)
	m.SiteDone("static", SiteWritten, time.Second)
	m.SiteDone("", SiteSkipped, 0)
	m.RowsWritten("xlsx", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pages.WithLabelValues("static")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pages.WithLabelValues("dynamic")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.records.WithLabelValues("static")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.variations.WithLabelValues("color", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sites.WithLabelValues(SiteSkipped)))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.rows.WithLabelValues("xlsx")))

	expected := `
# HELP sheetscrape_sites_total Processed sites, by outcome.
# TYPE sheetscrape_sites_total counter
sheetscrape_sites_total{outcome="skipped"} 1
sheetscrape_sites_total{outcome="written"} 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "sheetscrape_sites_total"))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.PageScraped("static")
	m.RecordsKept("static", 1)
	m.FetchFailed("api")
	m.VariationTriggered("size", true)
	m.SiteDone("api", SiteFailed, time.Second)
	m.RowsWritten("csv", 1)
	assert.Nil(t, m.Registry())
	assert.NoError(t, m.Push(context.Background(), "http://unused", "job"))
}

func TestPush(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Contains(t, r.URL.Path, "/metrics/job/sheetscrape")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewMetrics(testLogger)
	m.FetchFailed("static")

	require.NoError(t, m.Push(context.Background(), srv.URL, "sheetscrape"))
	assert.Equal(t, int32(1), hits.Load())

	assert.NoError(t, m.Push(context.Background(), "", "sheetscrape"))
	assert.Equal(t, int32(1), hits.Load())
}
