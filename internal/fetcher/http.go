package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/publicsuffix"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBody   int64
	proxies   *ProxyRotator
	logger    *slog.Logger
}

// NewHTTPFetcher creates a new HTTP fetcher. timeout bounds each request,
// so static pages and API endpoints can use different limits.
func NewHTTPFetcher(cfg *config.HTTPSettings, timeout time.Duration, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = cfg.Timeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DisableCompression:  true, // decoded by decompressReader, brotli included
	}

	var proxies *ProxyRotator
	if len(cfg.Proxies) > 0 {
		proxies = NewProxyRotator(cfg.Proxies, logger)
		transport.Proxy = proxies.ProxyFunc()
	}

	return &HTTPFetcher{
		client: &http.Client{
			Transport: transport,
			Jar:       jar,
			Timeout:   timeout,
		},
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodySize,
		proxies:   proxies,
		logger:    logger.With("component", "http_fetcher"),
	}, nil
}

// Get implements Fetcher.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, header http.Header) (*types.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}

	ua := f.userAgent
	if ua == "" {
		ua = "sheetscrape/" + config.Version
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for key, values := range header {
		for _, v := range values {
			req.Header.Set(key, v)
		}
	}

	start := time.Now()
	httpResp, err := f.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, &types.FetchError{
			URL:        rawURL,
			StatusCode: httpResp.StatusCode,
			Err:        fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}

	reader, err := decompressReader(httpResp, httpResp.Body)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	if f.maxBody > 0 {
		reader = io.LimitReader(reader, f.maxBody+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, Err: err}
	}
	if f.maxBody > 0 && int64(len(body)) > f.maxBody {
		body = body[:f.maxBody]
		f.logger.Warn("response body truncated", "url", rawURL, "max_body_size", f.maxBody)
	}

	resp := types.NewResponse(rawURL, httpResp, body, duration)

	f.logger.Debug("fetch complete",
		"url", rawURL,
		"status", resp.StatusCode,
		"size", len(body),
		"duration", duration,
	)

	return resp, nil
}

// Close implements Fetcher.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// decompressReader wraps a reader with the decompressor named by the
// Content-Encoding header.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}
