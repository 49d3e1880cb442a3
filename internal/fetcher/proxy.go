package fetcher

import (
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
)

// ProxyRotator hands out proxies in round-robin order.
type ProxyRotator struct {
	proxies []*url.URL
	index   atomic.Int64
}

// NewProxyRotator parses the proxy URLs. Invalid entries are logged and
// skipped.
func NewProxyRotator(rawURLs []string, logger *slog.Logger) *ProxyRotator {
	logger = logger.With("component", "proxy_rotator")

	pr := &ProxyRotator{proxies: make([]*url.URL, 0, len(rawURLs))}
	for _, raw := range rawURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			logger.Warn("invalid proxy URL", "url", raw, "error", err)
			continue
		}
		pr.proxies = append(pr.proxies, u)
	}

	logger.Info("proxy rotator initialized", "count", len(pr.proxies))
	return pr
}

// Next returns the next proxy, or nil for a direct connection.
func (pr *ProxyRotator) Next() *url.URL {
	if len(pr.proxies) == 0 {
		return nil
	}
	idx := (pr.index.Add(1) - 1) % int64(len(pr.proxies))
	return pr.proxies[idx]
}

// ProxyFunc returns an http.Transport-compatible proxy function.
func (pr *ProxyRotator) ProxyFunc() func(*http.Request) (*url.URL, error) {
	return func(*http.Request) (*url.URL, error) {
		return pr.Next(), nil
	}
}

// Count returns the number of usable proxies.
func (pr *ProxyRotator) Count() int {
	return len(pr.proxies)
}
