package config

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"
)

// Site validation failures.
var (
	ErrMissingField       = errors.New("missing required field")
	ErrUnsupportedType    = errors.New("unsupported site type")
	ErrUnsupportedBrowser = errors.New("unsupported browser")
	ErrInvalidSelector    = errors.New("invalid selector")
)

var validBrowsers = map[string]bool{
	"chrome": true, "chromium": true, "firefox": true, "safari": true, "edge": true,
}

// ValidateSettings checks the run settings for invalid values.
func ValidateSettings(s *Settings) error {
	if s.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if s.HTTP.PolitenessDelay < 0 {
		return fmt.Errorf("http.politeness_delay must be >= 0")
	}
	if s.HTTP.MaxBodySize <= 0 {
		return fmt.Errorf("http.max_body_size must be > 0")
	}
	for _, proxyURL := range s.HTTP.Proxies {
		if _, err := url.Parse(proxyURL); err != nil {
			return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
		}
	}

	if s.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be > 0")
	}
	if s.API.Retries < 1 {
		return fmt.Errorf("api.retries must be >= 1, got %d", s.API.Retries)
	}
	if s.API.Backoff < 0 {
		return fmt.Errorf("api.backoff must be >= 0")
	}

	b := s.Browser
	if b.ReadySelector == "" {
		return fmt.Errorf("browser.ready_selector must not be empty")
	}
	if err := ValidateSelector(ParseSelector(b.ReadySelector)); err != nil {
		return fmt.Errorf("browser.ready_selector: %w", err)
	}
	if b.NavigateTimeout <= 0 || b.ReadyTimeout <= 0 || b.VariationTimeout <= 0 || b.PaginationTimeout <= 0 {
		return fmt.Errorf("browser timeouts must be > 0")
	}
	if b.PollInterval <= 0 {
		return fmt.Errorf("browser.poll_interval must be > 0")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[s.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", s.Logging.Level)
	}
	if s.Logging.Format != "text" && s.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", s.Logging.Format)
	}

	return nil
}

// ValidateSite checks that a site can be scraped. Failures are fatal to the
// site only.
func ValidateSite(site *SiteConfig) error {
	switch {
	case site.URL == "":
		return fmt.Errorf("%w: url", ErrMissingField)
	case site.Type == "":
		return fmt.Errorf("%w: type", ErrMissingField)
	case site.Fields == nil:
		return fmt.Errorf("%w: selectors", ErrMissingField)
	}

	if err := ValidateURL(site.URL); err != nil {
		return err
	}

	switch site.Type {
	case SiteStatic, SiteAPI:
	case SiteDynamic:
		if !validBrowsers[site.Browser] {
			return fmt.Errorf("%w: %q", ErrUnsupportedBrowser, site.Browser)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedType, site.Type)
	}

	if site.Limit < 0 {
		return fmt.Errorf("limit must be >= 0, got %d", site.Limit)
	}

	for _, f := range site.Fields {
		switch f.Kind {
		case KindText, KindTextList, KindAttrList:
		default:
			return fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
		}
		// API sites never query the DOM.
		if site.Type == SiteAPI {
			continue
		}
		if f.Selector.IsZero() {
			return fmt.Errorf("field %q: %w: empty", f.Name, ErrInvalidSelector)
		}
		if err := ValidateSelector(f.Selector); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}

	for _, sel := range []Selector{site.Pagination, site.WaitFor} {
		if sel.IsZero() {
			continue
		}
		if err := ValidateSelector(sel); err != nil {
			return err
		}
	}

	return nil
}

// ValidateSelector compiles a selector without running it.
func ValidateSelector(sel Selector) error {
	if sel.XPath {
		if _, err := xpath.Compile(sel.Expr); err != nil {
			return fmt.Errorf("%w: xpath %q: %v", ErrInvalidSelector, sel.Expr, err)
		}
		return nil
	}
	if _, err := cascadia.ParseGroup(sel.Expr); err != nil {
		return fmt.Errorf("%w: css %q: %v", ErrInvalidSelector, sel.Expr, err)
	}
	return nil
}

// ValidateURL checks if a URL string is valid for scraping.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
