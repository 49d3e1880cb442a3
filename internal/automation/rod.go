package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/parser"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

const (
	rodClickJS = `() => this.click()`
	rodStaleJS = `() => !this.isConnected`
)

// rodSession implements Session over a Rod page.
type rodSession struct {
	kind     string
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	navTO    time.Duration
	logger   *slog.Logger
}

// openRod launches (or connects to) a Chromium-family browser and opens
// one tab.
func (l *Launcher) openRod(ctx context.Context, kind string) (Session, error) {
	cfg := l.cfg
	s := &rodSession{
		kind:   kind,
		navTO:  cfg.NavigateTimeout,
		logger: l.logger.With("browser", kind),
	}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		lc := launcher.New().
			Context(ctx).
			Headless(cfg.Headless).
			Set("disable-gpu").
			Set("disable-dev-shm-usage").
			Set("no-sandbox").
			Set("disable-setuid-sandbox").
			Set("disable-blink-features", "AutomationControlled")
		if cfg.Bin != "" {
			lc = lc.Bin(cfg.Bin)
		}
		if l.proxies != nil {
			if p := l.proxies.Next(); p != nil {
				lc = lc.Proxy(p.String())
			}
		}

		u, err := lc.Launch()
		if err != nil {
			return nil, &types.SessionError{Browser: kind, Op: "launch", Err: err}
		}
		controlURL = u
		s.launcher = lc
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		s.cleanup()
		return nil, &types.SessionError{Browser: kind, Op: "connect", Err: err}
	}
	s.browser = browser

	var page *rod.Page
	var err error
	if cfg.Stealth {
		page, err = stealth.Page(browser)
	} else {
		page, err = browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
	if err != nil {
		_ = s.Close()
		return nil, &types.SessionError{Browser: kind, Op: "open page", Err: err}
	}
	s.page = page

	s.logger.Debug("rod session ready", "stealth", cfg.Stealth, "remote", cfg.ControlURL != "")
	return s, nil
}

// Navigate implements Session.
func (s *rodSession) Navigate(ctx context.Context, rawURL string) error {
	p := s.page.Context(ctx)
	if s.navTO > 0 {
		p = p.Timeout(s.navTO)
	}
	if err := p.Navigate(rawURL); err != nil {
		return &types.SessionError{Browser: s.kind, Op: "navigate", Err: err}
	}
	return nil
}

// FindAll implements Session.
func (s *rodSession) FindAll(sel config.Selector) ([]Element, error) {
	var (
		found rod.Elements
		err   error
	)
	if sel.XPath {
		found, err = s.page.ElementsX(sel.Expr)
	} else {
		found, err = s.page.Elements(sel.Expr)
	}
	if err != nil {
		return nil, err
	}
	return wrapRod(found), nil
}

// Document implements Session.
func (s *rodSession) Document() parser.Node {
	return DocumentOf(s)
}

// Trigger implements Session.
func (s *rodSession) Trigger(el Element) error {
	re, ok := el.(*rodElement)
	if !ok {
		return fmt.Errorf("rod session cannot trigger %T", el)
	}
	if _, err := re.el.Eval(rodClickJS); err != nil {
		return &types.SessionError{Browser: s.kind, Op: "click", Err: err}
	}
	return nil
}

// CurrentURL implements Session.
func (s *rodSession) CurrentURL() (string, error) {
	info, err := s.page.Info()
	if err != nil {
		return "", err
	}
	return info.URL, nil
}

// Close implements Session.
func (s *rodSession) Close() error {
	var firstErr error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			firstErr = err
		}
	}
	// A remote browser is not ours to close.
	if s.browser != nil && s.launcher != nil {
		if err := s.browser.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.cleanup()
	return firstErr
}

func (s *rodSession) cleanup() {
	if s.launcher != nil {
		s.launcher.Kill()
		s.launcher.Cleanup()
		s.launcher = nil
	}
}

// rodElement implements Element over a Rod element.
type rodElement struct {
	el *rod.Element
}

func wrapRod(found rod.Elements) []Element {
	els := make([]Element, len(found))
	for i, el := range found {
		els[i] = &rodElement{el: el}
	}
	return els
}

// QueryAll implements parser.Node.
func (e *rodElement) QueryAll(sel config.Selector) ([]parser.Node, error) {
	var (
		found rod.Elements
		err   error
	)
	if sel.XPath {
		found, err = e.el.ElementsX(sel.Expr)
	} else {
		found, err = e.el.Elements(sel.Expr)
	}
	if err != nil {
		return nil, err
	}
	return Nodes(wrapRod(found)), nil
}

// Text implements parser.Node.
func (e *rodElement) Text() (string, error) {
	return e.el.Text()
}

// Attr implements parser.Node.
func (e *rodElement) Attr(name string) (string, bool, error) {
	v, err := e.el.Attribute(name)
	if err != nil {
		return "", false, err
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

// Stale implements Element.
func (e *rodElement) Stale() bool {
	res, err := e.el.Eval(rodStaleJS)
	if err != nil {
		return true
	}
	return res.Value.Bool()
}
