package automation

import (
	"context"
	"fmt"
	"log/slog"

	selenium "github.com/go-auxiliaries/selenium"
	"github.com/go-auxiliaries/selenium/chrome"
	"github.com/go-auxiliaries/selenium/firefox"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/parser"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

const (
	wdClickJS = `arguments[0].click();`
	wdAttrJS  = `return arguments[0].getAttribute(arguments[1]);`
)

// webDriverSession implements Session over a remote WebDriver.
type webDriverSession struct {
	kind   string
	wd     selenium.WebDriver
	logger *slog.Logger
}

// webDriverName maps a browser kind to its W3C browserName.
func webDriverName(kind string) string {
	switch kind {
	case "edge":
		return "MicrosoftEdge"
	default:
		return kind
	}
}

// openWebDriver starts a session on the configured WebDriver endpoint.
func (l *Launcher) openWebDriver(_ context.Context, kind string) (Session, error) {
	cfg := l.cfg
	caps := selenium.Capabilities{"browserName": webDriverName(kind)}

	switch kind {
	case "firefox":
		var args []string
		if cfg.Headless {
			args = append(args, "-headless")
		}
		caps.AddFirefox(firefox.Capabilities{Args: args})
	case "edge":
		args := []string{"--disable-gpu", "--no-sandbox"}
		if cfg.Headless {
			args = append(args, "--headless")
		}
		caps.AddChrome(chrome.Capabilities{Args: args, W3C: true})
	}

	wd, err := selenium.NewRemote(caps, cfg.WebDriverURL)
	if err != nil {
		return nil, &types.SessionError{Browser: kind, Op: "connect", Err: err}
	}
	if cfg.NavigateTimeout > 0 {
		if err := wd.SetPageLoadTimeout(cfg.NavigateTimeout); err != nil {
			l.logger.Warn("set page load timeout failed", "browser", kind, "error", err)
		}
	}

	s := &webDriverSession{
		kind:   kind,
		wd:     wd,
		logger: l.logger.With("browser", kind),
	}
	s.logger.Debug("webdriver session ready", "endpoint", cfg.WebDriverURL)
	return s, nil
}

// Navigate implements Session. The page load timeout bounds it.
func (s *webDriverSession) Navigate(_ context.Context, rawURL string) error {
	if err := s.wd.Get(rawURL); err != nil {
		return &types.SessionError{Browser: s.kind, Op: "navigate", Err: err}
	}
	return nil
}

// FindAll implements Session.
func (s *webDriverSession) FindAll(sel config.Selector) ([]Element, error) {
	found, err := s.wd.FindElements(byOf(sel), sel.Expr)
	if err != nil {
		return nil, err
	}
	return s.wrap(found), nil
}

// Document implements Session.
func (s *webDriverSession) Document() parser.Node {
	return DocumentOf(s)
}

// Trigger implements Session.
func (s *webDriverSession) Trigger(el Element) error {
	we, ok := el.(*webElement)
	if !ok {
		return fmt.Errorf("webdriver session cannot trigger %T", el)
	}
	if _, err := s.wd.ExecuteScript(wdClickJS, []any{we.el}); err != nil {
		return &types.SessionError{Browser: s.kind, Op: "click", Err: err}
	}
	return nil
}

// CurrentURL implements Session.
func (s *webDriverSession) CurrentURL() (string, error) {
	return s.wd.CurrentURL()
}

// Close implements Session.
func (s *webDriverSession) Close() error {
	if err := s.wd.Quit(); err != nil {
		return &types.SessionError{Browser: s.kind, Op: "quit", Err: err}
	}
	return nil
}

func (s *webDriverSession) wrap(found []selenium.WebElement) []Element {
	els := make([]Element, len(found))
	for i, el := range found {
		els[i] = &webElement{wd: s.wd, el: el}
	}
	return els
}

func byOf(sel config.Selector) string {
	if sel.XPath {
		return selenium.ByXPATH
	}
	return selenium.ByCSSSelector
}

// webElement implements Element over a WebDriver element.
type webElement struct {
	wd selenium.WebDriver
	el selenium.WebElement
}

// QueryAll implements parser.Node.
func (e *webElement) QueryAll(sel config.Selector) ([]parser.Node, error) {
	found, err := e.el.FindElements(byOf(sel), sel.Expr)
	if err != nil {
		return nil, err
	}
	nodes := make([]parser.Node, len(found))
	for i, el := range found {
		nodes[i] = &webElement{wd: e.wd, el: el}
	}
	return nodes, nil
}

// Text implements parser.Node.
func (e *webElement) Text() (string, error) {
	return e.el.Text()
}

// Attr implements parser.Node. getAttribute runs as a script so that a
// missing attribute (null) is told apart from a failed call.
func (e *webElement) Attr(name string) (string, bool, error) {
	res, err := e.wd.ExecuteScript(wdAttrJS, []any{e.el, name})
	if err != nil {
		return "", false, err
	}
	if res == nil {
		return "", false, nil
	}
	return fmt.Sprint(res), true, nil
}

// Stale implements Element.
func (e *webElement) Stale() bool {
	_, err := e.el.TagName()
	return err != nil
}
