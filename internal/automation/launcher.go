package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/fetcher"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

// Launcher opens sessions for every supported browser kind. Chromium-family
// browsers run under Rod; firefox and safari need a WebDriver endpoint, and
// edge uses one when configured.
type Launcher struct {
	cfg     *config.BrowserSettings
	proxies *fetcher.ProxyRotator
	logger  *slog.Logger
}

// NewLauncher creates a Launcher. proxies may be nil.
func NewLauncher(cfg *config.BrowserSettings, proxies *fetcher.ProxyRotator, logger *slog.Logger) *Launcher {
	return &Launcher{
		cfg:     cfg,
		proxies: proxies,
		logger:  logger.With("component", "browser_launcher"),
	}
}

// Open implements Opener.
func (l *Launcher) Open(ctx context.Context, browser string) (Session, error) {
	switch browser {
	case "chrome", "chromium":
		return l.openRod(ctx, browser)
	case "edge":
		if l.cfg.WebDriverURL != "" {
			return l.openWebDriver(ctx, browser)
		}
		return l.openRod(ctx, browser)
	case "firefox", "safari":
		if l.cfg.WebDriverURL == "" {
			return nil, &types.SessionError{
				Browser: browser,
				Op:      "open",
				Err:     fmt.Errorf("browser %q needs settings.browser.webdriver_url", browser),
			}
		}
		return l.openWebDriver(ctx, browser)
	default:
		return nil, &types.SessionError{Browser: browser, Op: "open", Err: config.ErrUnsupportedBrowser}
	}
}
