package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads the site list and run settings from a config file.
// Settings priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	format := configFormat(configPath)

	sites, err := parseSites(data, format)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sites in %s: %w", configPath, err)
	}

	settings, err := loadSettings(configPath, format)
	if err != nil {
		return nil, err
	}

	return &Config{Settings: *settings, Sites: sites}, nil
}

// LoadSettings reads only the run settings, for commands that do not scrape.
func LoadSettings(configPath string) (*Settings, error) {
	if configPath == "" {
		s := DefaultSettings()
		return &s, nil
	}
	return loadSettings(configPath, configFormat(configPath))
}

func loadSettings(configPath, format string) (*Settings, error) {
	settings := DefaultSettings()

	v := viper.New()
	v.SetConfigType(format)
	v.SetConfigFile(configPath)

	// Set defaults from struct
	setDefaults(v, &settings)

	// Environment variable support, e.g. SHEETSCRAPE_SETTINGS_HTTP_TIMEOUT=5s
	v.SetEnvPrefix("SHEETSCRAPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshal (not UnmarshalKey) so env overrides of nested keys are merged.
	wrapper := struct {
		Settings Settings `mapstructure:"settings"`
	}{Settings: settings}
	if err := v.Unmarshal(&wrapper); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}

	return &wrapper.Settings, nil
}

func configFormat(path string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "yaml", "yml":
		return "yaml"
	default:
		return "json"
	}
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, s *Settings) {
	v.SetDefault("settings.http.timeout", s.HTTP.Timeout)
	v.SetDefault("settings.http.user_agent", s.HTTP.UserAgent)
	v.SetDefault("settings.http.politeness_delay", s.HTTP.PolitenessDelay)
	v.SetDefault("settings.http.max_body_size", s.HTTP.MaxBodySize)
	v.SetDefault("settings.http.proxies", s.HTTP.Proxies)

	v.SetDefault("settings.api.timeout", s.API.Timeout)
	v.SetDefault("settings.api.retries", s.API.Retries)
	v.SetDefault("settings.api.backoff", s.API.Backoff)

	v.SetDefault("settings.browser.ready_selector", s.Browser.ReadySelector)
	v.SetDefault("settings.browser.navigate_timeout", s.Browser.NavigateTimeout)
	v.SetDefault("settings.browser.ready_timeout", s.Browser.ReadyTimeout)
	v.SetDefault("settings.browser.variation_timeout", s.Browser.VariationTimeout)
	v.SetDefault("settings.browser.pagination_timeout", s.Browser.PaginationTimeout)
	v.SetDefault("settings.browser.poll_interval", s.Browser.PollInterval)
	v.SetDefault("settings.browser.headless", s.Browser.Headless)
	v.SetDefault("settings.browser.stealth", s.Browser.Stealth)
	v.SetDefault("settings.browser.bin", s.Browser.Bin)
	v.SetDefault("settings.browser.control_url", s.Browser.ControlURL)
	v.SetDefault("settings.browser.webdriver_url", s.Browser.WebDriverURL)

	v.SetDefault("settings.sinks.list_separator", s.Sinks.ListSeparator)
	v.SetDefault("settings.sinks.csv_dir", s.Sinks.CSVDir)
	v.SetDefault("settings.sinks.jsonl_path", s.Sinks.JSONLPath)
	v.SetDefault("settings.sinks.sqlite_path", s.Sinks.SQLitePath)
	v.SetDefault("settings.sinks.mongo_uri", s.Sinks.MongoURI)
	v.SetDefault("settings.sinks.mongo_database", s.Sinks.MongoDatabase)

	v.SetDefault("settings.logging.level", s.Logging.Level)
	v.SetDefault("settings.logging.format", s.Logging.Format)
	v.SetDefault("settings.logging.output", s.Logging.Output)

	v.SetDefault("settings.metrics.push_url", s.Metrics.PushURL)
	v.SetDefault("settings.metrics.job", s.Metrics.Job)
}
