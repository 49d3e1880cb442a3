package config

import (
	"strings"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for a SheetScrape run.
type Config struct {
	Settings Settings
	Sites    []SiteConfig
}

// Settings holds the run-wide knobs. Sites carry only what differs per site.
type Settings struct {
	HTTP    HTTPSettings    `mapstructure:"http"    yaml:"http"`
	API     APISettings     `mapstructure:"api"     yaml:"api"`
	Browser BrowserSettings `mapstructure:"browser" yaml:"browser"`
	Sinks   SinkSettings    `mapstructure:"sinks"   yaml:"sinks"`
	Logging LoggingSettings `mapstructure:"logging" yaml:"logging"`
	Metrics MetricsSettings `mapstructure:"metrics" yaml:"metrics"`
}

// HTTPSettings controls the static page fetcher.
type HTTPSettings struct {
	Timeout         time.Duration `mapstructure:"timeout"          yaml:"timeout"`
	UserAgent       string        `mapstructure:"user_agent"       yaml:"user_agent"`
	PolitenessDelay time.Duration `mapstructure:"politeness_delay" yaml:"politeness_delay"`
	MaxBodySize     int64         `mapstructure:"max_body_size"    yaml:"max_body_size"`
	Proxies         []string      `mapstructure:"proxies"          yaml:"proxies"`
}

// APISettings controls JSON API sites.
type APISettings struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Retries int           `mapstructure:"retries" yaml:"retries"`
	Backoff time.Duration `mapstructure:"backoff" yaml:"backoff"`
}

// BrowserSettings controls dynamic sites.
type BrowserSettings struct {
	ReadySelector     string        `mapstructure:"ready_selector"     yaml:"ready_selector"`
	NavigateTimeout   time.Duration `mapstructure:"navigate_timeout"   yaml:"navigate_timeout"`
	ReadyTimeout      time.Duration `mapstructure:"ready_timeout"      yaml:"ready_timeout"`
	VariationTimeout  time.Duration `mapstructure:"variation_timeout"  yaml:"variation_timeout"`
	PaginationTimeout time.Duration `mapstructure:"pagination_timeout" yaml:"pagination_timeout"`
	PollInterval      time.Duration `mapstructure:"poll_interval"      yaml:"poll_interval"`
	Headless          bool          `mapstructure:"headless"           yaml:"headless"`
	Stealth           bool          `mapstructure:"stealth"            yaml:"stealth"`
	Bin               string        `mapstructure:"bin"                yaml:"bin"`
	ControlURL        string        `mapstructure:"control_url"        yaml:"control_url"`
	WebDriverURL      string        `mapstructure:"webdriver_url"      yaml:"webdriver_url"`
}

// SinkSettings controls where tables go besides the spreadsheet.
type SinkSettings struct {
	ListSeparator string `mapstructure:"list_separator" yaml:"list_separator"`
	CSVDir        string `mapstructure:"csv_dir"        yaml:"csv_dir"`
	JSONLPath     string `mapstructure:"jsonl_path"     yaml:"jsonl_path"`
	SQLitePath    string `mapstructure:"sqlite_path"    yaml:"sqlite_path"`
	MongoURI      string `mapstructure:"mongo_uri"      yaml:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database" yaml:"mongo_database"`
}

// LoggingSettings controls logging behavior.
type LoggingSettings struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsSettings controls the Prometheus push at the end of a run.
type MetricsSettings struct {
	PushURL string `mapstructure:"push_url" yaml:"push_url"`
	Job     string `mapstructure:"job"      yaml:"job"`
}

// DefaultSettings returns Settings with sensible defaults.
func DefaultSettings() Settings {
	return Settings{
		HTTP: HTTPSettings{
			Timeout:     10 * time.Second,
			UserAgent:   "Mozilla/5.0",
			MaxBodySize: 10 * 1024 * 1024, // 10MB
		},
		API: APISettings{
			Timeout: 10 * time.Second,
			Retries: 3,
			Backoff: 2 * time.Second,
		},
		Browser: BrowserSettings{
			ReadySelector:     "body",
			NavigateTimeout:   30 * time.Second,
			ReadyTimeout:      10 * time.Second,
			VariationTimeout:  5 * time.Second,
			PaginationTimeout: 5 * time.Second,
			PollInterval:      100 * time.Millisecond,
			Headless:          true,
		},
		Sinks: SinkSettings{
			ListSeparator: ", ",
			MongoDatabase: "sheetscrape",
		},
		Logging: LoggingSettings{
			Level:  "info",
			Format: "text",
			Output: "output/scraper.log",
		},
		Metrics: MetricsSettings{
			Job: "sheetscrape",
		},
	}
}

// SiteType selects the page walker for a site.
type SiteType string

const (
	SiteStatic  SiteType = "static"
	SiteDynamic SiteType = "dynamic"
	SiteAPI     SiteType = "api"
)

// Kind is the extraction kind of a field.
type Kind string

const (
	// KindText yields a scalar for one match and a list for several.
	KindText Kind = "text"
	// KindTextList always yields a list of texts.
	KindTextList Kind = "text_list"
	// KindAttrList yields a list of attribute values (src by default).
	KindAttrList Kind = "attr_list"
)

// Reserved field names that drive variation enumeration on dynamic sites.
const (
	ColorVariationField = "color_variation"
	SizeVariationField  = "size_variation"
)

// Site defaults.
const (
	DefaultLimit   = 5
	DefaultBrowser = "chrome"
)

const xpathPrefix = "xpath:"

// Selector addresses zero or more elements of a page.
type Selector struct {
	Expr  string
	XPath bool
}

// ParseSelector reads a selector string. An "xpath:" prefix selects XPath,
// anything else is CSS.
func ParseSelector(raw string) Selector {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, xpathPrefix) {
		return Selector{Expr: strings.TrimSpace(strings.TrimPrefix(raw, xpathPrefix)), XPath: true}
	}
	return Selector{Expr: raw}
}

// IsZero reports whether the selector is unset.
func (s Selector) IsZero() bool { return s.Expr == "" }

func (s Selector) String() string {
	if s.XPath {
		return xpathPrefix + s.Expr
	}
	return s.Expr
}

// FieldRule describes how one output field is extracted.
type FieldRule struct {
	Name      string
	Selector  Selector
	Kind      Kind
	Attribute string
}

// IsVariationTrigger reports whether the rule names variation controls
// rather than data.
func (r FieldRule) IsVariationTrigger() bool {
	return r.Name == ColorVariationField || r.Name == SizeVariationField
}

// SiteConfig is one target site. It is read-only once loaded.
type SiteConfig struct {
	Index      int
	Name       string
	URL        string
	Type       SiteType
	Fields     []FieldRule
	Pagination Selector
	Limit      int
	Browser    string
	JSONPath   []string
	APIKey     string
	WaitFor    Selector
}

// Field returns the rule with the given name.
func (s *SiteConfig) Field(name string) (FieldRule, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldRule{}, false
}

// DataFields returns the rules that produce record values, i.e. everything
// except the variation triggers.
func (s *SiteConfig) DataFields() []FieldRule {
	out := make([]FieldRule, 0, len(s.Fields))
	for _, f := range s.Fields {
		if !f.IsVariationTrigger() {
			out = append(out, f)
		}
	}
	return out
}

// Label identifies the site in logs.
func (s *SiteConfig) Label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.URL != "" {
		return s.URL
	}
	return "unknown"
}

// defaultKind maps legacy reserved field names to an extraction kind.
func defaultKind(field string) (Kind, string) {
	switch strings.ToLower(field) {
	case "images":
		return KindAttrList, "src"
	case "colors", "sizes":
		return KindTextList, ""
	default:
		return KindText, ""
	}
}
