package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// siteFile is the on-disk layout of the site list. Settings are read
// separately through viper.
type siteFile struct {
	Websites []siteEntry `json:"websites" yaml:"websites"`
}

// siteEntry is a raw site descriptor before defaults are applied.
type siteEntry struct {
	Name       string    `json:"name"       yaml:"name"`
	URL        string    `json:"url"        yaml:"url"`
	Type       string    `json:"type"       yaml:"type"`
	Selectors  Selectors `json:"selectors"  yaml:"selectors"`
	Pagination string    `json:"pagination" yaml:"pagination"`
	Limit      *int      `json:"limit"      yaml:"limit"`
	Browser    string    `json:"browser"    yaml:"browser"`
	JSONPath   []string  `json:"json_path"  yaml:"json_path"`
	APIKey     string    `json:"api_key"    yaml:"api_key"`
	WaitFor    string    `json:"wait_for"   yaml:"wait_for"`
}

func (e siteEntry) site(idx int) SiteConfig {
	limit := DefaultLimit
	if e.Limit != nil {
		limit = *e.Limit
	}
	browser := strings.TrimSpace(e.Browser)
	if browser == "" {
		browser = DefaultBrowser
	}
	return SiteConfig{
		Index:      idx,
		Name:       strings.TrimSpace(e.Name),
		URL:        strings.TrimSpace(e.URL),
		Type:       SiteType(strings.ToLower(strings.TrimSpace(e.Type))),
		Fields:     []FieldRule(e.Selectors),
		Pagination: ParseSelector(e.Pagination),
		Limit:      limit,
		Browser:    strings.ToLower(browser),
		JSONPath:   e.JSONPath,
		APIKey:     e.APIKey,
		WaitFor:    ParseSelector(e.WaitFor),
	}
}

// Selectors is the ordered field -> rule mapping of a site. A nil value
// means the key was absent from the file.
type Selectors []FieldRule

// selectorSpec is the long form of a selector value.
type selectorSpec struct {
	Selector  string `json:"selector"  yaml:"selector"`
	Kind      string `json:"kind"      yaml:"kind"`
	Attribute string `json:"attribute" yaml:"attribute"`
}

func (s selectorSpec) rule(name string) FieldRule {
	kind, attr := defaultKind(name)
	if s.Kind != "" {
		kind, attr = Kind(strings.ToLower(s.Kind)), ""
	}
	if s.Attribute != "" {
		attr = s.Attribute
	}
	if kind == KindAttrList && attr == "" {
		attr = "src"
	}
	return FieldRule{
		Name:      name,
		Selector:  ParseSelector(s.Selector),
		Kind:      kind,
		Attribute: attr,
	}
}

// UnmarshalJSON walks the object token by token so field order survives.
func (s *Selectors) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("selectors must be an object, got %v", tok)
	}

	rules := make([]FieldRule, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := keyTok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("selector %q: %w", name, err)
		}

		var spec selectorSpec
		trimmed := bytes.TrimSpace(raw)
		switch {
		case len(trimmed) > 0 && trimmed[0] == '"':
			if err := json.Unmarshal(trimmed, &spec.Selector); err != nil {
				return fmt.Errorf("selector %q: %w", name, err)
			}
		case len(trimmed) > 0 && trimmed[0] == '{':
			if err := json.Unmarshal(trimmed, &spec); err != nil {
				return fmt.Errorf("selector %q: %w", name, err)
			}
		case bytes.Equal(trimmed, []byte("null")):
		default:
			return fmt.Errorf("selector %q must be a string or an object", name)
		}
		rules = append(rules, spec.rule(name))
	}

	*s = rules
	return nil
}

// UnmarshalYAML reads the mapping node directly so field order survives.
func (s *Selectors) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: selectors must be a mapping", node.Line)
	}

	rules := make([]FieldRule, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		val := node.Content[i+1]

		var spec selectorSpec
		switch val.Kind {
		case yaml.ScalarNode:
			if val.Tag != "!!null" {
				spec.Selector = val.Value
			}
		case yaml.MappingNode:
			if err := val.Decode(&spec); err != nil {
				return fmt.Errorf("selector %q: %w", name, err)
			}
		default:
			return fmt.Errorf("line %d: selector %q must be a string or a mapping", val.Line, name)
		}
		rules = append(rules, spec.rule(name))
	}

	*s = rules
	return nil
}

// parseSites decodes the site list. YAML files go through yaml.v3, anything
// else is treated as JSON.
func parseSites(data []byte, format string) ([]SiteConfig, error) {
	var file siteFile
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, err
		}
	}

	sites := make([]SiteConfig, len(file.Websites))
	for i, e := range file.Websites {
		sites[i] = e.site(i)
	}
	return sites, nil
}
