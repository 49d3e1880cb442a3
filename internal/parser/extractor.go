package parser

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

var imgSelector = config.Selector{Expr: "img"}

// Extractor applies field rules to a Node tree.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates a new Extractor.
func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{
		logger: logger.With("component", "extractor"),
	}
}

// Extract runs every rule against root and returns a record holding one
// key per rule. Rules that match nothing, or that fail, yield nil.
func (e *Extractor) Extract(root Node, rules []config.FieldRule, pageURL string) *types.Record {
	rec := types.NewRecord()
	e.ExtractInto(rec, root, rules, pageURL)
	return rec
}

// ExtractInto is Extract over an existing record. It reports whether any
// of the extracted fields is non-nil.
func (e *Extractor) ExtractInto(rec *types.Record, root Node, rules []config.FieldRule, pageURL string) bool {
	found := false
	for _, rule := range rules {
		val, err := e.Field(root, rule)
		if err != nil {
			e.logger.Warn("field extraction failed", "error", &types.ParseError{
				URL:      pageURL,
				Field:    rule.Name,
				Selector: rule.Selector.String(),
				Err:      err,
			})
			val = nil
		}
		if val != nil {
			found = true
		}
		rec.Set(rule.Name, val)
	}
	return found
}

// Field extracts a single rule. The returned value is nil, a string or a
// []string.
func (e *Extractor) Field(root Node, rule config.FieldRule) (any, error) {
	matches, err := root.QueryAll(rule.Selector)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	switch rule.Kind {
	case config.KindAttrList:
		values, err := attrValues(matches, rule.Attribute)
		if err != nil {
			return nil, err
		}
		return listOrNil(values), nil

	case config.KindTextList:
		texts, err := textValues(matches)
		if err != nil {
			return nil, err
		}
		return listOrNil(texts), nil

	case config.KindText, "":
		texts, err := textValues(matches)
		if err != nil {
			return nil, err
		}
		switch len(texts) {
		case 0:
			return nil, nil
		case 1:
			return texts[0], nil
		default:
			return texts, nil
		}

	default:
		return nil, fmt.Errorf("unknown extraction kind %q", rule.Kind)
	}
}

// textValues returns the trimmed, non-empty texts of the nodes.
func textValues(nodes []Node) ([]string, error) {
	var texts []string
	for _, n := range nodes {
		t, err := n.Text()
		if err != nil {
			return nil, err
		}
		if t = strings.TrimSpace(t); t != "" {
			texts = append(texts, t)
		}
	}
	return texts, nil
}

// attrValues returns the attribute of each node. For src, a container
// without the attribute falls back to its first descendant image.
func attrValues(nodes []Node, attr string) ([]string, error) {
	if attr == "" {
		attr = "src"
	}

	var values []string
	for _, n := range nodes {
		v, ok, err := n.Attr(attr)
		if err != nil {
			return nil, err
		}
		if (!ok || strings.TrimSpace(v) == "") && attr == "src" {
			imgs, err := n.QueryAll(imgSelector)
			if err != nil {
				return nil, err
			}
			if len(imgs) > 0 {
				if v, ok, err = imgs[0].Attr(attr); err != nil {
					return nil, err
				}
			}
		}
		if v = strings.TrimSpace(v); ok && v != "" {
			values = append(values, v)
		}
	}
	return values, nil
}

func listOrNil(values []string) any {
	if len(values) == 0 {
		return nil
	}
	return values
}
