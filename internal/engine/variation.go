package engine

import (
	"context"
	"log/slog"
	"strings"

	"github.com/IshaanNene/sheetscrape/internal/automation"
	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/observability"
	"github.com/IshaanNene/sheetscrape/internal/parser"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

// Variation record keys and the label used for an axis that is not
// configured.
const (
	VariationColorKey = "variation_color"
	VariationSizeKey  = "variation_size"
	NotAvailable      = "N/A"
)

// VariationEnumerator clicks through every color x size combination of a
// product page and extracts a record for each.
type VariationEnumerator struct {
	extractor *parser.Extractor
	cfg       *config.BrowserSettings
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewVariationEnumerator creates a VariationEnumerator.
func NewVariationEnumerator(ex *parser.Extractor, cfg *config.BrowserSettings, m *observability.Metrics, logger *slog.Logger) *VariationEnumerator {
	return &VariationEnumerator{
		extractor: ex,
		cfg:       cfg,
		metrics:   m,
		logger:    logger.With("component", "variations"),
	}
}

// axis is one dimension of the product. A placeholder axis has no rule and
// a single slot.
type axis struct {
	name     string
	rule     config.FieldRule
	captured []automation.Element
}

func (a *axis) placeholder() bool { return a.rule.Selector.IsZero() }

func (a *axis) slots() int {
	if a.placeholder() {
		return 1
	}
	return len(a.captured)
}

// Enumerate walks colors in the outer loop and sizes in the inner loop, in
// DOM order. ready is the page's ready marker.
func (v *VariationEnumerator) Enumerate(ctx context.Context, sess automation.Session, rules []config.FieldRule, ready config.Selector, pageURL string) []*types.Record {
	colors := v.newAxis(sess, rules, config.ColorVariationField)
	sizes := v.newAxis(sess, rules, config.SizeVariationField)
	if colors.placeholder() && sizes.placeholder() {
		return nil
	}

	data := make([]config.FieldRule, 0, len(rules))
	for _, r := range rules {
		if !r.IsVariationTrigger() {
			data = append(data, r)
		}
	}

	var records []*types.Record
	for ci := 0; ci < colors.slots(); ci++ {
		colorLabel, ok := v.activate(ctx, sess, colors, ci, ready, pageURL)
		if !ok {
			continue
		}

		for si := 0; si < sizes.slots(); si++ {
			sizeLabel, ok := v.activate(ctx, sess, sizes, si, ready, pageURL)
			if !ok {
				continue
			}

			rec := types.NewRecord()
			rec.Set(VariationColorKey, colorLabel)
			rec.Set(VariationSizeKey, sizeLabel)
			if v.extractor.ExtractInto(rec, sess.Document(), data, pageURL) {
				records = append(records, rec)
			}
		}
	}

	v.logger.Debug("variations enumerated",
		"url", pageURL,
		"colors", colors.slots(),
		"sizes", sizes.slots(),
		"records", len(records),
	)
	return records
}

func (v *VariationEnumerator) newAxis(sess automation.Session, rules []config.FieldRule, name string) *axis {
	a := &axis{name: name}
	for _, r := range rules {
		if r.Name == name {
			a.rule = r
		}
	}
	if a.placeholder() {
		return a
	}

	els, err := sess.FindAll(a.rule.Selector)
	if err != nil {
		v.logger.Warn("variation lookup failed", "axis", name, "error", err)
		return a
	}
	a.captured = els
	return a
}

// activate selects slot i of the axis and waits for the page to settle. It
// returns the slot's label and false when the slot must be skipped.
func (v *VariationEnumerator) activate(ctx context.Context, sess automation.Session, a *axis, i int, ready config.Selector, pageURL string) (string, bool) {
	if a.placeholder() {
		return NotAvailable, true
	}

	el := v.resolve(sess, a, i)
	label, err := el.Text()
	if err != nil {
		v.logger.Warn("variation label unreadable", "axis", a.name, "index", i, "url", pageURL, "error", err)
	}
	label = strings.TrimSpace(label)

	if err := sess.Trigger(el); err != nil {
		v.logger.Warn("variation click failed", "axis", a.name, "index", i, "url", pageURL, "error", err)
		v.metrics.VariationTriggered(a.name, false)
		return "", false
	}

	if _, err := automation.WaitAny(ctx, v.cfg.VariationTimeout, v.cfg.PollInterval,
		automation.Detached(el),
		automation.Present(sess, ready),
	); err != nil {
		v.logger.Warn("variation did not settle", "axis", a.name, "index", i, "url", pageURL, "error", err)
		v.metrics.VariationTriggered(a.name, false)
		return "", false
	}

	v.metrics.VariationTriggered(a.name, true)
	return label, true
}

// resolve looks element i up again on the live page, so a reload caused by
// an earlier click does not leave us holding a detached handle.
func (v *VariationEnumerator) resolve(sess automation.Session, a *axis, i int) automation.Element {
	els, err := sess.FindAll(a.rule.Selector)
	if err == nil && i < len(els) {
		return els[i]
	}
	return a.captured[i]
}
