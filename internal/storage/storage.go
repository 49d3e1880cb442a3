package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/IshaanNene/sheetscrape/internal/types"
)

// MaxSheetName is the longest sheet name spreadsheets accept, in runes.
const MaxSheetName = 31

// Sink is the interface for all tabular backends.
type Sink interface {
	// WriteTable persists one named table and flushes it.
	WriteTable(ctx context.Context, t *Table) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the sink identifier.
	Name() string
}

// Table is one site's result set in sink-ready form.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// NewTable lays out records as rows. Column 0 is "url", filled with
// siteURL; the other columns follow the order in which keys first appear.
func NewTable(name, siteURL string, records []*types.Record) *Table {
	t := &Table{Name: name, Columns: []string{"url"}}
	index := map[string]int{"url": 0}

	for _, rec := range records {
		for _, k := range rec.Keys() {
			if _, ok := index[k]; !ok {
				index[k] = len(t.Columns)
				t.Columns = append(t.Columns, k)
			}
		}
	}

	t.Rows = make([][]any, 0, len(records))
	for _, rec := range records {
		row := make([]any, len(t.Columns))
		row[0] = siteURL
		for _, k := range rec.Keys() {
			if k == "url" {
				// A scraped "url" field overrides the site URL.
				if v, _ := rec.Get(k); v != nil {
					row[0] = v
				}
				continue
			}
			row[index[k]], _ = rec.Get(k)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// CellText renders a cell value as text. nil is empty.
func CellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	default:
		return fmt.Sprint(val)
	}
}

// Namer hands out sheet names that are valid and unique within one run.
type Namer struct {
	used map[string]bool
}

// NewNamer creates an empty Namer.
func NewNamer() *Namer {
	return &Namer{used: make(map[string]bool)}
}

// Unique sanitizes base and suffixes _2, _3, ... until the name is unused.
// Comparison ignores case, as spreadsheets do.
func (n *Namer) Unique(base string) string {
	base = SheetName(base)
	name := base
	for i := 2; n.used[strings.ToLower(name)]; i++ {
		suffix := "_" + strconv.Itoa(i)
		name = truncateRunes(base, MaxSheetName-utf8.RuneCountInString(suffix)) + suffix
	}
	n.used[strings.ToLower(name)] = true
	return name
}

// SheetName strips the characters spreadsheets reject and truncates to
// MaxSheetName runes. An empty result becomes "Sheet".
func SheetName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return -1
		}
		return r
	}, s)
	s = strings.Trim(strings.TrimSpace(s), "'")
	s = truncateRunes(s, MaxSheetName)
	if s == "" {
		return "Sheet"
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
