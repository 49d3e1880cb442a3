package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/IshaanNene/sheetscrape/internal/types"
)

// Middleware processes a record and returns the (possibly modified) record.
// Return nil to drop the record from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop it.
	Process(rec *types.Record) (*types.Record, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Default returns the pipeline every site table goes through: trim, drop
// records without data, flatten lists with sep.
func Default(sep string, logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(&TrimMiddleware{})
	p.Use(&DropEmptyMiddleware{})
	p.Use(&FlattenMiddleware{Separator: sep})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(rec *types.Record) (*types.Record, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{Stage: mw.Name(), Err: err}
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", mw.Name())
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// ProcessAll runs every record and returns the survivors in order. Records
// that fail a stage are logged and dropped.
func (p *Pipeline) ProcessAll(records []*types.Record) []*types.Record {
	kept := make([]*types.Record, 0, len(records))
	for i, rec := range records {
		out, err := p.Process(rec)
		if err != nil {
			p.logger.Warn("record rejected", "index", i, "error", err)
			continue
		}
		if out != nil {
			kept = append(kept, out)
		}
	}
	return kept
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// --- Built-in Middleware ---

// DropEmptyMiddleware drops records whose fields are all nil.
type DropEmptyMiddleware struct{}

func (m *DropEmptyMiddleware) Name() string { return "drop_empty" }

func (m *DropEmptyMiddleware) Process(rec *types.Record) (*types.Record, error) {
	if !rec.HasData() {
		return nil, nil
	}
	return rec, nil
}

// TrimMiddleware trims whitespace from all string fields.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(rec *types.Record) (*types.Record, error) {
	for _, key := range rec.Keys() {
		if s := rec.GetString(key); s != "" {
			rec.Set(key, strings.TrimSpace(s))
		}
	}
	return rec, nil
}

// FlattenMiddleware turns list values into one delimited string so every
// value fits a single cell. Nested JSON objects become compact JSON text.
type FlattenMiddleware struct {
	Separator string
}

func (m *FlattenMiddleware) Name() string { return "flatten" }

func (m *FlattenMiddleware) Process(rec *types.Record) (*types.Record, error) {
	for _, key := range rec.Keys() {
		v, _ := rec.Get(key)
		flat, err := m.flatten(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		rec.Set(key, flat)
	}
	return rec, nil
}

func (m *FlattenMiddleware) flatten(v any) (any, error) {
	switch val := v.(type) {
	case []string:
		return strings.Join(val, m.Separator), nil
	case []any:
		parts := make([]string, 0, len(val))
		for _, el := range val {
			s, err := scalarText(el)
			if err != nil {
				return nil, err
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, m.Separator), nil
	case map[string]any, *types.Record:
		b, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	default:
		return v, nil
	}
}

func scalarText(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case map[string]any, *types.Record, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return fmt.Sprint(val), nil
	}
}
