package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one extracted row: an ordered mapping of field name to value.
// Values are nil, string or []string for DOM extraction, and any decoded
// JSON value for API sites.
type Record struct {
	keys   []string
	values map[string]any
}

// NewRecord creates an empty Record.
func NewRecord() *Record {
	return &Record{values: make(map[string]any)}
}

// Set sets a field value. New keys are appended to the key order.
func (r *Record) Set(key string, value any) {
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = value
}

// Get retrieves a field value.
func (r *Record) Get(key string) (any, bool) {
	v, ok := r.values[key]
	return v, ok
}

// GetString retrieves a field value as a string.
func (r *Record) GetString(key string) string {
	s, _ := r.values[key].(string)
	return s
}

// Has returns true if the field exists, even with a nil value.
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}


// Keys returns field names in insertion order.
func (r *Record) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Len returns the number of fields.
func (r *Record) Len() int { return len(r.keys) }

// HasData reports whether at least one field holds a non-nil value.
func (r *Record) HasData() bool {
	for _, v := range r.values {
		if v != nil {
			return true
		}
	}
	return false
}

// MarshalJSON keeps the field order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.values[k])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		b.Write(kb)
		b.WriteByte(':')
		b.Write(vb)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}
