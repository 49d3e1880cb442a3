package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrTimeout         = errors.New("timed out")
	ErrMaxRetries      = errors.New("max retries exceeded")
	ErrElementNotFound = errors.New("element not found")
	ErrEmptyResponse   = errors.New("empty response body")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError wraps errors that occur during extraction.
type ParseError struct {
	URL      string
	Field    string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (field=%q selector=%q): %v", e.URL, e.Field, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SessionError wraps browser session failures.
type SessionError struct {
	Browser string
	Op      string
	Err     error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("browser %s: %s: %v", e.Browser, e.Op, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// SiteError marks a failure that aborts one site but not the run.
type SiteError struct {
	Site string
	URL  string
	Err  error
}

func (e *SiteError) Error() string {
	return fmt.Sprintf("site %q (%s): %v", e.Site, e.URL, e.Err)
}

func (e *SiteError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Table   string
	Err     error
}

func (e *StorageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("storage error (%s, table %q): %v", e.Backend, e.Table, e.Err)
	}
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors from a pipeline stage.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
