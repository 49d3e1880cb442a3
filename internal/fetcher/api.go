package fetcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// APIFetcher pulls records from a JSON endpoint.
type APIFetcher struct {
	fetcher Fetcher
	backoff time.Duration
	logger  *slog.Logger

	// Sleep is called between attempts. Tests replace it.
	Sleep SleepFunc
}

// NewAPIFetcher creates an APIFetcher over f.
func NewAPIFetcher(f Fetcher, cfg *config.APISettings, logger *slog.Logger) *APIFetcher {
	return &APIFetcher{
		fetcher: f,
		backoff: cfg.Backoff,
		logger:  logger.With("component", "api_fetcher"),
		Sleep:   sleepContext,
	}
}

// Fetch makes up to retries attempts, waiting a fixed backoff between
// them. It returns false once every attempt has failed.
func (a *APIFetcher) Fetch(ctx context.Context, rawURL string, jsonPath []string, header http.Header, retries int) ([]*types.Record, bool) {
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		records, err := a.attempt(ctx, rawURL, jsonPath, header)
		if err == nil {
			a.logger.Info("fetched API data", "url", rawURL, "records", len(records), "attempt", attempt)
			return records, true
		}

		a.logger.Warn("API attempt failed",
			"url", rawURL,
			"attempt", attempt,
			"retries", retries,
			"error", err,
		)
		lastErr = err
		if attempt == retries {
			break
		}
		if err := a.Sleep(ctx, a.backoff); err != nil {
			a.logger.Error("API backoff interrupted", "url", rawURL, "error", err)
			return nil, false
		}
	}

	a.logger.Error("API failed after all attempts",
		"url", rawURL,
		"error", fmt.Errorf("%w (%d attempts): %w", types.ErrMaxRetries, retries, lastErr),
	)
	return nil, false
}

func (a *APIFetcher) attempt(ctx context.Context, rawURL string, jsonPath []string, header http.Header) ([]*types.Record, error) {
	resp, err := a.fetcher.Get(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return nil, &types.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: types.ErrEmptyResponse}
	}

	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	data, err := decodeValue(dec)
	if err != nil {
		return nil, &types.FetchError{URL: rawURL, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode JSON: %w", err)}
	}

	return recordsAt(data, jsonPath), nil
}

// decodeValue reads the next JSON value. Objects become records so their
// keys keep document order; arrays become []any.
func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch tok {
	case json.Delim('{'):
		rec := types.NewRecord()
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T", keyTok)
			}
			v, err := decodeValue(dec)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", key, err)
			}
			rec.Set(key, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return rec, nil

	case json.Delim('['):
		list := make([]any, 0)
		for dec.More() {
			v, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			list = append(list, v)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return list, nil

	default:
		return tok, nil
	}
}

// recordsAt descends path from data and converts the target to records.
// A missing key or a non-object along the way yields an empty object.
func recordsAt(data any, path []string) []*types.Record {
	for _, key := range path {
		obj, ok := data.(*types.Record)
		if !ok {
			data = types.NewRecord()
			continue
		}
		next, ok := obj.Get(key)
		if !ok {
			next = types.NewRecord()
		}
		data = next
	}

	switch v := data.(type) {
	case *types.Record:
		return []*types.Record{v}
	case []any:
		records := make([]*types.Record, 0, len(v))
		for _, el := range v {
			if obj, ok := el.(*types.Record); ok {
				records = append(records, obj)
				continue
			}
			records = append(records, valueRecord(el))
		}
		return records
	default:
		return []*types.Record{valueRecord(v)}
	}
}

func valueRecord(v any) *types.Record {
	rec := types.NewRecord()
	rec.Set("value", v)
	return rec
}

// BearerHeader returns the headers for an API key, or nil.
func BearerHeader(apiKey string) http.Header {
	if apiKey == "" {
		return nil
	}
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+apiKey)
	return h
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
