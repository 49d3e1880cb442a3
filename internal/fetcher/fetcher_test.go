package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/sheetscrape/internal/config"
	"github.com/IshaanNene/sheetscrape/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestFetcher(t *testing.T) *HTTPFetcher {
	t.Helper()
	settings := config.DefaultSettings()
	f, err := NewHTTPFetcher(&settings.HTTP, 2*time.Second, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestHTTPFetcherGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Mozilla/5.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, "<h1>A</h1>")
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	resp, err := f.Get(context.Background(), srv.URL, http.Header{"X-Test": {"yes"}})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "<h1>A</h1>", string(resp.Body))
	assert.Equal(t, "text/html", resp.ContentType)
}

func TestHTTPFetcherNon2xxIsFetchError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(t).Get(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var fe *types.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusServiceUnavailable, fe.StatusCode)
	assert.Contains(t, fe.Error(), "boom")
}

func TestHTTPFetcherDecompresses(t *testing.T) {
	var gz, br bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write([]byte("gzip body"))
	require.NoError(t, gw.Close())
	bw := brotli.NewWriter(&br)
	_, _ = bw.Write([]byte("brotli body"))
	require.NoError(t, bw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gz":
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(gz.Bytes())
		case "/br":
			w.Header().Set("Content-Encoding", "br")
			_, _ = w.Write(br.Bytes())
		}
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	resp, err := f.Get(context.Background(), srv.URL+"/gz", nil)
	require.NoError(t, err)
	assert.Equal(t, "gzip body", string(resp.Body))

	resp, err = f.Get(context.Background(), srv.URL+"/br", nil)
	require.NoError(t, err)
	assert.Equal(t, "brotli body", string(resp.Body))
}

func TestHTTPFetcherLimitsDecompressedBody(t *testing.T) {
	plain := bytes.Repeat([]byte("a"), 4096)
	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	_, _ = gw.Write(plain)
	require.NoError(t, gw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/gz":
			w.Header().Set("Content-Encoding", "gzip")
			_, _ = w.Write(gz.Bytes())
		default:
			_, _ = io.WriteString(w, "short")
		}
	}))
	defer srv.Close()

	settings := config.DefaultSettings()
	settings.HTTP.MaxBodySize = 64
	f, err := NewHTTPFetcher(&settings.HTTP, 2*time.Second, testLogger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	resp, err := f.Get(context.Background(), srv.URL+"/gz", nil)
	require.NoError(t, err)
	assert.Equal(t, plain[:64], resp.Body)

	resp, err = f.Get(context.Background(), srv.URL+"/plain", nil)
	require.NoError(t, err)
	assert.Equal(t, "short", string(resp.Body))
}

func TestProxyRotator(t *testing.T) {
	pr := NewProxyRotator([]string{"http://a:1", "::bad", "http://b:2"}, testLogger)
	require.Equal(t, 2, pr.Count())
	assert.Equal(t, "a:1", pr.Next().Host)
	assert.Equal(t, "b:2", pr.Next().Host)
	assert.Equal(t, "a:1", pr.Next().Host)

	assert.Nil(t, NewProxyRotator(nil, testLogger).Next())
}

func newTestAPI(t *testing.T) (*APIFetcher, *[]time.Duration) {
	t.Helper()
	settings := config.DefaultSettings()
	api := NewAPIFetcher(newTestFetcher(t), &settings.API, testLogger)
	var sleeps []time.Duration
	api.Sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return api, &sleeps
}

func TestAPIFetchRetriesExactly(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	api, sleeps := newTestAPI(t)
	records, ok := api.Fetch(context.Background(), srv.URL, nil, nil, 3)

	assert.False(t, ok)
	assert.Nil(t, records)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, *sleeps)
}

func TestAPIFetchSucceedsFirstTry(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer k1", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"data":{"items":[{"b":"2","a":"1"},{"a":"3"}]}}`)
	}))
	defer srv.Close()

	api, sleeps := newTestAPI(t)
	records, ok := api.Fetch(context.Background(), srv.URL, []string{"data", "items"}, BearerHeader("k1"), 3)

	require.True(t, ok)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, *sleeps)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"b", "a"}, records[0].Keys())
	assert.Equal(t, "1", records[0].GetString("a"))
	assert.Equal(t, "3", records[1].GetString("a"))
}

func TestAPIFetchRecoversAfterFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			_, _ = io.WriteString(w, "not json")
			return
		}
		_, _ = io.WriteString(w, `{"name":"x"}`)
	}))
	defer srv.Close()

	api, sleeps := newTestAPI(t)
	records, ok := api.Fetch(context.Background(), srv.URL, nil, nil, 3)

	require.True(t, ok)
	assert.Equal(t, int32(2), hits.Load())
	assert.Len(t, *sleeps, 1)
	require.Len(t, records, 1)
	assert.Equal(t, "x", records[0].GetString("name"))
}

func TestAPIFetchLogsMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	settings := config.DefaultSettings()
	api := NewAPIFetcher(newTestFetcher(t), &settings.API, slog.New(slog.NewTextHandler(&logs, nil)))
	api.Sleep = func(context.Context, time.Duration) error { return nil }

	_, ok := api.Fetch(context.Background(), srv.URL, nil, nil, 2)
	assert.False(t, ok)
	assert.Contains(t, logs.String(), "API failed after all attempts")
	assert.Contains(t, logs.String(), "max retries exceeded (2 attempts)")
	assert.Contains(t, logs.String(), "status 502")
}

func TestAPIAttemptEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "  \n")
	}))
	defer srv.Close()

	api, _ := newTestAPI(t)
	_, err := api.attempt(context.Background(), srv.URL, nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrEmptyResponse)
}

func TestDecodeValueKeepsDocumentOrder(t *testing.T) {
	dec := json.NewDecoder(strings.NewReader(`{"z":1,"a":{"y":true,"b":null},"m":[{"k2":"x","k1":"y"},2.5]}`))
	dec.UseNumber()
	v, err := decodeValue(dec)
	require.NoError(t, err)

	rec, ok := v.(*types.Record)
	require.True(t, ok)
	assert.Equal(t, []string{"z", "a", "m"}, rec.Keys())

	z, _ := rec.Get("z")
	assert.Equal(t, json.Number("1"), z)

	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":{"y":true,"b":null},"m":[{"k2":"x","k1":"y"},2.5]}`, string(b))
}

func TestDecodeValueRejectsMalformed(t *testing.T) {
	for _, in := range []string{`{"a":`, `[1,}`, `{"a" 1}`} {
		dec := json.NewDecoder(strings.NewReader(in))
		_, err := decodeValue(dec)
		assert.Error(t, err, in)
	}
}

func TestRecordsAt(t *testing.T) {
	obj := func(kv ...any) *types.Record {
		rec := types.NewRecord()
		for i := 0; i+1 < len(kv); i += 2 {
			rec.Set(kv[i].(string), kv[i+1])
		}
		return rec
	}

	tests := []struct {
		name string
		data any
		path []string
		want []string
	}{
		{
			name: "object wraps into one record",
			data: obj("b", "2", "a", "1"),
			want: []string{`{"b":"2","a":"1"}`},
		},
		{
			name: "missing key yields empty object",
			data: obj("a", "1"),
			path: []string{"nope", "deeper"},
			want: []string{`{}`},
		},
		{
			name: "non-object intermediate yields empty object",
			data: obj("a", []any{"x"}),
			path: []string{"a", "b"},
			want: []string{`{}`},
		},
		{
			name: "array elements become records",
			data: []any{obj("a", "1"), "scalar"},
			want: []string{`{"a":"1"}`, `{"value":"scalar"}`},
		},
		{
			name: "scalar target",
			data: obj("n", "5"),
			path: []string{"n"},
			want: []string{`{"value":"5"}`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := recordsAt(tt.data, tt.path)
			require.Len(t, got, len(tt.want))
			for i, rec := range got {
				b, err := json.Marshal(rec)
				require.NoError(t, err)
				assert.Equal(t, tt.want[i], string(b))
			}
		})
	}
}

func TestBearerHeader(t *testing.T) {
	assert.Nil(t, BearerHeader(""))
	assert.Equal(t, "Bearer abc", BearerHeader("abc").Get("Authorization"))
}
