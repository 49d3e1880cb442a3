package fetcher

import (
	"context"
	"net/http"

	"github.com/IshaanNene/sheetscrape/internal/types"
)

// Fetcher retrieves a URL over plain HTTP.
type Fetcher interface {
	// Get fetches rawURL with the given extra headers. Non-2xx responses
	// are returned as *types.FetchError.
	Get(ctx context.Context, rawURL string, header http.Header) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error
}
