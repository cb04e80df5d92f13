// Package upstream fetches hot catalog documents (supported media sources,
// top categories) that warm jobs store verbatim.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/psdstocks-cloud/creo-cache/internal/warmer"
)

const maxDocumentBytes = 8 << 20

type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream %s: unexpected status code %d", e.URL, e.StatusCode)
}

type Fetcher struct {
	client *http.Client
}

func NewFetcher(client *http.Client) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Fetcher{client: client}
}

// JSON returns a fetch function reading a JSON document from url.
func (f *Fetcher) JSON(url string) warmer.FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil, &HTTPError{URL: url, StatusCode: resp.StatusCode}
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
		if err != nil {
			return nil, fmt.Errorf("read upstream %s: %w", url, err)
		}
		if !json.Valid(body) {
			return nil, fmt.Errorf("upstream %s returned invalid json", url)
		}
		return body, nil
	}
}
