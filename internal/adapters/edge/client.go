// Package edge queries the CDN reporting endpoint for edge cache statistics.
package edge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/psdstocks-cloud/creo-cache/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const maxBodyBytes = 1 << 20

type Config struct {
	URL       string
	Timeout   time.Duration
	UserAgent string

	// StaticToken is sent as a bearer token when no client credentials are set.
	StaticToken string

	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// HTTPError captures an unexpected status code from the reporting endpoint.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status code: %d, body: %s", e.StatusCode, string(e.Body))
}

type userAgentRoundTripper struct {
	wrapped   http.RoundTripper
	userAgent string
}

func (rt *userAgentRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", rt.userAgent)
	return rt.wrapped.RoundTrip(clone)
}

// Client is stateless apart from its HTTP client; every call hits the endpoint.
type Client struct {
	httpClient *http.Client
	url        string
	timeout    time.Duration
}

func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("edge stats url is required: %w", domain.ErrInvalidInput)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "creo-cache/edge-stats"
	}
	base := &http.Client{
		Transport: &userAgentRoundTripper{wrapped: http.DefaultTransport, userAgent: cfg.UserAgent},
		Timeout:   cfg.Timeout,
	}

	httpClient := base
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, base)
	switch {
	case cfg.ClientID != "" && cfg.TokenURL != "":
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		httpClient = cc.Client(tokenCtx)
		httpClient.Timeout = cfg.Timeout
	case cfg.StaticToken != "":
		httpClient = oauth2.NewClient(tokenCtx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.StaticToken}))
		httpClient.Timeout = cfg.Timeout
	}

	return &Client{httpClient: httpClient, url: cfg.URL, timeout: cfg.Timeout}, nil
}

type edgePayload struct {
	HitRate       *float64     `json:"hit_rate"`
	TotalRequests *int64       `json:"total_requests"`
	Data          *edgePayload `json:"data"`
}

// FetchEdgeStats reads hit rate and request count. Every failure, including
// a slow endpoint, wraps domain.ErrRemoteUnavailable.
func (c *Client) FetchEdgeStats(ctx context.Context) (domain.EdgeStatistics, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return domain.EdgeStatistics{}, unavailable(err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.EdgeStatistics{}, unavailable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return domain.EdgeStatistics{}, unavailable(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.EdgeStatistics{}, unavailable(&HTTPError{StatusCode: resp.StatusCode, Body: body})
	}

	var payload edgePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.EdgeStatistics{}, unavailable(fmt.Errorf("decode body: %w", err))
	}
	if payload.Data != nil {
		payload = *payload.Data
	}
	if payload.HitRate == nil && payload.TotalRequests == nil {
		return domain.EdgeStatistics{}, unavailable(fmt.Errorf("response carries no edge statistics"))
	}

	var out domain.EdgeStatistics
	if payload.HitRate != nil {
		out.HitRate = normalizeRate(*payload.HitRate)
	}
	if payload.TotalRequests != nil && *payload.TotalRequests > 0 {
		out.TotalRequests = *payload.TotalRequests
	}
	return out, nil
}

// normalizeRate accepts a ratio or a percentage and clamps to [0,1].
func normalizeRate(v float64) float64 {
	if v > 1 {
		v /= 100
	}
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func unavailable(err error) error {
	return fmt.Errorf("fetch edge stats: %w: %w", domain.ErrRemoteUnavailable, err)
}
