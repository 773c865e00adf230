// internal/advisor/http.go
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient asks a remote advisor service for recommendations by POSTing the
// Request as JSON and decoding a Recommendation from the response body.
type HTTPClient struct {
	url    string
	client *http.Client
}

// NewHTTPClient creates an HTTPClient for url. Each call is bounded by timeout.
func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{url: url, client: &http.Client{Timeout: timeout}}
}

var _ Advisor = (*HTTPClient)(nil)

// RecommendStrategy calls the remote advisor.
func (c *HTTPClient) RecommendStrategy(ctx context.Context, req Request) (Recommendation, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Recommendation{}, fmt.Errorf("advisor: failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Recommendation{}, fmt.Errorf("advisor: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Recommendation{}, fmt.Errorf("advisor: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return Recommendation{}, fmt.Errorf("advisor: unexpected status %d", resp.StatusCode)
	}

	var rec Recommendation
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&rec); err != nil {
		return Recommendation{}, fmt.Errorf("advisor: failed to decode response: %w", err)
	}
	return rec, nil
}
