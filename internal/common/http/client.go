// internal/common/http/client.go

// Package http wraps the standard client with the shape the document-AI
// calls have: JSON payloads POSTed with bearer auth. Retry policy stays
// with the caller, which knows which statuses are worth another attempt.
package http

import (
	"bytes"
	"context"
	"net/http"
	"time"
)

type Client struct {
	httpClient  *http.Client
	bearerToken string
}

func NewClient(timeout time.Duration, bearerToken string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		bearerToken: bearerToken,
	}
}

// PostJSON sends the already-marshaled body to the url. The caller owns the
// response body.
func (c *Client) PostJSON(ctx context.Context, url string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}
	return c.httpClient.Do(req)
}
