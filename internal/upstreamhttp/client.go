// Package upstreamhttp is the outbound HTTP collaborator described at the
// interface in spec §6: given a URL, headers, and a body, it performs a POST
// and yields a status code plus a streaming byte source. It never buffers
// the full response body itself — reading incrementally is the caller's
// (internal/server's) job, so the reassembler can work on live bytes.
//
// Adapted from the teacher's pkg/internal/http/client.go Client/Request/
// DoStream shape, trimmed to the one verb and one caller this proxy needs.
package upstreamhttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// Client issues the single outbound POST this proxy ever makes.
type Client struct {
	httpClient    *http.Client
	streamTimeout time.Duration
}

// Config configures connection-establishment and overall streaming timeouts
// (§5 "Timeouts").
type Config struct {
	ConnectTimeout time.Duration
	StreamTimeout  time.Duration
}

// New builds a Client. A zero Config gets reasonable defaults.
func New(cfg Config) *Client {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = 10 * time.Second
	}
	stream := cfg.StreamTimeout
	if stream <= 0 {
		stream = 5 * time.Minute
	}
	return &Client{
		streamTimeout: stream,
		httpClient: &http.Client{
			// No blanket client Timeout: the overall streaming timeout is
			// enforced by the caller wrapping ctx with StreamTimeout, so a
			// slow-but-live stream is not cut off just because it runs long.
			Transport: &http.Transport{
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext:         (&net.Dialer{Timeout: connect}).DialContext,
			},
		},
	}
}

// StreamTimeout returns the configured overall streaming timeout, for the
// caller to apply via context.WithTimeout around the whole request.
func (c *Client) StreamTimeout() time.Duration {
	return c.streamTimeout
}

// Response is the streaming result of DoPost. Body must be closed by the
// caller once fully drained or on cancellation.
type Response struct {
	StatusCode int
	Body       io.ReadCloser
}

// DoPost issues a POST with the given URL, headers, and body, returning as
// soon as response headers arrive — the body is not read here.
func (c *Client) DoPost(ctx context.Context, url string, headers map[string]string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	req.ContentLength = int64(len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: resp.Body}, nil
}
