// Package client issues the generation request and exposes the response
// body as a byte stream for the session to consume.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// getHTTPClient returns a singleton HTTP client. The client carries no
// overall timeout: the response is a long-lived stream and its lifetime is
// bounded by the request context instead.
var (
	httpClient     *http.Client
	httpClientOnce sync.Once
)

func getHTTPClient() *http.Client {
	httpClientOnce.Do(func() {
		transport := &http.Transport{
			MaxIdleConns:       100,
			IdleConnTimeout:    90 * time.Second,
			DisableCompression: false,
			DisableKeepAlives:  false,
			ForceAttemptHTTP2:  true,
		}

		transport.DialContext = (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext

		httpClient = &http.Client{
			Transport: transport,
		}
	})

	return httpClient
}

// Client requests a learning path for a topic and streams the NDJSON
// response back to the caller.
type Client struct {
	endpoint string
	logger   *log.Logger
}

// New returns a client posting to endpoint.
func New(endpoint string, logger *log.Logger) *Client {
	return &Client{endpoint: endpoint, logger: logger}
}

// Open posts the topic and returns the response body. The caller owns the
// body and reads it chunk by chunk; closing it ends the stream. Any
// non-200 status is a transport failure.
func (c *Client) Open(ctx context.Context, topic string) (io.ReadCloser, error) {
	payload, err := json.Marshal(map[string]string{"topic": topic})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/x-ndjson")

	if token := resolveToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("opening stream", "endpoint", c.endpoint, "topic", topic)

	resp, err := getHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err := resp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", "err", err)
		}
		return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return resp.Body, nil
}
