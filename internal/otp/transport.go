package otp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/otp-analysis/internal/common/logger"
)

const (
	UserAgent       = "otpanalysis/1.0"
	maxResponseSize = 256 << 20
	maxErrorBody    = 512
)

// Response is what the routing service sent back, whatever its status.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ContentType returns the Content-Type header.
func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// HTTPTransport issues GET requests over net/http.
type HTTPTransport struct {
	client *http.Client
	logger logger.Logger
}

func NewHTTPTransport(timeout time.Duration, log logger.Logger) *HTTPTransport {
	return &HTTPTransport{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     30 * time.Second,
			},
		},
		logger: log,
	}
}

// Get sends GET endpoint?params. A non-2xx status is not an error at this
// layer; only failures to obtain a response are.
func (t *HTTPTransport) Get(ctx context.Context, endpoint string, params *Params) (*Response, error) {
	target := endpoint
	if q := params.Encode(); q != "" {
		target += "?" + q
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json, application/zip")

	t.logger.Debug("Sending request", "url", target)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request to %s: %w", target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
