package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"mangrobe.dev/streamsource/util/httpu"
)

// HTTPClient retries requests that fail with an unavailable-style status.
// It satisfies connect.HTTPClient.
type HTTPClient struct {
	maxAttempts       int
	initialRetryDelay time.Duration
	goHTTPClient      *http.Client
}

type newOption func(c *HTTPClient)

func NewHTTPClient(metricName string, options ...newOption) *HTTPClient {
	client := &HTTPClient{
		maxAttempts:       10,
		initialRetryDelay: 100 * time.Millisecond,
		goHTTPClient:      httpu.NewClient(metricName),
	}

	for _, o := range options {
		o(client)
	}

	return client
}

// WithInitialRetryDelay sets the delay before the first retry. Later retries
// wait a multiple of it. Zero keeps the default.
func WithInitialRetryDelay(delay time.Duration) newOption {
	return func(c *HTTPClient) {
		if delay > 0 {
			c.initialRetryDelay = delay
		}
	}
}

func WithMaxAttempts(attempts int) newOption {
	return func(c *HTTPClient) {
		if attempts > 0 {
			c.maxAttempts = attempts
		}
	}
}

// Do sends the request and retries it while the server is unavailable. When
// attempts run out the last response is returned without an error so that the
// caller can decode the server's error body.
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	err := retry(req, c.maxAttempts, c.initialRetryDelay, func(isRetry bool) error {
		if isRetry && resp != nil {
			resp.Body.Close()
		}

		// The body was consumed by the previous attempt
		if isRetry && req.Body != nil {
			if req.GetBody == nil {
				return fmt.Errorf("cannot replay request body for %s", req.URL)
			}
			var err error
			req.Body, err = req.GetBody()
			if err != nil {
				return err
			}
		}

		var err error
		resp, err = c.goHTTPClient.Do(req)
		if err != nil {
			return err
		}

		if shouldRetryStatus(resp.StatusCode) {
			return fmt.Errorf("status=%q url=%s: %w", resp.Status, req.URL.String(), errRetry)
		}

		return nil
	})

	if errors.Is(err, errRetry) && resp != nil {
		return resp, nil
	}
	if err != nil && resp != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp, err
}

func (c *HTTPClient) CloseIdleConnections() {
	c.goHTTPClient.CloseIdleConnections()
}

func shouldRetryStatus(code int) bool {
	return code == 0 ||
		code == http.StatusTooManyRequests ||
		code == http.StatusBadGateway ||
		code == http.StatusServiceUnavailable ||
		code == http.StatusGatewayTimeout
}

func retry(req *http.Request, attempts int, initialDelay time.Duration, fn func(isRetry bool) error) error {
	var err error
	for i := range attempts {
		if i > 0 {
			select {
			case <-req.Context().Done():
				return req.Context().Err()
			case <-time.After(initialDelay * time.Duration(i)):
			}
		}
		err = fn(i > 0)
		if errors.Is(err, errRetry) {
			continue
		}
		return err
	}
	return fmt.Errorf("after %d attempts, last error: %w", attempts, err)
}

var errRetry = errors.New("retryable")
