package httpu

import (
	"net"
	"net/http"
	"time"

	"mangrobe.dev/streamsource/telemetry"
)

// NewClient returns an http.Client with its own transport, instrumented under
// metricName.
//
// Sharing http.DefaultTransport between clients left "new" connections in
// tests that http.Server.Shutdown() could never close. Every client here
// talks to a single table service host, so idle connections are pooled per
// host rather than globally.
func NewClient(metricName string) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          16,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: telemetry.NewMetricsTransport(metricName, transport),
	}
}
