// Package httpc provides shared HTTP clients with sensible defaults.
// Use these instead of http.DefaultClient so dial and TLS timeouts are set.
package httpc

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Default timeouts for HTTP operations.
const (
	DefaultTimeout         = 30 * time.Second
	DefaultConnectTimeout  = 10 * time.Second
	DefaultKeepAlive       = 30 * time.Second
	DefaultIdleConnTimeout = 90 * time.Second
	DefaultHeaderTimeout   = 30 * time.Second
)

// Client is a shared client for short request/response calls.
var Client = NewClient(DefaultTimeout)

// StreamClient is a shared client for large body downloads.
// It has no overall or response header timeout: only dial and TLS are
// bounded, and a transfer runs as long as the caller's context is alive.
var StreamClient = NewClient(0)

// NewClient creates a new HTTP client with the specified overall timeout.
// A zero timeout disables the overall deadline and the response header
// deadline.
func NewClient(timeout time.Duration) *http.Client {
	var header time.Duration
	if timeout > 0 {
		header = DefaultHeaderTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(header),
	}
}

func newTransport(headerTimeout time.Duration) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: DefaultKeepAlive,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       DefaultIdleConnTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Get performs a GET bound to ctx with the given client.
// A nil client uses Client.
func Get(ctx context.Context, client *http.Client, url string) (*http.Response, error) {
	if client == nil {
		client = Client
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return client.Do(req)
}
