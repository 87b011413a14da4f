package client

import (
	"net"
	"net/http"
	"time"
)

type TransportOption func(*http.Transport)

func WithMaxIdleConns(maxIdleConns int) TransportOption {
	return func(t *http.Transport) {
		t.MaxIdleConns = maxIdleConns
	}
}

func WithMaxIdleConnsPerHost(maxIdleConnsPerHost int) TransportOption {
	return func(t *http.Transport) {
		t.MaxIdleConnsPerHost = maxIdleConnsPerHost
	}
}

func WithIdleConnTimeout(timeout time.Duration) TransportOption {
	return func(t *http.Transport) {
		t.IdleConnTimeout = timeout
	}
}

// NewTransport starts from sane dial and TLS timeouts and honours proxy env vars.
func NewTransport(opts ...TransportOption) *http.Transport {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(transport)
	}
	return transport
}
