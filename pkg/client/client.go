package client

import (
	"net/http"
	"time"

	"github.com/ashpect/itemstream/pkg/config"
)

const defaultClientTimeout = 30 * time.Second

type ClientOption func(*http.Client)

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *http.Client) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *http.Client) {
		c.Transport = transport
	}
}

// WithUserAgent stamps every outgoing request that doesn't set its own User-Agent.
func WithUserAgent(ua string) ClientOption {
	return func(c *http.Client) {
		next := c.Transport
		if next == nil {
			next = http.DefaultTransport
		}
		c.Transport = userAgentTransport{ua: ua, next: next}
	}
}

func NewClient(opts ...ClientOption) *http.Client {
	client := &http.Client{
		Timeout:   defaultClientTimeout,
		Transport: http.DefaultTransport,
	}

	for _, opt := range opts {
		opt(client)
	}
	return client
}

// FromConfig builds the client the startup caller uses.
func FromConfig(cfg config.CallerCfg, userAgent string) *http.Client {
	transport := NewTransport(
		WithMaxIdleConns(cfg.MaxIdleConns),
		WithMaxIdleConnsPerHost(cfg.MaxIdleConnsPerHost),
		WithIdleConnTimeout(cfg.IdleConnTimeout),
	)
	opts := []ClientOption{WithTransport(transport), WithTimeout(cfg.Timeout)}
	if userAgent != "" {
		opts = append(opts, WithUserAgent(userAgent))
	}
	return NewClient(opts...)
}

type userAgentTransport struct {
	ua   string
	next http.RoundTripper
}

func (t userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.next.RoundTrip(req)
	}
	// RoundTrippers must not modify the caller's request
	out := req.Clone(req.Context())
	out.Header.Set("User-Agent", t.ua)
	return t.next.RoundTrip(out)
}
