// Package caller performs the one-shot boot time lookup against the HTTP
// echo service and exposes the same lookup for on-demand use.
package caller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ashpect/itemstream/pkg/cache"
	"github.com/ashpect/itemstream/pkg/client"
	"github.com/ashpect/itemstream/pkg/config"
	"github.com/ashpect/itemstream/pkg/logging"
	"github.com/ashpect/itemstream/pkg/metrics"
	"github.com/ashpect/itemstream/pkg/tracing"
)

var (
	ErrUnexpectedStatus = errors.New("caller: unexpected status")
	ErrFieldMissing     = errors.New("caller: field missing from response")
	ErrFieldType        = errors.New("caller: field is not a string")
)

// maxBodyBytes bounds how much of the echo response is read.
const maxBodyBytes = 1 << 20

type Caller struct {
	cfg     config.CallerCfg
	web     config.WebCfg
	client  *http.Client
	cache   cache.Cache[string, *CachedResponse]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Caller)

func WithClient(c *http.Client) Option {
	return func(cl *Caller) {
		cl.client = c
	}
}

// WithCache enables response caching. Entries are keyed by request URL.
func WithCache(c cache.Cache[string, *CachedResponse]) Option {
	return func(cl *Caller) {
		cl.cache = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cl *Caller) {
		cl.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Caller) {
		cl.metrics = m
	}
}

// NewResponseCache builds the LRU-TTL cache the caller stores responses in.
func NewResponseCache(cfg config.CacheCfg) (cache.Cache[string, *CachedResponse], error) {
	c, err := cache.NewLRUTTL[string, *CachedResponse](cfg.Capacity,
		cache.WithDefaultTTL[string, *CachedResponse](time.Duration(cfg.DefaultTTL)*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func New(cfg config.CallerCfg, web config.WebCfg, opts ...Option) *Caller {
	c := &Caller{
		cfg:    cfg,
		web:    web,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = client.FromConfig(cfg, "")
	}
	return c
}

// URL is the endpoint queried by Lookup.
func (c *Caller) URL() string {
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(c.cfg.Path, "/")
}

// Start runs the boot time call in the background. Nothing waits for it; a
// failure is logged and not retried.
func (c *Caller) Start(ctx context.Context) {
	go func() {
		if err := c.Run(ctx); err != nil {
			c.logger.Error("startup call failed", slog.String("url", c.URL()), slog.Any("error", err))
		}
	}()
}

// Run logs the configured web settings, performs the lookup and logs every
// part of the extracted field.
func (c *Caller) Run(ctx context.Context) error {
	c.logger.Info("web settings", slog.String("url", c.web.URL), slog.String("key", config.MaskSecret(c.web.Key)))

	parts, err := c.Lookup(ctx)
	if err != nil {
		return err
	}
	for _, part := range parts {
		c.logger.Info("echo field", slog.String(c.cfg.Field, part))
	}
	return nil
}

// Lookup fetches the echo response, extracts the configured field and
// splits it on the configured separator.
func (c *Caller) Lookup(ctx context.Context) (parts []string, err error) {
	ctx, span := tracing.StartSpan(ctx, "caller.Lookup", map[string]string{"url": c.URL()})
	defer func() { tracing.EndSpan(span, err) }()

	body, err := c.fetch(ctx)
	if err != nil {
		return nil, err
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	raw, ok := doc[c.cfg.Field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFieldMissing, c.cfg.Field)
	}
	value, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %q is %T", ErrFieldType, c.cfg.Field, raw)
	}
	if c.cfg.Separator == "" {
		return []string{value}, nil
	}
	return strings.Split(value, c.cfg.Separator), nil
}

func (c *Caller) fetch(ctx context.Context) ([]byte, error) {
	key := c.URL()
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			c.logger.Debug("response cache hit", slog.String("url", key), slog.Duration("age", time.Since(cached.CachedAt)))
			c.countLookup("hit")
			return cached.Body, nil
		}
		c.countLookup("miss")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.countCall("error")
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.countCall("error")
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.countCall("error")
		return nil, fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, key)
	}
	c.countCall("ok")

	if c.cache != nil {
		if ttl, ok := cacheTTL(resp.Header); ok {
			c.logger.Debug("caching response", slog.String("url", key), slog.Duration("ttl", ttl))
			c.cache.SetWithTTL(key, &CachedResponse{Body: body, CachedAt: time.Now()}, ttl)
		}
	}
	return body, nil
}

func (c *Caller) countCall(result string) {
	if c.metrics != nil {
		c.metrics.OutboundCalls.WithLabelValues(result).Inc()
	}
}

func (c *Caller) countLookup(result string) {
	if c.metrics != nil {
		c.metrics.CacheLookups.WithLabelValues(result).Inc()
	}
}

// Register mounts GET /origin, which runs Lookup on demand.
func (c *Caller) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /origin", c.handleOrigin)
}

func (c *Caller) handleOrigin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	parts, err := c.Lookup(r.Context())
	if err != nil {
		c.logger.Warn("origin lookup failed", slog.Any("error", err))
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string][]string{c.cfg.Field: parts})
}
