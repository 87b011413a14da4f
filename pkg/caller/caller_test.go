package caller

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashpect/itemstream/pkg/cache"
	"github.com/ashpect/itemstream/pkg/config"
	"github.com/ashpect/itemstream/pkg/metrics"
)

// echoServer answers every request with body and cacheControl and counts the hits.
func echoServer(t *testing.T, status int, cacheControl, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/get", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		if cacheControl != "" {
			w.Header().Set("Cache-Control", cacheControl)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// syncBuffer lets the background caller goroutine and the test share a log buffer.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func testCfg(baseURL string) config.CallerCfg {
	cfg := config.Default().Caller
	cfg.BaseURL = baseURL
	cfg.Timeout = time.Second
	return cfg
}

func TestLookup_SplitsOrigin(t *testing.T) {
	srv, _ := echoServer(t, http.StatusOK, "", `{"origin":"10.0.0.1, 203.0.113.7","url":"http://httpbin.org/get"}`)

	c := New(testCfg(srv.URL), config.WebCfg{})
	parts, err := c.Lookup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "203.0.113.7"}, parts)
}

func TestLookup_Errors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"status", http.StatusBadGateway, `{}`, ErrUnexpectedStatus},
		{"missing", http.StatusOK, `{"url":"x"}`, ErrFieldMissing},
		{"type", http.StatusOK, `{"origin":42}`, ErrFieldType},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, _ := echoServer(t, tc.status, "", tc.body)
			_, err := New(testCfg(srv.URL), config.WebCfg{}).Lookup(context.Background())
			assert.ErrorIs(t, err, tc.want)
		})
	}

	srv, _ := echoServer(t, http.StatusOK, "", `not json`)
	_, err := New(testCfg(srv.URL), config.WebCfg{}).Lookup(context.Background())
	assert.ErrorContains(t, err, "decode response")
}

func TestLookup_UnreachableHost(t *testing.T) {
	srv, _ := echoServer(t, http.StatusOK, "", `{}`)
	url := srv.URL
	srv.Close()

	_, err := New(testCfg(url), config.WebCfg{}).Lookup(context.Background())
	assert.Error(t, err)
}

func TestLookup_CachesByMaxAge(t *testing.T) {
	srv, hits := echoServer(t, http.StatusOK, "public, max-age=60", `{"origin":"10.0.0.1"}`)

	rc, err := NewResponseCache(config.CacheCfg{Enabled: true, Capacity: 4, DefaultTTL: 60})
	require.NoError(t, err)
	defer rc.Close()
	reg := metrics.NewRegistry()

	c := New(testCfg(srv.URL), config.WebCfg{}, WithCache(rc), WithMetrics(reg.Metrics))
	for i := 0; i < 3; i++ {
		parts, err := c.Lookup(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.1"}, parts)
	}

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, float64(2), testutil.ToFloat64(reg.Metrics.CacheLookups.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.Metrics.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.Metrics.OutboundCalls.WithLabelValues("ok")))
}

func TestLookup_NoStoreBypassesCache(t *testing.T) {
	srv, hits := echoServer(t, http.StatusOK, "no-store", `{"origin":"10.0.0.1"}`)

	rc, err := NewResponseCache(config.CacheCfg{Enabled: true, Capacity: 4, DefaultTTL: 60})
	require.NoError(t, err)
	defer rc.Close()

	c := New(testCfg(srv.URL), config.WebCfg{}, WithCache(rc))
	for i := 0; i < 2; i++ {
		_, err := c.Lookup(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
}

func TestRun_LogsPartsAndMaskedKey(t *testing.T) {
	srv, _ := echoServer(t, http.StatusOK, "", `{"origin":"10.0.0.1, 203.0.113.7"}`)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	c := New(testCfg(srv.URL), config.WebCfg{URL: "https://example.com", Key: "supersecret"}, WithLogger(logger))

	require.NoError(t, c.Run(context.Background()))
	out := buf.String()
	assert.Contains(t, out, "url=https://example.com")
	assert.Contains(t, out, "key=*******cret")
	assert.NotContains(t, out, "supersecret")
	assert.Contains(t, out, "origin=10.0.0.1")
	assert.Contains(t, out, "origin=203.0.113.7")
}

func TestStart_LogsFailure(t *testing.T) {
	srv, _ := echoServer(t, http.StatusInternalServerError, "", `{}`)

	buf := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(buf, nil))
	New(testCfg(srv.URL), config.WebCfg{}, WithLogger(logger)).Start(context.Background())

	assert.Eventually(t, func() bool {
		return bytes.Contains(buf.Bytes(), []byte("startup call failed"))
	}, 2*time.Second, 10*time.Millisecond)
}

func TestURL(t *testing.T) {
	c := New(config.CallerCfg{BaseURL: "http://httpbin.org/", Path: "get"}, config.WebCfg{})
	assert.Equal(t, "http://httpbin.org/get", c.URL())
}

func TestParseMaxAge(t *testing.T) {
	cases := []struct {
		header string
		want   int
		found  bool
	}{
		{"public, max-age=60", 60, true},
		{"S-MAXAGE=30, max-age=60", 30, true},
		{"max-age=0", 0, true},
		{"max-age=abc", 0, false},
		{"max-age=-5", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, found := parseMaxAge(tc.header)
		assert.Equal(t, tc.want, got, tc.header)
		assert.Equal(t, tc.found, found, tc.header)
	}
}

func TestCacheTTL(t *testing.T) {
	cases := []struct {
		header string
		ttl    time.Duration
		ok     bool
	}{
		{"", 0, true},
		{"public", 0, true},
		{"public, max-age=60", time.Minute, true},
		{"max-age=0", 0, false},
		{"s-maxage=0, max-age=60", 0, false},
		{"private, no-cache", 0, false},
		{"no-store, max-age=60", 0, false},
	}
	for _, tc := range cases {
		ttl, ok := cacheTTL(http.Header{"Cache-Control": []string{tc.header}})
		assert.Equal(t, tc.ok, ok, tc.header)
		assert.Equal(t, tc.ttl, ttl, tc.header)
	}
}

func TestLookup_MaxAgeZeroBypassesCache(t *testing.T) {
	srv, hits := echoServer(t, http.StatusOK, "max-age=0", `{"origin":"10.0.0.1"}`)

	rc, err := NewResponseCache(config.Default().Cache)
	require.NoError(t, err)
	defer rc.Close()

	c := New(testCfg(srv.URL), config.WebCfg{}, WithCache(rc))
	for i := 0; i < 2; i++ {
		_, err := c.Lookup(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), hits.Load())
	assert.Zero(t, rc.Len())
}

func TestLookup_DefaultTTLWithoutDirective(t *testing.T) {
	srv, hits := echoServer(t, http.StatusOK, "", `{"origin":"10.0.0.1"}`)

	var mu sync.Mutex
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(d)
	}

	rc, err := cache.NewLRUTTL[string, *CachedResponse](4,
		cache.WithDefaultTTL[string, *CachedResponse](30*time.Second),
		cache.WithClock[string, *CachedResponse](clock),
	)
	require.NoError(t, err)
	defer rc.Close()

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := New(testCfg(srv.URL), config.WebCfg{}, WithCache(rc), WithLogger(logger))
	lookup := func() {
		_, err := c.Lookup(context.Background())
		require.NoError(t, err)
	}

	lookup()
	advance(29 * time.Second)
	lookup()
	assert.Equal(t, int32(1), hits.Load())
	assert.Contains(t, logs.String(), "response cache hit")
	assert.Contains(t, logs.String(), "age=")

	advance(2 * time.Second)
	lookup()
	assert.Equal(t, int32(2), hits.Load())
}

func TestOriginHandler(t *testing.T) {
	srv, _ := echoServer(t, http.StatusOK, "", `{"origin":"10.0.0.1, 203.0.113.7"}`)
	mux := http.NewServeMux()
	New(testCfg(srv.URL), config.WebCfg{}).Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/origin", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"origin":["10.0.0.1","203.0.113.7"]}`, rec.Body.String())

	failing, _ := echoServer(t, http.StatusServiceUnavailable, "", `{}`)
	mux = http.NewServeMux()
	New(testCfg(failing.URL), config.WebCfg{}).Register(mux)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/origin", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "unexpected status")
}
