package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashpect/itemstream/pkg/config"
	"github.com/ashpect/itemstream/pkg/item"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func startApp(t *testing.T, cfg *config.SystemCfg) (*App, *syncBuffer) {
	t.Helper()
	logs := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))

	a, err := New(cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- a.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errCh)
	})

	require.Eventually(t, func() bool { return a.Addr() != cfg.ListenAddr }, 2*time.Second, 5*time.Millisecond)
	return a, logs
}

func testConfig(echoURL string) *config.SystemCfg {
	cfg := config.Default()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.Source.Interval = 5 * time.Millisecond
	cfg.Web = config.WebCfg{URL: "https://example.com", Key: "k-123456"}
	cfg.Caller.BaseURL = echoURL
	cfg.Caller.Timeout = time.Second
	return cfg
}

func TestApp_EndToEnd(t *testing.T) {
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "itemstream/")
		w.Header().Set("Cache-Control", "max-age=60")
		_, _ = w.Write([]byte(`{"origin":"10.0.0.1, 203.0.113.7"}`))
	}))
	defer echo.Close()

	a, logs := startApp(t, testConfig(echo.URL))
	base := "http://" + a.Addr()

	// startup call
	assert.Eventually(t, func() bool {
		out := logs.String()
		return bytes.Contains([]byte(out), []byte("origin=10.0.0.1")) &&
			bytes.Contains([]byte(out), []byte("origin=203.0.113.7"))
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotContains(t, logs.String(), "k-123456")

	resp, err := http.Get(base + "/stream")
	require.NoError(t, err)
	var items []item.Item
	require.NoError(t, item.DecodeStream(resp.Body, func(it item.Item) error {
		items = append(items, it)
		return nil
	}))
	resp.Body.Close()
	assert.Len(t, items, 9)

	resp, err = http.Get(base + "/origin")
	require.NoError(t, err)
	var origin map[string][]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&origin))
	resp.Body.Close()
	assert.Equal(t, []string{"10.0.0.1", "203.0.113.7"}, origin["origin"])

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `itemstream_items_emitted_total{endpoint="stream"} 9`)
	assert.Contains(t, string(body), `itemstream_response_cache_lookups_total{result="hit"} 1`)

	resp, err = http.Get(base + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApp_CallerFailureDoesNotStopServer(t *testing.T) {
	echo := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer echo.Close()

	a, logs := startApp(t, testConfig(echo.URL))

	assert.Eventually(t, func() bool {
		return bytes.Contains([]byte(logs.String()), []byte("startup call failed"))
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + a.Addr() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestApp_OptionalComponentsOff(t *testing.T) {
	cfg := testConfig("")
	cfg.Caller.Enabled = false
	cfg.Metrics.Enabled = false

	a, logs := startApp(t, cfg)
	base := "http://" + a.Addr()

	for _, path := range []string{"/origin", "/metrics"} {
		resp, err := http.Get(base + path)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
	}
	assert.NotContains(t, logs.String(), "web settings")
}
