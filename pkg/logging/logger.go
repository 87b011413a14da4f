// Package logging builds the process logger and the request attributes the
// HTTP middleware logs.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashpect/itemstream/pkg/config"
)

// ParseLevel maps a config level name onto slog. An empty name yields the
// build's default level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return defaultLevel, nil
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// New builds a logger writing to w in the configured format.
func New(cfg config.LogCfg, w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "", "text":
		h = slog.NewTextHandler(w, opts)
	case "json":
		h = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(h), nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// RequestAttrs groups method, URL, host and headers of req for a log record.
func RequestAttrs(req *http.Request) slog.Attr {
	headers := make([]any, 0, len(req.Header))
	for key, values := range req.Header {
		headers = append(headers, slog.String(key, strings.Join(values, ", ")))
	}
	return slog.Group("request",
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.String("host", req.Host),
		slog.Group("headers", headers...),
	)
}
