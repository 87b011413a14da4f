package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownFormat = errors.New("config: unknown file format")
	ErrInvalid       = errors.New("config: invalid")
)

// Default returns the built-in configuration. Every call returns a fresh copy.
func Default() *SystemCfg {
	return &SystemCfg{
		ListenAddr:        ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		Source: SourceCfg{
			Count:    9,
			Interval: 1 * time.Second,
		},
		Caller: CallerCfg{
			Enabled:             true,
			BaseURL:             "http://httpbin.org",
			Path:                "/get",
			Field:               "origin",
			Separator:           ", ",
			Timeout:             30 * time.Second,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     10 * time.Second,
		},
		Cache: CacheCfg{
			Enabled:    true,
			Capacity:   100,
			DefaultTTL: 60,
		},
		Log: LogCfg{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsCfg{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// LoadConfig layers defaults, the file at path (if any) and ITEMSTREAM_*
// environment variables, then validates the result.
func LoadConfig(path string) (*SystemCfg, error) {
	cfg := Default()
	if path != "" {
		if err := decodeFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := FromEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decodeFile picks the decoder by extension; anything that isn't yaml is read as toml.
func decodeFile(path string, cfg *SystemCfg) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return fmt.Errorf("decode yaml %s: %w", path, err)
		}
	case ".toml", "":
		if _, err := toml.Decode(string(b), cfg); err != nil {
			return fmt.Errorf("decode toml %s: %w", path, err)
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
	return nil
}

// Validate reports every violation at once.
func (c *SystemCfg) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, fmt.Errorf("%w: listenAddr is empty", ErrInvalid))
	}
	if c.Source.Count <= 0 {
		errs = append(errs, fmt.Errorf("%w: source.count must be > 0, got %d", ErrInvalid, c.Source.Count))
	}
	if c.Source.Interval <= 0 {
		errs = append(errs, fmt.Errorf("%w: source.interval must be > 0, got %s", ErrInvalid, c.Source.Interval))
	}
	if c.Caller.Enabled && c.Caller.BaseURL == "" {
		errs = append(errs, fmt.Errorf("%w: caller.baseURL is empty", ErrInvalid))
	}
	if c.Cache.Enabled && c.Cache.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("%w: cache.capacity must be > 0, got %d", ErrInvalid, c.Cache.Capacity))
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown log.level %q", ErrInvalid, c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w: unknown log.format %q", ErrInvalid, c.Log.Format))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy safe to print.
func (c *SystemCfg) Redacted() *SystemCfg {
	out := *c
	out.Web.Key = MaskSecret(c.Web.Key)
	return &out
}

// MaskSecret hides all but the last four characters of s.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// Encode writes cfg as TOML.
func Encode(cfg *SystemCfg) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
