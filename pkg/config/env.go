package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// lookupEnv is swapped in tests.
var lookupEnv = os.LookupEnv

// FromEnv overlays ITEMSTREAM_* environment variables onto cfg.
func FromEnv(cfg *SystemCfg) error {
	if v, ok := lookupEnv("ITEMSTREAM_LISTEN_ADDR"); ok && v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := lookupEnv("ITEMSTREAM_WEB_URL"); ok {
		cfg.Web.URL = v
	}
	if v, ok := lookupEnv("ITEMSTREAM_WEB_KEY"); ok {
		cfg.Web.Key = v
	}
	if v, ok := lookupEnv("ITEMSTREAM_SOURCE_COUNT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ITEMSTREAM_SOURCE_COUNT: %w", err)
		}
		cfg.Source.Count = n
	}
	if v, ok := lookupEnv("ITEMSTREAM_SOURCE_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ITEMSTREAM_SOURCE_INTERVAL: %w", err)
		}
		cfg.Source.Interval = d
	}
	if v, ok := lookupEnv("ITEMSTREAM_CALLER_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ITEMSTREAM_CALLER_ENABLED: %w", err)
		}
		cfg.Caller.Enabled = b
	}
	if v, ok := lookupEnv("ITEMSTREAM_CALLER_BASE_URL"); ok && v != "" {
		cfg.Caller.BaseURL = v
	}
	if v, ok := lookupEnv("ITEMSTREAM_LOG_LEVEL"); ok && v != "" {
		cfg.Log.Level = v
	}
	if v, ok := lookupEnv("ITEMSTREAM_LOG_FORMAT"); ok && v != "" {
		cfg.Log.Format = v
	}
	if v, ok := lookupEnv("ITEMSTREAM_TRACING_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("ITEMSTREAM_TRACING_ENABLED: %w", err)
		}
		cfg.Tracing.Enabled = b
	}
	return nil
}
