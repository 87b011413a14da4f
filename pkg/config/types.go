package config

import "time"

// WebCfg carries the two external settings handed to the startup caller.
type WebCfg struct {
	URL string `toml:"url" yaml:"url"`
	Key string `toml:"key" yaml:"key"`
}

type SourceCfg struct {
	Count    int           `toml:"count" yaml:"count"`
	Interval time.Duration `toml:"interval" yaml:"interval"`
}

type CallerCfg struct {
	Enabled             bool          `toml:"enabled" yaml:"enabled"`
	BaseURL             string        `toml:"baseURL" yaml:"baseURL"`
	Path                string        `toml:"path" yaml:"path"`
	Field               string        `toml:"field" yaml:"field"`
	Separator           string        `toml:"separator" yaml:"separator"`
	Timeout             time.Duration `toml:"timeout" yaml:"timeout"`
	MaxIdleConns        int           `toml:"maxIdleConns" yaml:"maxIdleConns"`
	MaxIdleConnsPerHost int           `toml:"maxIdleConnsPerHost" yaml:"maxIdleConnsPerHost"`
	IdleConnTimeout     time.Duration `toml:"idleConnTimeout" yaml:"idleConnTimeout"`
}

type CacheCfg struct {
	Enabled  bool `toml:"enabled" yaml:"enabled"`
	Capacity int  `toml:"capacity" yaml:"capacity"`
	// DefaultTTL is in seconds and applies when a response carries no max-age.
	DefaultTTL int `toml:"defaultTTL" yaml:"defaultTTL"`
}

type LogCfg struct {
	Level  string `toml:"level" yaml:"level"`
	Format string `toml:"format" yaml:"format"`
}

type MetricsCfg struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	Path    string `toml:"path" yaml:"path"`
}

type TracingCfg struct {
	Enabled bool `toml:"enabled" yaml:"enabled"`
	// Output is a file path for the stdout exporter; empty writes to stdout.
	Output string `toml:"output" yaml:"output"`
}

type SystemCfg struct {
	ListenAddr        string        `toml:"listenAddr" yaml:"listenAddr"`
	ReadHeaderTimeout time.Duration `toml:"readHeaderTimeout" yaml:"readHeaderTimeout"`
	Web               WebCfg        `toml:"web" yaml:"web"`
	Source            SourceCfg     `toml:"source" yaml:"source"`
	Caller            CallerCfg     `toml:"caller" yaml:"caller"`
	Cache             CacheCfg      `toml:"cache" yaml:"cache"`
	Log               LogCfg        `toml:"log" yaml:"log"`
	Metrics           MetricsCfg    `toml:"metrics" yaml:"metrics"`
	Tracing           TracingCfg    `toml:"tracing" yaml:"tracing"`
}
