//go:build debug
// +build debug

package logging

import "log/slog"

// defaultLevel is used when the configured level is empty.
const defaultLevel = slog.LevelDebug
