//go:build !debug
// +build !debug

package logging

import "log/slog"

const defaultLevel = slog.LevelInfo
