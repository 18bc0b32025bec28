// Package logging builds the process logger. The level is decided once at
// startup and never changes afterwards.
package logging

import (
	"io"
	log "log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

var levelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

// DefaultLevel is info in production and debug everywhere else.
func DefaultLevel(env string) log.Level {
	if IsProduction(env) {
		return log.LevelInfo
	}
	return log.LevelDebug
}

func IsProduction(env string) bool {
	return strings.EqualFold(env, "production")
}

// ParseLevel maps a level name onto a slog level. Unknown or empty names
// fall back to the environment default.
func ParseLevel(name, env string) log.Level {
	if lvl, ok := levelMap[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lvl
	}
	return DefaultLevel(env)
}

// New returns a JSON logger in production and a colored, human readable
// one otherwise.
func New(w io.Writer, env string, level log.Level) *log.Logger {
	if IsProduction(env) {
		return log.New(log.NewJSONHandler(w, &log.HandlerOptions{Level: level}))
	}
	return log.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}
