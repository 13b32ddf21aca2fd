// Package log defines the structured logger used across the service.
//
// The interface is deliberately small: leveled methods taking a context (for
// trace correlation) and alternating key/value pairs. Error takes the error
// as its own argument so the implementation can classify it and attach its
// stack, rather than every call site remembering an "err" key.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

type Logger interface {
	With(kv ...any) Logger

	Debug(ctx context.Context, msg string, kv ...any)
	Info(ctx context.Context, msg string, kv ...any)
	Warn(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, err error, msg string, kv ...any)

	Sync() error
}

// Options configures the production logger.
type Options struct {
	App     string
	Version string

	Level slog.Level
	// StacktraceLevel is the minimum level at which records get a stack
	// attribute. Defaults to error.
	StacktraceLevel slog.Level

	// JsonFormat selects JSON output; logfmt otherwise.
	JsonFormat bool

	// IncludeErrorLinks adds a per-wrap frame list to error records, capped
	// at MaxErrorLinks entries (default 8).
	IncludeErrorLinks bool
	MaxErrorLinks     int

	// Writer defaults to os.Stdout.
	Writer io.Writer
}

// New builds the slog-backed production logger.
func New(opts Options) (Logger, error) { return newSlog(opts) }

// ParseLevel maps a config string to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %s (valid levels are debug|info|warn|error)", s)
	}
}
