package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// levelRouter writes errors to one handler and everything else at or above
// min to another, so operators can watch stderr for failures only.
type levelRouter struct {
	min    slog.Leveler
	out    slog.Handler
	errOut slog.Handler
}

func newLevelRouter(out, errOut io.Writer, minLevel slog.Leveler) *levelRouter {
	opts := &slog.HandlerOptions{Level: minLevel}
	return &levelRouter{
		min:    minLevel,
		out:    slog.NewTextHandler(out, opts),
		errOut: slog.NewTextHandler(errOut, opts),
	}
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= lr.min.Level()
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.errOut.Handle(ctx, r)
	}
	return lr.out.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{min: lr.min, out: lr.out.WithAttrs(attrs), errOut: lr.errOut.WithAttrs(attrs)}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{min: lr.min, out: lr.out.WithGroup(name), errOut: lr.errOut.WithGroup(name)}
}

// parseLevel accepts slog level names such as "debug" or "warn".
func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// setupLogger installs the default logger. With a logPath every record is
// also appended to that file. The returned cleanup is never nil.
func setupLogger(logPath string, minLevel slog.Level) (func(), error) {
	out, errOut := io.Writer(os.Stdout), io.Writer(os.Stderr)
	cleanup := func() {}

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return cleanup, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		out = io.MultiWriter(out, f)
		errOut = io.MultiWriter(errOut, f)
	}

	slog.SetDefault(slog.New(newLevelRouter(out, errOut, minLevel)))
	return cleanup, nil
}
