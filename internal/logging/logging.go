// Package logging configures slog for the grove CLI.
package logging

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/lmittmann/tint"
	slogctx "github.com/veqryn/slog-context"
)

// Setup installs a tint handler writing to w at level as the default
// logger, wrapped so attributes added with slogctx travel with ctx. It
// returns ctx carrying the logger.
func Setup(ctx context.Context, w io.Writer, level slog.Level, color bool) (context.Context, *slog.Logger) {
	h := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		AddSource:  level <= slog.LevelDebug,
		NoColor:    !color,
	})
	logger := slog.New(slogctx.NewHandler(h, nil))
	slog.SetDefault(logger)
	return slogctx.NewCtx(ctx, logger), logger
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *slog.Logger {
	return slogctx.FromCtx(ctx)
}
