package api

import (
	"log/slog"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/patchbay/patchbay/internal/logging"
)

// HTTPLoggingMiddleware logs every request at a level keyed to its
// response status, mirroring the level thresholds used across the rest
// of the module's structured logging.
func HTTPLoggingMiddleware(ctx huma.Context, next func(huma.Context)) {
	start := time.Now()
	logger := logging.GetLogger("http")

	method := ctx.Method()
	path := ctx.URL().Path
	remoteAddr := ctx.RemoteAddr()

	next(ctx)

	duration := time.Since(start)
	status := ctx.Status()

	attrs := []slog.Attr{
		slog.String("method", method),
		slog.String("path", path),
		slog.String("remote_addr", remoteAddr),
		slog.Int("status", status),
		slog.Duration("duration", duration),
	}

	switch {
	case method == "OPTIONS":
		logger.LogAttrs(ctx.Context(), slog.LevelDebug, "http request", attrs...)
	case status >= 500:
		logger.LogAttrs(ctx.Context(), slog.LevelError, "http request", attrs...)
	case status >= 400:
		logger.LogAttrs(ctx.Context(), slog.LevelWarn, "http request", attrs...)
	default:
		logger.LogAttrs(ctx.Context(), slog.LevelInfo, "http request", attrs...)
	}
}
