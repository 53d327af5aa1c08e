package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

// newLoggingMiddleware logs each request at a level derived from its
// outcome. Preflights and health probes log at debug.
func newLoggingMiddleware(logger *slog.Logger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		start := time.Now()
		method := ctx.Method()
		path := ctx.URL().Path

		next(ctx)

		status := ctx.Status()
		attrs := []slog.Attr{
			slog.String("method", method),
			slog.String("path", path),
			slog.String("remote_addr", ctx.RemoteAddr()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
		}
		if q := ctx.URL().RawQuery; q != "" {
			attrs = append(attrs, slog.String("query", q))
		}

		level := slog.LevelInfo
		switch {
		case method == http.MethodOptions, path == "/api/health":
			level = slog.LevelDebug
		case status >= 500:
			level = slog.LevelError
		case status >= 400:
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx.Context(), level, "HTTP request completed", attrs...)
	}
}
