package middleware

import (
	"log/slog"
	"time"

	"github.com/broady/rawendpoints"
)

// LoggingFilter returns an endpoint filter that logs each invocation using slog.
// It logs the start and end of each call, including duration and error status.
// Short-circuit results from later filters (such as validation problems) are
// logged as completed with their result type.
func LoggingFilter(logger *slog.Logger) rawendpoints.EndpointFilter {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ic *rawendpoints.InvocationContext, next rawendpoints.EndpointFilterDelegate) (any, error) {
		start := time.Now()
		route := ic.Route().String()

		logger.DebugContext(ic, "request started",
			slog.String("route", route),
			slog.Int("args", len(ic.Arguments())),
		)

		res, err := next(ic)
		duration := time.Since(start)

		if err != nil {
			logger.ErrorContext(ic, "request failed",
				slog.String("route", route),
				slog.Duration("duration", duration),
				slog.Any("error", err),
			)
			return res, err
		}

		attrs := []any{
			slog.String("route", route),
			slog.Duration("duration", duration),
		}
		if p, ok := res.(*rawendpoints.ProblemDetails); ok {
			attrs = append(attrs, slog.Int("status", p.Status), slog.Int("problems", len(p.Errors)))
		}
		logger.InfoContext(ic, "request completed", attrs...)
		return res, nil
	}
}
