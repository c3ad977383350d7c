package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-assess-api/internal/observability"
)

// Observability attaches Prometheus metrics and structured latency/error
// logging for API endpoints. Streamed responses (SSE bodies and websocket
// upgrades) are counted but their latency is left to the stream metrics,
// since the handler returns before the body is written.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		duration := time.Since(start)

		path := c.Path()
		if !strings.HasPrefix(path, "/api/") || strings.HasSuffix(path, "/metrics") {
			return err
		}

		route := routeTemplate(c)
		method := c.Method()
		status := c.Response().StatusCode()
		statusLabel := strconv.Itoa(status)
		streaming := isStreamingResponse(c)

		observability.Requests().WithLabelValues(method, route, statusLabel).Inc()
		if !streaming {
			observability.Latency().WithLabelValues(method, route).Observe(duration.Seconds())
		}
		if status >= fiber.StatusBadRequest {
			observability.Errors().WithLabelValues(method, route, statusLabel).Inc()
		}

		event := logger.With().
			Str("correlation_id", GetCorrelationID(c)).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Logger()

		switch {
		case streaming:
			event.Info().Msg("stream opened")
		case status >= fiber.StatusInternalServerError:
			event.Error().Dur("latency", duration).Str("latency_bucket", latencyBucket(duration)).Msg("request failed")
		case status >= fiber.StatusBadRequest:
			event.Warn().Dur("latency", duration).Str("latency_bucket", latencyBucket(duration)).Msg("request completed with client error")
		default:
			event.Info().Dur("latency", duration).Str("latency_bucket", latencyBucket(duration)).Msg("request completed")
		}

		return err
	}
}

func isStreamingResponse(c *fiber.Ctx) bool {
	if c.Response().StatusCode() == fiber.StatusSwitchingProtocols {
		return true
	}
	return strings.HasPrefix(string(c.Response().Header.ContentType()), "text/event-stream")
}

func routeTemplate(c *fiber.Ctx) string {
	if c.Route() != nil && c.Route().Path != "" {
		return c.Route().Path
	}
	return c.Path()
}

func latencyBucket(duration time.Duration) string {
	switch {
	case duration <= 50*time.Millisecond:
		return "<=50ms"
	case duration <= 250*time.Millisecond:
		return "<=250ms"
	case duration <= time.Second:
		return "<=1s"
	case duration <= 5*time.Second:
		return "<=5s"
	default:
		return ">5s"
	}
}
