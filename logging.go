package relay

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Jack4Code/relay/config"
)

// RequestIDHeader carries the request id in and out of the chain.
const RequestIDHeader = "X-Request-Id"

const requestIDKey contextKey = "requestID"

// NewLogger builds the zerolog logger described by cfg. "console" and
// "pretty" formats write human-readable lines; anything else writes JSON.
func NewLogger(cfg config.BaseConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	switch strings.ToLower(cfg.LogFormat) {
	case "console", "pretty":
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	default:
		logger = zerolog.New(os.Stdout)
	}

	ctx := logger.Level(level).With().Timestamp()
	if cfg.Environment != "" {
		ctx = ctx.Str("environment", cfg.Environment)
	}
	return ctx.Logger()
}

// RequestID reuses the incoming X-Request-Id header or generates a new
// UUID, stores it in the context and echoes it on the response.
func RequestID() Middleware {
	return MiddlewareFunc(func(ctx context.Context, r *http.Request, next RequestHandler) (Response, error) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}

		ctx = context.WithValue(ctx, requestIDKey, id)
		resp, err := next.Handle(ctx, r.WithContext(ctx))
		if err != nil || resp == nil {
			return resp, err
		}
		return WithHeader(resp, RequestIDHeader, id), nil
	})
}

// RequestIDFromContext returns the id stored by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Logging emits one structured entry per request once the rest of the
// chain has answered. Server errors and returned errors log at error
// level, client errors at warn, everything else at info.
//
// The logger is also attached to the context so later middleware and
// Serve can reach it through zerolog.Ctx.
func Logging(logger zerolog.Logger) Middleware {
	return MiddlewareFunc(func(ctx context.Context, r *http.Request, next RequestHandler) (Response, error) {
		start := time.Now()
		ctx = logger.WithContext(ctx)

		resp, err := next.Handle(ctx, r.WithContext(ctx))

		var event *zerolog.Event
		status := 0
		switch {
		case err != nil:
			event = logger.Error().Err(err)
		case resp == nil:
			event = logger.Error()
		default:
			status = StatusOf(resp)
			switch {
			case status >= http.StatusInternalServerError:
				event = logger.Error()
			case status >= http.StatusBadRequest:
				event = logger.Warn()
			default:
				event = logger.Info()
			}
		}

		event = event.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start))
		if id := RequestIDFromContext(ctx); id != "" {
			event = event.Str("request_id", id)
		}
		event.Msg("request handled")

		return resp, err
	})
}

// Recover turns a panic in the rest of the chain into a returned error.
func Recover() Middleware {
	return MiddlewareFunc(func(ctx context.Context, r *http.Request, next RequestHandler) (resp Response, err error) {
		defer func() {
			if rec := recover(); rec != nil {
				resp, err = nil, &PanicError{Value: rec}
			}
		}()
		return next.Handle(ctx, r)
	})
}
