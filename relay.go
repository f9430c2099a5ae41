// Package relay is a middleware dispatch layer in the style of PSR-15.
//
// A request flows through an ordered list of Middleware held by a
// Dispatcher. Each middleware may answer the request itself or delegate to
// the rest of the chain through the RequestHandler it is given. When the
// list is exhausted the dispatcher answers with an empty 404.
//
// Heterogeneous handler values (middleware, request handlers, funcs and
// "Key@method" strings) are normalized into Middleware by a Resolver.
package relay

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// RequestHandler handles a request and produces a response. It cannot
// delegate any further.
type RequestHandler interface {
	Handle(ctx context.Context, r *http.Request) (Response, error)
}

// HandlerFunc adapts an ordinary function to a RequestHandler.
type HandlerFunc func(ctx context.Context, r *http.Request) (Response, error)

// Handle calls f(ctx, r).
func (f HandlerFunc) Handle(ctx context.Context, r *http.Request) (Response, error) {
	return f(ctx, r)
}

// Middleware participates in processing a request. It may produce the
// response itself, or call next.Handle to delegate to the rest of the chain
// and possibly act on the response it gets back.
type Middleware interface {
	Process(ctx context.Context, r *http.Request, next RequestHandler) (Response, error)
}

// MiddlewareFunc adapts an ordinary function to a Middleware.
type MiddlewareFunc func(ctx context.Context, r *http.Request, next RequestHandler) (Response, error)

// Process calls f(ctx, r, next).
func (f MiddlewareFunc) Process(ctx context.Context, r *http.Request, next RequestHandler) (Response, error) {
	return f(ctx, r, next)
}

// Compile-time interface checks
var (
	_ RequestHandler = HandlerFunc(nil)
	_ Middleware     = MiddlewareFunc(nil)
	_ RequestHandler = (*Dispatcher)(nil)
	_ http.Handler   = (*Dispatcher)(nil)
)

// --- Request Helpers

func DecodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// Serve bridges a RequestHandler to net/http. Errors returned by the
// handler are logged through the zerolog logger found on the request
// context and answered with a 500.
func Serve(h RequestHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		resp, err := h.Handle(ctx, r)
		if err == nil && resp == nil {
			err = errNilResponse
		}
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Msg("request handling failed")
			resp = Error(map[string]string{"error": "internal server error"})
		}
		if err := resp.Write(ctx, w); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	})
}
