package relay

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/Jack4Code/relay/config"
)

// CORS adds CORS headers to every response produced by the rest of the
// chain. OPTIONS preflight requests are answered directly with 200 OK and
// never reach later middleware.
func CORS(cfg config.CORSConfig) Middleware {
	headers := corsHeaders(cfg)

	return MiddlewareFunc(func(ctx context.Context, r *http.Request, next RequestHandler) (Response, error) {
		var resp Response
		if r.Method == http.MethodOptions {
			resp = EmptyResponse{StatusCode: http.StatusOK}
		} else {
			var err error
			resp, err = next.Handle(ctx, r)
			if err != nil || resp == nil {
				return resp, err
			}
		}

		if origin, ok := allowedOrigin(cfg.AllowedOrigins, r.Header.Get("Origin")); ok {
			resp = WithHeader(resp, "Access-Control-Allow-Origin", origin)
		}
		for _, h := range headers {
			resp = WithHeader(resp, h[0], h[1])
		}
		return resp, nil
	})
}

// allowedOrigin reports the Access-Control-Allow-Origin value for origin.
func allowedOrigin(allowed []string, origin string) (string, bool) {
	if slices.Contains(allowed, "*") {
		return "*", true
	}
	if origin != "" && slices.Contains(allowed, origin) {
		return origin, true
	}
	return "", false
}

// corsHeaders computes the request-independent headers once.
func corsHeaders(cfg config.CORSConfig) [][2]string {
	var headers [][2]string
	if len(cfg.AllowedMethods) > 0 {
		headers = append(headers, [2]string{"Access-Control-Allow-Methods", strings.Join(cfg.AllowedMethods, ", ")})
	}
	if len(cfg.AllowedHeaders) > 0 {
		headers = append(headers, [2]string{"Access-Control-Allow-Headers", strings.Join(cfg.AllowedHeaders, ", ")})
	}
	if len(cfg.ExposedHeaders) > 0 {
		headers = append(headers, [2]string{"Access-Control-Expose-Headers", strings.Join(cfg.ExposedHeaders, ", ")})
	}
	if cfg.AllowCredentials {
		headers = append(headers, [2]string{"Access-Control-Allow-Credentials", "true"})
	}
	if cfg.MaxAge > 0 {
		headers = append(headers, [2]string{"Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge)})
	}
	return headers
}
