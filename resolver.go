package relay

import (
	"context"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

// ServiceLookup finds named instances for string handlers. The container
// package provides an implementation.
type ServiceLookup interface {
	Has(key string) bool
	Get(key string) (any, error)
}

// Resolver normalizes handler values into Middleware.
//
// Registered types and the service lookup are consulted each time a
// string handler runs, so they must be configured before traffic begins.
type Resolver struct {
	services ServiceLookup
	logger   zerolog.Logger

	mu    sync.RWMutex
	types map[string]func() any
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithServices sets the lookup consulted first by string handlers.
func WithServices(services ServiceLookup) ResolverOption {
	return func(r *Resolver) {
		r.services = services
	}
}

// WithLogger sets the logger used to trace string handler lookups.
func WithLogger(logger zerolog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver returns a Resolver with no services and no registered types.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{
		logger: zerolog.Nop(),
		types:  make(map[string]func() any),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RegisterType makes T instantiable by name. A string handler naming it
// that is not found in the service lookup gets a fresh new(T) on every run.
func RegisterType[T any](r *Resolver, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = func() any { return new(T) }
}

// Resolve converts handler into a Middleware. Accepted values, checked in
// this order:
//   - a Middleware, returned as is;
//   - a RequestHandler, whose Handle is called and next is ignored;
//   - a string "Key" or "Key@method", looked up every time it runs;
//   - a func whose parameters are drawn from context.Context, *http.Request
//     and RequestHandler (each at most once, in any order) and which returns
//     (value) or (value, error). The value must be a non-nil Response.
//
// Anything else fails with an UnresolvableHandler ResolutionError.
func (r *Resolver) Resolve(handler any) (Middleware, error) {
	switch h := handler.(type) {
	case nil:
		return nil, unresolvable(handler)
	case Middleware:
		return h, nil
	case RequestHandler:
		return handlerMiddleware{handler: h}, nil
	case string:
		return stringMiddleware{handler: h, resolver: r}, nil
	}

	call, ok := callableOf(reflect.ValueOf(handler))
	if !ok {
		return nil, unresolvable(handler)
	}
	return callableMiddleware{call: call}, nil
}

// Dispatcher resolves every handler and returns a Dispatcher running them
// in order.
func (r *Resolver) Dispatcher(handlers ...any) (*Dispatcher, error) {
	middlewares := make([]Middleware, 0, len(handlers))
	for i, h := range handlers {
		m, err := r.Resolve(h)
		if err != nil {
			return nil, fmt.Errorf("relay: handler at index %d: %w", i, err)
		}
		middlewares = append(middlewares, m)
	}
	return NewDispatcher(middlewares...)
}

// instance finds the value a string handler key refers to. A nil result
// with a nil error means nothing was found.
func (r *Resolver) instance(key string) (any, error) {
	if r.services != nil && r.services.Has(key) {
		r.logger.Debug().Str("key", key).Str("source", "services").Msg("string handler lookup")
		return r.services.Get(key)
	}

	r.mu.RLock()
	factory, ok := r.types[key]
	r.mu.RUnlock()
	if ok {
		r.logger.Debug().Str("key", key).Str("source", "types").Msg("string handler lookup")
		return factory(), nil
	}

	r.logger.Debug().Str("key", key).Msg("string handler lookup found nothing")
	return nil, nil
}

// handlerMiddleware runs a terminal handler in place of the rest of the chain.
type handlerMiddleware struct {
	handler RequestHandler
}

func (m handlerMiddleware) Process(ctx context.Context, r *http.Request, _ RequestHandler) (Response, error) {
	return m.handler.Handle(ctx, r)
}

type callableMiddleware struct {
	call callable
}

func (m callableMiddleware) Process(ctx context.Context, r *http.Request, next RequestHandler) (Response, error) {
	v, err := m.call(ctx, r, next)
	if err != nil {
		return nil, err
	}
	return asResponse(v)
}

// stringMiddleware defers the lookup of its handler string until it
// runs, so a service lookup may hand out a different instance each time.
type stringMiddleware struct {
	handler  string
	resolver *Resolver
}

func (m stringMiddleware) Process(ctx context.Context, r *http.Request, next RequestHandler) (Response, error) {
	key, method := splitHandler(m.handler)

	inst, err := m.resolver.instance(key)
	if err != nil {
		return nil, notConvertible(m.handler, err)
	}

	switch h := inst.(type) {
	case Middleware:
		return h.Process(ctx, r, next)
	case RequestHandler:
		return h.Handle(ctx, r)
	}

	if method != "" && inst != nil {
		call, found := methodOf(inst, method)
		if found {
			if call == nil {
				return nil, notConvertible(m.handler, fmt.Errorf("method %s has an unsupported signature", method))
			}
			v, err := call(ctx, r, next)
			if err != nil {
				return nil, err
			}
			return asResponse(v)
		}
	}

	return nil, notConvertible(m.handler, nil)
}

// splitHandler splits "Key@method" at the first '@'. Without a separator
// the whole string is the key and method is empty.
func splitHandler(handler string) (key, method string) {
	key, method, _ = strings.Cut(handler, "@")
	return key, method
}

// methodOf looks name up in the method set of instance, first as written
// and then with its first letter upper-cased. found reports whether a
// method exists; call is nil when its signature is not callable.
func methodOf(instance any, name string) (call callable, found bool) {
	v := reflect.ValueOf(instance)
	for _, candidate := range methodNames(name) {
		m := v.MethodByName(candidate)
		if !m.IsValid() {
			continue
		}
		call, _ = callableOf(m)
		return call, true
	}
	return nil, false
}

func methodNames(name string) []string {
	first, size := utf8.DecodeRuneInString(name)
	exported := string(unicode.ToUpper(first)) + name[size:]
	if exported == name {
		return []string{name}
	}
	return []string{name, exported}
}

// callable is the uniform shape every accepted func is adapted to.
type callable func(ctx context.Context, r *http.Request, next RequestHandler) (any, error)

type argKind int

const (
	argContext argKind = iota
	argRequest
	argNext
)

var (
	contextType = reflect.TypeFor[context.Context]()
	requestType = reflect.TypeFor[*http.Request]()
	handlerType = reflect.TypeFor[RequestHandler]()
	errorType   = reflect.TypeFor[error]()
)

// callableOf adapts fn when its signature is acceptable. The common
// signatures skip reflection at call time.
func callableOf(fn reflect.Value) (callable, bool) {
	if fn.Kind() != reflect.Func || fn.IsNil() {
		return nil, false
	}

	switch f := fn.Interface().(type) {
	case func(context.Context, *http.Request, RequestHandler) (Response, error):
		return func(ctx context.Context, r *http.Request, next RequestHandler) (any, error) {
			return unwrapResponse(f(ctx, r, next))
		}, true
	case func(context.Context, *http.Request) (Response, error):
		return func(ctx context.Context, r *http.Request, _ RequestHandler) (any, error) {
			return unwrapResponse(f(ctx, r))
		}, true
	case func() Response:
		return func(context.Context, *http.Request, RequestHandler) (any, error) {
			return unwrapResponse(f(), nil)
		}, true
	}

	t := fn.Type()
	if t.IsVariadic() || t.NumIn() > 3 || t.NumOut() < 1 || t.NumOut() > 2 {
		return nil, false
	}
	if t.NumOut() == 2 && t.Out(1) != errorType {
		return nil, false
	}

	kinds := make([]argKind, t.NumIn())
	seen := make(map[argKind]bool, t.NumIn())
	for i := range kinds {
		var k argKind
		switch t.In(i) {
		case contextType:
			k = argContext
		case requestType:
			k = argRequest
		case handlerType:
			k = argNext
		default:
			return nil, false
		}
		if seen[k] {
			return nil, false
		}
		seen[k] = true
		kinds[i] = k
	}

	return func(ctx context.Context, r *http.Request, next RequestHandler) (any, error) {
		in := make([]reflect.Value, len(kinds))
		for i, k := range kinds {
			switch k {
			case argContext:
				in[i] = reflect.ValueOf(&ctx).Elem()
			case argRequest:
				in[i] = reflect.ValueOf(r)
			case argNext:
				in[i] = reflect.ValueOf(&next).Elem()
			}
		}
		out := fn.Call(in)
		if len(out) == 2 && !out[1].IsNil() {
			return nil, out[1].Interface().(error)
		}
		return out[0].Interface(), nil
	}, true
}

// unwrapResponse keeps a nil Response interface from becoming a non-nil any.
func unwrapResponse(resp Response, err error) (any, error) {
	if err != nil || resp == nil {
		return nil, err
	}
	return resp, nil
}

func asResponse(v any) (Response, error) {
	resp, ok := v.(Response)
	if !ok || isNil(resp) {
		return nil, missingResponse(v)
	}
	return resp, nil
}

// isNil reports whether v is nil or an interface holding a nil pointer,
// map, slice, func or channel.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
