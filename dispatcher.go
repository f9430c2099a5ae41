package relay

import (
	"context"
	"net/http"
)

// Dispatcher runs an ordered list of Middleware. It is itself a
// RequestHandler: each middleware receives the remainder of the chain as
// its next handler, and a chain that runs out answers with NotFound.
//
// Configure a Dispatcher with NewDispatcher and Use before it serves its
// first request. Calling Use concurrently with Handle is not supported;
// concurrent calls to Handle are.
type Dispatcher struct {
	middlewares []Middleware
	onStep      func(ctx context.Context, position int)
}

// NewDispatcher returns a Dispatcher running middlewares in order. A nil
// element yields a *ConfigurationError and no dispatcher.
func NewDispatcher(middlewares ...Middleware) (*Dispatcher, error) {
	for i, m := range middlewares {
		if isNil(m) {
			return nil, &ConfigurationError{Index: i, Reason: "middleware must be a non-nil relay.Middleware"}
		}
	}
	return &Dispatcher{
		middlewares: append([]Middleware(nil), middlewares...),
	}, nil
}

// Use appends middleware to the end of the chain and returns the
// Dispatcher for method chaining.
func (d *Dispatcher) Use(m Middleware) *Dispatcher {
	if isNil(m) {
		panic("relay: nil middleware passed to Use")
	}
	d.middlewares = append(d.middlewares, m)
	return d
}

// OnStep registers fn to be called each time the chain advances, with the
// zero-based position of the middleware about to run. It replaces any
// previously registered hook; a nil fn removes it.
func (d *Dispatcher) OnStep(fn func(ctx context.Context, position int)) *Dispatcher {
	d.onStep = fn
	return d
}

// Len returns the number of middleware in the chain.
func (d *Dispatcher) Len() int {
	return len(d.middlewares)
}

// Handle runs the chain from its first middleware.
func (d *Dispatcher) Handle(ctx context.Context, r *http.Request) (Response, error) {
	// The full slice expression keeps a later Use from growing into this
	// call tree's view of the chain.
	n := len(d.middlewares)
	c := cursor{middlewares: d.middlewares[:n:n], onStep: d.onStep}
	return c.Handle(ctx, r)
}

// ServeHTTP lets a Dispatcher be mounted directly on a net/http server.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	Serve(d).ServeHTTP(w, r)
}

// cursor is one position in a chain. Handing a middleware the cursor for
// the following position is what advances the chain, so no state is
// shared between call trees.
type cursor struct {
	middlewares []Middleware
	position    int
	onStep      func(ctx context.Context, position int)
}

func (c cursor) Handle(ctx context.Context, r *http.Request) (Response, error) {
	if c.position >= len(c.middlewares) {
		return NotFound(), nil
	}

	if c.onStep != nil {
		c.onStep(ctx, c.position)
	}

	m := c.middlewares[c.position]
	next := c
	next.position++
	return m.Process(ctx, r, next)
}
