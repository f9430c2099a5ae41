package relay

// Chain runs middlewares in the order provided and then handler.
//
// Example:
//
//	Chain(handler, logging, auth, rateLimit)
//	Execution order: logging -> auth -> rateLimit -> handler
//
// A middleware that does not call next stops the chain before handler runs.
// Chain panics if handler or any middleware is nil.
func Chain(handler RequestHandler, middlewares ...Middleware) RequestHandler {
	if isNil(handler) {
		panic("relay: nil handler passed to Chain")
	}
	d := &Dispatcher{middlewares: make([]Middleware, 0, len(middlewares)+1)}
	for _, m := range middlewares {
		d.Use(m)
	}
	return d.Use(handlerMiddleware{handler: handler})
}
