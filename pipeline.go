package relay

import (
	"fmt"

	"github.com/Jack4Code/relay/config"
)

// FromConfig builds a Dispatcher from the handler strings in cfg, resolved
// through r. Strings are looked up per request, so services and types may
// be registered on r after the dispatcher is built but before it serves.
func FromConfig(r *Resolver, cfg config.PipelineConfig) (*Dispatcher, error) {
	handlers := make([]any, 0, len(cfg.Middleware))
	for i, name := range cfg.Middleware {
		if name == "" {
			return nil, &ConfigurationError{Index: i, Reason: "empty handler string"}
		}
		handlers = append(handlers, name)
	}

	d, err := r.Dispatcher(handlers...)
	if err != nil {
		return nil, fmt.Errorf("relay: building pipeline: %w", err)
	}
	return d, nil
}
