// Package container is a small service container for string handlers.
//
// It satisfies relay.ServiceLookup. Components are registered under a key
// either as a ready instance, as a lazily built and cached component, or
// as a factory building a fresh instance for every lookup:
//
//	c := container.New()
//	c.RegisterSingleton("auth", relay.RequireAuth(secret))
//	c.Register("users", func() (*UserStore, error) { return OpenUserStore() })
//	c.RegisterFactory("counter", func() *Counter { return &Counter{} })
//
//	r := relay.NewResolver(relay.WithServices(c))
package container

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// ErrNotRegistered is returned by Get for unknown keys.
var ErrNotRegistered = errors.New("container: component not registered")

// Mode determines how a component is built when it is looked up.
type Mode int

const (
	Singleton Mode = iota // Pre-created instance
	Lazy                  // Built on first lookup, then cached
	Factory               // Built on every lookup
)

func (m Mode) String() string {
	switch m {
	case Singleton:
		return "singleton"
	case Lazy:
		return "lazy"
	case Factory:
		return "factory"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Container maps keys to components. It is safe for concurrent use.
type Container struct {
	mu         sync.RWMutex
	components map[string]*registration
}

type registration struct {
	key         string
	mode        Mode
	constructor reflect.Value

	mu          sync.Mutex
	instance    any
	initialized bool
}

// New returns an empty Container.
func New() *Container {
	return &Container{
		components: make(map[string]*registration),
	}
}

// RegisterSingleton registers a pre-created instance.
func (c *Container) RegisterSingleton(key string, instance any) error {
	return c.add(&registration{key: key, mode: Singleton, instance: instance, initialized: true})
}

// Register registers a constructor that is called on the first lookup of
// key; later lookups return the same instance. A failed construction is
// not cached.
//
// Constructors may have the shape func() T, func() (T, error),
// func(*Container) T or func(*Container) (T, error).
func (c *Container) Register(key string, constructor any) error {
	fn, err := checkConstructor(constructor)
	if err != nil {
		return fmt.Errorf("container: register %q: %w", key, err)
	}
	return c.add(&registration{key: key, mode: Lazy, constructor: fn})
}

// RegisterFactory registers a constructor that is called on every lookup
// of key. It accepts the same shapes as Register.
func (c *Container) RegisterFactory(key string, constructor any) error {
	fn, err := checkConstructor(constructor)
	if err != nil {
		return fmt.Errorf("container: register %q: %w", key, err)
	}
	return c.add(&registration{key: key, mode: Factory, constructor: fn})
}

func (c *Container) add(reg *registration) error {
	if reg.key == "" {
		return errors.New("container: empty key")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[reg.key] = reg
	return nil
}

// Has reports whether key is registered.
func (c *Container) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.components[key]
	return ok
}

// Get returns the component registered under key, building it if its
// mode requires.
func (c *Container) Get(key string) (any, error) {
	c.mu.RLock()
	reg, ok := c.components[key]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, key)
	}

	switch reg.mode {
	case Singleton:
		return reg.instance, nil
	case Factory:
		return c.construct(reg)
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.initialized {
		return reg.instance, nil
	}
	instance, err := c.construct(reg)
	if err != nil {
		return nil, err
	}
	reg.instance = instance
	reg.initialized = true
	return instance, nil
}

// Keys returns the registered keys in sorted order.
func (c *Container) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.components))
	for k := range c.components {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Mode returns the registration mode of key.
func (c *Container) Mode(key string) (Mode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	reg, ok := c.components[key]
	if !ok {
		return 0, false
	}
	return reg.mode, true
}

var (
	containerType = reflect.TypeFor[*Container]()
	errorType     = reflect.TypeFor[error]()
)

func checkConstructor(constructor any) (reflect.Value, error) {
	fn := reflect.ValueOf(constructor)
	if fn.Kind() != reflect.Func || fn.IsNil() {
		return reflect.Value{}, fmt.Errorf("constructor must be a function, got %T", constructor)
	}

	t := fn.Type()
	switch {
	case t.IsVariadic():
		return reflect.Value{}, errors.New("constructor must not be variadic")
	case t.NumIn() > 1 || (t.NumIn() == 1 && t.In(0) != containerType):
		return reflect.Value{}, errors.New("constructor must take no arguments or a *Container")
	case t.NumOut() == 0 || t.NumOut() > 2:
		return reflect.Value{}, errors.New("constructor must return either (instance) or (instance, error)")
	case t.NumOut() == 2 && t.Out(1) != errorType:
		return reflect.Value{}, errors.New("constructor's second result must be an error")
	}
	return fn, nil
}

func (c *Container) construct(reg *registration) (any, error) {
	var in []reflect.Value
	if reg.constructor.Type().NumIn() == 1 {
		in = []reflect.Value{reflect.ValueOf(c)}
	}

	results := reg.constructor.Call(in)
	if len(results) == 2 && !results[1].IsNil() {
		return nil, fmt.Errorf("container: constructing %q: %w", reg.key, results[1].Interface().(error))
	}
	return results[0].Interface(), nil
}
