// Package registry owns capability instances. Identifiers are registered with
// a factory; instances are constructed lazily on first resolution, at most
// once per identifier, and released at shutdown.
package registry

import (
	"context"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/reglet-dev/capkit/domain/entities"
	"github.com/reglet-dev/capkit/domain/errors"
	"github.com/reglet-dev/capkit/domain/ports"
	"github.com/reglet-dev/capkit/runctx"
	"golang.org/x/sync/errgroup"
)

// registryConfig holds configuration for the Registry.
type registryConfig struct {
	services ports.Services
	logger   *slog.Logger
}

func defaultRegistryConfig() registryConfig {
	return registryConfig{
		logger: slog.Default(),
	}
}

// Option configures a Registry instance.
type Option func(*registryConfig)

// WithServices sets the shared services handed to every factory.
func WithServices(s ports.Services) Option {
	return func(c *registryConfig) {
		c.services = s
	}
}

// WithLogger sets the logger for registry events.
func WithLogger(l *slog.Logger) Option {
	return func(c *registryConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

type entry struct {
	factory  ports.Factory
	instance ports.Capability
	mu       sync.Mutex // serializes construction of this entry
}

// Registry maps capability identifiers to lazily constructed instances.
// It is safe for concurrent use.
type Registry struct {
	entries map[entities.CapabilityID]*entry
	config  registryConfig
	mu      sync.RWMutex
	closed  bool
}

// New creates an empty Registry with the given options.
func New(opts ...Option) *Registry {
	cfg := defaultRegistryConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.services == nil {
		cfg.services = runctx.NewServices(nil, cfg.logger)
	}
	return &Registry{
		config:  cfg,
		entries: make(map[entities.CapabilityID]*entry),
	}
}

// Services returns the shared services handed to factories.
func (r *Registry) Services() ports.Services {
	return r.config.services
}

// Register adds a factory under id. It fails with InvalidIdentifier for
// malformed ids, DuplicateIdentifier if id is already registered and
// RegistryClosed after shutdown.
func (r *Registry) Register(id entities.CapabilityID, factory ports.Factory) error {
	if err := id.Validate(); err != nil {
		return &errors.InvalidIdentifierError{Value: string(id), Err: err}
	}
	if factory == nil {
		return fmt.Errorf("capability %q: factory is nil", string(id))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return &errors.RegistryClosedError{ID: id}
	}
	if _, exists := r.entries[id]; exists {
		return &errors.DuplicateIdentifierError{ID: id}
	}
	r.entries[id] = &entry{factory: factory}
	r.config.logger.Debug("capability registered", "capability_id", string(id))
	return nil
}

// RegisterInstance registers an already constructed capability under its own identifier.
func (r *Registry) RegisterInstance(c ports.Capability) error {
	return r.Register(c.Identifier(), func(context.Context, ports.Services) (ports.Capability, error) {
		return c, nil
	})
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(id entities.CapabilityID, factory ports.Factory) {
	if err := r.Register(id, factory); err != nil {
		panic(err)
	}
}

// Resolve returns the instance registered under id, constructing it on first
// use. Concurrent first resolutions of one id construct it once; unrelated ids
// construct concurrently. Malformed ids fail with InvalidIdentifier. A failed
// construction is not memoized and surfaces as a CapabilityFault.
func (r *Registry) Resolve(ctx context.Context, id entities.CapabilityID) (ports.Capability, error) {
	if err := id.Validate(); err != nil {
		return nil, &errors.InvalidIdentifierError{Value: string(id), Err: err}
	}

	r.mu.RLock()
	closed := r.closed
	e, ok := r.entries[id]
	r.mu.RUnlock()

	if closed {
		return nil, &errors.RegistryClosedError{ID: id}
	}
	if !ok {
		return nil, &errors.UnknownCapabilityError{ID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.instance != nil {
		return e.instance, nil
	}

	start := time.Now()
	inst, err := r.construct(ctx, id, e.factory)
	if err != nil {
		r.config.logger.Warn("capability construction failed",
			"capability_id", string(id), "error", err)
		return nil, err
	}

	// Publish only while the registry is open so Shutdown sees every instance.
	r.mu.RLock()
	if r.closed {
		r.mu.RUnlock()
		closeInstance(ctx, inst)
		return nil, &errors.RegistryClosedError{ID: id}
	}
	e.instance = inst
	r.mu.RUnlock()

	r.config.logger.Debug("capability constructed",
		"capability_id", string(id), "duration", time.Since(start))
	return inst, nil
}

func (r *Registry) construct(ctx context.Context, id entities.CapabilityID, factory ports.Factory) (inst ports.Capability, err error) {
	defer func() {
		if p := recover(); p != nil {
			inst = nil
			err = &errors.CapabilityFaultError{CapabilityID: id, Panic: p, Stack: debug.Stack()}
		}
	}()

	inst, err = factory(ctx, r.config.services)
	if err != nil {
		if errors.IsCancellation(err) {
			return nil, &errors.CancelledError{Err: err, CapabilityID: id}
		}
		return nil, &errors.CapabilityFaultError{CapabilityID: id, Cause: fmt.Errorf("construct: %w", err)}
	}
	if inst == nil {
		return nil, &errors.CapabilityFaultError{CapabilityID: id, Cause: stdErrors.New("factory returned no instance")}
	}
	if got := inst.Identifier(); got != id {
		closeInstance(ctx, inst)
		return nil, &errors.CapabilityFaultError{
			CapabilityID: id,
			Cause:        fmt.Errorf("instance reports identifier %q", string(got)),
		}
	}
	return inst, nil
}

func closeInstance(ctx context.Context, inst ports.Capability) {
	if c, ok := inst.(ports.Closer); ok {
		_ = c.Close(ctx)
	}
}

// List returns the registered identifiers in sorted order.
func (r *Registry) List() []entities.CapabilityID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]entities.CapabilityID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Registered reports whether id has been registered.
func (r *Registry) Registered(id entities.CapabilityID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Constructed reports whether the instance for id has been built.
func (r *Registry) Constructed(id entities.CapabilityID) bool {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instance != nil
}

// Closed reports whether Shutdown has been called.
func (r *Registry) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Shutdown releases every constructed instance, closing those that implement
// ports.Closer concurrently. Later registrations and resolutions fail with
// RegistryClosed. Calling Shutdown again is a no-op.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := make(map[entities.CapabilityID]*entry, len(r.entries))
	for id, e := range r.entries {
		entries[id] = e
	}
	r.mu.Unlock()

	var (
		errMu sync.Mutex
		errs  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for id, e := range entries {
		e.mu.Lock()
		inst := e.instance
		e.instance = nil
		e.mu.Unlock()

		closer, ok := inst.(ports.Closer)
		if !ok {
			continue
		}
		g.Go(func() error {
			if err := closer.Close(gctx); err != nil {
				errMu.Lock()
				errs = append(errs, fmt.Errorf("close %s: %w", string(id), err))
				errMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	r.config.logger.Info("registry shut down", "capabilities", len(entries), "close_errors", len(errs))
	return stdErrors.Join(errs...)
}
