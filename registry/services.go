package registry

import (
	"context"
	"log/slog"
	"os"
	"sort"
	"sync"

	"github.com/podhmo/lispcore/object"
	"github.com/podhmo/lispcore/sandbox"
	"golang.org/x/sync/singleflight"
)

// Discovery finds services the static mapping does not know. ok is false
// when the service does not exist.
type Discovery interface {
	Discover(ctx context.Context, name string) (service any, ok bool, err error)
}

// DiscoveryFunc adapts a function to Discovery.
type DiscoveryFunc func(ctx context.Context, name string) (any, bool, error)

// Discover calls f(ctx, name).
func (f DiscoveryFunc) Discover(ctx context.Context, name string) (any, bool, error) {
	return f(ctx, name)
}

// Services maps names to host services, with an optional discovery
// fallback consulted on a miss. It is safe for concurrent use.
type Services struct {
	mu        sync.RWMutex
	static    map[string]any
	discovery Discovery

	group  singleflight.Group
	logger *slog.Logger
}

// NewServices creates an empty service registry. logger may be nil.
func NewServices(logger *slog.Logger) *Services {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	return &Services{static: make(map[string]any), logger: logger}
}

// Register binds name to service, replacing any previous binding.
func (r *Services) Register(name string, service any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.static[name] = service
}

// Unregister removes name from the static mapping.
func (r *Services) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.static, name)
}

// SetDiscovery installs (or, with nil, removes) the discovery fallback.
func (r *Services) SetDiscovery(d Discovery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discovery = d
}

// Names returns the statically registered names, sorted.
func (r *Services) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.static))
	for k := range r.static {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

type discovered struct {
	service any
	ok      bool
}

// Lookup returns the statically registered service, otherwise asks the
// discovery fallback, otherwise fails with ServiceNotFoundError. Concurrent
// misses for the same name within one unit of work share one discovery call.
// Discovered services are not added to the static mapping.
func (r *Services) Lookup(ctx context.Context, name string) (any, error) {
	r.mu.RLock()
	service, ok := r.static[name]
	discovery := r.discovery
	r.mu.RUnlock()
	if ok {
		return service, nil
	}
	if discovery == nil {
		return nil, object.NewServiceNotFoundError(name)
	}

	// Discovery runs under the caller's sandbox, so only lookups from the same
	// unit of work may share a result.
	key := name
	if t := sandbox.TaskFrom(ctx); t != nil {
		key = t.RunID() + "\x00" + name
	}
	v, err, shared := r.group.Do(key, func() (any, error) {
		service, ok, err := discovery.Discover(ctx, name)
		return discovered{service: service, ok: ok}, err
	})
	r.logger.DebugContext(ctx, "service discovery", "service", name, "shared", shared, "error", err)
	if err != nil {
		e := object.NewServiceNotFoundError(name)
		e.Cause = err
		return nil, e
	}
	d := v.(discovered)
	if !d.ok {
		return nil, object.NewServiceNotFoundError(name)
	}
	return d.service, nil
}
