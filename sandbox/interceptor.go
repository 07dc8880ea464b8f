package sandbox

import (
	"context"
	"errors"
	"fmt"
)

// Request describes one attempt to use a capability.
type Request struct {
	Capability Capability
	// Target is what the primitive acts on: a path, a command, a host name.
	Target string
	// Function is the primitive asking for the capability.
	Function string
}

func (r Request) String() string {
	if r.Target == "" {
		return fmt.Sprintf("%s in %s", r.Capability, r.Function)
	}
	return fmt.Sprintf("%s %q in %s", r.Capability, r.Target, r.Function)
}

// ErrDenied is returned by the stock interceptors.
var ErrDenied = errors.New("capability denied")

// Interceptor is the capability gate consulted before any unsafe primitive
// runs. Check returns nil to allow the request.
type Interceptor interface {
	Check(ctx context.Context, req Request) error
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(ctx context.Context, req Request) error

// Check calls f(ctx, req).
func (f InterceptorFunc) Check(ctx context.Context, req Request) error { return f(ctx, req) }

var (
	// AllowAll permits every request.
	AllowAll Interceptor = InterceptorFunc(func(context.Context, Request) error { return nil })
	// DenyAll rejects every request.
	DenyAll Interceptor = InterceptorFunc(func(context.Context, Request) error { return ErrDenied })
)

// Allow permits exactly the listed capabilities.
func Allow(caps ...Capability) Interceptor {
	var mask uint64
	for _, c := range caps {
		mask |= 1 << uint(c)
	}
	return InterceptorFunc(func(_ context.Context, req Request) error {
		if mask&(1<<uint(req.Capability)) != 0 {
			return nil
		}
		return ErrDenied
	})
}

// Chain permits a request only when every interceptor permits it. Nil
// entries are skipped; a chain with nothing in it denies.
func Chain(interceptors ...Interceptor) Interceptor {
	var list []Interceptor
	for _, i := range interceptors {
		if i != nil {
			list = append(list, i)
		}
	}
	if len(list) == 0 {
		return DenyAll
	}
	return InterceptorFunc(func(ctx context.Context, req Request) error {
		for _, i := range list {
			if err := i.Check(ctx, req); err != nil {
				return err
			}
		}
		return nil
	})
}
