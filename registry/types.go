// Package registry holds the concurrent registries scripts and hosts extend
// the runtime through: custom record types and named services.
package registry

import (
	"errors"
	"sort"
	"sync"

	"github.com/podhmo/lispcore/object"
)

// ErrNilTag is returned when a type is registered without a tag.
var ErrNilTag = errors.New("registry: type tag must not be empty")

// Types maps type tags to custom type definitions. It is safe for concurrent
// use.
type Types struct {
	mu   sync.RWMutex
	defs map[string]*object.TypeDef
}

// NewTypes creates an empty type registry.
func NewTypes() *Types {
	return &Types{defs: make(map[string]*object.TypeDef)}
}

func tagName(tag *object.Keyword) (string, error) {
	if tag == nil || tag.Name == "" {
		return "", ErrNilTag
	}
	return tag.Name, nil
}

// Register installs def under tag, replacing any previous definition.
func (r *Types) Register(tag *object.Keyword, def *object.TypeDef) error {
	name, err := tagName(tag)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[name] = def
	return nil
}

// RegisterIfAbsent installs def only if tag is free. It returns the
// definition now registered and whether it was already there.
func (r *Types) RegisterIfAbsent(tag *object.Keyword, def *object.TypeDef) (*object.TypeDef, bool, error) {
	name, err := tagName(tag)
	if err != nil {
		return nil, false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.defs[name]; ok {
		return existing, true, nil
	}
	r.defs[name] = def
	return def, false, nil
}

// Lookup returns the definition registered under tag.
func (r *Types) Lookup(tag *object.Keyword) (*object.TypeDef, bool) {
	if tag == nil {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[tag.Name]
	return def, ok
}

// Unregister removes tag. It reports whether anything was removed.
func (r *Types) Unregister(tag *object.Keyword) bool {
	if tag == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.defs[tag.Name]
	delete(r.defs, tag.Name)
	return ok
}

// Tags returns the registered tags, sorted.
func (r *Types) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.defs))
	for k := range r.defs {
		tags = append(tags, k)
	}
	sort.Strings(tags)
	return tags
}
