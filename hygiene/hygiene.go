// Package hygiene generates collision-free symbols for template placeholders.
//
// A symbol whose name ends with the sentinel (a#) is an auto-gensym
// placeholder. Within one expansion episode every occurrence of the same
// placeholder resolves to the same generated symbol; separate episodes never
// share generated symbols. Episodes nest: entering pushes a fresh cache and
// leaving restores the enclosing one.
package hygiene

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/podhmo/lispcore/object"
)

// Sentinel marks a placeholder symbol.
const Sentinel = "#"

var counter atomic.Uint64

// Gensym returns a fresh, process-wide unique symbol derived from prefix.
func Gensym(prefix string) *object.Symbol {
	if prefix == "" {
		prefix = "G"
	}
	return object.NewSymbol(fmt.Sprintf("%s__%d__auto__", prefix, counter.Add(1)))
}

// IsPlaceholder reports whether sym is an unqualified name ending with the
// sentinel.
func IsPlaceholder(sym *object.Symbol) bool {
	return !sym.IsQualified() && len(sym.Name) > len(Sentinel) && strings.HasSuffix(sym.Name, Sentinel)
}

// Engine holds the episode caches of one logical thread of execution. It is
// never shared between goroutines.
type Engine struct {
	episodes []map[string]*object.Symbol
}

// New creates an engine outside any episode.
func New() *Engine {
	return &Engine{}
}

// Enter starts a new episode with an empty cache, shadowing any enclosing one.
func (e *Engine) Enter() {
	e.episodes = append(e.episodes, make(map[string]*object.Symbol))
}

// Leave ends the innermost episode and restores the enclosing cache.
func (e *Engine) Leave() {
	if len(e.episodes) == 0 {
		return
	}
	e.episodes[len(e.episodes)-1] = nil
	e.episodes = e.episodes[:len(e.episodes)-1]
}

// Inside reports whether an episode is active.
func (e *Engine) Inside() bool { return len(e.episodes) > 0 }

// Depth returns the number of nested episodes.
func (e *Engine) Depth() int { return len(e.episodes) }

// Reset drops every episode.
func (e *Engine) Reset() {
	e.episodes = nil
}

// ResolvePlaceholder maps a placeholder to its generated symbol for the
// current episode, generating one on first use. Non-placeholders, and
// placeholders seen outside any episode, are returned unchanged.
func (e *Engine) ResolvePlaceholder(sym *object.Symbol) *object.Symbol {
	if !IsPlaceholder(sym) || len(e.episodes) == 0 {
		return sym
	}
	cache := e.episodes[len(e.episodes)-1]
	if gen, ok := cache[sym.Name]; ok {
		return gen
	}
	gen := Gensym(strings.TrimSuffix(sym.Name, Sentinel))
	if m := sym.Meta(); m != nil {
		gen = gen.WithMeta(m).(*object.Symbol)
	}
	cache[sym.Name] = gen
	return gen
}

// Expand runs fn inside a fresh episode, leaving it on every exit path.
func (e *Engine) Expand(fn func() (object.Object, error)) (object.Object, error) {
	e.Enter()
	defer e.Leave()
	return fn()
}
