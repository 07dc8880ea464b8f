package scope

import (
	"sort"
	"sync"

	"github.com/podhmo/lispcore/object"
)

const shardCount = 32

// Globals is the long-lived mapping from qualified name to Var. It is shared
// by every environment of a runtime and read far more often than written, so
// the table is split into shards selected by the symbol hash.
type Globals struct {
	shards [shardCount]globalShard
}

type globalShard struct {
	mu   sync.RWMutex
	vars map[string]*object.Var
}

// NewGlobals creates an empty global table.
func NewGlobals() *Globals {
	g := &Globals{}
	for i := range g.shards {
		g.shards[i].vars = make(map[string]*object.Var)
	}
	return g
}

func (g *Globals) shard(sym *object.Symbol) *globalShard {
	return &g.shards[sym.Hash()%shardCount]
}

// Lookup returns the Var bound to sym's qualified name.
func (g *Globals) Lookup(sym *object.Symbol) (*object.Var, bool) {
	s := g.shard(sym)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vars[sym.String()]
	return v, ok
}

// install creates or overwrites the Var for sym. A non-overwritable Var
// rejects the redefinition. Redefining an overwritable Var keeps its
// identity, unless the new definition is a constant: then the entry is
// replaced so that the constant cannot be overwritten afterwards.
func (g *Globals) install(sym *object.Symbol, val object.Object, overwritable bool) (*object.Var, error) {
	s := g.shard(sym)
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sym.String()
	if v, ok := s.vars[key]; ok && (overwritable || !v.Overwritable()) {
		if err := v.Set(val); err != nil {
			return nil, err
		}
		return v, nil
	}
	v := object.NewVar(sym, val, overwritable, object.GlobalScope)
	s.vars[key] = v
	return v, nil
}

// Len returns the number of global Vars.
func (g *Globals) Len() int {
	n := 0
	for i := range g.shards {
		s := &g.shards[i]
		s.mu.RLock()
		n += len(s.vars)
		s.mu.RUnlock()
	}
	return n
}

// Names returns the qualified names of all global Vars, sorted.
func (g *Globals) Names() []string {
	var names []string
	for i := range g.shards {
		s := &g.shards[i]
		s.mu.RLock()
		for k := range s.vars {
			names = append(names, k)
		}
		s.mu.RUnlock()
	}
	sort.Strings(names)
	return names
}
