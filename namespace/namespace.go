package namespace

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ahrtr/gocontainer/set"
	"github.com/podhmo/lispcore/object"
)

// MetaNamespace is the metadata key recording the namespace a qualified
// symbol was resolved against.
const MetaNamespace = "ns"

// Namespace is a named collection of definitions plus the names it imports.
type Namespace struct {
	symbol *object.Symbol

	mu       sync.RWMutex
	imported set.Interface
	order    []string
}

func newNamespace(name string) *Namespace {
	return &Namespace{symbol: object.NewSymbol(name), imported: set.New()}
}

// Name returns the namespace name.
func (n *Namespace) Name() string { return n.symbol.Name }

// Symbol returns the namespace symbol.
func (n *Namespace) Symbol() *object.Symbol { return n.symbol }

// Import makes the definitions of the namespace name visible, unqualified,
// in this namespace.
func (n *Namespace) Import(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.imported.Contains(name) {
		return
	}
	n.imported.Add(name)
	n.order = append(n.order, name)
}

// Imports reports whether name was imported.
func (n *Namespace) Imports(name string) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.imported.Contains(name)
}

// Imported returns the imported namespace names in import order.
func (n *Namespace) Imported() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]string(nil), n.order...)
}

// Registry tracks the namespaces of one runtime and the names that belong to
// the core namespace. It is shared by every task of the runtime.
type Registry struct {
	mu         sync.RWMutex
	namespaces map[string]*Namespace
	core       set.Interface
}

// NewRegistry creates a registry holding the core and user namespaces.
func NewRegistry() *Registry {
	r := &Registry{
		namespaces: make(map[string]*Namespace),
		core:       set.New(),
	}
	r.namespaces[CoreNamespace] = newNamespace(CoreNamespace)
	r.namespaces[UserNamespace] = newNamespace(UserNamespace)
	return r
}

// AddCore marks names as belonging to the core namespace. Core names are
// left unqualified by Qualify.
func (r *Registry) AddCore(names ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		r.core.Add(name)
	}
}

// IsCore reports whether name belongs to the core namespace.
func (r *Registry) IsCore(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.core.Contains(name)
}

// Define creates the namespace name if needed and returns it. Scripts may
// not create reserved namespaces.
func (r *Registry) Define(name string) (*Namespace, error) {
	if name == "" {
		return nil, object.NewError(object.ScriptErrorKind, "namespace name must not be empty")
	}
	if IsReservedNamespace(name) || IsReserved(name) {
		return nil, object.NewReservedNameError(name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ns, ok := r.namespaces[name]; ok {
		return ns, nil
	}
	ns := newNamespace(name)
	r.namespaces[name] = ns
	return ns, nil
}

// Get returns the namespace called name.
func (r *Registry) Get(name string) (*Namespace, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ns, ok := r.namespaces[name]
	return ns, ok
}

// Names returns all namespace names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.namespaces))
	for name := range r.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Qualify resolves sym against current:
//   - qualified symbols are returned as-is with the namespace recorded in
//     their metadata,
//   - special forms and core names stay unqualified,
//   - everything else is prefixed with current.
//
// A new symbol is returned whenever anything changes; sym is never modified.
func (r *Registry) Qualify(sym *object.Symbol, current string) *object.Symbol {
	if sym.IsQualified() {
		return sym.WithMeta(sym.Meta().With(MetaNamespace, &object.String{Value: sym.Namespace})).(*object.Symbol)
	}
	if IsSpecialForm(sym.Name) || IsReserved(sym.Name) || r.IsCore(sym.Name) {
		return sym
	}
	if current == "" {
		current = UserNamespace
	}
	return sym.WithNamespace(current)
}

func (r *Registry) String() string {
	return fmt.Sprintf("namespace.Registry%v", r.Names())
}
