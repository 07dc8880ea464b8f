package object

import (
	"strings"

	"github.com/segmentio/fasthash/fnv1a"
)

// Symbol is an immutable identifier with an optional namespace and attached
// metadata. Two symbols are equal when their qualified names are equal;
// metadata never takes part in identity.
type Symbol struct {
	Name      string
	Namespace string
	meta      Meta
}

// NewSymbol creates an unqualified symbol.
func NewSymbol(name string) *Symbol {
	return &Symbol{Name: name}
}

// ParseSymbol splits "ns/name" into a qualified symbol. A lone "/" and names
// without a separator are unqualified.
func ParseSymbol(s string) *Symbol {
	if s == "/" {
		return &Symbol{Name: s}
	}
	if i := strings.IndexByte(s, '/'); i > 0 && i < len(s)-1 {
		return &Symbol{Namespace: s[:i], Name: s[i+1:]}
	}
	return &Symbol{Name: s}
}

// Type returns the type of the Symbol object.
func (s *Symbol) Type() ObjectType { return SYMBOL_OBJ }

// Inspect returns the qualified name.
func (s *Symbol) Inspect() string { return s.String() }

// String returns the qualified name, "ns/name" or "name".
func (s *Symbol) String() string {
	if s.Namespace == "" {
		return s.Name
	}
	return s.Namespace + "/" + s.Name
}

// IsQualified reports whether the symbol carries a namespace.
func (s *Symbol) IsQualified() bool { return s.Namespace != "" }

// Equal compares qualified names.
func (s *Symbol) Equal(other *Symbol) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Name == other.Name && s.Namespace == other.Namespace
}

// Hash returns a stable 64-bit hash of the qualified name.
func (s *Symbol) Hash() uint64 {
	h := fnv1a.HashString64(s.Namespace)
	h = fnv1a.AddString64(h, "/")
	return fnv1a.AddString64(h, s.Name)
}

// Meta returns the metadata attached to the symbol.
func (s *Symbol) Meta() Meta {
	if s == nil {
		return nil
	}
	return s.meta
}

// WithMeta returns a copy of the symbol carrying m.
func (s *Symbol) WithMeta(m Meta) Object {
	return &Symbol{Name: s.Name, Namespace: s.Namespace, meta: m}
}

// WithNamespace returns a copy of the symbol qualified by ns, keeping its
// metadata.
func (s *Symbol) WithNamespace(ns string) *Symbol {
	return &Symbol{Name: s.Name, Namespace: ns, meta: s.meta}
}

// Unqualified returns a copy of the symbol without namespace.
func (s *Symbol) Unqualified() *Symbol {
	if s.Namespace == "" {
		return s
	}
	return &Symbol{Name: s.Name, meta: s.meta}
}

// Keyword is a self-evaluating identifier, written :name.
type Keyword struct {
	Name string
}

// Type returns the type of the Keyword object.
func (k *Keyword) Type() ObjectType { return KEYWORD_OBJ }

// Inspect returns the keyword with its leading colon.
func (k *Keyword) Inspect() string { return ":" + k.Name }
