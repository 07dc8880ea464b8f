package object

import (
	"fmt"
	"sync"
)

// VarScope tags where a Var lives.
type VarScope int

const (
	GlobalScope VarScope = iota
	LocalScope
)

func (s VarScope) String() string {
	if s == LocalScope {
		return "local"
	}
	return "global"
}

// Var is a named storage cell. Its name never changes after construction;
// only its value does, and only while it is overwritable.
type Var struct {
	mu           sync.RWMutex
	name         *Symbol
	value        Object
	overwritable bool
	scope        VarScope
}

// NewVar creates a Var bound to name.
func NewVar(name *Symbol, value Object, overwritable bool, scope VarScope) *Var {
	return &Var{name: name, value: value, overwritable: overwritable, scope: scope}
}

// Name returns the symbol the Var is bound to.
func (v *Var) Name() *Symbol { return v.name }

// Value returns the current value.
func (v *Var) Value() Object {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

// Overwritable reports whether Set may replace the value.
func (v *Var) Overwritable() bool { return v.overwritable }

// Scope returns the scope tag.
func (v *Var) Scope() VarScope { return v.scope }

// Set replaces the value in place.
func (v *Var) Set(val Object) error {
	if !v.overwritable {
		return NewNotOverwritableError(v.name)
	}
	v.mu.Lock()
	v.value = val
	v.mu.Unlock()
	return nil
}

func (v *Var) String() string {
	return fmt.Sprintf("#'%s", v.name)
}

// Binding pairs a symbol with a value inside one local frame.
type Binding struct {
	Symbol *Symbol
	Value  Object
}
