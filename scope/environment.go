package scope

import (
	"github.com/podhmo/lispcore/namespace"
	"github.com/podhmo/lispcore/object"
)

// Frame is one let/loop/call level: an ordered sequence of bindings.
type Frame struct {
	Bindings []object.Binding
}

// lookup scans the first n bindings in order and returns the first one named
// name. A negative n scans them all. With duplicate names the earliest
// binding wins; scripts may rely on this.
func (f *Frame) lookup(name string, n int) (int, bool) {
	if n < 0 || n > len(f.Bindings) {
		n = len(f.Bindings)
	}
	for i := 0; i < n; i++ {
		if f.Bindings[i].Symbol.Name == name {
			return i, true
		}
	}
	return -1, false
}

// frameRef is a frame as seen from one environment. A frame captured by a
// child only exposes the bindings it held at capture time; later bindings of
// a sequential let stay invisible to closures created before them.
type frameRef struct {
	frame *Frame
	n     int // -1: every binding
}

// Environment resolves symbols through a stack of local frames (innermost
// first) and then the shared global table. An Environment is owned by a
// single evaluation and must not be used from several goroutines.
type Environment struct {
	globals *Globals
	frames  []frameRef
}

// NewEnvironment creates a top-level environment with a fresh global table.
func NewEnvironment() *Environment {
	return &Environment{globals: NewGlobals()}
}

// NewEnvironmentWithGlobals creates a top-level environment over g.
func NewEnvironmentWithGlobals(g *Globals) *Environment {
	return &Environment{globals: g}
}

// Globals returns the shared global table.
func (e *Environment) Globals() *Globals { return e.globals }

// Child returns an environment sharing the global table that sees the
// current bindings but owns its own frame stack. Frames themselves are shared,
// so set! on a captured local is visible to both, while bindings added to a
// frame after the call are not.
func (e *Environment) Child() *Environment {
	frames := make([]frameRef, len(e.frames), len(e.frames)+1)
	for i, ref := range e.frames {
		if ref.n < 0 {
			ref.n = len(ref.frame.Bindings)
		}
		frames[i] = ref
	}
	return &Environment{globals: e.globals, frames: frames}
}

// Extend returns a child with one fresh frame holding bindings. Bindings are
// not validated here; callers validate patterns once when they are built.
func (e *Environment) Extend(bindings []object.Binding) *Environment {
	child := e.Child()
	child.frames = append(child.frames, frameRef{frame: &Frame{Bindings: bindings}, n: -1})
	return child
}

// Depth returns the number of local frames.
func (e *Environment) Depth() int { return len(e.frames) }

// Define installs or overwrites the overwritable global Var for sym.
func (e *Environment) Define(sym *object.Symbol, val object.Object) (*object.Var, error) {
	return e.define(sym, val, true)
}

// DefineConst installs a global Var that cannot be overwritten later.
func (e *Environment) DefineConst(sym *object.Symbol, val object.Object) (*object.Var, error) {
	return e.define(sym, val, false)
}

func (e *Environment) define(sym *object.Symbol, val object.Object, overwritable bool) (*object.Var, error) {
	if err := namespace.ValidateNotReserved(sym); err != nil {
		return nil, err
	}
	return e.globals.install(sym, val, overwritable)
}

// Lookup walks the local frames innermost-first, then the global table.
// Qualified symbols are never bound locally.
func (e *Environment) Lookup(sym *object.Symbol) (object.Object, bool) {
	if !sym.IsQualified() {
		for i := len(e.frames) - 1; i >= 0; i-- {
			ref := e.frames[i]
			if j, ok := ref.frame.lookup(sym.Name, ref.n); ok {
				return ref.frame.Bindings[j].Value, true
			}
		}
	}
	if v, ok := e.globals.Lookup(sym); ok {
		return v.Value(), true
	}
	return nil, false
}

// Resolve is Lookup failing with an UnresolvedSymbolError.
func (e *Environment) Resolve(sym *object.Symbol) (object.Object, error) {
	if val, ok := e.Lookup(sym); ok {
		return val, nil
	}
	return nil, object.NewUnresolvedSymbolError(sym)
}

// LookupVar returns the global Var bound to sym.
func (e *Environment) LookupVar(sym *object.Symbol) (*object.Var, bool) {
	return e.globals.Lookup(sym)
}

// PushLocalFrame pushes a frame holding bindings. Reserved names cannot be
// shadowed.
func (e *Environment) PushLocalFrame(bindings ...object.Binding) error {
	for _, b := range bindings {
		if err := namespace.ValidateNotReserved(b.Symbol); err != nil {
			return err
		}
	}
	e.frames = append(e.frames, frameRef{frame: &Frame{Bindings: bindings}, n: -1})
	return nil
}

// Bind appends bindings to the innermost frame, so that later bindings of
// a sequential let see the earlier ones. Reserved names cannot be bound.
func (e *Environment) Bind(bindings ...object.Binding) error {
	if len(e.frames) == 0 {
		panic("scope: Bind without a local frame")
	}
	for _, b := range bindings {
		if err := namespace.ValidateNotReserved(b.Symbol); err != nil {
			return err
		}
	}
	ref := &e.frames[len(e.frames)-1]
	if ref.n >= 0 {
		// A captured frame is shared with its owner; bind into a private copy.
		visible := ref.frame.Bindings[:ref.n:ref.n]
		*ref = frameRef{frame: &Frame{Bindings: append(visible, bindings...)}, n: -1}
		return nil
	}
	ref.frame.Bindings = append(ref.frame.Bindings, bindings...)
	return nil
}

// PopLocalFrame pops the innermost frame. Popping an empty stack breaks the
// push/pop discipline and panics.
func (e *Environment) PopLocalFrame() {
	if len(e.frames) == 0 {
		panic("scope: PopLocalFrame on empty frame stack")
	}
	e.frames = e.frames[:len(e.frames)-1]
}

// WithLocalFrame runs fn with bindings pushed, popping the frame on every
// exit path including panics.
func (e *Environment) WithLocalFrame(bindings []object.Binding, fn func() (object.Object, error)) (object.Object, error) {
	if err := e.PushLocalFrame(bindings...); err != nil {
		return nil, err
	}
	defer e.PopLocalFrame()
	return fn()
}

// Set mutates the nearest binding of sym: a local binding in place, or the
// global Var if it is overwritable.
func (e *Environment) Set(sym *object.Symbol, val object.Object) error {
	if !sym.IsQualified() {
		for i := len(e.frames) - 1; i >= 0; i-- {
			ref := e.frames[i]
			if j, ok := ref.frame.lookup(sym.Name, ref.n); ok {
				ref.frame.Bindings[j].Value = val
				return nil
			}
		}
	}
	v, ok := e.globals.Lookup(sym)
	if !ok {
		return object.NewUnresolvedSymbolError(sym)
	}
	return v.Set(val)
}
