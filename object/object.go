package object

import (
	"bytes"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// ObjectType is a string representation of an object's type.
type ObjectType string

// Define the basic object types.
const (
	NIL_OBJ      ObjectType = "NIL"
	BOOLEAN_OBJ  ObjectType = "BOOLEAN"
	INTEGER_OBJ  ObjectType = "INTEGER"
	FLOAT_OBJ    ObjectType = "FLOAT"
	STRING_OBJ   ObjectType = "STRING"
	KEYWORD_OBJ  ObjectType = "KEYWORD"
	SYMBOL_OBJ   ObjectType = "SYMBOL"
	LIST_OBJ     ObjectType = "LIST"
	VECTOR_OBJ   ObjectType = "VECTOR"
	MAP_OBJ      ObjectType = "MAP"
	FUNCTION_OBJ ObjectType = "FUNCTION"
	MACRO_OBJ    ObjectType = "MACRO"
	BUILTIN_OBJ  ObjectType = "BUILTIN"
	RECORD_OBJ   ObjectType = "RECORD"
	TYPEDEF_OBJ  ObjectType = "TYPEDEF"
	GO_VALUE_OBJ ObjectType = "GO_VALUE"
)

// Object is the interface that all value types in the runtime implement.
type Object interface {
	// Type returns the type of the object.
	Type() ObjectType
	// Inspect returns a string representation of the object's value.
	Inspect() string
}

// Metadata is implemented by values that can carry attached metadata.
type Metadata interface {
	Object
	Meta() Meta
	WithMeta(Meta) Object
}

// --- Nil ---

// Nil represents the absence of a value.
type Nil struct{}

// Type returns the type of the Nil object.
func (n *Nil) Type() ObjectType { return NIL_OBJ }

// Inspect returns "nil".
func (n *Nil) Inspect() string { return "nil" }

// --- Boolean ---

// Boolean represents a boolean value.
type Boolean struct {
	Value bool
}

// Type returns the type of the Boolean object.
func (b *Boolean) Type() ObjectType { return BOOLEAN_OBJ }

// Inspect returns a string representation of the Boolean's value.
func (b *Boolean) Inspect() string { return strconv.FormatBool(b.Value) }

// --- Integer ---

// Integer represents an integer value.
type Integer struct {
	Value int64
}

// Type returns the type of the Integer object.
func (i *Integer) Type() ObjectType { return INTEGER_OBJ }

// Inspect returns a string representation of the Integer's value.
func (i *Integer) Inspect() string { return strconv.FormatInt(i.Value, 10) }

// --- Float ---

// Float represents a floating-point number.
type Float struct {
	Value float64
}

// Type returns the type of the Float object.
func (f *Float) Type() ObjectType { return FLOAT_OBJ }

// Inspect returns a string representation of the Float's value.
func (f *Float) Inspect() string { return strconv.FormatFloat(f.Value, 'g', -1, 64) }

// --- String ---

// String represents a string value.
type String struct {
	Value string
}

// Type returns the type of the String object.
func (s *String) Type() ObjectType { return STRING_OBJ }

// Inspect returns the quoted string.
func (s *String) Inspect() string { return strconv.Quote(s.Value) }

// --- List ---

// List is an immutable sequence used for code and data.
type List struct {
	Elements []Object
	meta     Meta
}

// NewList creates a list holding elems.
func NewList(elems ...Object) *List {
	return &List{Elements: elems}
}

// Type returns the type of the List object.
func (l *List) Type() ObjectType { return LIST_OBJ }

// Inspect returns a string representation of the list.
func (l *List) Inspect() string { return inspectSeq("(", ")", l.Elements) }

// Meta returns the metadata attached to the list.
func (l *List) Meta() Meta {
	if l == nil {
		return nil
	}
	return l.meta
}

// WithMeta returns a copy of the list with meta attached.
func (l *List) WithMeta(m Meta) Object {
	return &List{Elements: l.Elements, meta: m}
}

// Head returns the first element of the list, or nil if it is empty.
func (l *List) Head() Object {
	if len(l.Elements) == 0 {
		return nil
	}
	return l.Elements[0]
}

// --- Vector ---

// Vector is an indexed sequence, also used for binding patterns.
type Vector struct {
	Elements []Object
	meta     Meta
}

// NewVector creates a vector holding elems.
func NewVector(elems ...Object) *Vector {
	return &Vector{Elements: elems}
}

// Type returns the type of the Vector object.
func (v *Vector) Type() ObjectType { return VECTOR_OBJ }

// Inspect returns a string representation of the vector.
func (v *Vector) Inspect() string { return inspectSeq("[", "]", v.Elements) }

// Meta returns the metadata attached to the vector.
func (v *Vector) Meta() Meta {
	if v == nil {
		return nil
	}
	return v.meta
}

// WithMeta returns a copy of the vector with meta attached.
func (v *Vector) WithMeta(m Meta) Object {
	return &Vector{Elements: v.Elements, meta: m}
}

// --- Map ---

// MapPair is a single key/value entry of a Map.
type MapPair struct {
	Key   Object
	Value Object
}

// Map is an insertion-ordered association keyed by the inspected form of its keys.
type Map struct {
	Pairs []MapPair
	index map[string]int
}

// NewMap creates an empty map.
func NewMap() *Map {
	return &Map{index: make(map[string]int)}
}

// Type returns the type of the Map object.
func (m *Map) Type() ObjectType { return MAP_OBJ }

// Inspect returns a string representation of the map.
func (m *Map) Inspect() string {
	var out bytes.Buffer
	out.WriteString("{")
	for i, p := range m.Pairs {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(p.Key.Inspect())
		out.WriteString(" ")
		out.WriteString(p.Value.Inspect())
	}
	out.WriteString("}")
	return out.String()
}

// Put sets key to value, keeping the original position of an existing key.
func (m *Map) Put(key, value Object) {
	if m.index == nil {
		m.index = make(map[string]int)
	}
	k := key.Inspect()
	if i, ok := m.index[k]; ok {
		m.Pairs[i].Value = value
		return
	}
	m.index[k] = len(m.Pairs)
	m.Pairs = append(m.Pairs, MapPair{Key: key, Value: value})
}

// Get returns the value stored under key.
func (m *Map) Get(key Object) (Object, bool) {
	i, ok := m.index[key.Inspect()]
	if !ok {
		return nil, false
	}
	return m.Pairs[i].Value, true
}

// --- Function ---

// Function is a user-defined function or macro. Params is the binding pattern
// vector, Env is the captured environment (declared as any to keep this
// package free of the scope package).
type Function struct {
	Name    string
	Params  *Vector
	Body    []Object
	Env     any
	IsMacro bool
	Meta    Meta
}

// Type returns FUNCTION_OBJ or MACRO_OBJ.
func (f *Function) Type() ObjectType {
	if f.IsMacro {
		return MACRO_OBJ
	}
	return FUNCTION_OBJ
}

// Inspect returns a string representation of the function.
func (f *Function) Inspect() string {
	name := f.Name
	if name == "" {
		name = "<anonymous>"
	}
	kind := "fn"
	if f.IsMacro {
		kind = "macro"
	}
	params := "[]"
	if f.Params != nil {
		params = f.Params.Inspect()
	}
	return fmt.Sprintf("#<%s %s %s>", kind, name, params)
}

// --- Builtin ---

// BuiltinFunction is the signature of Go functions callable from scripts.
// The first argument is the evaluator-provided call context.
type BuiltinFunction func(ctx *BuiltinContext, args ...Object) (Object, error)

// Builtin wraps a Go function so it can be called from a script.
type Builtin struct {
	Name string
	Fn   BuiltinFunction
}

// Type returns the type of the Builtin object.
func (b *Builtin) Type() ObjectType { return BUILTIN_OBJ }

// Inspect returns a string representation of the builtin.
func (b *Builtin) Inspect() string { return fmt.Sprintf("#<builtin %s>", b.Name) }

// --- TypeDef / Record ---

// TypeDef describes a user-defined composite type.
type TypeDef struct {
	Tag         *Keyword
	Fields      []string
	Constructor string
	Predicate   string
}

// Type returns the type of the TypeDef object.
func (t *TypeDef) Type() ObjectType { return TYPEDEF_OBJ }

// Inspect returns a string representation of the type definition.
func (t *TypeDef) Inspect() string {
	return fmt.Sprintf("#<type %s [%s]>", t.Tag.Inspect(), strings.Join(t.Fields, " "))
}

// Record is an instance of a user-defined type.
type Record struct {
	Def    *TypeDef
	Values []Object
}

// Type returns the type of the Record object.
func (r *Record) Type() ObjectType { return RECORD_OBJ }

// Inspect returns a string representation of the record.
func (r *Record) Inspect() string {
	var out bytes.Buffer
	out.WriteString("#")
	out.WriteString(r.Def.Tag.Name)
	out.WriteString("{")
	for i, f := range r.Def.Fields {
		if i > 0 {
			out.WriteString(", ")
		}
		out.WriteString(":" + f + " ")
		if i < len(r.Values) {
			out.WriteString(r.Values[i].Inspect())
		}
	}
	out.WriteString("}")
	return out.String()
}

// Field returns the value of the named field.
func (r *Record) Field(name string) (Object, bool) {
	for i, f := range r.Def.Fields {
		if f == name && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// --- GoValue ---

// GoValue wraps a native Go value returned from interop calls.
type GoValue struct {
	Value reflect.Value
}

// Type returns the type of the GoValue object.
func (g *GoValue) Type() ObjectType { return GO_VALUE_OBJ }

// Inspect returns a string representation of the wrapped value.
func (g *GoValue) Inspect() string {
	if !g.Value.IsValid() {
		return "#<go nil>"
	}
	return fmt.Sprintf("#<go %s %v>", g.Value.Type(), g.Value.Interface())
}

// --- Global Instances ---

// Pre-create global instances for common values to save allocations.
var (
	TRUE  = &Boolean{Value: true}
	FALSE = &Boolean{Value: false}
	NIL   = &Nil{}
)

// NativeBool converts a Go bool into the shared Boolean instances.
func NativeBool(b bool) *Boolean {
	if b {
		return TRUE
	}
	return FALSE
}

// IsTruthy reports whether obj counts as true in a conditional.
// Only nil and false are falsey.
func IsTruthy(obj Object) bool {
	switch o := obj.(type) {
	case nil, *Nil:
		return false
	case *Boolean:
		return o.Value
	default:
		return true
	}
}

// Equal reports structural equality of two values.
func Equal(a, b Object) bool {
	switch x := a.(type) {
	case *Symbol:
		y, ok := b.(*Symbol)
		return ok && x.Equal(y)
	case *Keyword:
		y, ok := b.(*Keyword)
		return ok && x.Name == y.Name
	case *Integer:
		switch y := b.(type) {
		case *Integer:
			return x.Value == y.Value
		case *Float:
			return float64(x.Value) == y.Value
		}
		return false
	case *Float:
		switch y := b.(type) {
		case *Float:
			return x.Value == y.Value
		case *Integer:
			return x.Value == float64(y.Value)
		}
		return false
	case *String:
		y, ok := b.(*String)
		return ok && x.Value == y.Value
	case *Boolean:
		y, ok := b.(*Boolean)
		return ok && x.Value == y.Value
	case *Nil:
		_, ok := b.(*Nil)
		return ok
	case *List:
		return equalSeq(x.Elements, b)
	case *Vector:
		return equalSeq(x.Elements, b)
	case *Record:
		y, ok := b.(*Record)
		if !ok || x.Def != y.Def {
			return false
		}
		return equalSeq(x.Values, NewVector(y.Values...))
	}
	return a == b
}

func equalSeq(xs []Object, b Object) bool {
	var ys []Object
	switch y := b.(type) {
	case *List:
		ys = y.Elements
	case *Vector:
		ys = y.Elements
	default:
		return false
	}
	if len(xs) != len(ys) {
		return false
	}
	for i := range xs {
		if !Equal(xs[i], ys[i]) {
			return false
		}
	}
	return true
}

func inspectSeq(open, close string, elems []Object) string {
	var out bytes.Buffer
	out.WriteString(open)
	for i, e := range elems {
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(e.Inspect())
	}
	out.WriteString(close)
	return out.String()
}
