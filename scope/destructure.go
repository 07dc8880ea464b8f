package scope

import (
	"github.com/podhmo/lispcore/namespace"
	"github.com/podhmo/lispcore/object"
)

// RestMarker separates positional patterns from the rest pattern in a
// vector binding, as in [a b & more].
const RestMarker = "&"

// Ignore is the conventional name for a discarded binding. It is bound like
// any other symbol.
const Ignore = "_"

// ValidatePattern checks that pattern is a plain unqualified symbol or a
// vector of patterns with at most one trailing rest pattern, and that no
// symbol in it is reserved.
func ValidatePattern(pattern object.Object) error {
	switch p := pattern.(type) {
	case *object.Symbol:
		if p.IsQualified() {
			return object.NewScriptError(object.PositionOf(p), "cannot bind qualified symbol %s", p)
		}
		return namespace.ValidateNotReserved(p)
	case *object.Vector:
		for i := 0; i < len(p.Elements); i++ {
			if sym, ok := p.Elements[i].(*object.Symbol); ok && sym.Name == RestMarker {
				if i != len(p.Elements)-2 {
					return object.NewScriptError(object.PositionOf(p), "%s must be followed by exactly one pattern in %s", RestMarker, p.Inspect())
				}
				return ValidatePattern(p.Elements[i+1])
			}
			if err := ValidatePattern(p.Elements[i]); err != nil {
				return err
			}
		}
		return nil
	default:
		return object.NewScriptError(object.PositionOf(pattern), "unsupported binding pattern: %s", pattern.Inspect())
	}
}

// Destructure expands one logical bind of pattern to value into the flat
// bindings it introduces, in pattern order. Missing positional values bind
// nil; the rest pattern receives a list of the remaining values.
func Destructure(pattern object.Object, value object.Object) ([]object.Binding, error) {
	return destructure(nil, pattern, value)
}

func destructure(acc []object.Binding, pattern object.Object, value object.Object) ([]object.Binding, error) {
	switch p := pattern.(type) {
	case *object.Symbol:
		return append(acc, object.Binding{Symbol: p, Value: value}), nil
	case *object.Vector:
		values, err := sequence(value)
		if err != nil {
			return nil, object.NewScriptError(object.PositionOf(p), "cannot destructure %s with %s", value.Type(), p.Inspect())
		}
		for i := 0; i < len(p.Elements); i++ {
			if sym, ok := p.Elements[i].(*object.Symbol); ok && sym.Name == RestMarker {
				var rest []object.Object
				if i < len(values) {
					rest = values[i:]
				}
				return destructure(acc, p.Elements[i+1], object.NewList(rest...))
			}
			var v object.Object = object.NIL
			if i < len(values) {
				v = values[i]
			}
			acc, err = destructure(acc, p.Elements[i], v)
			if err != nil {
				return nil, err
			}
		}
		return acc, nil
	default:
		return nil, object.NewScriptError(object.PositionOf(pattern), "unsupported binding pattern: %s", pattern.Inspect())
	}
}

// BindAll destructures each pattern against the value at the same index.
// The caller has already checked the counts.
func BindAll(patterns []object.Object, values []object.Object) ([]object.Binding, error) {
	bindings := make([]object.Binding, 0, len(patterns))
	for i, p := range patterns {
		var err error
		bindings, err = destructure(bindings, p, values[i])
		if err != nil {
			return nil, err
		}
	}
	return bindings, nil
}

func sequence(value object.Object) ([]object.Object, error) {
	switch v := value.(type) {
	case *object.List:
		return v.Elements, nil
	case *object.Vector:
		return v.Elements, nil
	case *object.Nil:
		return nil, nil
	default:
		return nil, object.NewError(object.ScriptErrorKind, "not a sequence: %s", value.Type())
	}
}
