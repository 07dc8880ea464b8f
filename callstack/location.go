package callstack

import "github.com/podhmo/lispcore/object"

// BuildLocation renders the source position of v as "File <file> (line,col)".
// v may be an object.Object, an object.Token, a Position or a CallFrame.
// Missing components fall back to "unknown", 1 and 1; it never fails.
func BuildLocation(v any) (loc string) {
	defer func() {
		if r := recover(); r != nil {
			loc = object.FormatLocation(object.Position{})
		}
	}()
	return object.FormatLocation(positionOf(v))
}

func positionOf(v any) object.Position {
	switch x := v.(type) {
	case nil:
		return object.Position{}
	case object.Token:
		return object.PositionFromToken(x)
	case *object.Token:
		if x == nil {
			return object.Position{}
		}
		return object.PositionFromToken(*x)
	case object.Position:
		return x
	case *object.CallFrame:
		if x == nil {
			return object.Position{}
		}
		return x.Position()
	case object.Object:
		return object.PositionOf(x)
	default:
		return object.Position{}
	}
}

// Enrich decorates err with the location of form and a snapshot of stack,
// unless an inner boundary already did. A form without a position leaves
// the location for an outer boundary to fill. Foreign errors are wrapped as
// ScriptError first.
func Enrich(err error, form any, stack *Stack) *object.Error {
	e := object.AsError(err)
	if e == nil {
		return nil
	}
	if e.Location == "" && positionOf(form) != (object.Position{}) {
		e.Location = BuildLocation(form)
	}
	if e.CallStack == nil && stack != nil {
		e.CallStack = stack.Snapshot()
	}
	return e
}

// Finish is Enrich at the outermost boundary: a location that is still
// missing is rendered with the unknown defaults.
func Finish(err error, form any, stack *Stack) *object.Error {
	e := Enrich(err, form, stack)
	if e != nil && e.Location == "" {
		e.Location = BuildLocation(form)
	}
	return e
}
