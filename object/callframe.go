package object

import (
	"context"
	"fmt"
	"io"
)

// CallFrame represents a single frame in the logical call stack.
type CallFrame struct {
	Function string // Name of the function for stack traces
	File     string
	Line     int
	Col      int
}

// NewCallFrame builds a frame for fn at the position recorded on form.
func NewCallFrame(fn string, form Object) *CallFrame {
	pos := PositionOf(form).OrDefault()
	return &CallFrame{Function: fn, File: pos.File, Line: pos.Line, Col: pos.Col}
}

// Position returns the frame coordinates, defaulted.
func (cf *CallFrame) Position() Position {
	return Position{File: cf.File, Line: cf.Line, Col: cf.Col}.OrDefault()
}

// Format formats the call frame into a readable string.
func (cf *CallFrame) Format() string {
	funcName := cf.Function
	if funcName == "" {
		funcName = "<script>"
	}
	pos := cf.Position()
	return fmt.Sprintf("\t%s:%d:%d:\tin %s", pos.File, pos.Line, pos.Col, funcName)
}

// BuiltinContext is handed to every builtin invocation.
type BuiltinContext struct {
	context.Context
	Name   string // the builtin being invoked
	Form   Object // the call form, for positions
	Stdout io.Writer
	Stderr io.Writer
	// Apply calls a script function value with already evaluated arguments.
	Apply func(fn Object, args ...Object) (Object, error)
	// NewError creates an error decorated with the current location and call stack.
	NewError func(kind ErrorKind, format string, args ...any) *Error
}
