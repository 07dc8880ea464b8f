package object

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrorKind enumerates the failure kinds reported by the runtime core.
type ErrorKind int

const (
	ScriptErrorKind ErrorKind = iota
	UnresolvedSymbolKind
	NotOverwritableKind
	ReservedNameKind
	ArityKind
	SandboxDeniedKind
	ServiceNotFoundKind
	StackDepthExceededKind
	InterruptedKind
)

var kindNames = [...]string{
	ScriptErrorKind:        "ScriptError",
	UnresolvedSymbolKind:   "UnresolvedSymbolError",
	NotOverwritableKind:    "NotOverwritableError",
	ReservedNameKind:       "ReservedNameError",
	ArityKind:              "ArityError",
	SandboxDeniedKind:      "SandboxDeniedError",
	ServiceNotFoundKind:    "ServiceNotFoundError",
	StackDepthExceededKind: "StackDepthExceeded",
	InterruptedKind:        "InterruptedError",
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinels for errors.Is. An *Error matches a sentinel of the same kind.
var (
	ErrScript             = &Error{Kind: ScriptErrorKind}
	ErrUnresolvedSymbol   = &Error{Kind: UnresolvedSymbolKind}
	ErrNotOverwritable    = &Error{Kind: NotOverwritableKind}
	ErrReservedName       = &Error{Kind: ReservedNameKind}
	ErrArity              = &Error{Kind: ArityKind}
	ErrSandboxDenied      = &Error{Kind: SandboxDeniedKind}
	ErrServiceNotFound    = &Error{Kind: ServiceNotFoundKind}
	ErrStackDepthExceeded = &Error{Kind: StackDepthExceededKind}
	ErrInterrupted        = &Error{Kind: InterruptedKind}
)

// Error is a runtime error. It carries its kind, the rendered source
// location and a snapshot of the logical call stack (most recent last).
type Error struct {
	Kind      ErrorKind
	Message   string
	Location  string
	CallStack []*CallFrame
	// Fatal marks errors that no script-level handler may recover from.
	Fatal bool
	Cause error
}

// Type returns ERROR so errors can travel as values in diagnostics.
func (e *Error) Type() ObjectType { return "ERROR" }

// Inspect returns a formatted string representation of the error, including the call stack.
func (e *Error) Inspect() string {
	var out bytes.Buffer

	out.WriteString("runtime error: ")
	out.WriteString(e.Kind.String())
	out.WriteString(": ")
	out.WriteString(e.Message)
	if e.Location != "" {
		out.WriteString("\n\t")
		out.WriteString(e.Location)
	}
	out.WriteString("\n")

	// Print the call stack in reverse order (most recent call first)
	for i := len(e.CallStack) - 1; i >= 0; i-- {
		out.WriteString(e.CallStack[i].Format())
		out.WriteString("\n")
	}
	return out.String()
}

// Error makes it a valid Go error.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Cause }

// Is matches sentinels of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Enrich fills the location and call stack if they are still unset. Errors
// are enriched once, at the innermost evaluator boundary that sees them.
func (e *Error) Enrich(location string, stack []*CallFrame) *Error {
	if e.Location == "" {
		e.Location = location
	}
	if e.CallStack == nil && len(stack) > 0 {
		e.CallStack = stack
	}
	return e
}

// KindOf returns the kind of err, or ScriptErrorKind for foreign errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ScriptErrorKind
}

// AsError converts any error into an *Error, wrapping foreign errors as
// ScriptError.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: ScriptErrorKind, Message: err.Error(), Cause: err}
}

// NewError creates an error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NewScriptError creates a generic script error at pos.
func NewScriptError(pos Position, format string, args ...any) *Error {
	e := NewError(ScriptErrorKind, format, args...)
	if pos != (Position{}) {
		e.Location = FormatLocation(pos)
	}
	return e
}

// NewUnresolvedSymbolError reports a symbol absent from every scope.
func NewUnresolvedSymbolError(sym *Symbol) *Error {
	return NewError(UnresolvedSymbolKind, "unable to resolve symbol: %s", sym)
}

// NewNotOverwritableError reports an attempt to mutate a fixed Var.
func NewNotOverwritableError(sym *Symbol) *Error {
	return NewError(NotOverwritableKind, "cannot overwrite %s", sym)
}

// NewReservedNameError reports a definition or shadowing of a reserved name.
func NewReservedNameError(name string) *Error {
	return NewError(ReservedNameKind, "%s is a reserved name", name)
}

// NewArityError reports an argument count mismatch.
func NewArityError(what string, got, want int) *Error {
	return NewError(ArityKind, "wrong number of arguments to %s. got=%d, want=%d", what, got, want)
}

// NewSandboxDeniedError reports a capability check that failed.
func NewSandboxDeniedError(capability, target string) *Error {
	if target == "" {
		return NewError(SandboxDeniedKind, "sandbox denied %s", capability)
	}
	return NewError(SandboxDeniedKind, "sandbox denied %s on %q", capability, target)
}

// NewServiceNotFoundError reports a service that neither the static registry
// nor discovery could provide.
func NewServiceNotFoundError(name string) *Error {
	return NewError(ServiceNotFoundKind, "service not found: %s", name)
}

// NewStackDepthExceededError reports a call stack deeper than limit.
func NewStackDepthExceededError(limit int) *Error {
	e := NewError(StackDepthExceededKind, "call stack depth exceeded (limit %d)", limit)
	e.Fatal = true
	return e
}

// NewInterruptedError reports a cooperative interrupt observed in fn.
func NewInterruptedError(fn string) *Error {
	e := NewError(InterruptedKind, "interrupted in %s", fn)
	e.Fatal = true
	return e
}

// FormatLocation renders pos as "File <file> (line,col)", substituting the
// unknown defaults for any missing component.
func FormatLocation(pos Position) string {
	pos = pos.OrDefault()
	return fmt.Sprintf("File <%s> (%d,%d)", pos.File, pos.Line, pos.Col)
}
