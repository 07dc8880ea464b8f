// Package trampoline runs loop/recur iteration at constant host stack depth.
//
// A RecursionPoint is the re-entry target of one loop (or function body).
// Evaluating a recur form does not call back into the evaluator; it yields a
// *Recur signal carrying the freshly evaluated arguments. Run sees the signal,
// rebinds the loop names in a new environment and evaluates the same body
// again, so N iterations cost N turns of one Go loop rather than N frames.
package trampoline

import (
	"fmt"

	"github.com/podhmo/lispcore/object"
	"github.com/podhmo/lispcore/scope"
)

// RECUR_OBJ is the type of the recur signal. It never escapes a loop.
const RECUR_OBJ object.ObjectType = "RECUR"

// State is the trampoline state between two body evaluations.
type State int

const (
	Running State = iota
	RecurRequested
)

func (s State) String() string {
	if s == RecurRequested {
		return "recur-requested"
	}
	return "running"
}

// Recur is the signal produced by a recur form in tail position.
type Recur struct {
	Args []object.Object
	Form object.Object
}

// Type returns the type of the Recur signal.
func (r *Recur) Type() object.ObjectType { return RECUR_OBJ }

// Inspect returns a string representation of the signal.
func (r *Recur) Inspect() string {
	return object.NewList(append([]object.Object{object.NewSymbol("recur")}, r.Args...)...).Inspect()
}

// Step is what a debug hook observes on each recur.
type Step struct {
	Iteration int
	State     State
	Point     *RecursionPoint
	Bindings  []object.Binding
	Form      object.Object
}

// DebugHook is notified on every recur step. It only observes: the bindings
// it receives are a copy.
type DebugHook func(Step)

// BodyFunc evaluates the loop body in env and returns its last value.
type BodyFunc func(env *scope.Environment) (object.Object, error)

// RecursionPoint is the reusable re-entry target of one loop construct.
type RecursionPoint struct {
	Name     string
	Patterns []object.Object
	Body     []object.Object
	Env      *scope.Environment
	Form     object.Object
	Debug    DebugHook
}

// New validates the binding patterns once and builds a recursion point
// capturing env.
func New(name string, patterns []object.Object, body []object.Object, env *scope.Environment, form object.Object) (*RecursionPoint, error) {
	for _, p := range patterns {
		if err := scope.ValidatePattern(p); err != nil {
			return nil, err
		}
	}
	return &RecursionPoint{Name: name, Patterns: patterns, Body: body, Env: env, Form: form}, nil
}

// Arity returns the number of values a recur must supply.
func (rp *RecursionPoint) Arity() int { return len(rp.Patterns) }

// Bind builds a new environment over the captured one with a single fresh
// frame pairing the patterns with values. A count mismatch is a fatal
// ArityError.
func (rp *RecursionPoint) Bind(values []object.Object) (*scope.Environment, []object.Binding, error) {
	if len(values) != len(rp.Patterns) {
		err := object.NewArityError(rp.describe(), len(values), len(rp.Patterns))
		err.Fatal = true
		return nil, nil, err
	}
	bindings, err := scope.BindAll(rp.Patterns, values)
	if err != nil {
		return nil, nil, err
	}
	return rp.Env.Extend(bindings), bindings, nil
}

// Run binds the initial values and evaluates the body until it returns
// something other than a recur signal.
func (rp *RecursionPoint) Run(initial []object.Object, body BodyFunc) (object.Object, error) {
	env, _, err := rp.Bind(initial)
	if err != nil {
		return nil, err
	}

	for iteration := 1; ; iteration++ {
		result, err := body(env)
		if err != nil {
			return nil, err
		}
		r, ok := result.(*Recur)
		if !ok {
			return result, nil
		}

		var bindings []object.Binding
		env, bindings, err = rp.Bind(r.Args)
		if err != nil {
			if e, ok := err.(*object.Error); ok && e.Location == "" {
				e.Location = object.FormatLocation(object.PositionOf(r.Form))
			}
			return nil, err
		}
		if rp.Debug != nil {
			observed := make([]object.Binding, len(bindings))
			copy(observed, bindings)
			rp.Debug(Step{Iteration: iteration, State: RecurRequested, Point: rp, Bindings: observed, Form: r.Form})
		}
	}
}

func (rp *RecursionPoint) describe() string {
	if rp.Name == "" {
		return "recur"
	}
	return fmt.Sprintf("recur (%s)", rp.Name)
}
