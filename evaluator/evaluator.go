package evaluator

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/podhmo/lispcore/callstack"
	"github.com/podhmo/lispcore/namespace"
	"github.com/podhmo/lispcore/object"
	"github.com/podhmo/lispcore/registry"
	"github.com/podhmo/lispcore/sandbox"
	"github.com/podhmo/lispcore/scope"
	"github.com/podhmo/lispcore/trampoline"
)

// SpecialFormFunction is the signature for special form functions. form is
// the whole call form; tail reports whether it sits in tail position of a
// loop or function body.
type SpecialFormFunction func(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error)

// Evaluator evaluates forms. It holds only state shared by every logical
// thread of a runtime (globals, namespaces, registries); the per-thread
// state lives in the sandbox.Task carried by the context, so one Evaluator
// may serve many goroutines.
type Evaluator struct {
	globals      *scope.Globals
	namespaces   *namespace.Registry
	types        *registry.Types
	services     *registry.Services
	interop      *Interop
	specialForms map[string]SpecialFormFunction

	runMode string
	args    []string
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
	debug   trampoline.DebugHook
}

// Config holds the collaborators of an Evaluator. Nil fields get fresh
// defaults.
type Config struct {
	Globals      *scope.Globals
	Namespaces   *namespace.Registry
	Types        *registry.Types
	Services     *registry.Services
	Interop      *Interop
	SpecialForms map[string]SpecialFormFunction

	RunMode string
	Args    []string
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
	// RecurHook observes every recur step of every loop.
	RecurHook trampoline.DebugHook
}

// DefaultRunMode is the value of *run-mode* when none is configured.
const DefaultRunMode = "script"

// New creates an evaluator and installs the builtin functions into the
// global table.
func New(cfg Config) *Evaluator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	e := &Evaluator{
		globals:      cfg.Globals,
		namespaces:   cfg.Namespaces,
		types:        cfg.Types,
		services:     cfg.Services,
		interop:      cfg.Interop,
		specialForms: cfg.SpecialForms,
		runMode:      cfg.RunMode,
		args:         cfg.Args,
		stdout:       cfg.Stdout,
		stderr:       cfg.Stderr,
		logger:       logger,
		debug:        cfg.RecurHook,
	}
	if e.globals == nil {
		e.globals = scope.NewGlobals()
	}
	if e.namespaces == nil {
		e.namespaces = namespace.NewRegistry()
	}
	if e.types == nil {
		e.types = registry.NewTypes()
	}
	if e.services == nil {
		e.services = registry.NewServices(logger)
	}
	if e.interop == nil {
		e.interop = NewInterop()
	}
	if e.specialForms == nil {
		e.specialForms = DefaultSpecialForms()
	}
	if e.runMode == "" {
		e.runMode = DefaultRunMode
	}
	if e.stdout == nil {
		e.stdout = os.Stdout
	}
	if e.stderr == nil {
		e.stderr = os.Stderr
	}

	for name, fn := range builtins {
		e.install(name, fn)
	}
	e.installPrimitives()
	return e
}

// Globals returns the shared global table.
func (e *Evaluator) Globals() *scope.Globals { return e.globals }

// Namespaces returns the namespace registry.
func (e *Evaluator) Namespaces() *namespace.Registry { return e.namespaces }

// Types returns the custom type registry.
func (e *Evaluator) Types() *registry.Types { return e.types }

// Services returns the service registry.
func (e *Evaluator) Services() *registry.Services { return e.services }

// Interop returns the registry of Go functions callable through go-call.
func (e *Evaluator) Interop() *Interop { return e.interop }

// NewEnvironment returns a top-level environment over the shared globals.
func (e *Evaluator) NewEnvironment() *scope.Environment {
	return scope.NewEnvironmentWithGlobals(e.globals)
}

// install binds a builtin to its unqualified name unless the global table
// already has it, which happens when several evaluators share one table.
func (e *Evaluator) install(name string, fn object.BuiltinFunction) {
	sym := object.NewSymbol(name)
	e.namespaces.AddCore(name)
	if _, ok := e.globals.Lookup(sym); ok {
		return
	}
	scope.NewEnvironmentWithGlobals(e.globals).DefineConst(sym, &object.Builtin{Name: name, Fn: fn})
}

// RegisterBuiltin makes fn callable from scripts as name. Builtins live in
// the core namespace and cannot be redefined by scripts.
func (e *Evaluator) RegisterBuiltin(name string, fn object.BuiltinFunction) error {
	sym := object.NewSymbol(name)
	if _, err := scope.NewEnvironmentWithGlobals(e.globals).DefineConst(sym, &object.Builtin{Name: name, Fn: fn}); err != nil {
		return err
	}
	e.namespaces.AddCore(name)
	return nil
}

// withTask makes sure ctx carries a Task. Without one a fresh Task with the
// default policy is used, so nothing unsafe is allowed.
func (e *Evaluator) withTask(ctx context.Context) (context.Context, *sandbox.Task) {
	if t := sandbox.TaskFrom(ctx); t != nil {
		return ctx, t
	}
	t := sandbox.NewTask(sandbox.WithLogger(e.logger))
	return sandbox.WithTask(ctx, t), t
}

// Eval evaluates a single top-level form. Errors leave with a location and
// the logical call stack attached.
func (e *Evaluator) Eval(ctx context.Context, form object.Object, env *scope.Environment) (object.Object, error) {
	ctx, task := e.withTask(ctx)
	result, err := e.eval(ctx, form, env, false)
	if err != nil {
		return nil, callstack.Finish(err, form, task.CallStack())
	}
	return result, nil
}

// EvalForms evaluates forms in order and returns the last value. All forms
// run on the same Task, so an ns form affects the forms after it.
func (e *Evaluator) EvalForms(ctx context.Context, forms []object.Object, env *scope.Environment) (object.Object, error) {
	ctx, _ = e.withTask(ctx)
	var result object.Object = object.NIL
	for _, form := range forms {
		var err error
		result, err = e.Eval(ctx, form, env)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Apply calls a function value with already evaluated arguments.
func (e *Evaluator) Apply(ctx context.Context, fn object.Object, args ...object.Object) (object.Object, error) {
	ctx, task := e.withTask(ctx)
	result, err := e.apply(ctx, fn, args, nil)
	if err != nil {
		return nil, callstack.Finish(err, nil, task.CallStack())
	}
	return result, nil
}

func (e *Evaluator) eval(ctx context.Context, form object.Object, env *scope.Environment, tail bool) (object.Object, error) {
	switch f := form.(type) {
	case *object.Symbol:
		return e.resolve(ctx, f, env)
	case *object.List:
		if len(f.Elements) == 0 {
			return f, nil
		}
		result, err := e.evalList(ctx, f, env, tail)
		if err != nil {
			return nil, callstack.Enrich(err, f, sandbox.TaskFrom(ctx).CallStack())
		}
		return result, nil
	case *object.Vector:
		elems, err := e.evalEach(ctx, f.Elements, env)
		if err != nil {
			return nil, err
		}
		return object.NewVector(elems...), nil
	case *object.Map:
		m := object.NewMap()
		for _, p := range f.Pairs {
			k, err := e.eval(ctx, p.Key, env, false)
			if err != nil {
				return nil, err
			}
			v, err := e.eval(ctx, p.Value, env, false)
			if err != nil {
				return nil, err
			}
			m.Put(k, v)
		}
		return m, nil
	case nil:
		return object.NIL, nil
	default:
		return form, nil
	}
}

func (e *Evaluator) evalEach(ctx context.Context, forms []object.Object, env *scope.Environment) ([]object.Object, error) {
	out := make([]object.Object, len(forms))
	for i, f := range forms {
		v, err := e.eval(ctx, f, env, false)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// evalBody evaluates forms in order. Only the last one inherits tail.
func (e *Evaluator) evalBody(ctx context.Context, body []object.Object, env *scope.Environment, tail bool) (object.Object, error) {
	var result object.Object = object.NIL
	for i, f := range body {
		var err error
		result, err = e.eval(ctx, f, env, tail && i == len(body)-1)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (e *Evaluator) evalList(ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	head := form.Elements[0]
	if sym, ok := head.(*object.Symbol); ok && !sym.IsQualified() {
		if sf, ok := e.specialForms[sym.Name]; ok {
			return sf(e, ctx, form, env, tail)
		}
	}

	fn, err := e.eval(ctx, head, env, false)
	if err != nil {
		return nil, err
	}
	if f, ok := fn.(*object.Function); ok && f.IsMacro {
		expanded, err := e.expand(ctx, f, form)
		if err != nil {
			return nil, err
		}
		return e.eval(ctx, expanded, env, tail)
	}

	args, err := e.evalEach(ctx, form.Elements[1:], env)
	if err != nil {
		return nil, err
	}
	return e.apply(ctx, fn, args, form)
}

// resolve looks sym up: system vars first, then local frames and globals,
// then the current namespace and the namespaces it imports.
func (e *Evaluator) resolve(ctx context.Context, sym *object.Symbol, env *scope.Environment) (object.Object, error) {
	task := sandbox.TaskFrom(ctx)
	if !sym.IsQualified() {
		switch sym.Name {
		case namespace.CurrentNamespaceVar:
			return object.NewSymbol(task.Namespace()), nil
		case namespace.ArgsVar:
			args := make([]object.Object, len(e.args))
			for i, a := range e.args {
				args[i] = &object.String{Value: a}
			}
			return object.NewVector(args...), nil
		case namespace.RunModeVar:
			return &object.String{Value: e.runMode}, nil
		}
	}

	if v, ok := env.Lookup(sym); ok {
		return v, nil
	}
	if !sym.IsQualified() {
		if v, ok := env.Lookup(sym.WithNamespace(task.Namespace())); ok {
			return v, nil
		}
		if ns, ok := e.namespaces.Get(task.Namespace()); ok {
			for _, imported := range ns.Imported() {
				if v, ok := env.Lookup(sym.WithNamespace(imported)); ok {
					return v, nil
				}
			}
		}
	}
	err := object.NewUnresolvedSymbolError(sym)
	if pos := object.PositionOf(sym); pos != (object.Position{}) {
		err.Location = object.FormatLocation(pos)
	}
	return nil, err
}

// qualify resolves a definition name against the current namespace.
func (e *Evaluator) qualify(ctx context.Context, sym *object.Symbol) *object.Symbol {
	return e.namespaces.Qualify(sym, sandbox.TaskFrom(ctx).Namespace())
}

func (e *Evaluator) apply(ctx context.Context, fn object.Object, args []object.Object, form *object.List) (object.Object, error) {
	switch f := fn.(type) {
	case *object.Builtin:
		if err := sandbox.CheckInterrupt(ctx, f.Name); err != nil {
			return nil, err
		}
		return f.Fn(e.builtinContext(ctx, f.Name, form), args...)
	case *object.Function:
		if f.IsMacro {
			return nil, object.NewError(object.ScriptErrorKind, "cannot apply macro %s as a function", f.Name)
		}
		return e.callFunction(ctx, f, args, form)
	case *object.Keyword:
		return keywordLookup(f, args)
	default:
		return nil, object.NewError(object.ScriptErrorKind, "not a function: %s", fn.Inspect())
	}
}

func (e *Evaluator) builtinContext(ctx context.Context, name string, form *object.List) *object.BuiltinContext {
	return &object.BuiltinContext{
		Context: ctx,
		Name:    name,
		Form:    form,
		Stdout:  e.stdout,
		Stderr:  e.stderr,
		Apply: func(fn object.Object, args ...object.Object) (object.Object, error) {
			return e.apply(ctx, fn, args, form)
		},
		NewError: func(kind object.ErrorKind, format string, args ...any) *object.Error {
			return e.newError(ctx, form, kind, format, args...)
		},
	}
}

func (e *Evaluator) newError(ctx context.Context, form object.Object, kind object.ErrorKind, format string, args ...any) *object.Error {
	err := object.NewError(kind, format, args...)
	var stack *callstack.Stack
	if t := sandbox.TaskFrom(ctx); t != nil {
		stack = t.CallStack()
	}
	return callstack.Enrich(err, form, stack)
}

// callFunction runs a user function as a recursion point, so a recur in
// tail position of its body rebinds the parameters in place. A frame is
// pushed on the logical call stack for the duration of the call.
func (e *Evaluator) callFunction(ctx context.Context, fn *object.Function, args []object.Object, form *object.List) (object.Object, error) {
	task := sandbox.TaskFrom(ctx)
	name := fn.Name
	if name == "" {
		name = "<anonymous>"
	}
	var callSite object.Object
	if form != nil {
		callSite = form
	}
	leave, err := task.CallStack().Enter(object.NewCallFrame(name, callSite))
	if err != nil {
		return nil, err
	}
	defer leave()

	// the body resolves names against the namespace it was defined in
	if ns, ok := fn.Meta[namespace.MetaNamespace].(*object.String); ok && ns.Value != task.Namespace() {
		prev := task.Namespace()
		task.SetNamespace(ns.Value)
		defer task.SetNamespace(prev)
	}

	patterns, variadic := splitParams(fn.Params)
	values, err := callValues(name, patterns, variadic, args)
	if err != nil {
		return nil, err
	}
	closure, _ := fn.Env.(*scope.Environment)
	if closure == nil {
		closure = e.NewEnvironment()
	}
	rp := &trampoline.RecursionPoint{Name: name, Patterns: patterns, Body: fn.Body, Env: closure, Form: callSite, Debug: e.debug}
	return rp.Run(values, e.bodyFunc(ctx, name, fn.Body))
}

// bodyFunc evaluates body in tail position, checking for interrupts before
// each iteration so that a loop without primitive calls can still be
// stopped.
func (e *Evaluator) bodyFunc(ctx context.Context, name string, body []object.Object) trampoline.BodyFunc {
	return func(env *scope.Environment) (object.Object, error) {
		if err := sandbox.CheckInterrupt(ctx, name); err != nil {
			return nil, err
		}
		return e.evalBody(ctx, body, env, true)
	}
}

// splitParams turns a parameter vector into one pattern per positional
// parameter plus, for a variadic function, one pattern for the rest list.
func splitParams(params *object.Vector) ([]object.Object, bool) {
	if params == nil {
		return nil, false
	}
	for i, p := range params.Elements {
		if sym, ok := p.(*object.Symbol); ok && sym.Name == scope.RestMarker {
			patterns := make([]object.Object, 0, i+1)
			patterns = append(patterns, params.Elements[:i]...)
			return append(patterns, params.Elements[i+1]), true
		}
	}
	return params.Elements, false
}

func callValues(name string, patterns []object.Object, variadic bool, args []object.Object) ([]object.Object, error) {
	if !variadic {
		if len(args) != len(patterns) {
			return nil, object.NewArityError(name, len(args), len(patterns))
		}
		return args, nil
	}
	positional := len(patterns) - 1
	if len(args) < positional {
		return nil, object.NewArityError(name, len(args), positional)
	}
	values := make([]object.Object, 0, len(patterns))
	values = append(values, args[:positional]...)
	return append(values, object.NewList(args[positional:]...)), nil
}

// expand applies a macro to the unevaluated arguments of form. The
// expansion reports the position of the call site.
func (e *Evaluator) expand(ctx context.Context, macro *object.Function, form *object.List) (object.Object, error) {
	expanded, err := e.callFunction(ctx, macro, form.Elements[1:], form)
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "macro expanded", "macro", macro.Name, "expansion", expanded.Inspect())
	if pos := object.PositionOf(form); pos != (object.Position{}) {
		return object.WithPosition(expanded, pos), nil
	}
	return expanded, nil
}

// Macroexpand expands form once if its head names a macro.
func (e *Evaluator) Macroexpand(ctx context.Context, form object.Object, env *scope.Environment) (object.Object, error) {
	ctx, _ = e.withTask(ctx)
	list, ok := form.(*object.List)
	if !ok || len(list.Elements) == 0 {
		return form, nil
	}
	sym, ok := list.Elements[0].(*object.Symbol)
	if !ok {
		return form, nil
	}
	v, err := e.resolve(ctx, sym, env)
	if err != nil {
		return form, nil
	}
	if macro, ok := v.(*object.Function); ok && macro.IsMacro {
		return e.expand(ctx, macro, list)
	}
	return form, nil
}

func keywordLookup(k *object.Keyword, args []object.Object) (object.Object, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, object.NewArityError(k.Inspect(), len(args), 1)
	}
	var fallback object.Object = object.NIL
	if len(args) == 2 {
		fallback = args[1]
	}
	switch target := args[0].(type) {
	case *object.Map:
		if v, ok := target.Get(k); ok {
			return v, nil
		}
	case *object.Record:
		if v, ok := target.Field(k.Name); ok {
			return v, nil
		}
	}
	return fallback, nil
}
