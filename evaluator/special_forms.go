package evaluator

import (
	"context"
	"errors"

	"github.com/podhmo/lispcore/namespace"
	"github.com/podhmo/lispcore/object"
	"github.com/podhmo/lispcore/sandbox"
	"github.com/podhmo/lispcore/scope"
	"github.com/podhmo/lispcore/trampoline"
)

// DefaultSpecialForms returns the special forms the evaluator dispatches on.
// Every name in it is reserved.
func DefaultSpecialForms() map[string]SpecialFormFunction {
	return map[string]SpecialFormFunction{
		"quote":            evalQuote,
		"syntax-quote":     evalSyntaxQuote,
		"unquote":          evalStrayUnquote,
		"unquote-splicing": evalStrayUnquote,
		"def":              evalDef,
		"defconst":         evalDefconst,
		"set!":             evalSet,
		"let":              evalLet,
		"loop":             evalLoop,
		"recur":            evalRecur,
		"fn":               evalFn,
		"defn":             evalDefn,
		"defmacro":         evalDefmacro,
		"if":               evalIf,
		"do":               evalDo,
		"ns":               evalNs,
		"deftype":          evalDeftype,
		"new":              evalNew,
	}
}

func formError(form object.Object, format string, args ...any) *object.Error {
	return object.NewScriptError(object.PositionOf(form), format, args...)
}

func formArityError(form *object.List, got, want int) *object.Error {
	err := object.NewArityError(form.Elements[0].Inspect(), got, want)
	if pos := object.PositionOf(form); pos != (object.Position{}) {
		err.Location = object.FormatLocation(pos)
	}
	return err
}

func symbolArg(form *object.List, i int, what string) (*object.Symbol, error) {
	sym, ok := form.Elements[i].(*object.Symbol)
	if !ok {
		return nil, formError(form, "%s: %s must be a symbol, got %s", form.Elements[0].Inspect(), what, form.Elements[i].Type())
	}
	return sym, nil
}

func vectorArg(form *object.List, i int, what string) (*object.Vector, error) {
	vec, ok := form.Elements[i].(*object.Vector)
	if !ok {
		return nil, formError(form, "%s: %s must be a vector, got %s", form.Elements[0].Inspect(), what, form.Elements[i].Type())
	}
	return vec, nil
}

func evalQuote(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	if len(form.Elements) != 2 {
		return nil, formArityError(form, len(form.Elements)-1, 1)
	}
	return form.Elements[1], nil
}

func evalStrayUnquote(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	return nil, formError(form, "%s used outside syntax-quote", form.Elements[0].Inspect())
}

func evalDef(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	return define(e, ctx, form, env, true)
}

func evalDefconst(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	return define(e, ctx, form, env, false)
}

func define(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, overwritable bool) (object.Object, error) {
	if len(form.Elements) != 3 {
		return nil, formArityError(form, len(form.Elements)-1, 2)
	}
	sym, err := symbolArg(form, 1, "name")
	if err != nil {
		return nil, err
	}
	if err := namespace.ValidateNotReserved(sym); err != nil {
		return nil, err
	}
	val, err := e.eval(ctx, form.Elements[2], env, false)
	if err != nil {
		return nil, err
	}
	if fn, ok := val.(*object.Function); ok && fn.Name == "" {
		named := *fn
		named.Name = sym.Name
		val = &named
	}
	return e.defineGlobal(ctx, sym, val, env, overwritable)
}

func (e *Evaluator) defineGlobal(ctx context.Context, sym *object.Symbol, val object.Object, env *scope.Environment, overwritable bool) (object.Object, error) {
	q := e.qualify(ctx, sym)
	var err error
	if overwritable {
		_, err = env.Define(q, val)
	} else {
		_, err = env.DefineConst(q, val)
	}
	if err != nil {
		return nil, err
	}
	e.logger.DebugContext(ctx, "define", "symbol", q.String(), "overwritable", overwritable)
	return q, nil
}

func evalSet(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	if len(form.Elements) != 3 {
		return nil, formArityError(form, len(form.Elements)-1, 2)
	}
	sym, err := symbolArg(form, 1, "target")
	if err != nil {
		return nil, err
	}
	if err := namespace.ValidateNotReserved(sym); err != nil {
		return nil, err
	}
	val, err := e.eval(ctx, form.Elements[2], env, false)
	if err != nil {
		return nil, err
	}
	err = env.Set(sym, val)
	if err != nil && !sym.IsQualified() && errors.Is(err, object.ErrUnresolvedSymbol) {
		err = env.Set(sym.WithNamespace(sandbox.TaskFrom(ctx).Namespace()), val)
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

// bindingPairs validates a [pattern init ...] vector.
func bindingPairs(form *object.List) ([]object.Object, []object.Object, error) {
	if len(form.Elements) < 2 {
		return nil, nil, formArityError(form, len(form.Elements)-1, 1)
	}
	vec, err := vectorArg(form, 1, "bindings")
	if err != nil {
		return nil, nil, err
	}
	if len(vec.Elements)%2 != 0 {
		return nil, nil, formError(vec, "%s requires an even number of forms in the binding vector", form.Elements[0].Inspect())
	}
	var patterns, inits []object.Object
	for i := 0; i < len(vec.Elements); i += 2 {
		if err := scope.ValidatePattern(vec.Elements[i]); err != nil {
			return nil, nil, err
		}
		patterns = append(patterns, vec.Elements[i])
		inits = append(inits, vec.Elements[i+1])
	}
	return patterns, inits, nil
}

// bindSequentially evaluates each init with the bindings before it in scope,
// all in one frame. Within a frame the first binding of a name wins.
func (e *Evaluator) bindSequentially(ctx context.Context, env *scope.Environment, patterns, inits []object.Object) ([]object.Object, error) {
	values := make([]object.Object, len(inits))
	for i, init := range inits {
		v, err := e.eval(ctx, init, env, false)
		if err != nil {
			return nil, err
		}
		bindings, err := scope.Destructure(patterns[i], v)
		if err != nil {
			return nil, err
		}
		if err := env.Bind(bindings...); err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

func evalLet(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	patterns, inits, err := bindingPairs(form)
	if err != nil {
		return nil, err
	}
	return env.WithLocalFrame(nil, func() (object.Object, error) {
		if _, err := e.bindSequentially(ctx, env, patterns, inits); err != nil {
			return nil, err
		}
		return e.evalBody(ctx, form.Elements[2:], env, tail)
	})
}

func evalLoop(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	patterns, inits, err := bindingPairs(form)
	if err != nil {
		return nil, err
	}
	var values []object.Object
	if _, err := env.WithLocalFrame(nil, func() (object.Object, error) {
		values, err = e.bindSequentially(ctx, env, patterns, inits)
		return nil, err
	}); err != nil {
		return nil, err
	}

	body := form.Elements[2:]
	rp, err := trampoline.New("loop", patterns, body, env, form)
	if err != nil {
		return nil, err
	}
	rp.Debug = e.debug
	return rp.Run(values, e.bodyFunc(ctx, "loop", body))
}

func evalRecur(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	if !tail {
		return nil, formError(form, "recur can only be used in tail position of loop or fn")
	}
	args, err := e.evalEach(ctx, form.Elements[1:], env)
	if err != nil {
		return nil, err
	}
	return &trampoline.Recur{Args: args, Form: form}, nil
}

// makeFunction builds a closure from [params] body... starting at
// form.Elements[start]. The closure captures a snapshot of env's frames and
// the current namespace.
func (e *Evaluator) makeFunction(ctx context.Context, form *object.List, start int, env *scope.Environment, name, self *object.Symbol, isMacro bool) (*object.Function, error) {
	if len(form.Elements) <= start {
		return nil, formError(form, "%s: missing parameter vector", form.Elements[0].Inspect())
	}
	meta := object.PositionMeta(object.PositionOf(form).OrDefault())
	if doc, ok := form.Elements[start].(*object.String); ok && name != nil {
		meta = meta.With(object.MetaDoc, doc)
		start++
		if len(form.Elements) <= start {
			return nil, formError(form, "%s: missing parameter vector", form.Elements[0].Inspect())
		}
	}
	params, err := vectorArg(form, start, "parameters")
	if err != nil {
		return nil, err
	}
	if err := scope.ValidatePattern(params); err != nil {
		return nil, err
	}
	meta = meta.With(object.MetaArglists, params)
	meta = meta.With(namespace.MetaNamespace, &object.String{Value: sandbox.TaskFrom(ctx).Namespace()})

	fn := &object.Function{Params: params, Body: form.Elements[start+1:], IsMacro: isMacro, Meta: meta}
	if name != nil {
		fn.Name = name.Name
	}
	closure := env.Child()
	if self != nil {
		if err := namespace.ValidateNotReserved(self); err != nil {
			return nil, err
		}
		fn.Name = self.Name
		closure = closure.Extend([]object.Binding{{Symbol: self, Value: fn}})
	}
	fn.Env = closure
	return fn, nil
}

func evalFn(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	if len(form.Elements) > 1 {
		if self, ok := form.Elements[1].(*object.Symbol); ok {
			return e.makeFunction(ctx, form, 2, env, nil, self, false)
		}
	}
	return e.makeFunction(ctx, form, 1, env, nil, nil, false)
}

func evalDefn(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	return defineFunction(e, ctx, form, env, false)
}

func evalDefmacro(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	return defineFunction(e, ctx, form, env, true)
}

func defineFunction(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, isMacro bool) (object.Object, error) {
	if len(form.Elements) < 3 {
		return nil, formArityError(form, len(form.Elements)-1, 2)
	}
	name, err := symbolArg(form, 1, "name")
	if err != nil {
		return nil, err
	}
	if err := namespace.ValidateNotReserved(name); err != nil {
		return nil, err
	}
	fn, err := e.makeFunction(ctx, form, 2, env, name, nil, isMacro)
	if err != nil {
		return nil, err
	}
	return e.defineGlobal(ctx, name, fn, env, true)
}

func evalIf(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	if n := len(form.Elements) - 1; n != 2 && n != 3 {
		return nil, formArityError(form, n, 3)
	}
	cond, err := e.eval(ctx, form.Elements[1], env, false)
	if err != nil {
		return nil, err
	}
	if object.IsTruthy(cond) {
		return e.eval(ctx, form.Elements[2], env, tail)
	}
	if len(form.Elements) == 4 {
		return e.eval(ctx, form.Elements[3], env, tail)
	}
	return object.NIL, nil
}

func evalDo(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	return e.evalBody(ctx, form.Elements[1:], env, tail)
}

// evalNs switches the task's current namespace, creating it on first use.
//
//	(ns app.core (:use helpers))
func evalNs(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	if len(form.Elements) < 2 {
		return nil, formArityError(form, 0, 1)
	}
	sym, err := symbolArg(form, 1, "namespace")
	if err != nil {
		return nil, err
	}
	if sym.IsQualified() {
		return nil, formError(form, "namespace name must not be qualified: %s", sym)
	}
	ns, err := e.namespaces.Define(sym.Name)
	if err != nil {
		return nil, err
	}
	for _, clause := range form.Elements[2:] {
		list, ok := clause.(*object.List)
		if !ok || len(list.Elements) == 0 {
			return nil, formError(form, "invalid ns clause: %s", clause.Inspect())
		}
		kw, ok := list.Elements[0].(*object.Keyword)
		if !ok || (kw.Name != "use" && kw.Name != "import") {
			return nil, formError(list, "unsupported ns clause: %s", list.Elements[0].Inspect())
		}
		for _, target := range list.Elements[1:] {
			imported, ok := target.(*object.Symbol)
			if !ok {
				return nil, formError(list, "%s expects namespace symbols, got %s", kw.Inspect(), target.Inspect())
			}
			ns.Import(imported.Name)
		}
	}

	task := sandbox.TaskFrom(ctx)
	task.SetNamespace(ns.Name())
	e.logger.DebugContext(ctx, "namespace switched", "task", task.ID(), "ns", ns.Name())
	return ns.Symbol(), nil
}

// evalDeftype registers a record type and defines its constructor and
// predicate in the current namespace.
//
//	(deftype point [x y])  ; ->point, point?
func evalDeftype(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	if len(form.Elements) != 3 {
		return nil, formArityError(form, len(form.Elements)-1, 2)
	}
	name, err := symbolArg(form, 1, "name")
	if err != nil {
		return nil, err
	}
	if err := namespace.ValidateNotReserved(name); err != nil {
		return nil, err
	}
	fieldVec, err := vectorArg(form, 2, "fields")
	if err != nil {
		return nil, err
	}
	fields := make([]string, len(fieldVec.Elements))
	for i, f := range fieldVec.Elements {
		sym, ok := f.(*object.Symbol)
		if !ok || sym.IsQualified() {
			return nil, formError(fieldVec, "deftype: field must be an unqualified symbol, got %s", f.Inspect())
		}
		fields[i] = sym.Name
	}

	def := &object.TypeDef{
		Tag:         &object.Keyword{Name: name.Name},
		Fields:      fields,
		Constructor: "->" + name.Name,
		Predicate:   name.Name + "?",
	}
	if err := e.types.Register(def.Tag, def); err != nil {
		return nil, formError(form, "%v", err)
	}

	ctor := &object.Builtin{Name: def.Constructor, Fn: func(bctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		return construct(def, args)
	}}
	pred := &object.Builtin{Name: def.Predicate, Fn: func(bctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		if len(args) != 1 {
			return nil, object.NewArityError(def.Predicate, len(args), 1)
		}
		r, ok := args[0].(*object.Record)
		return object.NativeBool(ok && r.Def.Tag.Name == def.Tag.Name), nil
	}}
	for _, b := range []*object.Builtin{ctor, pred} {
		if _, err := e.defineGlobal(ctx, object.NewSymbol(b.Name), b, env, true); err != nil {
			return nil, err
		}
	}
	return def, nil
}

func construct(def *object.TypeDef, args []object.Object) (object.Object, error) {
	if len(args) != len(def.Fields) {
		return nil, object.NewArityError(def.Constructor, len(args), len(def.Fields))
	}
	values := make([]object.Object, len(args))
	copy(values, args)
	return &object.Record{Def: def, Values: values}, nil
}

// evalNew constructs a record by looking its type up in the type registry.
//
//	(new point 1 2)
func evalNew(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	if len(form.Elements) < 2 {
		return nil, formArityError(form, 0, 1)
	}
	var tag *object.Keyword
	switch t := form.Elements[1].(type) {
	case *object.Symbol:
		tag = &object.Keyword{Name: t.Name}
	case *object.Keyword:
		tag = t
	default:
		return nil, formError(form, "new: type must be a symbol or keyword, got %s", t.Inspect())
	}
	def, ok := e.types.Lookup(tag)
	if !ok {
		return nil, formError(form, "new: unknown type %s", tag.Name)
	}
	args, err := e.evalEach(ctx, form.Elements[2:], env)
	if err != nil {
		return nil, err
	}
	return construct(def, args)
}
