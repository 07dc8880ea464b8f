package evaluator

import (
	"os"
	"os/exec"

	"github.com/podhmo/lispcore/object"
	"github.com/podhmo/lispcore/sandbox"
)

// installPrimitives binds the functions that reach outside the runtime.
// Each consults the sandbox gate before doing anything.
func (e *Evaluator) installPrimitives() {
	e.install("service", e.lookupService)
	e.installGated("slurp", sandbox.FileRead, primSlurp)
	e.installGated("spit", sandbox.FileWrite, primSpit)
	e.installGated("sh", sandbox.Process, primSh)
	e.installGated("getenv", sandbox.Environment, primGetenv)
	e.installGated("go-call", sandbox.Interop, e.goCall)
}

func (e *Evaluator) installGated(name string, c sandbox.Capability, fn object.BuiltinFunction) {
	e.install(name, gated(c, fn))
}

// RegisterPrimitive makes fn callable from scripts as name, guarded by the
// capability c. The first string argument is reported as the request target.
func (e *Evaluator) RegisterPrimitive(name string, c sandbox.Capability, fn object.BuiltinFunction) error {
	return e.RegisterBuiltin(name, gated(c, fn))
}

func gated(c sandbox.Capability, fn object.BuiltinFunction) object.BuiltinFunction {
	return func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		req := sandbox.Request{Capability: c, Function: ctx.Name}
		if len(args) > 0 {
			if s, ok := args[0].(*object.String); ok {
				req.Target = s.Value
			}
		}
		if err := sandbox.Gate(ctx, req); err != nil {
			return nil, err
		}
		return fn(ctx, args...)
	}
}

func stringArgs(ctx *object.BuiltinContext, args []object.Object, n int) ([]string, error) {
	if len(args) != n {
		return nil, object.NewArityError(ctx.Name, len(args), n)
	}
	out := make([]string, n)
	for i, a := range args {
		s, ok := a.(*object.String)
		if !ok {
			return nil, ctx.NewError(object.ScriptErrorKind, "%s: argument %d must be a string, got %s", ctx.Name, i+1, a.Type())
		}
		out[i] = s.Value
	}
	return out, nil
}

func primSlurp(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
	s, err := stringArgs(ctx, args, 1)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s[0])
	if err != nil {
		return nil, ctx.NewError(object.ScriptErrorKind, "slurp: %v", err)
	}
	return &object.String{Value: string(b)}, nil
}

func primSpit(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
	s, err := stringArgs(ctx, args, 2)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(s[0], []byte(s[1]), 0o644); err != nil {
		return nil, ctx.NewError(object.ScriptErrorKind, "spit: %v", err)
	}
	return object.NIL, nil
}

func primSh(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
	if len(args) == 0 {
		return nil, object.NewArityError(ctx.Name, 0, 1)
	}
	s, err := stringArgs(ctx, args, len(args))
	if err != nil {
		return nil, err
	}
	out, err := exec.CommandContext(ctx, s[0], s[1:]...).Output()
	if err != nil {
		return nil, ctx.NewError(object.ScriptErrorKind, "sh: %v", err)
	}
	return &object.String{Value: string(out)}, nil
}

func primGetenv(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
	s, err := stringArgs(ctx, args, 1)
	if err != nil {
		return nil, err
	}
	v, ok := os.LookupEnv(s[0])
	if !ok {
		return object.NIL, nil
	}
	return &object.String{Value: v}, nil
}

func (e *Evaluator) lookupService(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
	if len(args) != 1 {
		return nil, object.NewArityError(ctx.Name, len(args), 1)
	}
	var name string
	switch a := args[0].(type) {
	case *object.String:
		name = a.Value
	case *object.Keyword:
		name = a.Name
	case *object.Symbol:
		name = a.String()
	default:
		return nil, ctx.NewError(object.ScriptErrorKind, "service: name must be a string or keyword, got %s", a.Type())
	}
	svc, err := e.services.Lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	return ToObject(svc), nil
}

func (e *Evaluator) goCall(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
	if len(args) == 0 {
		return nil, object.NewArityError(ctx.Name, 0, 1)
	}
	name, ok := args[0].(*object.String)
	if !ok {
		return nil, ctx.NewError(object.ScriptErrorKind, "go-call: function name must be a string, got %s", args[0].Type())
	}
	return e.interop.Call(ctx, name.Value, args[1:])
}
