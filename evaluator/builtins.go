package evaluator

import (
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/podhmo/lispcore/hygiene"
	"github.com/podhmo/lispcore/object"
)

var builtins = map[string]object.BuiltinFunction{
	"+": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		return arith(ctx.Name, args, 0, func(a, b int64) (int64, error) { return a + b, nil }, func(a, b float64) float64 { return a + b })
	},
	"*": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		return arith(ctx.Name, args, 1, func(a, b int64) (int64, error) { return a * b, nil }, func(a, b float64) float64 { return a * b })
	},
	"-": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		if len(args) == 0 {
			return nil, object.NewArityError(ctx.Name, 0, 1)
		}
		if len(args) == 1 {
			args = []object.Object{&object.Integer{Value: 0}, args[0]}
		}
		return arith(ctx.Name, args, 0, func(a, b int64) (int64, error) { return a - b, nil }, func(a, b float64) float64 { return a - b })
	},
	"/": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		if len(args) < 2 {
			return nil, object.NewArityError(ctx.Name, len(args), 2)
		}
		return arith(ctx.Name, args, 0, func(a, b int64) (int64, error) {
			if b == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			return a / b, nil
		}, func(a, b float64) float64 { return a / b })
	},
	"mod": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		if len(args) != 2 {
			return nil, object.NewArityError(ctx.Name, len(args), 2)
		}
		a, ok1 := args[0].(*object.Integer)
		b, ok2 := args[1].(*object.Integer)
		if !ok1 || !ok2 {
			return nil, ctx.NewError(object.ScriptErrorKind, "mod expects integers, got %s and %s", args[0].Type(), args[1].Type())
		}
		if b.Value == 0 {
			return nil, ctx.NewError(object.ScriptErrorKind, "division by zero")
		}
		m := a.Value % b.Value
		if m != 0 && (m < 0) != (b.Value < 0) {
			m += b.Value
		}
		return &object.Integer{Value: m}, nil
	},
	"=": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		if len(args) == 0 {
			return nil, object.NewArityError(ctx.Name, 0, 1)
		}
		for i := 1; i < len(args); i++ {
			if !object.Equal(args[i-1], args[i]) {
				return object.FALSE, nil
			}
		}
		return object.TRUE, nil
	},
	"<":  compare(func(c int) bool { return c < 0 }),
	">":  compare(func(c int) bool { return c > 0 }),
	"<=": compare(func(c int) bool { return c <= 0 }),
	">=": compare(func(c int) bool { return c >= 0 }),
	"not": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		if len(args) != 1 {
			return nil, object.NewArityError(ctx.Name, len(args), 1)
		}
		return object.NativeBool(!object.IsTruthy(args[0])), nil
	},
	"nil?": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		if len(args) != 1 {
			return nil, object.NewArityError(ctx.Name, len(args), 1)
		}
		_, ok := args[0].(*object.Nil)
		return object.NativeBool(ok), nil
	},
	"list": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		return object.NewList(append([]object.Object(nil), args...)...), nil
	},
	"vector": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		return object.NewVector(append([]object.Object(nil), args...)...), nil
	},
	"first": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		elems, err := seqArg(ctx, args)
		if err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			return object.NIL, nil
		}
		return elems[0], nil
	},
	"rest": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		elems, err := seqArg(ctx, args)
		if err != nil {
			return nil, err
		}
		if len(elems) == 0 {
			return object.NewList(), nil
		}
		return object.NewList(elems[1:]...), nil
	},
	"cons": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		if len(args) != 2 {
			return nil, object.NewArityError(ctx.Name, len(args), 2)
		}
		tail, err := seqElements(args[1])
		if err != nil {
			return nil, ctx.NewError(object.ScriptErrorKind, "cons: %v", err)
		}
		return object.NewList(append([]object.Object{args[0]}, tail...)...), nil
	},
	"count": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		if len(args) != 1 {
			return nil, object.NewArityError(ctx.Name, len(args), 1)
		}
		switch a := args[0].(type) {
		case *object.String:
			return &object.Integer{Value: int64(len([]rune(a.Value)))}, nil
		case *object.Map:
			return &object.Integer{Value: int64(len(a.Pairs))}, nil
		}
		elems, err := seqElements(args[0])
		if err != nil {
			return nil, ctx.NewError(object.ScriptErrorKind, "count: %v", err)
		}
		return &object.Integer{Value: int64(len(elems))}, nil
	},
	"nth": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		if len(args) != 2 {
			return nil, object.NewArityError(ctx.Name, len(args), 2)
		}
		elems, err := seqElements(args[0])
		if err != nil {
			return nil, ctx.NewError(object.ScriptErrorKind, "nth: %v", err)
		}
		idx, ok := args[1].(*object.Integer)
		if !ok {
			return nil, ctx.NewError(object.ScriptErrorKind, "nth: index must be an integer, got %s", args[1].Type())
		}
		if idx.Value < 0 || idx.Value >= int64(len(elems)) {
			return nil, ctx.NewError(object.ScriptErrorKind, "nth: index %d out of range [0,%d)", idx.Value, len(elems))
		}
		return elems[idx.Value], nil
	},
	"conj": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		if len(args) < 1 {
			return nil, object.NewArityError(ctx.Name, 0, 1)
		}
		switch coll := args[0].(type) {
		case *object.Vector:
			elems := append(append([]object.Object(nil), coll.Elements...), args[1:]...)
			return object.NewVector(elems...), nil
		case *object.List, *object.Nil:
			elems, _ := seqElements(coll)
			out := append([]object.Object(nil), elems...)
			for _, x := range args[1:] {
				out = append([]object.Object{x}, out...)
			}
			return object.NewList(out...), nil
		default:
			return nil, ctx.NewError(object.ScriptErrorKind, "conj: cannot add to %s", coll.Type())
		}
	},
	"str": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		var b strings.Builder
		for _, a := range args {
			b.WriteString(display(a))
		}
		return &object.String{Value: b.String()}, nil
	},
	"println": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = display(a)
		}
		fmt.Fprintln(ctx.Stdout, strings.Join(parts, " "))
		return object.NIL, nil
	},
	"gensym": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		prefix := ""
		if len(args) > 1 {
			return nil, object.NewArityError(ctx.Name, len(args), 1)
		}
		if len(args) == 1 {
			prefix = display(args[0])
		}
		return hygiene.Gensym(prefix), nil
	},
	"type-of": func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		if len(args) != 1 {
			return nil, object.NewArityError(ctx.Name, len(args), 1)
		}
		if r, ok := args[0].(*object.Record); ok {
			return r.Def.Tag, nil
		}
		return &object.Keyword{Name: strings.ToLower(strings.ReplaceAll(string(args[0].Type()), "_", "-"))}, nil
	},
}

// display renders a value the way str and println show it: strings raw, nil
// as nothing.
func display(obj object.Object) string {
	switch o := obj.(type) {
	case *object.String:
		return o.Value
	case *object.Nil:
		return ""
	default:
		return obj.Inspect()
	}
}

func seqElements(obj object.Object) ([]object.Object, error) {
	switch o := obj.(type) {
	case *object.List:
		return o.Elements, nil
	case *object.Vector:
		return o.Elements, nil
	case *object.Nil:
		return nil, nil
	default:
		return nil, fmt.Errorf("not a sequence: %s", obj.Type())
	}
}

func seqArg(ctx *object.BuiltinContext, args []object.Object) ([]object.Object, error) {
	if len(args) != 1 {
		return nil, object.NewArityError(ctx.Name, len(args), 1)
	}
	elems, err := seqElements(args[0])
	if err != nil {
		return nil, ctx.NewError(object.ScriptErrorKind, "%s: %v", ctx.Name, err)
	}
	return elems, nil
}

func arith(name string, args []object.Object, identity int64, intOp func(a, b int64) (int64, error), floatOp func(a, b float64) float64) (object.Object, error) {
	if len(args) == 0 {
		return &object.Integer{Value: identity}, nil
	}
	var acc object.Object = args[0]
	if _, ok := numeric(acc); !ok {
		return nil, object.NewError(object.ScriptErrorKind, "%s expects numbers, got %s", name, acc.Type())
	}
	for _, arg := range args[1:] {
		y, ok := numeric(arg)
		if !ok {
			return nil, object.NewError(object.ScriptErrorKind, "%s expects numbers, got %s", name, arg.Type())
		}
		xi, xInt := acc.(*object.Integer)
		yi, yInt := arg.(*object.Integer)
		if xInt && yInt {
			v, err := intOp(xi.Value, yi.Value)
			if err != nil {
				return nil, object.NewError(object.ScriptErrorKind, "%s: %v", name, err)
			}
			acc = &object.Integer{Value: v}
			continue
		}
		x, _ := numeric(acc)
		acc = &object.Float{Value: floatOp(x, y)}
	}
	return acc, nil
}

func numeric(obj object.Object) (float64, bool) {
	switch o := obj.(type) {
	case *object.Integer:
		return float64(o.Value), true
	case *object.Float:
		return o.Value, true
	}
	return 0, false
}

func compare(ok func(c int) bool) object.BuiltinFunction {
	return func(ctx *object.BuiltinContext, args ...object.Object) (object.Object, error) {
		if len(args) == 0 {
			return nil, object.NewArityError(ctx.Name, 0, 1)
		}
		for i := 1; i < len(args); i++ {
			c, err := compareValues(args[i-1], args[i])
			if err != nil {
				return nil, ctx.NewError(object.ScriptErrorKind, "%s: %v", ctx.Name, err)
			}
			if !ok(c) {
				return object.FALSE, nil
			}
		}
		return object.TRUE, nil
	}
}

func compareValues(a, b object.Object) (int, error) {
	if ai, ok := a.(*object.Integer); ok {
		if bi, ok := b.(*object.Integer); ok {
			switch {
			case ai.Value < bi.Value:
				return -1, nil
			case ai.Value > bi.Value:
				return 1, nil
			}
			return 0, nil
		}
	}
	x, ok1 := numeric(a)
	y, ok2 := numeric(b)
	if ok1 && ok2 {
		if math.IsNaN(x) || math.IsNaN(y) {
			return 0, fmt.Errorf("cannot compare NaN")
		}
		switch {
		case x < y:
			return -1, nil
		case x > y:
			return 1, nil
		}
		return 0, nil
	}
	as, ok1 := a.(*object.String)
	bs, ok2 := b.(*object.String)
	if ok1 && ok2 {
		return strings.Compare(as.Value, bs.Value), nil
	}
	return 0, fmt.Errorf("cannot compare %s with %s", a.Type(), b.Type())
}

// ToObject converts a host value into a runtime value. Scalars, strings and
// slices become their script counterparts; anything else is wrapped.
func ToObject(v any) object.Object {
	if obj, ok := v.(object.Object); ok {
		return obj
	}
	return nativeToValue(reflect.ValueOf(v))
}
