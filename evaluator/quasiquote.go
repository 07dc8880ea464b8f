package evaluator

import (
	"context"

	"github.com/podhmo/lispcore/hygiene"
	"github.com/podhmo/lispcore/namespace"
	"github.com/podhmo/lispcore/object"
	"github.com/podhmo/lispcore/sandbox"
	"github.com/podhmo/lispcore/scope"
)

// evalSyntaxQuote expands a template in one hygiene episode: placeholders
// (x#) resolve to the same fresh symbol throughout the template, free
// symbols are qualified against the current namespace, ~x is evaluated and
// ~@xs is spliced.
func evalSyntaxQuote(e *Evaluator, ctx context.Context, form *object.List, env *scope.Environment, tail bool) (object.Object, error) {
	if len(form.Elements) != 2 {
		return nil, formArityError(form, len(form.Elements)-1, 1)
	}
	engine := sandbox.TaskFrom(ctx).Hygiene()
	return engine.Expand(func() (object.Object, error) {
		return e.template(ctx, engine, form.Elements[1], env)
	})
}

func isCall(form object.Object, name string) (*object.List, bool) {
	list, ok := form.(*object.List)
	if !ok || len(list.Elements) == 0 {
		return nil, false
	}
	sym, ok := list.Elements[0].(*object.Symbol)
	if !ok || sym.IsQualified() || sym.Name != name {
		return nil, false
	}
	return list, true
}

func (e *Evaluator) template(ctx context.Context, engine *hygiene.Engine, form object.Object, env *scope.Environment) (object.Object, error) {
	switch f := form.(type) {
	case *object.Symbol:
		if hygiene.IsPlaceholder(f) {
			return engine.ResolvePlaceholder(f), nil
		}
		if namespace.IsReserved(f.Name) && !f.IsQualified() {
			return f, nil
		}
		return e.qualify(ctx, f), nil
	case *object.List:
		if len(f.Elements) == 0 {
			return f, nil
		}
		if u, ok := isCall(f, "unquote"); ok {
			if len(u.Elements) != 2 {
				return nil, formArityError(u, len(u.Elements)-1, 1)
			}
			return e.eval(ctx, u.Elements[1], env, false)
		}
		if _, ok := isCall(f, "unquote-splicing"); ok {
			return nil, formError(f, "unquote-splicing used outside a list")
		}
		if nested, ok := isCall(f, "syntax-quote"); ok {
			if len(nested.Elements) != 2 {
				return nil, formArityError(nested, len(nested.Elements)-1, 1)
			}
			return engine.Expand(func() (object.Object, error) {
				return e.template(ctx, engine, nested.Elements[1], env)
			})
		}
		elems, err := e.templateElements(ctx, engine, f.Elements, env)
		if err != nil {
			return nil, err
		}
		return object.NewList(elems...), nil
	case *object.Vector:
		elems, err := e.templateElements(ctx, engine, f.Elements, env)
		if err != nil {
			return nil, err
		}
		return object.NewVector(elems...), nil
	case *object.Map:
		m := object.NewMap()
		for _, p := range f.Pairs {
			k, err := e.template(ctx, engine, p.Key, env)
			if err != nil {
				return nil, err
			}
			v, err := e.template(ctx, engine, p.Value, env)
			if err != nil {
				return nil, err
			}
			m.Put(k, v)
		}
		return m, nil
	default:
		return form, nil
	}
}

func (e *Evaluator) templateElements(ctx context.Context, engine *hygiene.Engine, elems []object.Object, env *scope.Environment) ([]object.Object, error) {
	out := make([]object.Object, 0, len(elems))
	for _, elem := range elems {
		if s, ok := isCall(elem, "unquote-splicing"); ok {
			if len(s.Elements) != 2 {
				return nil, formArityError(s, len(s.Elements)-1, 1)
			}
			v, err := e.eval(ctx, s.Elements[1], env, false)
			if err != nil {
				return nil, err
			}
			spliced, err := seqElements(v)
			if err != nil {
				return nil, formError(s, "unquote-splicing expects a sequence, got %s", v.Type())
			}
			out = append(out, spliced...)
			continue
		}
		v, err := e.template(ctx, engine, elem, env)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
