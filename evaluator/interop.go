package evaluator

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/podhmo/lispcore/object"
)

// Interop holds host Go functions that scripts may call through go-call.
// It is safe for concurrent use.
type Interop struct {
	mu    sync.RWMutex
	funcs map[string]reflect.Value
}

// NewInterop creates an empty interop registry.
func NewInterop() *Interop {
	return &Interop{funcs: make(map[string]reflect.Value)}
}

// Register makes the Go function fn callable as name. If fn's first
// parameter is a context.Context, the calling context is passed to it; if
// its last result is an error, a non-nil error fails the call.
func (r *Interop) Register(name string, fn any) error {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func {
		return fmt.Errorf("interop: %s is not a function (%T)", name, fn)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = v
	return nil
}

// Lookup returns the function registered as name.
func (r *Interop) Lookup(name string) (reflect.Value, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered names, sorted.
func (r *Interop) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for k := range r.funcs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Call invokes the function registered as name, converting args to the
// parameter types and the results back to runtime values. Several results
// come back as a vector.
func (r *Interop) Call(ctx context.Context, name string, args []object.Object) (object.Object, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, object.NewError(object.ScriptErrorKind, "go-call: no Go function registered as %q", name)
	}
	ft := fn.Type()

	var in []reflect.Value
	offset := 0
	if ft.NumIn() > 0 && ft.In(0) == contextType {
		in = append(in, reflect.ValueOf(ctx))
		offset = 1
	}
	fixed := ft.NumIn() - offset
	if ft.IsVariadic() {
		fixed--
	}
	if len(args) < fixed || (!ft.IsVariadic() && len(args) != fixed) {
		return nil, object.NewArityError(name, len(args), fixed)
	}
	for i, arg := range args {
		var target reflect.Type
		if i < fixed {
			target = ft.In(offset + i)
		} else {
			target = ft.In(ft.NumIn() - 1).Elem()
		}
		v, err := objectToReflectValue(arg, target)
		if err != nil {
			return nil, object.NewError(object.ScriptErrorKind, "go-call %s: argument %d: %v", name, i+1, err)
		}
		in = append(in, v)
	}

	out := fn.Call(in)
	if n := len(out); n > 0 && ft.Out(n-1) == errorType {
		if err, _ := out[n-1].Interface().(error); err != nil {
			e := object.NewError(object.ScriptErrorKind, "go-call %s: %v", name, err)
			e.Cause = err
			return nil, e
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return object.NIL, nil
	case 1:
		return nativeToValue(out[0]), nil
	default:
		elems := make([]object.Object, len(out))
		for i, v := range out {
			elems[i] = nativeToValue(v)
		}
		return object.NewVector(elems...), nil
	}
}

func nativeToValue(val reflect.Value) object.Object {
	if !val.IsValid() {
		return object.NIL
	}
	switch val.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return &object.Integer{Value: val.Int()}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &object.Integer{Value: int64(val.Uint())}
	case reflect.Float32, reflect.Float64:
		return &object.Float{Value: val.Float()}
	case reflect.String:
		return &object.String{Value: val.String()}
	case reflect.Bool:
		return object.NativeBool(val.Bool())
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Func, reflect.Chan:
		if val.IsNil() {
			return object.NIL
		}
		if val.Kind() == reflect.Interface {
			return nativeToValue(val.Elem())
		}
		if obj, ok := val.Interface().(object.Object); ok {
			return obj
		}
		return &object.GoValue{Value: val}
	case reflect.Slice:
		if val.IsNil() {
			return object.NIL
		}
		if val.Type().Elem().Kind() == reflect.Uint8 {
			return &object.String{Value: string(val.Bytes())}
		}
		elems := make([]object.Object, val.Len())
		for i := range elems {
			elems[i] = nativeToValue(val.Index(i))
		}
		return object.NewVector(elems...)
	default:
		return &object.GoValue{Value: val}
	}
}

func objectToReflectValue(obj object.Object, targetType reflect.Type) (reflect.Value, error) {
	if targetType.Kind() == reflect.Interface && reflect.TypeOf(obj).Implements(targetType) && targetType.NumMethod() > 0 {
		return reflect.ValueOf(obj), nil
	}
	switch o := obj.(type) {
	case *object.GoValue:
		if o.Value.Type().AssignableTo(targetType) {
			return o.Value, nil
		}
		if o.Value.Type().ConvertibleTo(targetType) {
			return o.Value.Convert(targetType), nil
		}
		return reflect.Value{}, fmt.Errorf("GoValue of type %s is not assignable or convertible to %s", o.Value.Type(), targetType)
	case *object.Nil:
		switch targetType.Kind() {
		case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func:
			return reflect.Zero(targetType), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot convert nil to non-nillable type %s", targetType)
	}

	if targetType.Kind() == reflect.Interface && targetType.NumMethod() == 0 {
		native, err := objectToNative(obj)
		if err != nil {
			return reflect.Value{}, err
		}
		if native == nil {
			return reflect.Zero(targetType), nil
		}
		return reflect.ValueOf(native), nil
	}

	val := reflect.New(targetType).Elem()
	switch o := obj.(type) {
	case *object.Integer:
		switch targetType.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			val.SetInt(o.Value)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			val.SetUint(uint64(o.Value))
		case reflect.Float32, reflect.Float64:
			val.SetFloat(float64(o.Value))
		default:
			return reflect.Value{}, fmt.Errorf("cannot convert integer to %s", targetType)
		}
		return val, nil
	case *object.Float:
		if targetType.Kind() != reflect.Float32 && targetType.Kind() != reflect.Float64 {
			return reflect.Value{}, fmt.Errorf("cannot convert float to %s", targetType)
		}
		val.SetFloat(o.Value)
		return val, nil
	case *object.String:
		if targetType.Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("cannot convert string to %s", targetType)
		}
		val.SetString(o.Value)
		return val, nil
	case *object.Keyword:
		if targetType.Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("cannot convert keyword to %s", targetType)
		}
		val.SetString(o.Name)
		return val, nil
	case *object.Boolean:
		if targetType.Kind() != reflect.Bool {
			return reflect.Value{}, fmt.Errorf("cannot convert boolean to %s", targetType)
		}
		val.SetBool(o.Value)
		return val, nil
	case *object.List, *object.Vector:
		if targetType.Kind() != reflect.Slice {
			return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", obj.Type(), targetType)
		}
		elems, _ := seqElements(obj)
		slice := reflect.MakeSlice(targetType, len(elems), len(elems))
		for i, el := range elems {
			v, err := objectToReflectValue(el, targetType.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			slice.Index(i).Set(v)
		}
		return slice, nil
	}
	return reflect.Value{}, fmt.Errorf("unsupported conversion from %s to %s", obj.Type(), targetType)
}

func objectToNative(obj object.Object) (any, error) {
	switch o := obj.(type) {
	case *object.Integer:
		return o.Value, nil
	case *object.Float:
		return o.Value, nil
	case *object.String:
		return o.Value, nil
	case *object.Keyword:
		return o.Name, nil
	case *object.Boolean:
		return o.Value, nil
	case *object.Nil:
		return nil, nil
	case *object.GoValue:
		return o.Value.Interface(), nil
	case *object.List, *object.Vector:
		elems, _ := seqElements(obj)
		out := make([]any, len(elems))
		for i, el := range elems {
			v, err := objectToNative(el)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *object.Map:
		out := make(map[string]any, len(o.Pairs))
		for _, p := range o.Pairs {
			v, err := objectToNative(p.Value)
			if err != nil {
				return nil, err
			}
			out[display(p.Key)] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("cannot convert %s to a Go value", obj.Type())
}
