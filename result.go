package lispcore

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/podhmo/lispcore/object"
)

// Result holds the outcome of a script execution.
type Result struct {
	Value object.Object
}

// As unmarshals the result into a Go variable. The target must be a
// non-nil pointer. Records fill struct fields by case-insensitive name,
// maps with keyword keys fill string-keyed maps.
func (r *Result) As(target any) error {
	if target == nil {
		return fmt.Errorf("target cannot be nil")
	}
	dstVal := reflect.ValueOf(target)
	if dstVal.Kind() != reflect.Ptr || dstVal.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer, but got %T", target)
	}
	return unmarshal(r.Value, dstVal.Elem())
}

func unmarshal(src object.Object, dst reflect.Value) error {
	if !dst.CanSet() {
		return fmt.Errorf("cannot set destination value of type %s", dst.Type())
	}
	if _, ok := src.(*object.Nil); ok {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	for dst.Kind() == reflect.Ptr {
		if dst.IsNil() {
			dst.Set(reflect.New(dst.Type().Elem()))
		}
		dst = dst.Elem()
	}

	switch s := src.(type) {
	case *object.Integer:
		switch dst.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst.SetInt(s.Value)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			dst.SetUint(uint64(s.Value))
		case reflect.Float32, reflect.Float64:
			dst.SetFloat(float64(s.Value))
		case reflect.Interface:
			dst.Set(reflect.ValueOf(s.Value))
		default:
			return fmt.Errorf("cannot unmarshal integer into %s", dst.Type())
		}
		return nil
	case *object.Float:
		switch dst.Kind() {
		case reflect.Float32, reflect.Float64:
			dst.SetFloat(s.Value)
		case reflect.Interface:
			dst.Set(reflect.ValueOf(s.Value))
		default:
			return fmt.Errorf("cannot unmarshal float into %s", dst.Type())
		}
		return nil
	case *object.String:
		return setString(dst, s.Value, "string")
	case *object.Keyword:
		return setString(dst, s.Name, "keyword")
	case *object.Symbol:
		return setString(dst, s.String(), "symbol")
	case *object.Boolean:
		switch dst.Kind() {
		case reflect.Bool:
			dst.SetBool(s.Value)
		case reflect.Interface:
			dst.Set(reflect.ValueOf(s.Value))
		default:
			return fmt.Errorf("cannot unmarshal boolean into %s", dst.Type())
		}
		return nil
	case *object.GoValue:
		if !s.Value.Type().AssignableTo(dst.Type()) {
			if s.Value.Type().ConvertibleTo(dst.Type()) {
				dst.Set(s.Value.Convert(dst.Type()))
				return nil
			}
			return fmt.Errorf("cannot assign Go value of type %s to %s", s.Value.Type(), dst.Type())
		}
		dst.Set(s.Value)
		return nil
	case *object.List:
		return unmarshalSeq(s.Elements, dst)
	case *object.Vector:
		return unmarshalSeq(s.Elements, dst)
	case *object.Map:
		if dst.Kind() == reflect.Interface {
			m := make(map[string]any, len(s.Pairs))
			generic := reflect.ValueOf(&m).Elem()
			if err := unmarshal(s, generic); err != nil {
				return err
			}
			dst.Set(generic)
			return nil
		}
		if dst.Kind() != reflect.Map {
			return fmt.Errorf("cannot unmarshal map into non-map type %s", dst.Type())
		}
		mapType := dst.Type()
		newMap := reflect.MakeMap(mapType)
		for _, pair := range s.Pairs {
			key := reflect.New(mapType.Key()).Elem()
			if err := unmarshal(pair.Key, key); err != nil {
				return fmt.Errorf("error in map key: %w", err)
			}
			val := reflect.New(mapType.Elem()).Elem()
			if err := unmarshal(pair.Value, val); err != nil {
				return fmt.Errorf("error in map value for key %v: %w", key, err)
			}
			newMap.SetMapIndex(key, val)
		}
		dst.Set(newMap)
		return nil
	case *object.Record:
		if dst.Kind() != reflect.Struct {
			return fmt.Errorf("cannot unmarshal record %s into non-struct type %s", s.Def.Tag.Name, dst.Type())
		}
		dstFields := make(map[string]reflect.Value)
		for i := 0; i < dst.NumField(); i++ {
			field := dst.Type().Field(i)
			if field.PkgPath != "" {
				continue
			}
			dstFields[strings.ToLower(field.Name)] = dst.Field(i)
		}
		for i, name := range s.Def.Fields {
			dstField, ok := dstFields[strings.ToLower(strings.ReplaceAll(name, "-", ""))]
			if !ok || i >= len(s.Values) {
				continue
			}
			if err := unmarshal(s.Values[i], dstField); err != nil {
				return fmt.Errorf("error in record field %q: %w", name, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported object type for unmarshaling: %s", src.Type())
	}
}

func setString(dst reflect.Value, v, what string) error {
	switch dst.Kind() {
	case reflect.String:
		dst.SetString(v)
	case reflect.Interface:
		dst.Set(reflect.ValueOf(v))
	default:
		return fmt.Errorf("cannot unmarshal %s into %s", what, dst.Type())
	}
	return nil
}

func unmarshalSeq(elems []object.Object, dst reflect.Value) error {
	sliceType := dst.Type()
	if dst.Kind() == reflect.Interface {
		sliceType = reflect.TypeOf([]any(nil))
	} else if dst.Kind() != reflect.Slice {
		return fmt.Errorf("cannot unmarshal sequence into non-slice type %s", dst.Type())
	}
	newSlice := reflect.MakeSlice(sliceType, len(elems), len(elems))
	for i, elem := range elems {
		if err := unmarshal(elem, newSlice.Index(i)); err != nil {
			return fmt.Errorf("error in slice element %d: %w", i, err)
		}
	}
	dst.Set(newSlice)
	return nil
}
