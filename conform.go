package mutable

import (
	"math"
	"reflect"

	"github.com/goliatone/go-mutable/internal/hydrate"
)

// accepts reports whether an existing node can occupy a slot declared as t
// without being rebuilt.
func accepts(node Node, t reflect.Type) bool {
	if t == nil {
		return true
	}
	nt := node.Type()
	if t.Kind() == reflect.Interface {
		return nt.Implements(t)
	}
	if nt == t {
		return true
	}
	if rec, ok := node.(*Record); ok {
		return t == rec.meta.typ || (t.Kind() == reflect.Pointer && t.Elem() == rec.meta.typ)
	}
	return false
}

// convert produces a plain value of type t from value, recursing through
// pointers, slices, maps and records. Nodes are decoerced first. Conversions
// that would change the meaning of a value (string to int, lossy float to
// int) fail with a TypeMismatchError.
func convert(op string, value any, t reflect.Type) (reflect.Value, error) {
	value = Decoerce(value)
	if value == nil {
		if nillable(t) {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, mismatch(op, t, nil)
	}

	rv := reflect.ValueOf(value)
	vt := rv.Type()
	if vt.AssignableTo(t) {
		out := reflect.New(t).Elem()
		out.Set(rv)
		return out, nil
	}

	if t.Kind() == reflect.Pointer {
		if vt.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return reflect.Zero(t), nil
			}
			return convert(op, rv.Elem().Interface(), t)
		}
		inner, err := convert(op, value, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(inner)
		return ptr, nil
	}
	if vt.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, mismatch(op, t, vt)
		}
		return convert(op, rv.Elem().Interface(), t)
	}

	switch t.Kind() {
	case reflect.Slice:
		if vt.Kind() != reflect.Slice && vt.Kind() != reflect.Array {
			return reflect.Value{}, mismatch(op, t, vt)
		}
		if vt.Kind() == reflect.Slice && rv.IsNil() {
			return reflect.Zero(t), nil
		}
		out := reflect.MakeSlice(t, rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := convert(op, rv.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil
	case reflect.Map:
		if vt.Kind() != reflect.Map || vt.Key().Kind() != reflect.String || t.Key().Kind() != reflect.String {
			return reflect.Value{}, mismatch(op, t, vt)
		}
		if rv.IsNil() {
			return reflect.Zero(t), nil
		}
		out := reflect.MakeMapWithSize(t, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			elem, err := convert(op, iter.Value().Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(reflect.ValueOf(iter.Key().String()).Convert(t.Key()), elem)
		}
		return out, nil
	case reflect.Struct:
		if !isRecordType(t) || vt.Kind() != reflect.Map || vt.Key().Kind() != reflect.String {
			return reflect.Value{}, mismatch(op, t, vt)
		}
		payload, ok := stringKeyed(rv)
		if !ok {
			return reflect.Value{}, mismatch(op, t, vt)
		}
		meta, err := RecordTypeOf(t)
		if err != nil {
			return reflect.Value{}, err
		}
		target := reflect.New(t)
		if err := meta.payloadDecoder().Decode(hydrate.Context{Type: t.String(), Op: op}, payload, target.Interface()); err != nil {
			return reflect.Value{}, &TypeMismatchError{Op: op, Want: t, Got: vt, Err: err}
		}
		return target.Elem(), nil
	case reflect.String, reflect.Bool:
		if vt.Kind() == t.Kind() {
			return rv.Convert(t), nil
		}
	default:
		if isNumeric(t.Kind()) && isNumeric(vt.Kind()) {
			return convertNumber(op, rv, t)
		}
	}
	return reflect.Value{}, mismatch(op, t, vt)
}

func convertNumber(op string, rv reflect.Value, t reflect.Type) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	switch {
	case isFloat(rv.Kind()):
		f := rv.Float()
		switch {
		case isFloat(t.Kind()):
			if out.OverflowFloat(f) {
				return reflect.Value{}, mismatch(op, t, rv.Type())
			}
			out.SetFloat(f)
		case isSigned(t.Kind()):
			if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 || out.OverflowInt(int64(f)) {
				return reflect.Value{}, mismatch(op, t, rv.Type())
			}
			out.SetInt(int64(f))
		default:
			if f != math.Trunc(f) || f < 0 || f >= math.MaxUint64 || out.OverflowUint(uint64(f)) {
				return reflect.Value{}, mismatch(op, t, rv.Type())
			}
			out.SetUint(uint64(f))
		}
	case isSigned(rv.Kind()):
		i := rv.Int()
		switch {
		case isFloat(t.Kind()):
			out.SetFloat(float64(i))
		case isSigned(t.Kind()):
			if out.OverflowInt(i) {
				return reflect.Value{}, mismatch(op, t, rv.Type())
			}
			out.SetInt(i)
		default:
			if i < 0 || out.OverflowUint(uint64(i)) {
				return reflect.Value{}, mismatch(op, t, rv.Type())
			}
			out.SetUint(uint64(i))
		}
	default:
		u := rv.Uint()
		switch {
		case isFloat(t.Kind()):
			out.SetFloat(float64(u))
		case isSigned(t.Kind()):
			if u > math.MaxInt64 || out.OverflowInt(int64(u)) {
				return reflect.Value{}, mismatch(op, t, rv.Type())
			}
			out.SetInt(int64(u))
		default:
			if out.OverflowUint(u) {
				return reflect.Value{}, mismatch(op, t, rv.Type())
			}
			out.SetUint(u)
		}
	}
	return out, nil
}

// valueFor returns v as a reflect.Value settable into a slot of type t.
// Values stored in tracked containers already conform, so the fallbacks only
// cover named-type conversions.
func valueFor(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv
	}
	if rv.Type().ConvertibleTo(t) {
		return rv.Convert(t)
	}
	return reflect.Zero(t)
}

func stringKeyed(rv reflect.Value) (map[string]any, bool) {
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice:
		return true
	default:
		return false
	}
}

func isNumeric(k reflect.Kind) bool {
	return isFloat(k) || isSigned(k) || isUnsigned(k)
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isSigned(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	default:
		return false
	}
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return true
	default:
		return false
	}
}

func isAnyType(t reflect.Type) bool {
	return t != nil && t.Kind() == reflect.Interface && t.NumMethod() == 0
}
