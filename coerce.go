package mutable

import (
	"errors"
	"reflect"
)

// ErrCycle indicates an attempt to insert a node into its own subtree.
var ErrCycle = errors.New("mutable: node cannot contain itself")

// Coerce converts value into its tracked form and wires the result to
// parent. Maps become *Map, slices *List and record structs *Record, all the
// way down; scalars are returned unchanged. Coercing an existing node does not
// rebuild it: the same node is returned with its parent replaced.
func Coerce(value any, parent Notifier) (any, error) {
	out, err := track("coerce", value, nil, parent)
	if err != nil {
		return nil, err
	}
	wire(out, nil, parent)
	return out, nil
}

// Decoerce returns the plain form of value. Nodes are flattened recursively
// into fresh maps, slices and structs of their declared types.
func Decoerce(value any) any {
	if node, ok := value.(Node); ok {
		return node.Plain()
	}
	return value
}

// Equal reports whether a and b are structurally equal once decoerced.
// Numbers of different Go types compare by value at any depth, and maps or
// slices of different declared types compare by content. A nil container
// differs from an empty one.
func Equal(a, b any) bool {
	return equalValues(reflect.ValueOf(Decoerce(a)), reflect.ValueOf(Decoerce(b)))
}

func equalValues(a, b reflect.Value) bool {
	a, b = plainValue(a), plainValue(b)
	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid()
	}
	if isNumeric(a.Kind()) && isNumeric(b.Kind()) {
		return compareNumbers(a, b) == 0
	}
	if a.Kind() != b.Kind() {
		return false
	}

	switch a.Kind() {
	case reflect.Map:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		if a.Len() != b.Len() {
			return false
		}
		iter := a.MapRange()
		for iter.Next() {
			key, ok := mapKey(iter.Key(), b.Type().Key())
			if !ok {
				return false
			}
			other := b.MapIndex(key)
			if !other.IsValid() || !equalValues(iter.Value(), other) {
				return false
			}
		}
		return true
	case reflect.Slice, reflect.Array:
		if a.Kind() == reflect.Slice && (a.IsNil() || b.IsNil()) {
			return a.IsNil() == b.IsNil()
		}
		if a.Len() != b.Len() {
			return false
		}
		for i := 0; i < a.Len(); i++ {
			if !equalValues(a.Index(i), b.Index(i)) {
				return false
			}
		}
		return true
	case reflect.Pointer:
		if a.IsNil() || b.IsNil() {
			return a.IsNil() == b.IsNil()
		}
		if a.Pointer() == b.Pointer() {
			return true
		}
		return equalValues(a.Elem(), b.Elem())
	case reflect.Struct:
		if a.Type() != b.Type() {
			return false
		}
		for i := 0; i < a.NumField(); i++ {
			if !equalValues(a.Field(i), b.Field(i)) {
				return false
			}
		}
		return true
	case reflect.String:
		return a.String() == b.String()
	case reflect.Bool:
		return a.Bool() == b.Bool()
	default:
		if a.CanInterface() && b.CanInterface() {
			return reflect.DeepEqual(a.Interface(), b.Interface())
		}
		return false
	}
}

// plainValue unwraps interfaces and flattens nodes nested in plain values.
func plainValue(v reflect.Value) reflect.Value {
	for v.IsValid() && v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	if v.IsValid() && v.Kind() == reflect.Pointer && v.CanInterface() {
		if node, ok := v.Interface().(Node); ok {
			return reflect.ValueOf(node.Plain())
		}
	}
	return v
}

func mapKey(key reflect.Value, t reflect.Type) (reflect.Value, bool) {
	if key.Type() == t {
		return key, true
	}
	if key.Kind() == reflect.String && t.Kind() == reflect.String {
		return reflect.ValueOf(key.String()).Convert(t), true
	}
	return reflect.Value{}, false
}

// NewMap wraps value, which must be a map with string-kinded keys.
func NewMap(value any, parent Notifier) (*Map, error) {
	if _, ok := value.(*Map); !ok && kindOfValue(value) != KindMapping {
		return nil, mismatch("new map", reflect.TypeOf(map[string]any(nil)), reflect.TypeOf(value))
	}
	out, err := Coerce(value, parent)
	if err != nil {
		return nil, err
	}
	return out.(*Map), nil
}

// NewList wraps value, which must be a slice.
func NewList(value any, parent Notifier) (*List, error) {
	if _, ok := value.(*List); !ok && kindOfValue(value) != KindSequence {
		return nil, mismatch("new list", reflect.TypeOf([]any(nil)), reflect.TypeOf(value))
	}
	out, err := Coerce(value, parent)
	if err != nil {
		return nil, err
	}
	return out.(*List), nil
}

// NewRecord wraps value, which must be a record struct or a non-nil pointer
// to one.
func NewRecord(value any, parent Notifier) (*Record, error) {
	_, isRecord := value.(*Record)
	if !isRecord {
		rv := reflect.ValueOf(value)
		if kindOfValue(value) != KindRecord || (rv.Kind() == reflect.Pointer && rv.IsNil()) {
			return nil, mismatch("new record", nil, reflect.TypeOf(value))
		}
	}
	out, err := Coerce(value, parent)
	if err != nil {
		return nil, err
	}
	return out.(*Record), nil
}

func kindOfValue(value any) Kind {
	if value == nil {
		return KindScalar
	}
	return kindOf(reflect.TypeOf(value))
}

// track converts value into the form stored in a slot declared as t (nil for
// untyped slots). Existing nodes are returned without being rewired so the
// caller can adopt them once the whole operation is known to succeed.
func track(op string, value any, t reflect.Type, parent Notifier) (any, error) {
	if node, ok := value.(Node); ok && accepts(node, t) {
		if err := checkCycle(node, parent); err != nil {
			return nil, err
		}
		return node, nil
	}
	if t != nil && !isAnyType(t) {
		converted, err := convert(op, value, t)
		if err != nil {
			return nil, err
		}
		value = converted.Interface()
	}
	return build(op, value, parent)
}

// build wraps a plain value according to its runtime kind.
func build(op string, value any, parent Notifier) (any, error) {
	if value == nil {
		return nil, nil
	}
	if node, ok := value.(Node); ok {
		if err := checkCycle(node, parent); err != nil {
			return nil, err
		}
		return node, nil
	}
	rv := reflect.ValueOf(value)
	switch kindOf(rv.Type()) {
	case KindMapping:
		return newMap(op, rv, parent)
	case KindSequence:
		return newList(op, rv, parent)
	case KindRecord:
		if rv.Kind() == reflect.Pointer && rv.IsNil() {
			return value, nil
		}
		return newRecord(op, rv, parent)
	case kindUnsupported:
		return nil, &UnsupportedElementError{Type: rv.Type()}
	default:
		return value, nil
	}
}

// wire adopts value into parent once an operation commits. Records follow
// the pointer-ness of a statically typed slot.
func wire(value any, t reflect.Type, parent Notifier) {
	node, ok := value.(Node)
	if !ok {
		return
	}
	if rec, ok := node.(*Record); ok && t != nil && t.Kind() != reflect.Interface {
		rec.ptr = t.Kind() == reflect.Pointer
	}
	node.adopt(parent)
}

func checkCycle(node Node, parent Notifier) error {
	for p := parent; p != nil; {
		current, ok := p.(Node)
		if !ok {
			return nil
		}
		if current == node {
			return ErrCycle
		}
		p = current.Parent()
	}
	return nil
}

func newMap(op string, rv reflect.Value, parent Notifier) (*Map, error) {
	m := &Map{typ: rv.Type(), elem: rv.Type().Elem()}
	m.parent = parent
	if rv.IsNil() {
		return m, nil
	}
	m.data = make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		child, err := track(op, iter.Value().Interface(), nil, m)
		if err != nil {
			return nil, err
		}
		m.data[iter.Key().String()] = child
	}
	for _, child := range m.data {
		wire(child, m.elem, m)
	}
	return m, nil
}

func newList(op string, rv reflect.Value, parent Notifier) (*List, error) {
	l := &List{typ: rv.Type(), elem: rv.Type().Elem()}
	l.parent = parent
	if rv.IsNil() {
		return l, nil
	}
	l.data = make([]any, rv.Len())
	for i := range l.data {
		child, err := track(op, rv.Index(i).Interface(), nil, l)
		if err != nil {
			return nil, err
		}
		l.data[i] = child
	}
	for _, child := range l.data {
		wire(child, l.elem, l)
	}
	return l, nil
}

func newRecord(op string, rv reflect.Value, parent Notifier) (*Record, error) {
	ptr := rv.Kind() == reflect.Pointer
	if ptr {
		rv = rv.Elem()
	}
	meta, err := RecordTypeOf(rv.Type())
	if err != nil {
		return nil, err
	}
	r := &Record{
		meta:  meta,
		ptr:   ptr,
		value: reflect.New(meta.typ).Elem(),
		slots: make(map[int]any),
	}
	r.parent = parent
	r.value.Set(rv)
	for pos := range meta.fields {
		field := &meta.fields[pos]
		if !field.tracked {
			continue
		}
		fv := r.value.Field(field.index)
		child, err := track(op, fv.Interface(), nil, r)
		if err != nil {
			var unsupported *UnsupportedElementError
			if errors.As(err, &unsupported) && unsupported.Path == "" {
				unsupported.Path = meta.typ.String() + "." + field.Name
			}
			return nil, err
		}
		r.slots[pos] = normalizeSlot(child, field)
		fv.Set(reflect.Zero(field.Type))
	}
	for pos, child := range r.slots {
		wire(child, meta.fields[pos].Type, r)
	}
	return r, nil
}

// normalizeSlot turns typed nil pointers held by statically typed fields into
// an untyped nil so callers can compare against nil.
func normalizeSlot(value any, field *fieldInfo) any {
	if field.kind == kindDynamic || value == nil {
		return value
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Pointer && rv.IsNil() {
		return nil
	}
	return value
}
