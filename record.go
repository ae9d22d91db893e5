package mutable

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Record is a tracked struct. Scalar fields live in a private copy of the
// struct; map, slice, record and interface fields are held as coerced slots
// wired to the record.
type Record struct {
	link
	meta  *RecordType
	ptr   bool
	value reflect.Value
	slots map[int]any
}

var _ Node = (*Record)(nil)

func (r *Record) Kind() Kind {
	return KindRecord
}

// Type reports the struct type, or a pointer to it when the record was built
// from (or is held in) a pointer slot.
func (r *Record) Type() reflect.Type {
	if r.ptr {
		return reflect.PointerTo(r.meta.typ)
	}
	return r.meta.typ
}

// RecordType returns the cached introspection result for the record.
func (r *Record) RecordType() *RecordType {
	return r.meta
}

// Fields returns the declared fields in declaration order.
func (r *Record) Fields() []FieldDescriptor {
	return r.meta.Fields()
}

// Get returns the value of field, looked up by Go name or JSON name. Tracked
// fields return their node.
func (r *Record) Get(name string) (any, error) {
	pos, field, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if field.tracked {
		return r.slots[pos], nil
	}
	return r.value.Field(field.index).Interface(), nil
}

// Set assigns field. The value is conformed to the declared field type and
// nothing changes when it cannot be.
func (r *Record) Set(name string, value any) error {
	pos, field, err := r.lookup(name)
	if err != nil {
		return err
	}
	if !field.tracked {
		converted, err := convert("record set", value, field.Type)
		if err != nil {
			return err
		}
		r.value.Field(field.index).Set(converted)
		r.Changed()
		return nil
	}

	child, err := track("record set", value, field.Type, r)
	if err != nil {
		return err
	}
	child = normalizeSlot(child, field)
	old := r.slots[pos]
	wire(child, field.Type, r)
	r.slots[pos] = child
	releaseValue(old, r)
	r.Changed()
	return nil
}

func (r *Record) holds(node Node) bool {
	for _, value := range r.slots {
		if sameNode(value, node) {
			return true
		}
	}
	return false
}

// Map returns the nested map held by field.
func (r *Record) Map(name string) (*Map, bool) {
	value, _ := r.Get(name)
	child, ok := value.(*Map)
	return child, ok
}

// List returns the nested list held by field.
func (r *Record) List(name string) (*List, bool) {
	value, _ := r.Get(name)
	child, ok := value.(*List)
	return child, ok
}

// Record returns the nested record held by field.
func (r *Record) Record(name string) (*Record, bool) {
	value, _ := r.Get(name)
	child, ok := value.(*Record)
	return child, ok
}

func (r *Record) lookup(name string) (int, *fieldInfo, error) {
	field, ok := r.meta.field(name)
	if !ok {
		return 0, nil, fmt.Errorf("%w: %s.%s", ErrUnknownField, r.meta.typ, name)
	}
	return r.meta.lookup[name], field, nil
}

// Plain materialises a fresh struct with every tracked field decoerced into
// its declared type.
func (r *Record) Plain() any {
	out := reflect.New(r.meta.typ)
	out.Elem().Set(r.value)
	for pos, child := range r.slots {
		field := &r.meta.fields[pos]
		out.Elem().Field(field.index).Set(valueFor(Decoerce(child), field.Type))
	}
	if r.ptr {
		return out.Interface()
	}
	return out.Elem().Interface()
}

func (r *Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Plain())
}

func (r *Record) MarshalYAML() (any, error) {
	return r.Plain(), nil
}
