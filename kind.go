package mutable

import (
	"encoding"
	"encoding/json"
	"reflect"
)

// Kind classifies a value for tracking purposes. It is resolved once per type
// when a value is coerced and never re-derived per operation.
type Kind uint8

const (
	// KindScalar covers every value that is stored as-is: primitives, nil,
	// byte slices, fixed arrays of scalars, pointers to scalars and opaque
	// structs such as time.Time.
	KindScalar Kind = iota
	// KindMapping covers maps with string-kinded keys.
	KindMapping
	// KindSequence covers slices other than []byte.
	KindSequence
	// KindRecord covers structs with exported fields and pointers to them.
	KindRecord
	// kindDynamic marks interface-typed slots whose kind depends on the value
	// stored at runtime.
	kindDynamic
	// kindUnsupported marks types no storage codec can represent.
	kindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	case KindRecord:
		return "record"
	case kindDynamic:
		return "dynamic"
	default:
		return "unsupported"
	}
}

var (
	jsonMarshalerType = reflect.TypeOf((*json.Marshaler)(nil)).Elem()
	textMarshalerType = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
)

// KindOf reports how values of type t are tracked.
func KindOf(t reflect.Type) Kind {
	switch k := kindOf(t); k {
	case kindDynamic, kindUnsupported:
		return KindScalar
	default:
		return k
	}
}

func kindOf(t reflect.Type) Kind {
	if t == nil {
		return KindScalar
	}
	switch t.Kind() {
	case reflect.Interface:
		return kindDynamic
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return kindUnsupported
		}
		return KindMapping
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return KindScalar
		}
		return KindSequence
	case reflect.Struct:
		if isRecordType(t) {
			return KindRecord
		}
		return KindScalar
	case reflect.Pointer:
		if t.Elem().Kind() == reflect.Struct && isRecordType(t.Elem()) {
			return KindRecord
		}
		return opaque(t.Elem())
	case reflect.Array:
		return opaque(t.Elem())
	case reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Complex64, reflect.Complex128:
		return kindUnsupported
	default:
		return KindScalar
	}
}

// opaque classifies a type that can only be stored as-is. Containers
// reached through a pointer or a fixed array cannot be tracked in place, so
// they are rejected instead of silently losing change notifications.
func opaque(elem reflect.Type) Kind {
	if kindOf(elem) != KindScalar {
		return kindUnsupported
	}
	return KindScalar
}

// isRecordType reports whether t is a struct whose exported fields should be
// tracked. Structs that marshal themselves are opaque scalars.
func isRecordType(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	if t.Implements(jsonMarshalerType) || reflect.PointerTo(t).Implements(jsonMarshalerType) {
		return false
	}
	if t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType) {
		return false
	}
	for i := 0; i < t.NumField(); i++ {
		if t.Field(i).IsExported() {
			return true
		}
	}
	return false
}
