package mutable

import (
	"reflect"
	"slices"
	"strconv"
)

// Diff lists the paths at which before and after differ, in Describe
// notation and in sorted order. Mappings are compared key by key, sequences
// index by index and records of the same type field by field under their
// JSON names. Everything else is compared with Equal, so 1 and 1.0 do not
// differ. A change of shape at a path, such as a scalar replacing a mapping,
// is reported at that path; the empty path stands for the whole value.
func Diff(before, after any) []string {
	var out []string
	diffValues(reflect.ValueOf(Decoerce(before)), reflect.ValueOf(Decoerce(after)), "", &out)
	slices.Sort(out)
	return out
}

func diffValues(a, b reflect.Value, path string, out *[]string) {
	a, b = derefRecord(plainValue(a)), derefRecord(plainValue(b))

	switch {
	case isTreeMap(a) && isTreeMap(b):
		for _, key := range unionKeys(a, b) {
			va, vb := mapIndex(a, key), mapIndex(b, key)
			if !va.IsValid() || !vb.IsValid() {
				*out = append(*out, joinPath(path, key))
				continue
			}
			diffValues(va, vb, joinPath(path, key), out)
		}
	case isTreeList(a) && isTreeList(b):
		for i := range max(a.Len(), b.Len()) {
			at := path + "[" + strconv.Itoa(i) + "]"
			if i >= a.Len() || i >= b.Len() {
				*out = append(*out, at)
				continue
			}
			diffValues(a.Index(i), b.Index(i), at, out)
		}
	case sameRecordType(a, b):
		meta, err := RecordTypeOf(a.Type())
		if err != nil {
			break
		}
		for _, field := range meta.fields {
			diffValues(a.Field(field.index), b.Field(field.index), joinPath(path, field.Key), out)
		}
	default:
		if !equalValues(a, b) {
			*out = append(*out, path)
		}
	}
}

func derefRecord(v reflect.Value) reflect.Value {
	if v.IsValid() && v.Kind() == reflect.Pointer && !v.IsNil() && isRecordType(v.Type().Elem()) {
		return v.Elem()
	}
	return v
}

func isTreeMap(v reflect.Value) bool {
	return v.IsValid() && v.Kind() == reflect.Map && v.Type().Key().Kind() == reflect.String && !v.IsNil()
}

func isTreeList(v reflect.Value) bool {
	return v.IsValid() && kindOf(v.Type()) == KindSequence && !v.IsNil()
}

func sameRecordType(a, b reflect.Value) bool {
	return a.IsValid() && b.IsValid() && a.Type() == b.Type() && isRecordType(a.Type())
}

func unionKeys(a, b reflect.Value) []string {
	keys := make([]string, 0, a.Len()+b.Len())
	for _, m := range []reflect.Value{a, b} {
		iter := m.MapRange()
		for iter.Next() {
			keys = append(keys, iter.Key().String())
		}
	}
	slices.Sort(keys)
	return slices.Compact(keys)
}

func mapIndex(m reflect.Value, key string) reflect.Value {
	return m.MapIndex(reflect.ValueOf(key).Convert(m.Type().Key()))
}
