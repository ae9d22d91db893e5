package mutable

import (
	"fmt"
	"strconv"
	"strings"
)

// PathDescriptor describes one leaf of a tracked tree.
type PathDescriptor struct {
	Path string
	Kind Kind
	Type string
}

// Describe flattens value into leaf descriptors. Map keys are visited in
// sorted order, record fields in declaration order under their JSON names and
// list elements by index (`tags[0]`). Empty containers are reported as
// leaves so their paths remain visible.
func Describe(value any) []PathDescriptor {
	return describe(value, "")
}

func describe(value any, prefix string) []PathDescriptor {
	switch typed := value.(type) {
	case *Map:
		if typed.Len() == 0 {
			return []PathDescriptor{{Path: prefix, Kind: KindMapping, Type: typed.Type().String()}}
		}
		var out []PathDescriptor
		for key, child := range typed.All() {
			out = append(out, describe(child, joinPath(prefix, key))...)
		}
		return out
	case *List:
		if typed.Len() == 0 {
			return []PathDescriptor{{Path: prefix, Kind: KindSequence, Type: typed.Type().String()}}
		}
		var out []PathDescriptor
		for i, child := range typed.All() {
			out = append(out, describe(child, prefix+"["+strconv.Itoa(i)+"]")...)
		}
		return out
	case *Record:
		var out []PathDescriptor
		for _, field := range typed.meta.fields {
			child, _ := typed.Get(field.Name)
			out = append(out, describe(child, joinPath(prefix, field.Key))...)
		}
		if len(out) == 0 {
			out = append(out, PathDescriptor{Path: prefix, Kind: KindRecord, Type: typed.Type().String()})
		}
		return out
	case nil:
		if prefix == "" {
			return nil
		}
		return []PathDescriptor{{Path: prefix, Kind: KindScalar, Type: "nil"}}
	default:
		if kindOfValue(value) != KindScalar {
			if tracked, err := Coerce(value, nil); err == nil {
				if node, ok := tracked.(Node); ok {
					return describe(node, prefix)
				}
			}
		}
		if prefix == "" {
			return nil
		}
		return []PathDescriptor{{Path: prefix, Kind: KindScalar, Type: fmt.Sprintf("%T", value)}}
	}
}

func joinPath(prefix, segment string) string {
	if prefix == "" {
		return segment
	}
	return strings.Join([]string{prefix, segment}, ".")
}
