package mutable

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-mutable/internal/hydrate"
)

// FieldDescriptor describes one declared, exported field of a record type.
type FieldDescriptor struct {
	Name string       // Go field name
	Key  string       // JSON name, falls back to Name
	Type reflect.Type // declared field type
	Kind Kind         // tracking kind derived from Type; dynamic slots report KindScalar
}

type fieldInfo struct {
	FieldDescriptor
	index   int
	kind    Kind // internal kind, may be kindDynamic
	tracked bool // stored as a coerced slot rather than in the struct
}

// RecordType is the cached introspection result for a record struct type.
type RecordType struct {
	typ     reflect.Type
	fields  []fieldInfo
	lookup  map[string]int
	decoder atomic.Pointer[hydrate.Decoder]
}

var lenientDecoder = hydrate.NewDecoder()

// RecordOption adjusts how payload maps are decoded into a record type.
type RecordOption func(*[]hydrate.DecoderOption)

// Strict rejects payload keys that name no field of the record.
func Strict() RecordOption {
	return func(opts *[]hydrate.DecoderOption) {
		*opts = append(*opts, hydrate.WithDisallowUnknownFields())
	}
}

// WithPayloadHook rewrites payload maps before they are decoded into the
// record, for example to map legacy keys. op names the mutation that is
// converting the payload. Hooks run in registration order.
func WithPayloadHook(hook func(op string, payload map[string]any) (map[string]any, error)) RecordOption {
	return func(opts *[]hydrate.DecoderOption) {
		if hook == nil {
			return
		}
		*opts = append(*opts, hydrate.WithPreHook(func(ctx hydrate.Context, payload map[string]any) (map[string]any, error) {
			return hook(ctx.Op, payload)
		}))
	}
}

func (r *RecordType) payloadDecoder() *hydrate.Decoder {
	if d := r.decoder.Load(); d != nil {
		return d
	}
	return lenientDecoder
}

// Type returns the struct type described by r.
func (r *RecordType) Type() reflect.Type {
	if r == nil {
		return nil
	}
	return r.typ
}

// Fields returns the declared fields in declaration order.
func (r *RecordType) Fields() []FieldDescriptor {
	if r == nil {
		return nil
	}
	out := make([]FieldDescriptor, len(r.fields))
	for i, field := range r.fields {
		out[i] = field.FieldDescriptor
	}
	return out
}

// Field looks up a field by Go name or JSON name.
func (r *RecordType) Field(name string) (FieldDescriptor, bool) {
	info, ok := r.field(name)
	if !ok {
		return FieldDescriptor{}, false
	}
	return info.FieldDescriptor, true
}

func (r *RecordType) field(name string) (*fieldInfo, bool) {
	if r == nil {
		return nil, false
	}
	idx, ok := r.lookup[name]
	if !ok {
		return nil, false
	}
	return &r.fields[idx], true
}

// typeRegistry maps record struct types to their introspection results. It
// is process-wide: built lazily on first sight of a type, read many times.
type typeRegistry struct {
	mu    sync.RWMutex
	types map[reflect.Type]*RecordType
}

var records = &typeRegistry{types: make(map[reflect.Type]*RecordType)}

// Register precomputes the record type for T so later coercions only perform
// lookups. T may be a struct or a pointer to a struct. Options, when given,
// replace the payload decoding set by an earlier Register call for T.
func Register[T any](opts ...RecordOption) (*RecordType, error) {
	rt, err := RecordTypeOf(reflect.TypeFor[T]())
	if err != nil || len(opts) == 0 {
		return rt, err
	}
	var decoderOpts []hydrate.DecoderOption
	for _, opt := range opts {
		if opt != nil {
			opt(&decoderOpts)
		}
	}
	rt.decoder.Store(hydrate.NewDecoder(decoderOpts...))
	return rt, nil
}

// RecordTypeOf returns the cached RecordType for t, building it on first use.
func RecordTypeOf(t reflect.Type) (*RecordType, error) {
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || !isRecordType(t) {
		return nil, mismatch("record type", nil, t)
	}
	return records.lookupOrBuild(t)
}

// RegisteredTypes returns the names of every record type seen so far, sorted.
func RegisteredTypes() []string {
	records.mu.RLock()
	defer records.mu.RUnlock()
	names := make([]string, 0, len(records.types))
	for t := range records.types {
		names = append(names, t.String())
	}
	sort.Strings(names)
	return names
}

func (r *typeRegistry) lookupOrBuild(t reflect.Type) (*RecordType, error) {
	r.mu.RLock()
	rt, ok := r.types[t]
	r.mu.RUnlock()
	if ok {
		return rt, nil
	}

	rt, err := buildRecordType(t)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.types[t]; ok {
		return existing, nil
	}
	r.types[t] = rt
	return rt, nil
}

func buildRecordType(t reflect.Type) (*RecordType, error) {
	rt := &RecordType{
		typ:    t,
		lookup: make(map[string]int, t.NumField()*2),
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		key, skip := jsonKey(sf)
		kind := kindOf(sf.Type)
		if kind == kindUnsupported && !skip {
			return nil, &UnsupportedElementError{Path: t.String() + "." + sf.Name, Type: sf.Type}
		}
		info := fieldInfo{
			FieldDescriptor: FieldDescriptor{
				Name: sf.Name,
				Key:  key,
				Type: sf.Type,
				Kind: KindOf(sf.Type),
			},
			index: i,
			kind:  kind,
		}
		info.tracked = kind == KindMapping || kind == KindSequence || kind == KindRecord || kind == kindDynamic
		pos := len(rt.fields)
		rt.fields = append(rt.fields, info)
		for _, name := range []string{sf.Name, key} {
			if idx, taken := rt.lookup[name]; taken && idx != pos {
				return nil, fmt.Errorf("mutable: record %s: field name %q is ambiguous", t, name)
			}
			rt.lookup[name] = pos
		}
	}
	return rt, nil
}

func jsonKey(sf reflect.StructField) (string, bool) {
	tag := sf.Tag.Get("json")
	if tag == "-" {
		return sf.Name, true
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return sf.Name, false
	}
	return name, false
}
