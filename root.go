package mutable

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/goliatone/go-mutable/internal/clone"
)

// DirtyHook is notified whenever any element under a Root changes. Calls are
// not deduplicated; the hook decides what repeated signals mean.
type DirtyHook interface {
	MarkDirty()
}

// DirtyHookFunc adapts a function to DirtyHook.
type DirtyHookFunc func()

func (f DirtyHookFunc) MarkDirty() {
	if f != nil {
		f()
	}
}

type rootConfig struct {
	codec Codec
	hook  DirtyHook
}

// Option configures a Root.
type Option func(*rootConfig)

// WithCodec selects the storage codec. Defaults to JSONCodec.
func WithCodec(codec Codec) Option {
	return func(cfg *rootConfig) {
		if codec.Marshal == nil || codec.Unmarshal == nil {
			return
		}
		cfg.codec = codec
	}
}

// WithDirtyHook binds hook at construction time.
func WithDirtyHook(hook DirtyHook) Option {
	return func(cfg *rootConfig) {
		cfg.hook = hook
	}
}

// Root owns the top-level tracked value of type T and ends the change chain:
// every mutation below it reaches Changed, which forwards to the bound
// DirtyHook. The zero value holds nil and encodes with JSONCodec.
type Root[T any] struct {
	value any
	typ   reflect.Type
	cfg   rootConfig
}

var (
	_ Column         = (*Root[any])(nil)
	_ driver.Valuer  = (*Root[any])(nil)
	_ json.Marshaler = (*Root[any])(nil)
)

func newRoot[T any](opts []Option) *Root[T] {
	r := &Root[T]{}
	r.ensure()
	for _, opt := range opts {
		if opt != nil {
			opt(&r.cfg)
		}
	}
	return r
}

func (r *Root[T]) ensure() {
	if r.typ == nil {
		r.typ = reflect.TypeFor[T]()
	}
	if r.cfg.codec.Marshal == nil || r.cfg.codec.Unmarshal == nil {
		r.cfg.codec = JSONCodec
	}
}

// New tracks value.
func New[T any](value T, opts ...Option) (*Root[T], error) {
	r := newRoot[T](opts)
	if err := r.assign("new", value); err != nil {
		return nil, err
	}
	return r, nil
}

// Empty returns a Root holding the default value for T: an empty non-nil map
// or slice, a zero record (allocated when T is a pointer) or an empty
// map[string]any when T is an interface.
func Empty[T any](opts ...Option) (*Root[T], error) {
	r := newRoot[T](opts)
	if err := r.Reset(); err != nil {
		return nil, err
	}
	return r, nil
}

// CoerceRoot builds a Root from an existing Root, a T, or any value that conforms
// to T (for example a map[string]any payload for a record type).
func CoerceRoot[T any](value any, opts ...Option) (*Root[T], error) {
	if existing, ok := value.(*Root[T]); ok {
		for _, opt := range opts {
			if opt != nil {
				opt(&existing.cfg)
			}
		}
		return existing, nil
	}
	r := newRoot[T](opts)
	if err := r.assign("coerce", value); err != nil {
		return nil, err
	}
	return r, nil
}

// Load decodes data with the configured codec and tracks the result. Empty
// data yields the zero value.
func Load[T any](data []byte, opts ...Option) (*Root[T], error) {
	r := newRoot[T](opts)
	if err := r.Decode(data); err != nil {
		return nil, err
	}
	return r, nil
}

// Changed forwards a change signal from the tree to the bound hook.
func (r *Root[T]) Changed() {
	if r.cfg.hook != nil {
		r.cfg.hook.MarkDirty()
	}
}

// Bind replaces the dirty hook. A nil hook silences notifications.
func (r *Root[T]) Bind(hook DirtyHook) {
	r.cfg.hook = hook
}

// Set replaces the whole value. Replacement is an assignment, not an
// in-place mutation, so the hook is not notified.
func (r *Root[T]) Set(value any) error {
	return r.assign("set", value)
}

// Reset replaces the value with the default returned by Empty.
func (r *Root[T]) Reset() error {
	r.ensure()
	return r.assign("reset", emptyValue(r.typ))
}

func (r *Root[T]) assign(op string, value any) error {
	r.ensure()
	if other, ok := value.(*Root[T]); ok {
		value = other.value
	}
	child, err := track(op, value, r.typ, r)
	if err != nil {
		return err
	}
	releaseValue(r.value, r)
	wire(child, r.typ, r)
	r.value = child
	return nil
}

// Tracked returns the tracked form: a Node, a scalar or nil.
func (r *Root[T]) Tracked() any {
	return r.value
}

// Node returns the top-level node, if the value is a container.
func (r *Root[T]) Node() (Node, bool) {
	node, ok := r.value.(Node)
	return node, ok
}

func (r *Root[T]) Map() (*Map, bool) {
	m, ok := r.value.(*Map)
	return m, ok
}

func (r *Root[T]) List() (*List, bool) {
	l, ok := r.value.(*List)
	return l, ok
}

func (r *Root[T]) Record() (*Record, bool) {
	rec, ok := r.value.(*Record)
	return rec, ok
}

// Plain returns a fresh untracked T.
func (r *Root[T]) Plain() T {
	r.ensure()
	out, _ := valueFor(Decoerce(r.value), r.typ).Interface().(T)
	return out
}

// Snapshot returns a deep, untracked copy suitable for later comparison.
func (r *Root[T]) Snapshot() any {
	return clone.Value(Decoerce(r.value))
}

// Equal compares the decoerced value with other, which may be a plain value,
// a node or another Root of the same type.
func (r *Root[T]) Equal(other any) bool {
	if root, ok := other.(*Root[T]); ok {
		other = root.value
	}
	return Equal(r.value, other)
}

// IsNil reports whether the value is nil or a nil map, slice or pointer.
func (r *Root[T]) IsNil() bool {
	plain := Decoerce(r.value)
	if plain == nil {
		return true
	}
	rv := reflect.ValueOf(plain)
	return nillable(rv.Type()) && rv.IsNil()
}

// CodecName reports the configured storage codec.
func (r *Root[T]) CodecName() string {
	r.ensure()
	return r.cfg.codec.Name
}

// Encode serialises the decoerced value with the configured codec.
func (r *Root[T]) Encode() ([]byte, error) {
	r.ensure()
	return r.cfg.codec.Marshal(Decoerce(r.value))
}

// Decode replaces the value with the decoded data without notifying the
// hook. Empty data yields the zero value of T.
func (r *Root[T]) Decode(data []byte) error {
	r.ensure()
	var target T
	if len(data) > 0 {
		if err := r.cfg.codec.Unmarshal(data, &target); err != nil {
			return fmt.Errorf("mutable: decode %s: %w", r.cfg.codec.Name, err)
		}
	}
	return r.assign("decode", target)
}

// Scan implements sql.Scanner. SQL NULL becomes the zero value of T.
func (r *Root[T]) Scan(src any) error {
	switch typed := src.(type) {
	case nil:
		var zero T
		return r.assign("scan", zero)
	case []byte:
		return r.Decode(append([]byte(nil), typed...))
	case string:
		return r.Decode([]byte(typed))
	default:
		return fmt.Errorf("mutable: cannot scan %T into %s", src, reflect.TypeFor[T]())
	}
}

// Value implements driver.Valuer. A nil value is stored as SQL NULL.
func (r *Root[T]) Value() (driver.Value, error) {
	if r.IsNil() {
		return nil, nil
	}
	data, err := r.Encode()
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r *Root[T]) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(Decoerce(r.value))
	if err != nil {
		return nil, unsupported(err)
	}
	return data, nil
}

func (r *Root[T]) UnmarshalJSON(data []byte) error {
	var target T
	if err := json.Unmarshal(data, &target); err != nil {
		return err
	}
	return r.assign("unmarshal", target)
}

func emptyValue(t reflect.Type) any {
	switch t.Kind() {
	case reflect.Map:
		return reflect.MakeMap(t).Interface()
	case reflect.Slice:
		return reflect.MakeSlice(t, 0, 0).Interface()
	case reflect.Pointer:
		return reflect.New(t.Elem()).Interface()
	case reflect.Interface:
		return map[string]any{}
	default:
		return reflect.Zero(t).Interface()
	}
}
