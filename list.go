package mutable

import (
	"cmp"
	"encoding/json"
	"iter"
	"reflect"
	"slices"
)

// List is a tracked sequence. Elements that are themselves containers are
// held as nodes wired to the list.
type List struct {
	link
	typ  reflect.Type
	elem reflect.Type
	data []any
}

var _ Node = (*List)(nil)

func (l *List) Kind() Kind {
	return KindSequence
}

func (l *List) Type() reflect.Type {
	return l.typ
}

// Len returns the number of elements.
func (l *List) Len() int {
	return len(l.data)
}

// Get returns the tracked element at i.
func (l *List) Get(i int) (any, bool) {
	if i < 0 || i >= len(l.data) {
		return nil, false
	}
	return l.data[i], true
}

// Values returns a copy of the element slice. Nested containers are the
// tracked nodes themselves, not copies.
func (l *List) Values() []any {
	return slices.Clone(l.data)
}

// All iterates elements in order.
func (l *List) All() iter.Seq2[int, any] {
	return func(yield func(int, any) bool) {
		for i, value := range l.data {
			if !yield(i, value) {
				return
			}
		}
	}
}

// Map returns the nested map at i.
func (l *List) Map(i int) (*Map, bool) {
	value, _ := l.Get(i)
	child, ok := value.(*Map)
	return child, ok
}

// List returns the nested list at i.
func (l *List) List(i int) (*List, bool) {
	value, _ := l.Get(i)
	child, ok := value.(*List)
	return child, ok
}

// Record returns the nested record at i.
func (l *List) Record(i int) (*Record, bool) {
	value, _ := l.Get(i)
	child, ok := value.(*Record)
	return child, ok
}

// Append adds value at the end.
func (l *List) Append(value any) error {
	child, err := track("list append", value, l.elem, l)
	if err != nil {
		return err
	}
	wire(child, l.elem, l)
	l.data = append(l.data, child)
	l.Changed()
	return nil
}

// Extend appends every value in order.
func (l *List) Extend(values ...any) error {
	if len(values) == 0 {
		return nil
	}
	staged, err := l.stage("list extend", values)
	if err != nil {
		return err
	}
	l.wireAll(staged)
	l.data = append(l.data, staged...)
	l.Changed()
	return nil
}

// Concat appends the elements of seq, which may be a *List or any slice or
// array value.
func (l *List) Concat(seq any) error {
	var values []any
	switch typed := seq.(type) {
	case *List:
		values = typed.Values()
	case nil:
		return mismatch("list concat", l.typ, nil)
	default:
		rv := reflect.ValueOf(seq)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return mismatch("list concat", l.typ, rv.Type())
		}
		values = make([]any, rv.Len())
		for i := range values {
			values[i] = rv.Index(i).Interface()
		}
	}
	staged, err := l.stage("list concat", values)
	if err != nil {
		return err
	}
	l.wireAll(staged)
	l.data = append(l.data, staged...)
	l.Changed()
	return nil
}

// Insert places value before index i. i is clamped into [0, Len()].
func (l *List) Insert(i int, value any) error {
	child, err := track("list insert", value, l.elem, l)
	if err != nil {
		return err
	}
	i = max(0, min(i, len(l.data)))
	wire(child, l.elem, l)
	l.data = slices.Insert(l.data, i, child)
	l.Changed()
	return nil
}

// Set replaces the element at i.
func (l *List) Set(i int, value any) error {
	if i < 0 || i >= len(l.data) {
		return ErrIndexOutOfRange
	}
	child, err := track("list set", value, l.elem, l)
	if err != nil {
		return err
	}
	old := l.data[i]
	wire(child, l.elem, l)
	l.data[i] = child
	releaseValue(old, l)
	l.Changed()
	return nil
}

// SetSlice replaces elements in [start, end) with values, growing or
// shrinking the list as needed. Bounds are clamped into [0, Len()] and an end
// before start is treated as start.
func (l *List) SetSlice(start, end int, values ...any) error {
	start = max(0, min(start, len(l.data)))
	end = max(start, min(end, len(l.data)))
	staged, err := l.stage("list set slice", values)
	if err != nil {
		return err
	}
	removed := slices.Clone(l.data[start:end])
	l.wireAll(staged)
	l.data = slices.Replace(l.data, start, end, staged...)
	for _, old := range removed {
		releaseValue(old, l)
	}
	l.Changed()
	return nil
}

// Pop removes and returns the last element.
func (l *List) Pop() (any, error) {
	return l.PopAt(len(l.data) - 1)
}

// PopAt removes and returns the element at i.
func (l *List) PopAt(i int) (any, error) {
	if i < 0 || i >= len(l.data) {
		return nil, ErrIndexOutOfRange
	}
	old := l.data[i]
	l.data = slices.Delete(l.data, i, i+1)
	releaseValue(old, l)
	l.Changed()
	return old, nil
}

// Remove deletes the first element structurally equal to value.
func (l *List) Remove(value any) error {
	idx := slices.IndexFunc(l.data, func(candidate any) bool {
		return Equal(candidate, value)
	})
	if idx < 0 {
		return ErrValueNotFound
	}
	_, err := l.PopAt(idx)
	return err
}

// Clear removes every element.
func (l *List) Clear() {
	if len(l.data) == 0 {
		return
	}
	removed := l.data
	l.data = []any{}
	for _, old := range removed {
		releaseValue(old, l)
	}
	l.Changed()
}

// Sort orders the elements with compare. A nil compare sorts by the natural
// order of strings, numbers or booleans and fails with ErrTypeMismatch when
// elements are not mutually comparable. The sort is stable.
func (l *List) Sort(compare func(a, b any) int) error {
	if compare == nil {
		if err := checkOrdered(l.data); err != nil {
			return err
		}
		compare = naturalCompare
	}
	slices.SortStableFunc(l.data, compare)
	l.Changed()
	return nil
}

// Reverse reverses the elements in place.
func (l *List) Reverse() {
	slices.Reverse(l.data)
	l.Changed()
}

// stage coerces values against the element type, failing before anything is
// stored. Callers wire the result once displaced elements are released.
func (l *List) stage(op string, values []any) ([]any, error) {
	staged := make([]any, len(values))
	for i, value := range values {
		child, err := track(op, value, l.elem, l)
		if err != nil {
			return nil, err
		}
		staged[i] = child
	}
	return staged, nil
}

func (l *List) holds(node Node) bool {
	return slices.ContainsFunc(l.data, func(value any) bool {
		return sameNode(value, node)
	})
}

func (l *List) wireAll(children []any) {
	for _, child := range children {
		wire(child, l.elem, l)
	}
}

// Plain returns a fresh slice of the declared type.
func (l *List) Plain() any {
	if l.data == nil {
		return reflect.Zero(l.typ).Interface()
	}
	out := reflect.MakeSlice(l.typ, len(l.data), len(l.data))
	for i, value := range l.data {
		out.Index(i).Set(valueFor(Decoerce(value), l.elem))
	}
	return out.Interface()
}

func (l *List) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.Plain())
}

func (l *List) MarshalYAML() (any, error) {
	return l.Plain(), nil
}

type orderClass uint8

const (
	orderNone orderClass = iota
	orderString
	orderNumber
	orderBool
)

func classify(value any) orderClass {
	if value == nil {
		return orderNone
	}
	rv := reflect.ValueOf(value)
	switch k := rv.Kind(); {
	case k == reflect.String:
		return orderString
	case k == reflect.Bool:
		return orderBool
	case isNumeric(k):
		return orderNumber
	default:
		return orderNone
	}
}

func checkOrdered(values []any) error {
	if len(values) == 0 {
		return nil
	}
	want := classify(values[0])
	for _, value := range values {
		if got := classify(value); got == orderNone || got != want {
			return mismatch("list sort", reflect.TypeOf(values[0]), reflect.TypeOf(value))
		}
	}
	return nil
}

func naturalCompare(a, b any) int {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch classify(a) {
	case orderString:
		return cmp.Compare(ra.String(), rb.String())
	case orderBool:
		switch {
		case ra.Bool() == rb.Bool():
			return 0
		case !ra.Bool():
			return -1
		default:
			return 1
		}
	default:
		return compareNumbers(ra, rb)
	}
}

func compareNumbers(a, b reflect.Value) int {
	switch {
	case isSigned(a.Kind()) && isSigned(b.Kind()):
		return cmp.Compare(a.Int(), b.Int())
	case isUnsigned(a.Kind()) && isUnsigned(b.Kind()):
		return cmp.Compare(a.Uint(), b.Uint())
	default:
		return cmp.Compare(asFloat(a), asFloat(b))
	}
}

func asFloat(v reflect.Value) float64 {
	switch {
	case isFloat(v.Kind()):
		return v.Float()
	case isSigned(v.Kind()):
		return float64(v.Int())
	default:
		return float64(v.Uint())
	}
}
