package mutable

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestRootMixedTreeNotifiesOnce(t *testing.T) {
	hook := &countingNotifier{}
	root, err := Load[map[string]any]([]byte(`{"others":[{"label":"a"}]}`),
		WithDirtyHook(DirtyHookFunc(hook.Changed)))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	m, _ := root.Map()
	others, _ := m.List("others")
	first, _ := others.Map(0)
	if err := first.Set("label", "b"); err != nil {
		t.Fatalf("set: %v", err)
	}

	if hook.calls != 1 {
		t.Fatalf("expected one notification, got %d", hook.calls)
	}
	want := map[string]any{"others": []any{map[string]any{"label": "b"}}}
	if got := root.Plain(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected value:\nwant: %#v\n got: %#v", want, got)
	}
	data, err := root.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(data) != `{"others":[{"label":"b"}]}` {
		t.Fatalf("unexpected encoding: %s", data)
	}
}

func TestRootPropagatesFromDeepNodes(t *testing.T) {
	hook := &countingNotifier{}
	root, err := New(map[string]any{
		"a": map[string]any{"b": []any{map[string]any{"c": []any{}}}},
	}, WithDirtyHook(DirtyHookFunc(hook.Changed)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m, _ := root.Map()
	a, _ := m.Map("a")
	b, _ := a.List("b")
	c0, _ := b.Map(0)
	c, _ := c0.List("c")

	if err := c.Append(1); err != nil {
		t.Fatalf("append: %v", err)
	}
	if hook.calls != 1 {
		t.Fatalf("expected exactly one notification from depth 4, got %d", hook.calls)
	}

	_ = m.Len()
	_, _ = c.Get(0)
	_ = root.Plain()
	if hook.calls != 1 {
		t.Fatalf("reads must not notify, got %d", hook.calls)
	}
}

func TestRootSetReplacesWithoutNotifying(t *testing.T) {
	hook := &countingNotifier{}
	root, err := New(map[string]any{"k": map[string]any{}}, WithDirtyHook(DirtyHookFunc(hook.Changed)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	old, _ := root.Map()

	if err := root.Set(map[string]any{"fresh": true}); err != nil {
		t.Fatalf("set: %v", err)
	}
	if hook.calls != 0 {
		t.Fatalf("whole-value replacement must not notify, got %d", hook.calls)
	}
	if Attached(old) {
		t.Fatalf("expected previous value to be detached")
	}
	if err := old.Set("k", 1); err != nil {
		t.Fatalf("set on detached: %v", err)
	}
	if hook.calls != 0 {
		t.Fatalf("detached value must stay silent, got %d", hook.calls)
	}
	if !root.Equal(map[string]any{"fresh": true}) {
		t.Fatalf("expected root to hold the replacement")
	}
}

func TestRootTypedRoundTrip(t *testing.T) {
	root, err := Load[[][]string]([]byte(`[["meeting","launch"],["training"]]`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	l, _ := root.List()
	inner, _ := l.List(1)
	if err := inner.Append("presentation"); err != nil {
		t.Fatalf("append: %v", err)
	}
	want := [][]string{{"meeting", "launch"}, {"training", "presentation"}}
	if got := root.Plain(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected value: %#v", got)
	}

	data, err := root.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	reloaded, err := Load[[][]string](data)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.Equal(root) {
		t.Fatalf("expected reloaded value to equal the original")
	}
}

func TestRootYAMLCodec(t *testing.T) {
	root, err := New(map[string]any{"name": "x", "tags": []any{"a", "b"}}, WithCodec(YAMLCodec))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if root.CodecName() != "yaml" {
		t.Fatalf("unexpected codec: %s", root.CodecName())
	}
	data, err := root.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(data), "name: x") {
		t.Fatalf("expected yaml output, got %s", data)
	}

	reloaded, err := Load[map[string]any](data, WithCodec(YAMLCodec))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reloaded.Equal(root) {
		t.Fatalf("expected yaml round trip, got %#v", reloaded.Plain())
	}
}

func TestRootEncodeRejectsUnsupportedValues(t *testing.T) {
	root, err := New(map[string]any{"n": math.NaN()})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := root.Encode(); !errors.Is(err, ErrUnsupportedElementType) {
		t.Fatalf("expected ErrUnsupportedElementType, got %v", err)
	}
}

func TestRootSQLNullHandling(t *testing.T) {
	var root Root[map[string]any]
	if err := root.Scan(nil); err != nil {
		t.Fatalf("scan nil: %v", err)
	}
	if !root.IsNil() {
		t.Fatalf("expected NULL to scan as nil")
	}
	value, err := root.Value()
	if err != nil || value != nil {
		t.Fatalf("expected nil driver value, got %#v (%v)", value, err)
	}

	if err := root.Scan([]byte(`{"a":1}`)); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	value, err = root.Value()
	if err != nil || value != `{"a":1}` {
		t.Fatalf("unexpected driver value %#v (%v)", value, err)
	}
	if err := root.Scan(42); err == nil {
		t.Fatalf("expected error scanning an int")
	}
}

func TestEmptyDefaults(t *testing.T) {
	m, err := Empty[map[string]any]()
	if err != nil {
		t.Fatalf("empty map: %v", err)
	}
	if m.IsNil() || m.Plain() == nil || len(m.Plain()) != 0 {
		t.Fatalf("expected empty non-nil map, got %#v", m.Plain())
	}

	l, err := Empty[[]string]()
	if err != nil {
		t.Fatalf("empty list: %v", err)
	}
	if l.Plain() == nil {
		t.Fatalf("expected empty non-nil slice")
	}

	rec, err := Empty[*addresses]()
	if err != nil {
		t.Fatalf("empty record: %v", err)
	}
	if rec.Plain() == nil {
		t.Fatalf("expected allocated record")
	}
	if _, ok := rec.Record(); !ok {
		t.Fatalf("expected tracked record")
	}

	anyRoot, err := Empty[any]()
	if err != nil {
		t.Fatalf("empty any: %v", err)
	}
	if _, ok := anyRoot.Map(); !ok {
		t.Fatalf("expected untyped root to default to a map")
	}
}

func TestCoerceRootFromPayload(t *testing.T) {
	root, err := CoerceRoot[addresses](map[string]any{
		"preferred": map[string]any{"street": "bar", "city": "baz"},
	})
	if err != nil {
		t.Fatalf("coerce: %v", err)
	}
	if got := root.Plain().Preferred; got == nil || got.Street != "bar" {
		t.Fatalf("unexpected preferred: %#v", got)
	}

	same, err := CoerceRoot[addresses](root)
	if err != nil || same != root {
		t.Fatalf("expected the same root back, got %p (%v)", same, err)
	}
	if _, err := CoerceRoot[addresses]([]any{1}); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("expected ErrTypeMismatch, got %v", err)
	}
}

func TestRootEmbedsInJSONDocuments(t *testing.T) {
	type row struct {
		ID   int                   `json:"id"`
		Data *Root[map[string]any] `json:"data"`
	}

	var decoded row
	if err := json.Unmarshal([]byte(`{"id":1,"data":{"k":[1,2]}}`), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	m, ok := decoded.Data.Map()
	if !ok {
		t.Fatalf("expected tracked map")
	}
	list, _ := m.List("k")
	if err := list.Append(3.0); err != nil {
		t.Fatalf("append: %v", err)
	}

	out, err := json.Marshal(decoded)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"id":1,"data":{"k":[1,2,3]}}` {
		t.Fatalf("unexpected json: %s", out)
	}
}

func TestRootSnapshotIsIndependent(t *testing.T) {
	root, err := New(map[string]any{"raw": []byte("abc")})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	snapshot := root.Snapshot().(map[string]any)
	snapshot["raw"].([]byte)[0] = 'z'

	if !root.Equal(map[string]any{"raw": []byte("abc")}) {
		t.Fatalf("snapshot must not share storage with the live value")
	}
	if root.Equal(snapshot) {
		t.Fatalf("expected diverged snapshot to differ")
	}
}
