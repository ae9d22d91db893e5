package mutable

import (
	"slices"
	"testing"
)

func TestDiffPlainValues(t *testing.T) {
	cases := []struct {
		name   string
		before any
		after  any
		want   []string
	}{
		{name: "equal", before: map[string]any{"a": 1}, after: map[string]any{"a": 1.0}, want: nil},
		{name: "scalar root", before: 1, after: 2, want: []string{""}},
		{name: "shape change", before: map[string]any{"a": 1}, after: []any{1}, want: []string{""}},
		{
			name:   "nested key",
			before: map[string]any{"a": map[string]any{"x": 1, "y": 2}, "b": true},
			after:  map[string]any{"a": map[string]any{"x": 1, "y": 3}, "b": true},
			want:   []string{"a.y"},
		},
		{
			name:   "added and removed keys",
			before: map[string]any{"gone": 1, "kept": 2},
			after:  map[string]any{"kept": 2, "new": nil},
			want:   []string{"gone", "new"},
		},
		{
			name:   "list growth",
			before: map[string]any{"tags": []any{"a"}},
			after:  map[string]any{"tags": []any{"a", "b", "c"}},
			want:   []string{"tags[1]", "tags[2]"},
		},
		{
			name:   "list element",
			before: []any{map[string]any{"n": 1}, "x"},
			after:  []any{map[string]any{"n": 2}, "x"},
			want:   []string{"[0].n"},
		},
		{
			name:   "nil map becomes empty",
			before: map[string]any{"m": map[string]any(nil)},
			after:  map[string]any{"m": map[string]any{}},
			want:   []string{"m"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Diff(tc.before, tc.after); !slices.Equal(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestDiffRecordsUseJSONNames(t *testing.T) {
	area := "north"
	before := addresses{
		Preferred: &addressItem{Street: "bar", City: "baz"},
		Home:      []addressItem{{Street: "h", City: "c"}},
	}
	after := addresses{
		Preferred: &addressItem{Street: "bar", City: "qux", Area: &area},
		Home:      []addressItem{{Street: "h", City: "c"}, {Street: "h2"}},
	}

	got := Diff(before, &after)
	want := []string{"home[1]", "preferred.area", "preferred.city"}
	if !slices.Equal(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	after.Preferred = nil
	if got := Diff(before, after); !slices.Contains(got, "preferred") {
		t.Fatalf("expected cleared record to be reported at its field, got %v", got)
	}
}

func TestDiffAcceptsTrackedNodes(t *testing.T) {
	root, err := New(map[string]any{"tags": []any{"a"}, "title": "x"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	before := Decoerce(root.Tracked())

	m, _ := root.Map()
	tags, _ := m.List("tags")
	if err := tags.Set(0, "b"); err != nil {
		t.Fatalf("set: %v", err)
	}

	if got := Diff(before, root.Tracked()); !slices.Equal(got, []string{"tags[0]"}) {
		t.Fatalf("unexpected diff: %v", got)
	}
	if got := Diff(root.Tracked(), root.Tracked()); got != nil {
		t.Fatalf("expected no diff against itself, got %v", got)
	}
}
