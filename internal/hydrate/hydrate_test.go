package hydrate

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

type addressItem struct {
	Street string  `json:"street"`
	City   string  `json:"city"`
	Area   *string `json:"area,omitempty"`
}

var errRejected = errors.New("payload rejected")

func TestDecodePayloadIntoRecord(t *testing.T) {
	decoder := NewDecoder()
	var item addressItem
	err := decoder.Decode(Context{Type: "addressItem", Op: "test"}, map[string]any{
		"street": "bar",
		"city":   "baz",
	}, &item)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(item, addressItem{Street: "bar", City: "baz"}) {
		t.Fatalf("unexpected record: %#v", item)
	}
}

func TestDecodeOptions(t *testing.T) {
	cases := []struct {
		name      string
		options   []DecoderOption
		payload   map[string]any
		target    any
		expectErr string
	}{
		{
			name:      "disallow unknown",
			options:   []DecoderOption{WithDisallowUnknownFields()},
			payload:   map[string]any{"street": "a", "zip": "1"},
			target:    &addressItem{},
			expectErr: "unknown field",
		},
		{
			name:    "unknown ignored by default",
			payload: map[string]any{"street": "a", "zip": "1"},
			target:  &addressItem{},
		},
		{
			name:      "wrong type",
			payload:   map[string]any{"street": 1},
			target:    &addressItem{},
			expectErr: "decode addressItem",
		},
		{
			name:      "nil payload",
			target:    &addressItem{},
			expectErr: "payload is nil",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := NewDecoder(tc.options...).Decode(Context{Type: "addressItem"}, tc.payload, tc.target)
			if tc.expectErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.expectErr) {
				t.Fatalf("expected error containing %q, got %v", tc.expectErr, err)
			}
		})
	}
}

func TestPreHooksRewritePayload(t *testing.T) {
	var seen Context
	hook := func(ctx Context, payload map[string]any) (map[string]any, error) {
		seen = ctx
		out := map[string]any{}
		for key, value := range payload {
			out[strings.ToLower(key)] = value
		}
		return out, nil
	}
	var item addressItem
	err := NewDecoder(WithPreHook(hook), WithPreHook(nil)).Decode(Context{Type: "addressItem", Op: "list append"},
		map[string]any{"STREET": "x"}, &item)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if item.Street != "x" || seen.Op != "list append" {
		t.Fatalf("expected hook to run, got %#v (ctx %#v)", item, seen)
	}

	failing := func(Context, map[string]any) (map[string]any, error) { return nil, errRejected }
	err = NewDecoder(WithPreHook(failing)).Decode(Context{Type: "addressItem"}, map[string]any{}, &item)
	if !errors.Is(err, errRejected) {
		t.Fatalf("expected hook error to be wrapped, got %v", err)
	}
}

func TestNormalize(t *testing.T) {
	got, err := Normalize(addressItem{Street: "s", City: "c"})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := map[string]any{"street": "s", "city": "c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected normalized value: %#v", got)
	}

	got, err = Normalize(map[string]int{"n": 1})
	if err != nil || !reflect.DeepEqual(got, map[string]any{"n": 1.0}) {
		t.Fatalf("expected numbers as float64, got %#v (%v)", got, err)
	}
	if got, err := Normalize(nil); got != nil || err != nil {
		t.Fatalf("expected nil passthrough, got %#v (%v)", got, err)
	}
	if _, err := Normalize(make(chan int)); err == nil {
		t.Fatalf("expected error for channel")
	}
}
