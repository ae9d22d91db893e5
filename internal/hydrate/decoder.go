package hydrate

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Context identifies the record type and operation a payload is decoded for.
type Context struct {
	Type string
	Op   string
}

// PreHook lets callers mutate or normalise the payload before decoding.
type PreHook func(Context, map[string]any) (map[string]any, error)

// DecoderOption configures a Decoder instance.
type DecoderOption func(*Decoder)

// Decoder converts loosely typed map payloads into record structs.
type Decoder struct {
	preHooks     []PreHook
	configureDec []func(*json.Decoder)
}

// WithPreHook applies hook prior to decoding.
func WithPreHook(hook PreHook) DecoderOption {
	return func(d *Decoder) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithDisallowUnknownFields invokes json.Decoder.DisallowUnknownFields.
func WithDisallowUnknownFields() DecoderOption {
	return func(d *Decoder) {
		d.configureDec = append(d.configureDec, func(dec *json.Decoder) {
			dec.DisallowUnknownFields()
		})
	}
}

func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into target, which must be a non-nil pointer.
func (d *Decoder) Decode(ctx Context, payload map[string]any, target any) error {
	if payload == nil {
		return fmt.Errorf("hydrate: payload is nil for %s", ctx.Type)
	}

	current := payload
	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return fmt.Errorf("hydrate: pre-hook for %s failed: %w", ctx.Type, err)
		}
		if next != nil {
			current = next
		}
	}

	buffer, err := json.Marshal(current)
	if err != nil {
		return fmt.Errorf("hydrate: marshal payload for %s: %w", ctx.Type, err)
	}
	decoder := json.NewDecoder(bytes.NewReader(buffer))
	for _, configure := range d.configureDec {
		if configure != nil {
			configure(decoder)
		}
	}
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("hydrate: decode %s: %w", ctx.Type, err)
	}
	return nil
}

// Normalize reduces value to JSON shapes: map[string]any, []any, float64,
// string, bool and nil. Records become maps keyed by their JSON names.
func Normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	buffer, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("hydrate: normalise %T: %w", value, err)
	}
	var out any
	if err := json.Unmarshal(buffer, &out); err != nil {
		return nil, fmt.Errorf("hydrate: normalise %T: %w", value, err)
	}
	return out, nil
}
