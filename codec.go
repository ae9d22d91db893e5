package mutable

import (
	"encoding/json"
	"errors"
	"reflect"

	"gopkg.in/yaml.v3"
)

// Codec serialises plain values at the storage boundary.
type Codec struct {
	Name      string
	Marshal   func(value any) ([]byte, error)
	Unmarshal func(data []byte, target any) error
}

// JSONCodec stores values as JSON documents. Unmarshalling uses the target's
// declared type, so typed roots keep their shape; untyped ones decode to
// map[string]any, []any and float64.
var JSONCodec = Codec{
	Name: "json",
	Marshal: func(value any) ([]byte, error) {
		data, err := json.Marshal(value)
		if err != nil {
			return nil, unsupported(err)
		}
		return data, nil
	},
	Unmarshal: json.Unmarshal,
}

// YAMLCodec stores values as YAML documents.
var YAMLCodec = Codec{
	Name: "yaml",
	Marshal: func(value any) ([]byte, error) {
		data, err := yaml.Marshal(value)
		if err != nil {
			return nil, &UnsupportedElementError{Type: reflect.TypeOf(value), Err: err}
		}
		return data, nil
	},
	Unmarshal: yaml.Unmarshal,
}

func unsupported(err error) error {
	var typeErr *json.UnsupportedTypeError
	if errors.As(err, &typeErr) {
		return &UnsupportedElementError{Type: typeErr.Type, Err: err}
	}
	var valueErr *json.UnsupportedValueError
	if errors.As(err, &valueErr) {
		return &UnsupportedElementError{Type: valueErr.Value.Type(), Err: err}
	}
	return err
}
