package mutable

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrTypeMismatch indicates a value whose runtime shape does not match the
	// wrapper or declared type it is coerced into.
	ErrTypeMismatch = errors.New("mutable: type mismatch")
	// ErrUnsupportedElementType indicates a leaf that is neither trackable nor
	// representable by a storage codec.
	ErrUnsupportedElementType = errors.New("mutable: unsupported element type")
	// ErrIndexOutOfRange indicates a sequence index outside [0, Len).
	ErrIndexOutOfRange = errors.New("mutable: index out of range")
	// ErrValueNotFound indicates Remove found no equal element.
	ErrValueNotFound = errors.New("mutable: value not found")
	// ErrUnknownField indicates a record field that is not declared or not exported.
	ErrUnknownField = errors.New("mutable: unknown field")
)

// TypeMismatchError captures the operation and both types involved in a
// failed coercion. Err holds the decoder failure when a payload map could
// not be decoded into a record.
type TypeMismatchError struct {
	Op   string
	Want reflect.Type
	Got  reflect.Type
	Err  error
}

func (e *TypeMismatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("mutable: %s: type mismatch: want %s, got %s", e.Op, describeType(e.Want), describeType(e.Got))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrTypeMismatch.
func (e *TypeMismatchError) Is(target error) bool {
	return target == ErrTypeMismatch
}

func (e *TypeMismatchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UnsupportedElementError reports the offending type and where it was found.
type UnsupportedElementError struct {
	Path string
	Type reflect.Type
	Err  error
}

func (e *UnsupportedElementError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("mutable: unsupported element type %s", describeType(e.Type))
	if e.Path != "" {
		msg += " at " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrUnsupportedElementType.
func (e *UnsupportedElementError) Is(target error) bool {
	return target == ErrUnsupportedElementType
}

func (e *UnsupportedElementError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func mismatch(op string, want, got reflect.Type) error {
	return &TypeMismatchError{Op: op, Want: want, Got: got}
}

func describeType(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.String()
}
