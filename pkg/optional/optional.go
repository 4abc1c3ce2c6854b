// Package optional models fields of a partial update, where a field may be
// absent, explicitly null, or carry a value.
package optional

import (
	"bytes"
	"encoding/json"
)

// Value is a tri-state field: unset, set to null, or set to a value.
// The zero Value is unset, so it pairs with the json ",omitzero" option.
type Value[T any] struct {
	value T
	set   bool
	valid bool
}

func Set[T any](v T) Value[T] {
	return Value[T]{value: v, set: true, valid: true}
}

func Null[T any]() Value[T] {
	return Value[T]{set: true}
}

// FromPtr sets v to the pointee, or to null when p is nil.
func FromPtr[T any](p *T) Value[T] {
	if p == nil {
		return Null[T]()
	}
	return Set(*p)
}

// IsSet reports whether the field was present in the input.
func (v Value[T]) IsSet() bool { return v.set }

// IsNull reports whether the field was present and null.
func (v Value[T]) IsNull() bool { return v.set && !v.valid }

func (v Value[T]) IsZero() bool { return !v.set }

// Get returns the value and whether it is present and non-null.
func (v Value[T]) Get() (T, bool) {
	return v.value, v.set && v.valid
}

// Or returns the value when present and non-null, def otherwise.
func (v Value[T]) Or(def T) T {
	if v.set && v.valid {
		return v.value
	}
	return def
}

// Ptr returns nil for null or unset fields.
func (v Value[T]) Ptr() *T {
	if !v.set || !v.valid {
		return nil
	}
	out := v.value
	return &out
}

func (v Value[T]) MarshalJSON() ([]byte, error) {
	if !v.set || !v.valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.value)
}

func (v *Value[T]) UnmarshalJSON(data []byte) error {
	v.set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		v.value = zero
		v.valid = false
		return nil
	}
	if err := json.Unmarshal(data, &v.value); err != nil {
		return err
	}
	v.valid = true
	return nil
}

// Map converts a present value with f, keeping unset and null as they are.
func Map[A, B any](v Value[A], f func(A) B) Value[B] {
	if !v.set {
		return Value[B]{}
	}
	if !v.valid {
		return Null[B]()
	}
	return Set(f(v.value))
}
