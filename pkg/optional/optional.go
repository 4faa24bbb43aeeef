// Package optional provides a two-state value: present-with-value or absent.
//
// Document fields use it instead of pointers or zero values so that
// serialization can tell "set to the zero value" apart from "never set" and
// omit the latter entirely.
package optional

// Value holds either a value of type T or nothing.
// The zero Value is absent.
type Value[T any] struct {
	v   T
	set bool
}

// Some returns a present Value holding v.
func Some[T any](v T) Value[T] {
	return Value[T]{v: v, set: true}
}

// None returns an absent Value.
func None[T any]() Value[T] {
	return Value[T]{}
}

// FromPtr returns Some(*p) for non-nil p and None otherwise.
func FromPtr[T any](p *T) Value[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Get returns the held value and whether it is present.
func (o Value[T]) Get() (T, bool) {
	return o.v, o.set
}

// IsSet reports whether the value is present.
func (o Value[T]) IsSet() bool {
	return o.set
}

// OrElse returns the held value, or def when absent.
func (o Value[T]) OrElse(def T) T {
	if o.set {
		return o.v
	}
	return def
}

// MustGet returns the held value and panics when absent.
func (o Value[T]) MustGet() T {
	if !o.set {
		panic("optional: value is absent")
	}
	return o.v
}

// Ptr returns a pointer to a copy of the held value, or nil when absent.
func (o Value[T]) Ptr() *T {
	if !o.set {
		return nil
	}
	v := o.v
	return &v
}
