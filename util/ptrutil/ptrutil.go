// Package ptrutil helps with the optional fields of openrtb and config structs.
package ptrutil

// ToPtr returns a pointer to a copy of v.
func ToPtr[T any](v T) *T {
	return &v
}

// ValueOrDefault dereferences v, returning the zero value for nil.
func ValueOrDefault[T any](v *T) (value T) {
	if v != nil {
		value = *v
	}
	return
}

// Coalesce returns the first non-nil pointer, or nil when every candidate is nil.
func Coalesce[T any](candidates ...*T) *T {
	for _, c := range candidates {
		if c != nil {
			return c
		}
	}
	return nil
}
