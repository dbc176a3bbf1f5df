package util

// MappedSlice maps the input slice using the provided mapping function.
func MappedSlice[V any, U any](values []V, f func(V) U) []U {
	result := make([]U, 0, len(values))
	for _, v := range values {
		result = append(result, f(v))
	}
	return result
}

// FilteredSlice returns the elements of the input slice for which the
// predicate holds, preserving order.
func FilteredSlice[V any](values []V, f func(V) bool) []V {
	result := make([]V, 0, len(values))
	for _, v := range values {
		if f(v) {
			result = append(result, v)
		}
	}
	return result
}

// RemovedElement returns a copy of the slice with the first element equal to
// the needle removed.
func RemovedElement[V comparable](values []V, needle V) []V {
	result := make([]V, 0, len(values))
	removed := false
	for _, v := range values {
		if !removed && v == needle {
			removed = true
			continue
		}
		result = append(result, v)
	}
	return result
}

// ContainsElement reports whether the slice contains an element equal to the needle.
func ContainsElement[V comparable](values []V, needle V) bool {
	for _, v := range values {
		if v == needle {
			return true
		}
	}
	return false
}
