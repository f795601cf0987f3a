// Package fieldpath resolves dot-separated paths against arbitrary nested
// data objects, the kind produced by decoding a JSON entity snapshot.
package fieldpath

import "strings"

// Resolve walks a dot-separated path ("customer.address.city") into data one
// segment at a time. It returns (nil, false) as soon as a segment is missing
// or the current value is not an object; it never panics.
//
// Array indices and wildcards are deliberately unsupported; a path addressing
// an array element resolves to not-found.
func Resolve(data map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	var current any = data
	for _, seg := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok || m == nil {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
