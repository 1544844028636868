// Package utils provides small, generic helpers shared across layers.
// Nothing here knows about the domain.
package utils

import "strconv"

// AtoiDefault converts s to an int, returning def when s is empty or
// not a valid integer. Handy for query parameters.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// PageCount returns the number of pages needed to hold total items at
// pageSize items per page. A non-positive pageSize yields 0.
func PageCount(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}
