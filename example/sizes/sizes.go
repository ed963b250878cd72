// Package sizes holds hand-written heap size functions used by the example
// package through `with=` annotations.
package sizes

import "unsafe"

// Strings counts a string slice exactly: the slice's backing array plus the
// bytes of every element, rather than extrapolating from the first.
func Strings(s *[]string) int {
	n := cap(*s) * int(unsafe.Sizeof(""))
	for _, v := range *s {
		n += len(v)
	}
	return n
}
