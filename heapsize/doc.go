// Package heapsize estimates how many bytes a Go value owns on the heap.
//
// Two numbers are defined for every value:
//
//   - heap-owned bytes, reported by [Of]: memory reachable from the value that
//     lives outside its own fixed-size storage;
//   - total bytes, reported by [Total]: the static size of the type plus its
//     heap-owned bytes.
//
// Estimates are O(1) in the amount of data: variable-length containers are
// measured from their length, capacity and one representative element, on the
// assumption that elements use the heap uniformly.
//
// Types opt into custom accounting by implementing [Sizer]. The heapsizegen
// tool writes Sizer implementations from struct tags and directives. Every other
// value is measured against a table of shapes keyed by [ShapeKind]; new shapes
// for third-party containers are added with [Register].
//
// A struct that embeds a Sizer has the embedded HeapSize promoted into its
// method set. Such a struct is measured field by field unless it is declared
// with [Declare], as generated code does.
//
// # Pointers
//
// A non-nil pointer reports the total bytes of its pointee. Go pointers have no
// ownership, so a value reachable from several pointers is counted once per
// holder. Weak pointers never count.
//
// # Interior wrappers
//
// [Locked] and [RWLocked] measure the value they guard under a read lock. A lock
// poisoned by a panicking holder makes measurement fail with a [*FatalError]
// panic; [TryOf] turns that panic into an error.
package heapsize
