// Package lrusize registers a Nodes shape for hashicorp/golang-lru caches.
// Import it for its side effect.
package lrusize

import (
	"reflect"
	"strings"
	"time"
	"unsafe"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/mlwelles/heapsizegen/heapsize"
)

const ptrSize = int(unsafe.Sizeof(uintptr(0)))

// EntryOverhead is the per-entry bookkeeping of a cache, excluding the key and
// value: the list links, the expiry fields, and the map slot pointing at the
// entry.
var EntryOverhead = 3*ptrSize + int(unsafe.Sizeof(time.Time{})) + ptrSize + ptrSize

var (
	cachePkg  = reflect.TypeFor[lru.Cache[int, int]]().PkgPath()
	simplePkg = reflect.TypeFor[simplelru.LRU[int, int]]().PkgPath()
)

func init() {
	heapsize.Register(heapsize.Shape{
		Name:    "lru.Cache",
		Kind:    heapsize.ShapeNodes,
		Match:   IsCache,
		Measure: measureCache,
	})
}

// IsCache reports whether t is an instantiation of lru.Cache or
// simplelru.LRU.
func IsCache(t reflect.Type) bool {
	switch t.PkgPath() {
	case cachePkg:
		return strings.HasPrefix(t.Name(), "Cache[")
	case simplePkg:
		return strings.HasPrefix(t.Name(), "LRU[")
	}
	return false
}

// The oldest entry is the sample; GetOldest does not change recency.
func measureCache(w heapsize.Walker, v reflect.Value) heapsize.Measure {
	var p reflect.Value
	switch {
	case v.CanAddr():
		p = v.Addr()
	case !v.CanInterface():
		return heapsize.Measure{}
	default:
		p = reflect.New(v.Type())
		p.Elem().Set(v)
	}
	n := int(p.MethodByName("Len").Call(nil)[0].Int())
	if n == 0 {
		return heapsize.Measure{}
	}
	out := p.MethodByName("GetOldest").Call(nil)
	if !out[2].Bool() {
		return heapsize.Measure{}
	}
	key, value := out[0], out[1]
	sample := EntryOverhead + w.Total(key) + int(key.Type().Size()) + w.Total(value)
	return heapsize.Measure{Len: n, Sample: sample}
}
