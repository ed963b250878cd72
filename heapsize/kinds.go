package heapsize

import (
	"math/bits"
	"reflect"
	"unsafe"
)

// kindShapes is the fallback table for values with no registered shape and no
// HeapSize method.
var kindShapes = map[reflect.Kind]*Shape{
	reflect.Slice:     {Name: "slice", Kind: ShapeSequence, Measure: measureSlice},
	reflect.Array:     {Name: "array", Kind: ShapeArray, Measure: measureArray},
	reflect.String:    {Name: "string", Kind: ShapeText, Measure: measureString},
	reflect.Map:       {Name: "map", Kind: ShapeHashTable, Measure: measureMap},
	reflect.Pointer:   {Name: "pointer", Kind: ShapePointer, Measure: measurePointer},
	reflect.Interface: {Name: "interface", Kind: ShapePointer, Measure: measureInterface},
	reflect.Chan:      {Name: "chan", Kind: ShapeBuffer, Measure: measureChan},
	reflect.Struct:    {Name: "struct", Kind: ShapeTuple, Measure: measureStruct},
}

func measureSlice(w Walker, v reflect.Value) Measure {
	m := Measure{Len: v.Len(), Cap: v.Cap(), ElemSize: int(v.Type().Elem().Size())}
	if m.Len > 0 {
		m.Sample = w.Heap(v.Index(0))
	}
	return m
}

func measureArray(w Walker, v reflect.Value) Measure {
	m := Measure{Len: v.Len()}
	if m.Len > 0 {
		m.Sample = w.Heap(v.Index(0))
	}
	return m
}

// Go strings are immutable, so their length is their allocation.
func measureString(_ Walker, v reflect.Value) Measure {
	return Measure{Len: v.Len(), Cap: v.Len()}
}

func measureMap(w Walker, v reflect.Value) Measure {
	t := v.Type()
	m := Measure{
		Len:      v.Len(),
		ElemSize: int(t.Key().Size() + t.Elem().Size()),
	}
	m.Cap = mapCapacity(m.Len)
	if m.Len > 0 {
		it := v.MapRange()
		if it.Next() {
			m.Sample = w.Heap(it.Key()) + w.Heap(it.Value())
		}
	}
	return m
}

// mapCapacity estimates the slots allocated for n entries. Go maps do not
// expose their capacity; their tables grow in powers of two with groups of 8
// slots and a 7/8 maximum load.
func mapCapacity(n int) int {
	const groupSlots = 8
	if n <= 0 {
		return 0
	}
	if n <= groupSlots {
		return groupSlots
	}
	slots := (n*8 + 6) / 7
	return 1 << bits.Len(uint(slots-1))
}

type pathGuard interface {
	enter(p unsafe.Pointer) bool
	leave(p unsafe.Pointer)
}

func measurePointer(w Walker, v reflect.Value) Measure {
	if v.IsNil() {
		return Measure{}
	}
	if g, ok := w.(pathGuard); ok {
		p := v.UnsafePointer()
		if !g.enter(p) {
			return Measure{}
		}
		defer g.leave(p)
	}
	return Measure{Present: true, Sample: w.Total(v.Elem())}
}

// An interface stores pointer-shaped values directly and boxes everything else
// on the heap.
func measureInterface(w Walker, v reflect.Value) Measure {
	if v.IsNil() {
		return Measure{}
	}
	return Measure{Present: true, Sample: boxed(w, v.Elem())}
}

func measureChan(_ Walker, v reflect.Value) Measure {
	if v.IsNil() {
		return Measure{}
	}
	return Measure{Len: v.Len(), Cap: v.Cap() * int(v.Type().Elem().Size())}
}

func measureStruct(w Walker, v reflect.Value) Measure {
	var sum int
	for i := range v.NumField() {
		sum += w.Heap(v.Field(i))
	}
	return Measure{Sample: sum}
}
