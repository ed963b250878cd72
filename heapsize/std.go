package heapsize

import (
	"bufio"
	"bytes"
	"container/list"
	"container/ring"
	"net"
	"net/netip"
	"os"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unsafe"
)

func init() {
	for _, t := range []reflect.Type{
		reflect.TypeFor[time.Time](),
		reflect.TypeFor[*time.Location](),
		reflect.TypeFor[*os.File](),
		reflect.TypeFor[*net.TCPConn](),
		reflect.TypeFor[*net.UDPConn](),
		reflect.TypeFor[*net.UnixConn](),
		reflect.TypeFor[*net.TCPListener](),
		reflect.TypeFor[*net.UnixListener](),
		reflect.TypeFor[netip.Addr](),
		reflect.TypeFor[netip.AddrPort](),
		reflect.TypeFor[netip.Prefix](),
		reflect.TypeFor[sync.Cond](),
		reflect.TypeFor[sync.Pool](),
		reflect.TypeFor[sync.Once](),
	} {
		Register(Shape{Name: t.String(), Kind: ShapeScalar, Type: t, Measure: measureNothing})
	}

	Register(Shape{Name: "strings.Builder", Kind: ShapeText, Type: reflect.TypeFor[strings.Builder](), Measure: measureBuf})
	Register(Shape{Name: "bytes.Buffer", Kind: ShapeBuffer, Type: reflect.TypeFor[bytes.Buffer](), Measure: measureBuf})
	Register(Shape{Name: "bufio.Reader", Kind: ShapeBuffer, Type: reflect.TypeFor[bufio.Reader](), Measure: measureBuf})
	Register(Shape{Name: "bufio.Writer", Kind: ShapeBuffer, Type: reflect.TypeFor[bufio.Writer](), Measure: measureBuf})
	Register(Shape{Name: "list.List", Kind: ShapeNodes, Type: reflect.TypeFor[list.List](), Measure: measureList})
	Register(Shape{Name: "*ring.Ring", Kind: ShapeNodes, Type: reflect.TypeFor[*ring.Ring](), Measure: measureRing})
	Register(Shape{Name: "sync.Map", Kind: ShapeHashTable, Type: reflect.TypeFor[sync.Map](), Measure: measureSyncMap})
	Register(Shape{Name: "atomic.Value", Kind: ShapeInterior, Type: reflect.TypeFor[atomic.Value](), Measure: measureAtomicValue})

	Register(Shape{Name: "weak.Pointer", Kind: ShapeWeak, Match: generic("weak", "Pointer["), Measure: measureNothing})
	Register(Shape{Name: "atomic.Pointer", Kind: ShapeInterior, Match: generic("sync/atomic", "Pointer["), Measure: measureAtomicPointer})
	Register(Shape{Name: "sql.Null", Kind: ShapeOptional, Match: sqlNull, Measure: measureSQLNull})
}

func measureNothing(Walker, reflect.Value) Measure { return Measure{} }

// generic matches instantiations of a generic type.
func generic(pkgPath, prefix string) func(reflect.Type) bool {
	return func(t reflect.Type) bool {
		return t.PkgPath() == pkgPath && strings.HasPrefix(t.Name(), prefix)
	}
}

func sqlNull(t reflect.Type) bool {
	if t.PkgPath() != "database/sql" || t.Kind() != reflect.Struct || t.NumField() != 2 {
		return false
	}
	f, ok := t.FieldByName("Valid")
	return ok && f.Type.Kind() == reflect.Bool && f.Index[0] == 1
}

func measureSQLNull(w Walker, v reflect.Value) Measure {
	if !v.Field(1).Bool() {
		return Measure{}
	}
	return Measure{Present: true, Sample: w.Heap(v.Field(0))}
}

// measureBuf reads the capacity of the unexported buf field shared by the
// standard buffered types.
func measureBuf(_ Walker, v reflect.Value) Measure {
	return Measure{Cap: v.FieldByName("buf").Cap()}
}

var listElementSize = int(reflect.TypeFor[list.Element]().Size())

func measureList(w Walker, v reflect.Value) Measure {
	n := int(v.FieldByName("len").Int())
	if n == 0 {
		return Measure{}
	}
	first := v.FieldByName("root").FieldByName("next")
	if first.IsNil() {
		return Measure{Len: n, Sample: listElementSize}
	}
	return Measure{Len: n, Sample: listElementSize + w.Heap(first.Elem().FieldByName("Value"))}
}

var (
	ringSize = int(reflect.TypeFor[ring.Ring]().Size())
	ringNext = fieldIndex(reflect.TypeFor[ring.Ring](), "next")
)

func fieldIndex(t reflect.Type, name string) int {
	f, ok := t.FieldByName(name)
	if !ok {
		panic("heapsize: " + t.String() + " has no field " + name)
	}
	return f.Index[0]
}

// measureRing measures every node of the ring a pointer leads into, the
// pointee included. Counting follows the ring once; node values are sampled.
func measureRing(w Walker, v reflect.Value) Measure {
	if v.IsNil() {
		return Measure{}
	}
	start := v.UnsafePointer()
	if g, ok := w.(pathGuard); ok {
		if !g.enter(start) {
			return Measure{}
		}
		defer g.leave(start)
	}
	// Len would initialize a zero Ring in place.
	n := 0
	for p := v; !p.IsNil(); {
		n++
		p = p.Elem().Field(ringNext)
		if p.UnsafePointer() == start {
			break
		}
	}
	return Measure{Len: n, Sample: ringSize + w.Heap(v.Elem().FieldByName("Value"))}
}

// syncMapEntry approximates the storage of one sync.Map entry: a node holding
// the key and value interfaces and a link to the next node.
var syncMapEntry = 2*int(reflect.TypeFor[any]().Size()) + int(unsafe.Sizeof(uintptr(0)))

// measureSyncMap counts the entries with Range, which visits every entry; the
// first entry is the sample.
func measureSyncMap(w Walker, v reflect.Value) Measure {
	if !v.CanAddr() || !v.CanInterface() {
		return Measure{}
	}
	m := v.Addr().Interface().(*sync.Map)
	var (
		n      int
		sample int
	)
	m.Range(func(key, value any) bool {
		if n == 0 {
			sample = boxed(w, reflect.ValueOf(key)) + boxed(w, reflect.ValueOf(value))
		}
		n++
		return true
	})
	return Measure{Len: n, Cap: n, ElemSize: syncMapEntry, Sample: sample}
}

func measureAtomicPointer(w Walker, v reflect.Value) Measure {
	load := method(v, "Load")
	if !load.IsValid() {
		return Measure{}
	}
	p := load.Call(nil)[0]
	if p.IsNil() {
		return Measure{}
	}
	return Measure{Present: true, Sample: w.Total(p.Elem())}
}

func measureAtomicValue(w Walker, v reflect.Value) Measure {
	load := method(v, "Load")
	if !load.IsValid() {
		return Measure{}
	}
	x := load.Call(nil)[0]
	if x.IsNil() {
		return Measure{}
	}
	return Measure{Present: true, Sample: boxed(w, x.Elem())}
}

// boxed returns the bytes an interface owns for its dynamic value e.
func boxed(w Walker, e reflect.Value) int {
	switch e.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return w.Heap(e)
	default:
		return w.Total(e)
	}
}
