package heapsize

import (
	"reflect"
	"unsafe"
)

// Sizer is implemented by types that report their own heap-owned bytes.
type Sizer interface {
	HeapSize() int
}

var sizerType = reflect.TypeFor[Sizer]()

// Of returns the number of bytes *v owns on the heap. A nil v owns nothing.
func Of[T any](v *T) int {
	if v == nil {
		return 0
	}
	if s, ok := any(v).(Sizer); ok && owns(reflect.TypeFor[T]()) {
		return s.HeapSize()
	}
	var w walker
	return w.Heap(reflect.ValueOf(v).Elem())
}

// Total returns the static size of T plus the heap-owned bytes of *v.
func Total[T any](v *T) int {
	return StaticSize[T]() + Of(v)
}

// StaticSize returns the fixed-size storage footprint of T.
func StaticSize[T any]() int {
	return int(reflect.TypeFor[T]().Size())
}

// TryOf is Of for callers that cannot tolerate a fatal measurement. It returns
// the *FatalError instead of panicking; other panics are not recovered.
func TryOf[T any](v *T) (n int, err error) {
	defer func() {
		if r := recover(); r != nil {
			fe, ok := r.(*FatalError)
			if !ok {
				panic(r)
			}
			n, err = 0, fe
		}
	}()
	return Of(v), nil
}

// OfValue returns the heap-owned bytes of a reflected value.
func OfValue(v reflect.Value) int {
	var w walker
	return w.Heap(v)
}

// walker is the reflective evaluator. It remembers the pointers on the current
// path so that cyclic graphs terminate.
type walker struct {
	path map[unsafe.Pointer]struct{}
}

func (w *walker) Total(v reflect.Value) int {
	if !v.IsValid() {
		return 0
	}
	return int(v.Type().Size()) + w.Heap(v)
}

func (w *walker) Heap(v reflect.Value) int {
	if !v.IsValid() {
		return 0
	}
	v = addressable(expose(v))

	if s := lookup(v.Type()); s != nil {
		return s.heap(w, v)
	}
	if k := v.Kind(); k != reflect.Pointer && k != reflect.Interface {
		if n, ok := w.sizer(v); ok {
			return n
		}
	}
	s := kindShapes[v.Kind()]
	if s == nil {
		return 0
	}
	return s.heap(w, v)
}

func (w *walker) sizer(v reflect.Value) (int, bool) {
	if !v.CanInterface() {
		return 0, false
	}
	t := v.Type()
	if !owns(t) {
		return 0, false
	}
	if t.Implements(sizerType) {
		return v.Interface().(Sizer).HeapSize(), true
	}
	if !reflect.PointerTo(t).Implements(sizerType) {
		return 0, false
	}
	if v.CanAddr() {
		return v.Addr().Interface().(Sizer).HeapSize(), true
	}
	c := reflect.New(t)
	c.Elem().Set(v)
	return c.Interface().(Sizer).HeapSize(), true
}

func (w *walker) enter(p unsafe.Pointer) bool {
	if _, ok := w.path[p]; ok {
		return false
	}
	if w.path == nil {
		w.path = make(map[unsafe.Pointer]struct{})
	}
	w.path[p] = struct{}{}
	return true
}

func (w *walker) leave(p unsafe.Pointer) {
	delete(w.path, p)
}

// expose lifts the read-only flag reflect puts on values reached through
// unexported fields, so that their methods can be called. Only addressable
// values can be exposed; values derived from an exposed value inherit it.
func expose(v reflect.Value) reflect.Value {
	if v.CanInterface() || !v.CanAddr() {
		return v
	}
	return reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr())).Elem()
}

// addressable returns v when it is addressable and otherwise a copy of it in
// fresh storage. Map entries, interface contents and call results are not
// addressable; copying them keeps every struct and array the walker descends
// into addressable, so fields reached through unexported names can still be
// exposed. Read-only values that are not addressable cannot be copied and are
// returned as is.
func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() || !v.CanInterface() {
		return v
	}
	if k := v.Kind(); k != reflect.Struct && k != reflect.Array {
		return v
	}
	c := reflect.New(v.Type()).Elem()
	c.Set(v)
	return c
}

// method returns the named method of v, taking v's address when the method has
// a pointer receiver. The result is invalid if v has no such method or is a
// read-only value that cannot be copied.
func method(v reflect.Value, name string) reflect.Value {
	if m := v.MethodByName(name); m.IsValid() {
		return m
	}
	if v.CanAddr() {
		return v.Addr().MethodByName(name)
	}
	if !v.CanInterface() {
		return reflect.Value{}
	}
	c := reflect.New(v.Type())
	c.Elem().Set(v)
	return c.MethodByName(name)
}
