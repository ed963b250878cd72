package heapsize

import (
	"reflect"
	"sync"
)

var (
	declared sync.Map // reflect.Type -> struct{}
	owners   sync.Map // reflect.Type -> bool
)

// Declare records that T declares its own HeapSize method. A struct that
// embeds a Sizer gets the embedded HeapSize promoted into its method set, and
// that method measures only the embedded field. Such a struct is measured
// field by field unless it is declared. Generated code declares the types it
// writes methods for; hand-written Sizers on structs with an embedded Sizer
// must call Declare themselves.
func Declare[T any]() {
	declared.Store(reflect.TypeFor[T](), struct{}{})
	owners.Clear()
}

// owns reports whether the HeapSize in the method set of t or *t can be taken
// as t's own.
func owns(t reflect.Type) bool {
	if v, ok := owners.Load(t); ok {
		return v.(bool)
	}
	_, ok := declared.Load(t)
	ok = ok || !embedsSizer(t)
	owners.Store(t, ok)
	return ok
}

func embedsSizer(t reflect.Type) bool {
	if t.Kind() != reflect.Struct {
		return false
	}
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		if f.Type.Implements(sizerType) || (f.Type.Kind() != reflect.Pointer && reflect.PointerTo(f.Type).Implements(sizerType)) {
			return true
		}
	}
	return false
}
