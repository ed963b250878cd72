// Package protosize teaches heapsize to measure generated protobuf messages.
//
// Import it for its side effect:
//
//	import _ "github.com/mlwelles/heapsizegen/heapsize/protosize"
//
// Generated message structs carry runtime bookkeeping (message state, cached
// sizes, lazily built extension maps) that points into process-wide
// descriptors. The registered shape sums the user-visible fields and the
// retained unknown fields and ignores the rest.
package protosize

import (
	"reflect"

	"google.golang.org/protobuf/proto"

	"github.com/mlwelles/heapsizegen/heapsize"
)

var messageType = reflect.TypeFor[proto.Message]()

// internal fields of generated messages that the message does not own
var bookkeeping = map[string]bool{
	"state":           true,
	"sizeCache":       true,
	"extensionFields": true,
	"weakFields":      true,
}

func init() {
	heapsize.Register(heapsize.Shape{
		Name:    "protobuf message",
		Kind:    heapsize.ShapeTuple,
		Match:   IsMessage,
		Measure: measureMessage,
	})
}

// IsMessage reports whether t is a generated message struct, i.e. *t
// implements proto.Message.
func IsMessage(t reflect.Type) bool {
	return t.Kind() == reflect.Struct && reflect.PointerTo(t).Implements(messageType)
}

func measureMessage(w heapsize.Walker, v reflect.Value) heapsize.Measure {
	t := v.Type()
	var sum int
	for i := range t.NumField() {
		if bookkeeping[t.Field(i).Name] {
			continue
		}
		sum += w.Heap(v.Field(i))
	}
	return heapsize.Measure{Sample: sum}
}
