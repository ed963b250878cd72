package heapsize

import (
	"reflect"
	"sync"
)

// Walker measures nested values on behalf of a shape.
type Walker interface {
	// Heap returns the heap-owned bytes of v.
	Heap(v reflect.Value) int
	// Total returns the static size of v's type plus Heap(v).
	Total(v reflect.Value) int
}

// Shape is an entry of the aggregation table. Exactly one of Type and Match
// selects the values it applies to; Measure reports what Formula(Kind) needs.
type Shape struct {
	Name    string
	Kind    ShapeKind
	Type    reflect.Type
	Match   func(t reflect.Type) bool
	Measure func(w Walker, v reflect.Value) Measure
}

func (s *Shape) heap(w Walker, v reflect.Value) int {
	return Formula(s.Kind)(s.Measure(w, v))
}

var registry = struct {
	sync.RWMutex
	exact    map[reflect.Type]*Shape
	matchers []*Shape
	resolved map[reflect.Type]*Shape // nil entries cache misses
}{
	exact:    make(map[reflect.Type]*Shape),
	resolved: make(map[reflect.Type]*Shape),
}

// Register adds a shape to the table. A shape for an exact type replaces any
// earlier one for the same type; matcher shapes are consulted in registration
// order after exact types. Register panics if the shape has no Measure
// function or selects nothing.
func Register(s Shape) {
	if s.Measure == nil {
		panic("heapsize: Register shape " + s.Name + " without Measure")
	}
	if s.Type == nil && s.Match == nil {
		panic("heapsize: Register shape " + s.Name + " without Type or Match")
	}

	registry.Lock()
	defer registry.Unlock()

	if s.Type != nil {
		registry.exact[s.Type] = &s
	} else {
		registry.matchers = append(registry.matchers, &s)
	}
	clear(registry.resolved)
}

// Lookup returns the registered shape that applies to t, if any.
func Lookup(t reflect.Type) (Shape, bool) {
	s := lookup(t)
	if s == nil {
		return Shape{}, false
	}
	return *s, true
}

func lookup(t reflect.Type) *Shape {
	registry.RLock()
	s, ok := registry.resolved[t]
	registry.RUnlock()
	if ok {
		return s
	}

	registry.Lock()
	defer registry.Unlock()

	s = registry.exact[t]
	if s == nil {
		for _, m := range registry.matchers {
			if m.Match(t) {
				s = m
				break
			}
		}
	}
	registry.resolved[t] = s
	return s
}
