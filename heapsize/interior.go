package heapsize

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"unsafe"
)

// ErrPoisoned reports a lock whose holder panicked while mutating the value.
var ErrPoisoned = errors.New("heapsize: lock poisoned")

// ErrUnreachable reports a lock held in a read-only copy the walker cannot
// take the address of.
var ErrUnreachable = errors.New("heapsize: lock not addressable")

func init() {
	pkg := reflect.TypeFor[Locked[struct{}]]().PkgPath()
	Register(Shape{Name: "heapsize.Locked", Kind: ShapeInterior, Match: generic(pkg, "Locked["), Measure: measureGuarded})
	Register(Shape{Name: "heapsize.RWLocked", Kind: ShapeInterior, Match: generic(pkg, "RWLocked["), Measure: measureGuarded})
}

// guarded is implemented by *Locked and *RWLocked. A wrapper boxed in an
// interface or stored in a map is reached without its HeapSize method; the
// registered shapes still lock it and check it for poisoning.
type guarded interface {
	measure() Measure
}

func measureGuarded(_ Walker, v reflect.Value) Measure {
	if !v.CanAddr() {
		panic(&FatalError{Type: v.Type().String(), Err: ErrUnreachable})
	}
	p := reflect.NewAt(v.Type(), unsafe.Pointer(v.UnsafeAddr()))
	return p.Interface().(guarded).measure()
}

// FatalError is the panic value of a measurement that cannot produce a
// meaningful number. Use TryOf to receive it as an error.
type FatalError struct {
	Type string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("heapsize: measuring %s: %v", e.Type, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Locked guards one value with a mutex. The zero value holds the zero T.
type Locked[T any] struct {
	mu       sync.Mutex
	value    T
	poisoned bool
}

// NewLocked returns a Locked holding v.
func NewLocked[T any](v T) *Locked[T] {
	return &Locked[T]{value: v}
}

// With runs fn with exclusive access to the value. If fn panics the lock is
// poisoned and the panic continues.
func (l *Locked[T]) With(fn func(*T)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer poisonOnPanic(&l.poisoned)
	fn(&l.value)
}

// HeapSize returns the total size of the held value. It blocks while another
// goroutine holds the lock and panics with a *FatalError if the lock is
// poisoned.
func (l *Locked[T]) HeapSize() int {
	m := l.measure()
	return Interior(m.Present, m.Sample)
}

func (l *Locked[T]) measure() Measure {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.poisoned {
		panic(&FatalError{Type: fmt.Sprintf("%T", l), Err: ErrPoisoned})
	}
	return Measure{Present: true, Sample: Total(&l.value)}
}

// RWLocked guards one value with a reader/writer mutex.
type RWLocked[T any] struct {
	mu       sync.RWMutex
	value    T
	poisoned bool
}

// NewRWLocked returns an RWLocked holding v.
func NewRWLocked[T any](v T) *RWLocked[T] {
	return &RWLocked[T]{value: v}
}

// Read runs fn with shared access to the value.
func (l *RWLocked[T]) Read(fn func(*T)) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fn(&l.value)
}

// Write runs fn with exclusive access to the value. If fn panics the lock is
// poisoned and the panic continues.
func (l *RWLocked[T]) Write(fn func(*T)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer poisonOnPanic(&l.poisoned)
	fn(&l.value)
}

// HeapSize returns the total size of the held value under a read lock.
func (l *RWLocked[T]) HeapSize() int {
	m := l.measure()
	return Interior(m.Present, m.Sample)
}

func (l *RWLocked[T]) measure() Measure {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.poisoned {
		panic(&FatalError{Type: fmt.Sprintf("%T", l), Err: ErrPoisoned})
	}
	return Measure{Present: true, Sample: Total(&l.value)}
}

func poisonOnPanic(poisoned *bool) {
	if r := recover(); r != nil {
		*poisoned = true
		panic(r)
	}
}
