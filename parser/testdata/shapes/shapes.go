package shapes

import (
	"bytes"
	"time"

	sz "github.com/example/sizes"
	lru "github.com/hashicorp/golang-lru/v2"
)

var _ = sz.Buffer

//heapsize:all
type Record struct {
	Name    string
	Payload []byte       `heapsize:"skip"`
	Buf     bytes.Buffer `heapsize:"with=sz.Buffer"`
	a, b    []int
	_       [8]byte
	time.Time
	*Inner
}

type Inner struct {
	Data []byte `heapsize:""`
	Seen time.Time
}

// Plain has no annotations and is not selected.
type Plain struct {
	Data []byte
}

// Shape is a sealed union.
//
//heapsize:all
type Shape interface {
	isShape()
}

type Circle struct {
	Radius float64
}

func (Circle) isShape() {}

//heapsize:skip
type Polygon struct {
	Points [][2]float64
}

func (*Polygon) isShape() {}

//heapsize:all
type Number interface {
	~int | ~float64
}

//heapsize:all
type Opt[T any] interface {
	Get() T
}

//heapsize:all
type Names []string

//heapsize:all
type Pair[K comparable, V any] struct {
	Key K
	Val V
}

type Tagged struct {
	Keys  []string                `json:"keys" heapsize:"include"`
	Cache *lru.Cache[string, int] `heapsize:"with=github.com/example/sizes.LRU" heapsize:"skip"`
}
