// Package example is a small document store whose types carry heapsize
// annotations. heapsize_gen.go is produced by running go generate.
package example

//go:generate go run github.com/mlwelles/heapsizegen

import (
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"google.golang.org/protobuf/types/known/structpb"

	_ "github.com/mlwelles/heapsizegen/heapsize/lrusize"
	_ "github.com/mlwelles/heapsizegen/heapsize/protosize"
)

// Document is a stored document. Scratch space used while rendering is not
// counted.
//
//heapsize:all
type Document struct {
	ID      int64
	Title   string
	Body    []byte
	Tags    []string `heapsize:"with=github.com/mlwelles/heapsizegen/example/sizes.Strings"`
	Meta    map[string]*structpb.Value
	Created time.Time
	scratch []byte `heapsize:"skip"`
	Revision
}

// Revision records who last changed a document.
type Revision struct {
	Author string `heapsize:""`
	Number int
}

// Store holds documents and a cache of rendered bodies.
type Store struct {
	Name  string                     `heapsize:"include"`
	Docs  []*Document                `heapsize:"include"`
	Cache *lru.Cache[string, []byte] `heapsize:"include"`
	Index map[string][]int64         `heapsize:"with=countIndex"`
	hits  int64
}

// NewStore returns an empty store caching up to size rendered bodies.
func NewStore(name string, size int) (*Store, error) {
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Store{
		Name:  name,
		Cache: cache,
		Index: make(map[string][]int64),
	}, nil
}

// Add stores doc and indexes it by its tags.
func (s *Store) Add(doc *Document) {
	s.Docs = append(s.Docs, doc)
	for _, tag := range doc.Tags {
		s.Index[tag] = append(s.Index[tag], doc.ID)
	}
}

// Render returns the body of the document with the given ID, caching it.
func (s *Store) Render(id int64) ([]byte, bool) {
	key := strconv.FormatInt(id, 10)
	if body, ok := s.Cache.Get(key); ok {
		s.hits++
		return body, true
	}
	for _, doc := range s.Docs {
		if doc.ID == id {
			s.Cache.Add(key, doc.Body)
			return doc.Body, true
		}
	}
	return nil, false
}

// countIndex counts the postings of every key. The map's table is left to the
// estimate of the enclosing Store's owner.
func countIndex(m *map[string][]int64) int {
	var n int
	for k, ids := range *m {
		n += len(k) + cap(ids)*8
	}
	return n
}

// Entry pairs a key with a value.
//
//heapsize:all
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Event is a change to the store.
//
//heapsize:all
type Event interface {
	event()
}

// Created reports a new document.
type Created struct {
	Doc *Document
}

func (Created) event() {}

// Deleted reports a removed document. Only the reason is counted.
//
//heapsize:skip
type Deleted struct {
	ID     int64
	Reason string `heapsize:""`
}

func (*Deleted) event() {}

// Renamed reports a title change.
type Renamed struct {
	From, To string
	Note     string `heapsize:"skip"`
}

func (Renamed) event() {}

// Hook observes events. No type in this package implements it.
//
//heapsize:all
type Hook interface {
	Observe(Event)
}

// Marker carries no data.
//
//heapsize:all
type Marker struct{}
