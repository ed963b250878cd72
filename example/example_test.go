package example

import (
	"testing"
	"unsafe"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mlwelles/heapsizegen/heapsize"
	"github.com/mlwelles/heapsizegen/heapsize/lrusize"
)

var stringHeader = int(unsafe.Sizeof(""))

func newDocument() *Document {
	return &Document{
		ID:       7,
		Title:    "hello",
		Body:     make([]byte, 10),
		Tags:     []string{"a", "bc"},
		scratch:  make([]byte, 100),
		Revision: Revision{Author: "z", Number: 3},
	}
}

func TestDocument(t *testing.T) {
	d := newDocument()
	tags := 2*stringHeader + 3
	assert.Equal(t, 5+10+tags+1, d.HeapSize())

	t.Run("skipped fields do not count", func(t *testing.T) {
		before := d.HeapSize()
		d.scratch = make([]byte, 1000)
		assert.Equal(t, before, d.HeapSize())
	})

	t.Run("protobuf values in a map", func(t *testing.T) {
		v := structpb.NewStringValue("abc")
		d := newDocument()
		base := d.HeapSize()
		d.Meta = map[string]*structpb.Value{"k": v}

		table := 8 * (stringHeader + int(unsafe.Sizeof(v)))
		assert.Equal(t, base+table+1+heapsize.Total(v), d.HeapSize())
	})

	t.Run("nil receiver", func(t *testing.T) {
		var p *Document
		assert.Zero(t, p.HeapSize())
	})

	t.Run("generated method is the evaluator's answer", func(t *testing.T) {
		assert.Equal(t, d.HeapSize(), heapsize.Of(d))
		assert.Equal(t, heapsize.StaticSize[Document]()+d.HeapSize(), heapsize.Total(d))
	})
}

// annotated embeds a generated type without being generated itself.
type annotated struct {
	Revision
	Big []byte
}

func TestEmbeddedGeneratedType(t *testing.T) {
	a := annotated{Revision: Revision{Author: "z"}, Big: make([]byte, 1000)}
	assert.Equal(t, 1, a.HeapSize(), "promoted from Revision")
	assert.Equal(t, 1001, heapsize.Of(&a))

	// Document embeds Revision too, but declares its own method
	d := newDocument()
	assert.Equal(t, d.HeapSize(), heapsize.Of(d))
	docs := []Document{*d}
	assert.Equal(t, heapsize.StaticSize[Document]()+d.HeapSize(), heapsize.Of(&docs))
}

func TestStore(t *testing.T) {
	s, err := NewStore("docs", 4)
	require.NoError(t, err)
	d := newDocument()
	s.Add(d)

	ptr := int(unsafe.Sizeof(d))
	docs := ptr + heapsize.Total(d)
	cache := heapsize.StaticSize[lru.Cache[string, []byte]]()
	index := (1 + 8) + (2 + 8)
	assert.Equal(t, 4+docs+cache+index, s.HeapSize())

	// a cached body is counted once per holder
	before := s.HeapSize()
	body, ok := s.Render(d.ID)
	require.True(t, ok)
	require.Len(t, body, 10)
	entry := lrusize.EntryOverhead + (stringHeader + 1) + stringHeader + (int(unsafe.Sizeof(body)) + 10)
	assert.Equal(t, before+entry, s.HeapSize())

	// hits are not counted
	_, ok = s.Render(d.ID)
	require.True(t, ok)
	assert.Equal(t, before+entry, s.HeapSize())
}

func TestEntry(t *testing.T) {
	e := Entry[string, []byte]{Key: "ab", Value: make([]byte, 0, 8)}
	assert.Equal(t, 10, e.HeapSize())

	n := Entry[int, *[4]int64]{Key: 1, Value: new([4]int64)}
	assert.Equal(t, 32, n.HeapSize())
}

func TestEvents(t *testing.T) {
	d := newDocument()
	tests := []struct {
		name  string
		event Event
		want  int
	}{
		{"created by value", Created{Doc: d}, heapsize.Total(d)},
		{"created by pointer", &Created{Doc: d}, heapsize.Total(d)},
		{"deleted counts only the reason", &Deleted{ID: 1, Reason: "gone"}, 4},
		{"renamed skips the note", Renamed{From: "a", To: "bc", Note: "ignored"}, 3},
		{"renamed by pointer", &Renamed{From: "a", To: "bc"}, 3},
		{"nil pointer variant", (*Renamed)(nil), 0},
		{"nil union", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HeapSizeOfEvent(tt.event))
		})
	}

	var e Event = &Renamed{From: "a", To: "bc"}
	assert.Equal(t, heapsize.Total(e.(*Renamed)), heapsize.Of(&e), "an interface holding a pointer owns the pointee")
}

func TestEmptyTypes(t *testing.T) {
	assert.Zero(t, HeapSizeOfHook(nil))
	assert.Zero(t, (&Marker{}).HeapSize())
	assert.Zero(t, (&Revision{Number: 9}).HeapSize())
}
