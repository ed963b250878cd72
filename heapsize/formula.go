package heapsize

// ShapeKind identifies an entry of the aggregation contract.
type ShapeKind int

const (
	ShapeScalar   ShapeKind = iota // fixed-width values, handles
	ShapeSequence                  // growable contiguous sequences
	ShapePointer                   // owning pointers and boxed interface values
	ShapeWeak                      // non-owning references
	ShapeText                      // owned text buffers
	ShapeHashTable                 // hash maps and sets
	ShapeNodes                     // lists, trees and other node-per-element structures
	ShapeOptional                  // values that may be absent
	ShapeInterior                  // locks and cells guarding one value
	ShapeArray                     // fixed-size arrays
	ShapeTuple                     // heterogeneous records
	ShapeBuffer                    // bounded I/O buffers and channels
)

var shapeKindNames = [...]string{
	ShapeScalar:    "scalar",
	ShapeSequence:  "sequence",
	ShapePointer:   "pointer",
	ShapeWeak:      "weak",
	ShapeText:      "text",
	ShapeHashTable: "hash_table",
	ShapeNodes:     "nodes",
	ShapeOptional:  "optional",
	ShapeInterior:  "interior",
	ShapeArray:     "array",
	ShapeTuple:     "tuple",
	ShapeBuffer:    "buffer",
}

func (k ShapeKind) String() string {
	if k >= 0 && int(k) < len(shapeKindNames) {
		return shapeKindNames[k]
	}
	return "unknown"
}

// Measure is what a shape observes about one value. Which fields are meaningful
// depends on the shape kind.
type Measure struct {
	Len      int  // number of elements
	Cap      int  // allocated element slots, or bytes for text and buffers
	ElemSize int  // static size of one slot
	Present  bool // optional, pointer and interior shapes
	Sample   int  // bytes of one representative element, or the exact sum for tuples
}

var formulas = [...]func(Measure) int{
	ShapeScalar:    func(Measure) int { return 0 },
	ShapeSequence:  func(m Measure) int { return Sequence(m.Cap, m.Len, m.ElemSize, m.Sample) },
	ShapePointer:   func(m Measure) int { return Pointer(m.Present, m.Sample) },
	ShapeWeak:      func(Measure) int { return 0 },
	ShapeText:      func(m Measure) int { return Text(m.Cap) },
	ShapeHashTable: func(m Measure) int { return HashTable(m.Cap, m.Len, m.ElemSize, m.Sample) },
	ShapeNodes:     func(m Measure) int { return Nodes(m.Len, m.Sample) },
	ShapeOptional:  func(m Measure) int { return Optional(m.Present, m.Sample) },
	ShapeInterior:  func(m Measure) int { return Interior(m.Present, m.Sample) },
	ShapeArray:     func(m Measure) int { return Array(m.Len, m.Sample) },
	ShapeTuple:     func(m Measure) int { return m.Sample },
	ShapeBuffer:    func(m Measure) int { return Buffer(m.Cap) },
}

// Formula returns the aggregation rule of a shape kind. Unknown kinds count as
// scalars.
func Formula(k ShapeKind) func(Measure) int {
	if k >= 0 && int(k) < len(formulas) {
		return formulas[k]
	}
	return formulas[ShapeScalar]
}

// Sequence is the rule for growable sequences: the whole allocated capacity,
// plus len times the heap bytes of the first element.
func Sequence(capacity, length, elemSize, sampleHeap int) int {
	capBytes := capacity * elemSize
	if length == 0 {
		return capBytes
	}
	return capBytes + length*sampleHeap
}

// HashTable is the rule for hash maps and sets: every allocated slot holds a
// key and a value, plus len times the heap bytes of one sampled entry.
func HashTable(capacity, length, entrySize, sampleHeap int) int {
	capBytes := capacity * entrySize
	if length == 0 {
		return capBytes
	}
	return capBytes + length*sampleHeap
}

// Nodes is the rule for structures that allocate one node per element: len
// times the total bytes of a sampled node.
func Nodes(length, sampleTotal int) int {
	if length == 0 {
		return 0
	}
	return length * sampleTotal
}

// Array is the rule for fixed-size arrays: the elements are stored inline, so
// only their heap bytes count, extrapolated from the first element.
func Array(length, sampleHeap int) int {
	if length == 0 {
		return 0
	}
	return length * sampleHeap
}

// Pointer is the rule for owning pointers: the pointee lives entirely on the
// heap.
func Pointer(present bool, pointeeTotal int) int {
	if !present {
		return 0
	}
	return pointeeTotal
}

// Text is the rule for owned text: allocated capacity in bytes.
func Text(capacity int) int {
	return capacity
}

// Buffer is the rule for bounded buffers: allocated capacity in bytes.
func Buffer(capacity int) int {
	return capacity
}

// Optional is the rule for values that may be absent. An absent or failed
// value owns nothing.
func Optional(present bool, heap int) int {
	if !present {
		return 0
	}
	return heap
}

// Interior is the rule for locks and cells: the total bytes of the value held
// at the time of measurement.
func Interior(present bool, total int) int {
	if !present {
		return 0
	}
	return total
}
