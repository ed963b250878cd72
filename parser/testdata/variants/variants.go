package variants

// Value is a sealed union with a non-struct member.
//
//heapsize:all
type Value interface {
	isValue()
}

type Text struct {
	S string
}

func (Text) isValue() {}

type Names []string

func (Names) isValue() {}

type Code int

func (*Code) isValue() {}
