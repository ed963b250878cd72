package conflict

//heapsize:all
type Named interface {
	Name() string
}

//heapsize:all
type Labeled interface {
	Name() string
}

type Both struct {
	Value string
}

func (Both) Name() string { return "" }
