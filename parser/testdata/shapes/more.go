package shapes

type (
	//heapsize:all
	Grouped struct {
		Data map[string][4]int
	}

	Ungrouped struct {
		Data []byte
	}
)
