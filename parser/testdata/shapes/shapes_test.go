package shapes

//heapsize:all
type fixture struct {
	Data []byte
}
