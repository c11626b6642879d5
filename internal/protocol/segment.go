package protocol

// SegmentCount returns how many segments of the given capacity carry size
// bytes: ceil(size / capacity). A zero-byte transfer has no segments.
func SegmentCount(size uint64, capacity int) uint64 {
	if capacity <= 0 {
		return 0
	}
	c := uint64(capacity)
	return size/c + boolToUint(size%c != 0)
}

// SegmentLen returns the payload length of segment index. Every segment but
// the last is exactly capacity bytes long.
func SegmentLen(size, index uint64, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	start := index * uint64(capacity)
	if start >= size {
		return 0
	}
	if rest := size - start; rest < uint64(capacity) {
		return int(rest)
	}
	return capacity
}

func boolToUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// fillByte is the synthetic content of every transfer.
const fillByte = '0'

// Filler is an endless reader of synthetic transfer content.
var Filler fillReader

type fillReader struct{}

func (fillReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = fillByte
	}
	return len(p), nil
}

// Fill overwrites b with synthetic content.
func Fill(b []byte) {
	Filler.Read(b)
}
