package client

import (
	"github.com/rcoop/beaconbench/internal/protocol"
)

// Assembler does the loss accounting for one UDP session. Segments are
// tracked by index, so reordering and duplicates are handled without any
// assumption about arrival order. Payload content is discarded.
type Assembler struct {
	received   map[uint64]struct{}
	total      uint64
	bytes      uint64
	duplicates int
}

// NewAssembler creates an empty assembler.
func NewAssembler() *Assembler {
	return &Assembler{received: make(map[uint64]struct{})}
}

// Add records p. It returns false if the segment index was already seen; a
// duplicate counts neither towards the received set nor the byte total.
func (a *Assembler) Add(p *protocol.Payload) bool {
	// All segments of a session announce the same total; the latest wins.
	a.total = p.TotalSegments

	if _, ok := a.received[p.Index]; ok {
		a.duplicates++
		return false
	}
	a.received[p.Index] = struct{}{}
	a.bytes += uint64(len(p.Data))
	return true
}

// Received returns the number of distinct segments seen.
func (a *Assembler) Received() int {
	return len(a.received)
}

// Total returns the segment count announced by the sender, 0 if nothing
// arrived.
func (a *Assembler) Total() uint64 {
	return a.total
}

// Bytes returns the payload bytes of the distinct segments.
func (a *Assembler) Bytes() uint64 {
	return a.bytes
}

// Duplicates returns how many segments arrived more than once.
func (a *Assembler) Duplicates() int {
	return a.duplicates
}

// Missing returns the indices below Total that never arrived, in order.
func (a *Assembler) Missing() []uint64 {
	var missing []uint64
	for i := uint64(0); i < a.total; i++ {
		if _, ok := a.received[i]; !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

// LossPercent returns 100 * (1 - received/total). A session in which nothing
// was announced reports 0, the same as a lossless one.
func (a *Assembler) LossPercent() float64 {
	if a.total == 0 {
		return 0
	}

	var got uint64
	for i := range a.received {
		if i < a.total {
			got++
		}
	}
	return 100 * (1 - float64(got)/float64(a.total))
}
