package server

import (
	"context"
	"net"
	"slices"
	"time"

	"github.com/rcoop/beaconbench/internal/protocol"
)

// Segmenter splits a logical transfer of Size bytes into fixed-size,
// index-numbered Payload segments.
type Segmenter struct {
	Size        uint64
	SegmentSize int
}

// Count returns the total number of segments, announced in every datagram.
func (s Segmenter) Count() uint64 {
	return protocol.SegmentCount(s.Size, s.SegmentSize)
}

// Len returns the payload length of segment i.
func (s Segmenter) Len(i uint64) int {
	return protocol.SegmentLen(s.Size, i, s.SegmentSize)
}

// Datagram encodes segment i into buf[:0] and returns the datagram. buf must
// be reused only after the datagram has been sent.
func (s Segmenter) Datagram(i uint64, buf []byte) []byte {
	p := protocol.Payload{TotalSegments: s.Count(), Index: i}
	buf = p.AppendTo(buf[:0])

	n := s.Len(i)
	buf = slices.Grow(buf, n)[:len(buf)+n]
	protocol.Fill(buf[len(buf)-n:])
	return buf
}

// sendSegments writes every segment in increasing index order to addr. The
// stream is fire-and-forget: nothing is acknowledged or resent. pacing, when
// non-zero, is slept between two sends. It returns the number of segments
// written.
func sendSegments(ctx context.Context, conn *net.UDPConn, addr *net.UDPAddr, seg Segmenter, pacing time.Duration) (uint64, error) {
	total := seg.Count()
	buf := make([]byte, 0, protocol.PayloadHeaderLen+seg.SegmentSize)

	var timer *time.Timer
	if pacing > 0 {
		timer = time.NewTimer(pacing)
		defer timer.Stop()
	}

	for i := uint64(0); i < total; i++ {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		if _, err := conn.WriteToUDP(seg.Datagram(i, buf), addr); err != nil {
			return i, err
		}

		if timer != nil && i+1 < total {
			timer.Reset(pacing)
			select {
			case <-ctx.Done():
				return i + 1, ctx.Err()
			case <-timer.C:
			}
		}
	}
	return total, nil
}
