package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rcoop/beaconbench/internal/protocol"
	"github.com/rcoop/beaconbench/internal/sockopt"
)

// handleTCP serves one TCP transfer: read the size line, write that many
// filler bytes, close.
func (s *Server) handleTCP(ctx context.Context, conn *net.TCPConn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	remote := conn.RemoteAddr().String()
	entry := s.log.WithFields(log.Fields{"proto": "tcp", "remote": remote})
	entry.Debug("TCP connection established")

	conn.SetNoDelay(true)
	sockopt.SetBuffers(conn)

	if s.cfg.RequestTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(s.cfg.RequestTimeout))
	}
	size, err := protocol.ReadSizeLine(bufio.NewReaderSize(conn, 64))
	if err != nil {
		entry.WithError(err).Warn("Invalid TCP request")
		return
	}
	conn.SetReadDeadline(time.Time{})

	if size > math.MaxInt64 {
		entry.Warnf("Requested size %d exceeds the TCP stream limit", size)
		return
	}

	sess := NewSession("tcp", remote, size)
	s.Store.Create(sess)
	defer s.Store.Delete(sess)
	entry.Infof("Requested %d bytes (%d active sessions)", size, s.Store.Len())

	start := time.Now()
	n, err := io.CopyN(conn, protocol.Filler, int64(size))
	if err != nil {
		entry.WithError(err).Warnf("TCP transfer aborted after %d/%d bytes", n, size)
		return
	}
	entry.Infof("Sent %d bytes in %s", n, time.Since(start).Round(time.Millisecond))
}

// handleUDP streams the segments for one Request to addr.
func (s *Server) handleUDP(ctx context.Context, addr *net.UDPAddr, size uint64) {
	entry := s.log.WithFields(log.Fields{"proto": "udp", "remote": addr.String()})
	seg := Segmenter{Size: size, SegmentSize: s.cfg.SegmentSize}

	sess := NewSession("udp", addr.String(), size)
	s.Store.Create(sess)
	defer s.Store.Delete(sess)
	entry.Infof("Valid UDP request for %d bytes, %d segments (%d active sessions)",
		size, seg.Count(), s.Store.Len())

	start := time.Now()
	sent, err := sendSegments(ctx, s.udpConn, addr, seg, s.cfg.SegmentPacing)
	if err != nil {
		if ctx.Err() == nil {
			entry.WithError(err).Warnf("UDP transfer aborted after %d/%d segments", sent, seg.Count())
		}
		return
	}
	entry.Infof("Sent %d segments in %s", sent, time.Since(start).Round(time.Millisecond))
}

func (s *Server) describe() string {
	return fmt.Sprintf("tcp %s, udp %s", s.tcpLn.Addr(), s.udpConn.LocalAddr())
}
