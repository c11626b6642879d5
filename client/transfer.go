package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rcoop/beaconbench/internal/protocol"
	"github.com/rcoop/beaconbench/internal/sockopt"
)

// DefaultIdleTimeout ends a UDP session that has gone quiet.
const DefaultIdleTimeout = time.Second

// Role tells which transport a Result belongs to.
type Role string

const (
	RoleTCP Role = "TCP"
	RoleUDP Role = "UDP"
)

// Status is the outcome of one transfer.
type Status int

const (
	StatusCompleted Status = iota // every byte or segment arrived
	StatusShort                   // the transfer ended early without an error
	StatusFailed                  // an I/O error ended the transfer
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusShort:
		return "short"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Result is the measurement of one connection.
type Result struct {
	Role    Role
	Index   int // 1-based within its role
	Status  Status
	Elapsed time.Duration
	Bytes   uint64

	// UDP only.
	Segments      int
	TotalSegments uint64
	Duplicates    int
	Loss          float64

	Err error
}

// Throughput returns bits per second over Elapsed, 0 if nothing was timed.
func (r Result) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Bytes) * 8 / r.Elapsed.Seconds()
}

// Transport runs single transfers against one server. TCP and UDP never
// return an error; failures are reported through Result.Status and Err.
type Transport interface {
	TCP(ctx context.Context, index int, size uint64) Result
	UDP(ctx context.Context, index int, size uint64) Result
}

// NetTransport is the Transport that talks to a discovered server.
type NetTransport struct {
	Server      ServerInfo
	DialTimeout time.Duration
	IdleTimeout time.Duration // UDP session ends after this long without a segment
	Log         log.FieldLogger
}

// TCP requests size bytes over one TCP connection and counts what arrives
// until size is reached or the server closes the stream.
func (t *NetTransport) TCP(ctx context.Context, index int, size uint64) Result {
	res := Result{Role: RoleTCP, Index: index}
	entry := t.Log.WithFields(log.Fields{"proto": "tcp", "conn": index})

	d := net.Dialer{Timeout: t.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.Server.TCPAddr())
	if err != nil {
		return t.fail(entry, res, fmt.Errorf("dial: %w", err))
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if tc, ok := conn.(*net.TCPConn); ok {
		sockopt.SetBuffers(tc)
	}

	start := time.Now()
	w := bufio.NewWriter(conn)
	if err := protocol.WriteSizeLine(w, size); err != nil {
		return t.fail(entry, res, fmt.Errorf("sending size: %w", err))
	}
	if err := w.Flush(); err != nil {
		return t.fail(entry, res, fmt.Errorf("sending size: %w", err))
	}

	n, err := io.CopyN(io.Discard, conn, int64(size))
	res.Elapsed = time.Since(start)
	res.Bytes = uint64(n)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return t.fail(entry, res, err)
	}

	if res.Bytes < size {
		res.Status = StatusShort
		entry.Warnf("Received %d of %d bytes", res.Bytes, size)
	}
	entry.Debugf("TCP transfer done: %d bytes in %s", res.Bytes, res.Elapsed)
	return res
}

// UDP sends one Request and receives segments until IdleTimeout passes
// without one. Elapsed runs from the Request to the idle timeout, so it
// includes the final wait.
func (t *NetTransport) UDP(ctx context.Context, index int, size uint64) Result {
	res := Result{Role: RoleUDP, Index: index}
	entry := t.Log.WithFields(log.Fields{"proto": "udp", "conn": index})

	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return t.fail(entry, res, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()
	sockopt.SetBuffers(conn)

	start := time.Now()
	if _, err := conn.WriteToUDP(protocol.Request{FileSize: size}.Marshal(), t.Server.UDPAddr()); err != nil {
		return t.fail(entry, res, fmt.Errorf("sending request: %w", err))
	}

	idle := t.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}

	asm := NewAssembler()
	buf := make([]byte, protocol.MaxDatagram)
	for {
		conn.SetReadDeadline(time.Now().Add(idle))
		// Checked after the deadline so a concurrent cancel cannot be
		// overwritten.
		if ctx.Err() != nil {
			break
		}
		n, _, err := conn.ReadFromUDP(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				break
			}
			res.Elapsed = time.Since(start)
			fillUDP(&res, asm)
			return t.fail(entry, res, err)
		}

		p, err := protocol.ParsePayload(buf[:n])
		if err != nil {
			entry.WithError(err).Debug("Dropping invalid segment")
			continue
		}
		asm.Add(p)
	}
	res.Elapsed = time.Since(start)
	fillUDP(&res, asm)
	if missing := asm.Missing(); len(missing) > 0 {
		entry.Debugf("%d segments missing, first %d", len(missing), missing[0])
	}

	if err := ctx.Err(); err != nil {
		return t.fail(entry, res, err)
	}
	if res.Loss > 0 || (res.Segments == 0 && size > 0) {
		res.Status = StatusShort
	}
	entry.Debugf("UDP transfer done: %d/%d segments in %s", res.Segments, res.TotalSegments, res.Elapsed)
	return res
}

func fillUDP(res *Result, asm *Assembler) {
	res.Bytes = asm.Bytes()
	res.Segments = asm.Received()
	res.TotalSegments = asm.Total()
	res.Duplicates = asm.Duplicates()
	res.Loss = asm.LossPercent()
}

func (t *NetTransport) fail(entry log.FieldLogger, res Result, err error) Result {
	res.Status = StatusFailed
	res.Err = err
	entry.WithError(err).Warn("Transfer failed")
	return res
}
