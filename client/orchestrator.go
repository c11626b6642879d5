package client

import (
	"context"
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Params describe one benchmark round.
type Params struct {
	FileSize uint64
	TCPConns int
	UDPConns int
}

// Validate checks that every field is a positive number the protocol can
// carry.
func (p Params) Validate() error {
	if p.FileSize == 0 {
		return &InputError{Field: "file size", Msg: "must be positive"}
	}
	if p.FileSize > math.MaxInt64 {
		return &InputError{Field: "file size", Msg: fmt.Sprintf("must not exceed %d", int64(math.MaxInt64))}
	}
	if p.TCPConns <= 0 {
		return &InputError{Field: "TCP connections", Msg: "must be positive"}
	}
	if p.UDPConns <= 0 {
		return &InputError{Field: "UDP connections", Msg: "must be positive"}
	}
	return nil
}

// Orchestrator fans a round out over its Transport.
type Orchestrator struct {
	Transport Transport
	Log       log.FieldLogger
}

// Run starts every TCP and UDP transfer at once, each in its own goroutine,
// and returns when all have finished. A failing transfer never stops its
// siblings. Negative counts run no transfers of that kind.
func (o *Orchestrator) Run(ctx context.Context, p Params) *Report {
	p.TCPConns = max(p.TCPConns, 0)
	p.UDPConns = max(p.UDPConns, 0)
	results := make([]Result, p.TCPConns+p.UDPConns)

	var g errgroup.Group
	for i := 0; i < p.TCPConns; i++ {
		i := i
		g.Go(func() error {
			results[i] = o.Transport.TCP(ctx, i+1, p.FileSize)
			return nil
		})
	}
	for i := 0; i < p.UDPConns; i++ {
		i := i
		g.Go(func() error {
			results[p.TCPConns+i] = o.Transport.UDP(ctx, i+1, p.FileSize)
			return nil
		})
	}
	o.Log.Debugf("Started %d TCP and %d UDP transfers of %d bytes", p.TCPConns, p.UDPConns, p.FileSize)
	g.Wait()

	return NewReport(p, results)
}
