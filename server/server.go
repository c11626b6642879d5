package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rcoop/beaconbench/internal/protocol"
	"github.com/rcoop/beaconbench/internal/sockopt"
)

// Config holds the server configuration.
type Config struct {
	TCPAddr        string        // TCP listen address, port 0 picks one
	UDPAddr        string        // UDP listen address, port 0 picks one
	BeaconTarget   string        // where offers are sent
	BeaconInterval time.Duration // time between two offers
	BeaconTTL      int           // IP TTL of offers, 0 keeps the default
	SegmentSize    int           // payload bytes per UDP segment
	SegmentPacing  time.Duration // delay between two segments, may be 0
	RequestTimeout time.Duration // max wait for a TCP size line, 0 waits forever
}

// DefaultConfig returns the configuration used by cmd/server.
func DefaultConfig() Config {
	return Config{
		TCPAddr:        ":12345",
		UDPAddr:        ":54321",
		BeaconTarget:   fmt.Sprintf("255.255.255.255:%d", protocol.BroadcastPort),
		BeaconInterval: time.Second,
		BeaconTTL:      1,
		SegmentSize:    protocol.SegmentSize,
		RequestTimeout: 10 * time.Second,
	}
}

// Server answers TCP and UDP transfer requests and advertises itself with a
// Beacon. Every connection and every UDP Request is served by its own
// goroutine; there is no limit on how many run at once.
type Server struct {
	cfg   Config
	log   log.FieldLogger
	Store *SessionStore

	tcpLn   *net.TCPListener
	udpConn *net.UDPConn
	target  *net.UDPAddr
	wg      sync.WaitGroup
}

// New creates a server. Call Listen and then Serve, or ListenAndServe.
func New(cfg Config, logger log.FieldLogger) *Server {
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = protocol.SegmentSize
	}
	if cfg.BeaconInterval <= 0 {
		cfg.BeaconInterval = time.Second
	}
	return &Server{
		cfg:   cfg,
		log:   logger,
		Store: NewSessionStore(),
	}
}

// Listen binds the TCP listener and the UDP socket.
func (s *Server) Listen() error {
	if limit := protocol.MaxDatagram - protocol.PayloadHeaderLen; s.cfg.SegmentSize > limit {
		return fmt.Errorf("segment size %d exceeds %d", s.cfg.SegmentSize, limit)
	}

	target, err := net.ResolveUDPAddr("udp4", s.cfg.BeaconTarget)
	if err != nil {
		return fmt.Errorf("beacon target: %w", err)
	}

	tcpAddr, err := net.ResolveTCPAddr("tcp", s.cfg.TCPAddr)
	if err != nil {
		return fmt.Errorf("tcp address: %w", err)
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return err
	}

	udpAddr, err := net.ResolveUDPAddr("udp4", s.cfg.UDPAddr)
	if err != nil {
		ln.Close()
		return fmt.Errorf("udp address: %w", err)
	}
	conn, err := net.ListenUDP("udp4", udpAddr)
	if err != nil {
		ln.Close()
		return err
	}
	sockopt.SetBuffers(conn)

	s.tcpLn = ln
	s.udpConn = conn
	s.target = target
	return nil
}

// TCPAddr returns the bound TCP address. Only valid after Listen.
func (s *Server) TCPAddr() *net.TCPAddr {
	return s.tcpLn.Addr().(*net.TCPAddr)
}

// UDPAddr returns the bound UDP address. Only valid after Listen.
func (s *Server) UDPAddr() *net.UDPAddr {
	return s.udpConn.LocalAddr().(*net.UDPAddr)
}

// Offer returns the announcement for the bound ports.
func (s *Server) Offer() protocol.Offer {
	return protocol.Offer{
		UDPPort: uint16(s.UDPAddr().Port),
		TCPPort: uint16(s.TCPAddr().Port),
	}
}

// Serve runs the beacon, the TCP accept loop and the UDP request loop until
// ctx is done, then closes the sockets and waits for running transfers to
// stop. It returns nil on cancellation.
func (s *Server) Serve(ctx context.Context) error {
	s.log.Infof("Server listening on %s", s.describe())

	// Transfers outlive gctx until their sessions have been logged.
	hctx, stopHandlers := context.WithCancel(context.WithoutCancel(ctx))
	defer stopHandlers()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		for _, sess := range s.Store.Snapshot() {
			s.log.WithFields(log.Fields{"proto": sess.Proto, "remote": sess.Remote}).
				Infof("Interrupting %d byte transfer running for %s",
					sess.Size, time.Since(sess.CreatedAt).Round(time.Millisecond))
		}
		stopHandlers()
		s.tcpLn.Close()
		s.udpConn.Close()
		return nil
	})
	g.Go(func() error {
		b := &Beacon{
			Target:   s.target,
			Interval: s.cfg.BeaconInterval,
			TTL:      s.cfg.BeaconTTL,
			Offer:    s.Offer(),
			Log:      s.log,
		}
		return b.Run(gctx)
	})
	g.Go(func() error { return s.acceptLoop(gctx, hctx) })
	g.Go(func() error { return s.udpLoop(gctx, hctx) })

	err := g.Wait()
	s.wg.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// ListenAndServe is Listen followed by Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

func (s *Server) acceptLoop(ctx, hctx context.Context) error {
	for {
		conn, err := s.tcpLn.AcceptTCP()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.log.WithError(err).Warn("Accept failed")
			time.Sleep(50 * time.Millisecond)
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleTCP(hctx, conn)
		}()
	}
}

func (s *Server) udpLoop(ctx, hctx context.Context) error {
	buf := make([]byte, protocol.MaxDatagram)
	for {
		n, addr, err := s.udpConn.ReadFromUDP(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.log.WithError(err).Warn("UDP receive failed")
			continue
		}

		req, err := protocol.ParseRequest(buf[:n])
		if err != nil {
			s.log.WithFields(log.Fields{"proto": "udp", "remote": addr.String()}).
				WithError(err).Warn("Invalid UDP request")
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleUDP(hctx, addr, req.FileSize)
		}()
	}
}
