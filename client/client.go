package client

import (
	"context"
	"errors"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rcoop/beaconbench/internal/protocol"
)

// Config holds the client configuration.
type Config struct {
	BroadcastPort int           // port offers arrive on
	IdleTimeout   time.Duration // quiet period that ends a UDP session
	DialTimeout   time.Duration // TCP connect timeout
	Once          bool          // stop after the first round
}

// DefaultConfig returns the configuration used by cmd/client.
func DefaultConfig() Config {
	return Config{
		BroadcastPort: protocol.BroadcastPort,
		IdleTimeout:   DefaultIdleTimeout,
		DialTimeout:   5 * time.Second,
	}
}

// Client repeats discover, ask, transfer, report until ctx ends or its
// ParamSource runs dry.
type Client struct {
	cfg    Config
	params ParamSource
	log    log.FieldLogger

	// discover is replaced in tests.
	discover func(ctx context.Context) (*ServerInfo, error)
}

// New creates a client.
func New(cfg Config, params ParamSource, logger log.FieldLogger) *Client {
	c := &Client{cfg: cfg, params: params, log: logger}
	c.discover = func(ctx context.Context) (*ServerInfo, error) {
		return Discover(ctx, c.cfg.BroadcastPort, c.log)
	}
	return c
}

// Run loops until ctx is cancelled, input ends, or after one round with Once
// set. Cancellation and end of input return nil.
func (c *Client) Run(ctx context.Context) error {
	c.log.Info("Client started, listening for offer requests...")
	for {
		report, err := c.Round(ctx)
		switch {
		case ctx.Err() != nil, errors.Is(err, io.EOF):
			return nil
		case err != nil:
			var inErr *InputError
			if !errors.As(err, &inErr) {
				return err
			}
			c.log.WithError(err).Warn("Invalid input, skipping round")
		default:
			report.Log(c.log)
			c.log.Info("All transfers complete, listening to offer requests")
		}

		if c.cfg.Once {
			return err
		}
	}
}

// Round runs one discover, ask, transfer cycle.
func (c *Client) Round(ctx context.Context) (*Report, error) {
	server, err := c.discover(ctx)
	if err != nil {
		return nil, err
	}

	p, err := c.params.Next(ctx)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		Transport: &NetTransport{
			Server:      *server,
			DialTimeout: c.cfg.DialTimeout,
			IdleTimeout: c.cfg.IdleTimeout,
			Log:         c.log,
		},
		Log: c.log,
	}
	return o.Run(ctx, p), nil
}
