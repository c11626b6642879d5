package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anacrolix/tagflag"
	log "github.com/sirupsen/logrus"

	"github.com/rcoop/beaconbench/client"
	"github.com/rcoop/beaconbench/internal/logging"
)

var defaults = client.DefaultConfig()

type clientFlags struct {
	BroadcastPort int           `help:"port offers are received on"`
	IdleTimeout   time.Duration `help:"quiet period that ends a UDP transfer"`
	DialTimeout   time.Duration `help:"TCP connect timeout"`
	FileSize      tagflag.Bytes `help:"bytes per transfer, e.g. 5000 or 1MB; set to skip the prompt"`
	Tcp           int           `help:"number of TCP connections"`
	Udp           int           `help:"number of UDP connections"`
	Once          bool          `help:"exit after one round"`
	LogLevel      string        `help:"panic, fatal, error, warn, info, debug or trace"`
	LogFormat     string        `help:"text or json"`
}

var flags = clientFlags{
	BroadcastPort: defaults.BroadcastPort,
	IdleTimeout:   defaults.IdleTimeout,
	DialTimeout:   defaults.DialTimeout,
	Tcp:           1,
	Udp:           1,
	LogLevel:      "info",
	LogFormat:     logging.FormatText,
}

func main() {
	if err := mainErr(); err != nil {
		log.Errorf("error in main: %v", err)
		os.Exit(1)
	}
}

func mainErr() error {
	tagflag.Parse(&flags)

	logger, err := logging.New(os.Stderr, flags.LogLevel, flags.LogFormat)
	if err != nil {
		return err
	}

	params, err := paramSource(flags, os.Stdin, os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return client.New(config(flags), params, logger).Run(ctx)
}

func config(f clientFlags) client.Config {
	cfg := defaults
	cfg.BroadcastPort = f.BroadcastPort
	cfg.IdleTimeout = f.IdleTimeout
	cfg.DialTimeout = f.DialTimeout
	cfg.Once = f.Once
	return cfg
}

// paramSource prompts on in/out unless -fileSize fixes every round.
func paramSource(f clientFlags, in io.Reader, out io.Writer) (client.ParamSource, error) {
	if f.FileSize < 0 {
		return nil, &client.InputError{Field: "file size", Msg: "must be positive"}
	}
	p := client.Params{FileSize: uint64(f.FileSize), TCPConns: f.Tcp, UDPConns: f.Udp}
	if p.FileSize > 0 {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		return client.StaticParams(p), nil
	}
	p.FileSize = 1 << 20
	return client.NewPrompt(in, out, p), nil
}
