package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anacrolix/tagflag"
	log "github.com/sirupsen/logrus"

	"github.com/rcoop/beaconbench/internal/logging"
	"github.com/rcoop/beaconbench/server"
)

var defaults = server.DefaultConfig()

type serverFlags struct {
	TcpAddr        string        `help:"TCP listen address"`
	UdpAddr        string        `help:"UDP listen address"`
	BeaconTarget   string        `help:"destination of offer announcements"`
	BeaconInterval time.Duration `help:"time between two offers"`
	BeaconTtl      int           `help:"IP TTL of offers, 0 keeps the system default"`
	SegmentPacing  time.Duration `help:"delay between two UDP segments"`
	LogLevel       string        `help:"panic, fatal, error, warn, info, debug or trace"`
	LogFormat      string        `help:"text or json"`
}

var flags = serverFlags{
	TcpAddr:        defaults.TCPAddr,
	UdpAddr:        defaults.UDPAddr,
	BeaconTarget:   defaults.BeaconTarget,
	BeaconInterval: defaults.BeaconInterval,
	BeaconTtl:      defaults.BeaconTTL,
	SegmentPacing:  defaults.SegmentPacing,
	LogLevel:       "info",
	LogFormat:      logging.FormatText,
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(config(flags), logger)
	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

func config(f serverFlags) server.Config {
	cfg := defaults
	cfg.TCPAddr = f.TcpAddr
	cfg.UDPAddr = f.UdpAddr
	cfg.BeaconTarget = f.BeaconTarget
	cfg.BeaconInterval = f.BeaconInterval
	cfg.BeaconTTL = f.BeaconTtl
	cfg.SegmentPacing = f.SegmentPacing
	return cfg
}
