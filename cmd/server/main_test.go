package main

import (
	"testing"
	"time"

	"github.com/anacrolix/tagflag"
)

func TestFlagsOverrideDefaults(t *testing.T) {
	f := flags
	args := []string{
		"-tcpAddr=127.0.0.1:0",
		"-udpAddr=127.0.0.1:0",
		"-beaconInterval=250ms",
		"-beaconTtl=4",
		"-segmentPacing=1ms",
	}
	if err := tagflag.ParseErr(&f, args); err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := config(f)
	if cfg.TCPAddr != "127.0.0.1:0" || cfg.UDPAddr != "127.0.0.1:0" {
		t.Errorf("addresses: %s %s", cfg.TCPAddr, cfg.UDPAddr)
	}
	if cfg.BeaconInterval != 250*time.Millisecond || cfg.BeaconTTL != 4 {
		t.Errorf("beacon: every %s, ttl %d", cfg.BeaconInterval, cfg.BeaconTTL)
	}
	if cfg.SegmentPacing != time.Millisecond {
		t.Errorf("pacing: %s", cfg.SegmentPacing)
	}
	if cfg.BeaconTarget != defaults.BeaconTarget || cfg.SegmentSize != defaults.SegmentSize {
		t.Errorf("untouched fields changed: %+v", cfg)
	}
}

func TestDefaultFlags(t *testing.T) {
	f := flags
	if err := tagflag.ParseErr(&f, nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg := config(f); cfg != defaults {
		t.Errorf("got %+v, want %+v", cfg, defaults)
	}
}
