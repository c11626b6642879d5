package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"

	"github.com/rcoop/beaconbench/client"
	"github.com/rcoop/beaconbench/server"
)

func TestIntegrationEndToEnd(t *testing.T) {
	logger, hook := test.NewNullLogger()

	// Offers go to a loopback socket standing in for the broadcast port.
	offers, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	defer offers.Close()

	cfg := server.DefaultConfig()
	cfg.TCPAddr = "127.0.0.1:0"
	cfg.UDPAddr = "127.0.0.1:0"
	cfg.BeaconTarget = offers.LocalAddr().String()
	cfg.BeaconInterval = 100 * time.Millisecond

	srv := server.New(cfg, logger)
	if err := srv.Listen(); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx) }()
	defer func() {
		cancel()
		if err := <-served; err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()

	dctx, dcancel := context.WithTimeout(ctx, 5*time.Second)
	defer dcancel()
	info, err := client.WaitForOffer(dctx, offers, logger)
	if err != nil {
		t.Fatalf("discovery: %v", err)
	}
	if int(info.TCPPort) != srv.TCPAddr().Port || int(info.UDPPort) != srv.UDPAddr().Port {
		t.Fatalf("offer %s does not match the server", info)
	}

	o := &client.Orchestrator{
		Transport: &client.NetTransport{
			Server:      *info,
			DialTimeout: time.Second,
			IdleTimeout: 300 * time.Millisecond,
			Log:         logger,
		},
		Log: logger,
	}
	const size = 10_000
	report := o.Run(ctx, client.Params{FileSize: size, TCPConns: 2, UDPConns: 2})

	if len(report.Results) != 4 {
		t.Fatalf("got %d results, want 4", len(report.Results))
	}
	for _, r := range report.Results {
		if r.Status != client.StatusCompleted || r.Bytes != size {
			t.Errorf("%s #%d: status %s, %d bytes, err %v", r.Role, r.Index, r.Status, r.Bytes, r.Err)
		}
		if r.Role == client.RoleUDP && (r.TotalSegments != 10 || r.Loss != 0) {
			t.Errorf("UDP #%d: %d/%d segments, loss %f", r.Index, r.Segments, r.TotalSegments, r.Loss)
		}
	}

	report.Log(logger)
	deadline := time.Now().Add(2 * time.Second)
	for srv.Store.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := srv.Store.Len(); n != 0 {
		t.Errorf("%d sessions still registered", n)
	}
	if len(hook.AllEntries()) == 0 {
		t.Error("nothing was logged")
	}
}
