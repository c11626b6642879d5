package server

import (
	"context"
	"net"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/rcoop/beaconbench/internal/protocol"
	"github.com/rcoop/beaconbench/internal/sockopt"
)

// Beacon periodically announces an Offer to a broadcast address.
type Beacon struct {
	Target   *net.UDPAddr
	Interval time.Duration
	TTL      int // 0 keeps the system default
	Offer    protocol.Offer
	Log      log.FieldLogger
}

// Run sends the offer right away and then once per Interval until ctx is
// done. Send failures are logged and never end the loop.
func (b *Beacon) Run(ctx context.Context) error {
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := sockopt.EnableBroadcast(conn); err != nil {
		b.Log.WithError(err).Warn("beacon: cannot enable broadcast")
	}
	if b.TTL > 0 {
		if err := ipv4.NewPacketConn(conn).SetTTL(b.TTL); err != nil {
			b.Log.WithError(err).Warn("beacon: cannot set TTL")
		}
	}

	return b.announce(ctx, conn)
}

func (b *Beacon) announce(ctx context.Context, conn *net.UDPConn) error {
	msg := b.Offer.Marshal()
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	b.Log.Infof("Broadcasting offers to %s every %s (udp %d, tcp %d)",
		b.Target, b.Interval, b.Offer.UDPPort, b.Offer.TCPPort)

	for {
		// A full socket buffer must not stall the beacon.
		conn.SetWriteDeadline(time.Now().Add(b.Interval))
		if _, err := conn.WriteToUDP(msg, b.Target); err != nil {
			b.Log.WithError(err).Warn("beacon: offer not sent")
		} else {
			b.Log.Debugf("Offer sent to %s", b.Target)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
