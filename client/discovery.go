package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"

	"github.com/rcoop/beaconbench/internal/protocol"
	"github.com/rcoop/beaconbench/internal/sockopt"
)

// pollInterval bounds how long a discovery read blocks before ctx is
// checked again.
const pollInterval = 250 * time.Millisecond

// ServerInfo is what a client learns from an offer: the sender's address and
// the ports it advertised.
type ServerInfo struct {
	IP      net.IP
	UDPPort uint16
	TCPPort uint16
}

// TCPAddr returns the host:port of the server's TCP service.
func (s ServerInfo) TCPAddr() string {
	return net.JoinHostPort(s.IP.String(), strconv.Itoa(int(s.TCPPort)))
}

// UDPAddr returns the server's UDP request endpoint.
func (s ServerInfo) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: s.IP, Port: int(s.UDPPort)}
}

func (s ServerInfo) String() string {
	return fmt.Sprintf("%s (udp %d, tcp %d)", s.IP, s.UDPPort, s.TCPPort)
}

// Discover binds the broadcast port and waits for the first valid offer.
// The socket is shared with other listeners on the host and closed before
// Discover returns.
func Discover(ctx context.Context, port int, logger log.FieldLogger) (*ServerInfo, error) {
	conn, err := sockopt.ListenReusableUDP(ctx, fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("binding discovery port %d: %w", port, err)
	}
	defer conn.Close()

	logger.Infof("Listening for server offers on port %d", port)
	return WaitForOffer(ctx, conn, logger)
}

// WaitForOffer reads datagrams from conn until one decodes as an offer.
// Anything else is logged and skipped; only a valid offer, ctx cancellation
// or a closed socket end the wait.
func WaitForOffer(ctx context.Context, conn net.PacketConn, logger log.FieldLogger) (*ServerInfo, error) {
	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		logger.WithError(err).Debug("Discovery: interface information unavailable")
	}

	buf := make([]byte, protocol.MaxDatagram)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pc.SetReadDeadline(time.Now().Add(pollInterval))
		n, cm, src, err := pc.ReadFrom(buf)
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return nil, err
		}

		entry := logger.WithField("remote", src.String())
		offer, err := protocol.ParseOffer(buf[:n])
		if err != nil {
			entry.WithError(err).Warn("Invalid offer")
			continue
		}

		udpSrc, ok := src.(*net.UDPAddr)
		if !ok {
			entry.Warnf("Offer from non-UDP address %T", src)
			continue
		}

		if cm != nil && cm.IfIndex > 0 {
			if ifi, err := net.InterfaceByIndex(cm.IfIndex); err == nil {
				entry = entry.WithField("iface", ifi.Name)
			}
		}

		info := &ServerInfo{
			IP:      udpSrc.IP,
			UDPPort: offer.UDPPort,
			TCPPort: offer.TCPPort,
		}
		entry.Infof("Received offer from %s", info)
		return info, nil
	}
}
