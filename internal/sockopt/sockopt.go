// Package sockopt sets the socket options discovery depends on: address
// reuse for listeners sharing the broadcast port and SO_BROADCAST for the
// beacon.
package sockopt

import (
	"context"
	"fmt"
	"net"
)

// BufferSize is the kernel buffer requested for transfer sockets.
const BufferSize = 4 * 1024 * 1024

// SetBuffers asks for BufferSize in both directions. The kernel may grant
// less; failures are ignored.
func SetBuffers(conn interface {
	SetReadBuffer(int) error
	SetWriteBuffer(int) error
}) {
	conn.SetReadBuffer(BufferSize)
	conn.SetWriteBuffer(BufferSize)
}

// ListenReusableUDP binds an IPv4 UDP socket on addr that other processes on
// the same host may bind as well, so several clients can wait for offers at
// once.
func ListenReusableUDP(ctx context.Context, addr string) (*net.UDPConn, error) {
	lc := net.ListenConfig{Control: reuseControl}
	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, err
	}
	return pc.(*net.UDPConn), nil
}

// EnableBroadcast allows conn to send to broadcast addresses.
func EnableBroadcast(conn *net.UDPConn) error {
	rc, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var serr error
	if err := rc.Control(func(fd uintptr) {
		serr = setBroadcast(fd)
	}); err != nil {
		return err
	}
	if serr != nil {
		return fmt.Errorf("SO_BROADCAST: %w", serr)
	}
	return nil
}
