//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package sockopt

import "syscall"

// Only one listener per host can wait for offers on these platforms.
func reuseControl(network, address string, c syscall.RawConn) error {
	return nil
}

// The runtime already enables SO_BROADCAST on datagram sockets.
func setBroadcast(fd uintptr) error {
	return nil
}
