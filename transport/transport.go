// Package transport provides ICMP datagram transports for the pinger.
// Every datagram handed out by Receive starts with a 20 byte IPv4 header.
package transport

import (
	"errors"
	"fmt"
	"os"
)

var (
	// ErrPermission is returned when the OS refuses to open an ICMP socket
	ErrPermission = errors.New("opening ICMP socket is not permitted, run with admin/sudo permission")
	// ErrUnsupported is returned when raw sockets are not available on this OS
	ErrUnsupported = errors.New("raw socket cannot be used with this OS")
	// ErrNotIPv4 is returned for non IPv4 destinations
	ErrNotIPv4 = errors.New("destination is not an IPv4 address")
)

// maxDatagram is scratch buffer size for a single read
const maxDatagram = 1500

func openError(network string, err error) error {
	if errors.Is(err, os.ErrPermission) {
		return fmt.Errorf("%w: %s: %v", ErrPermission, network, err)
	}
	return fmt.Errorf("open %s socket: %w", network, err)
}
