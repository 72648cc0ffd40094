//go:build !linux && !darwin

package transport

import (
	"net/netip"
	"time"

	"github.com/drgkaleda/go-echoping/pinger"
)

var _ pinger.Transport = (*RawSocket)(nil)

// RawSocket is not available on this OS, use ICMPConn instead
type RawSocket struct{}

// OpenRawSocket always fails with ErrUnsupported
func OpenRawSocket() (*RawSocket, error) {
	return nil, ErrUnsupported
}

func (s *RawSocket) Send([]byte, netip.Addr) error {
	return ErrUnsupported
}

func (s *RawSocket) WaitReadable(time.Time) (bool, error) {
	return false, ErrUnsupported
}

func (s *RawSocket) Receive(int) ([]byte, netip.Addr, error) {
	return nil, netip.Addr{}, ErrUnsupported
}

func (s *RawSocket) Close() error {
	return nil
}
