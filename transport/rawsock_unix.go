//go:build linux || darwin

package transport

import (
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/drgkaleda/go-echoping/pinger"
	"golang.org/x/sys/unix"
)

var _ pinger.Transport = (*RawSocket)(nil)

// RawSocket is AF_INET/SOCK_RAW/IPPROTO_ICMP socket.
// The kernel keeps the IPv4 header on every received datagram.
type RawSocket struct {
	fd int
}

// OpenRawSocket opens raw ICMP socket. Requires privileges.
func OpenRawSocket() (*RawSocket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_RAW, unix.IPPROTO_ICMP)
	if err != nil {
		return nil, openError("raw icmp", err)
	}
	unix.CloseOnExec(fd)
	return &RawSocket{fd: fd}, nil
}

// Send writes b to dst
func (s *RawSocket) Send(b []byte, dst netip.Addr) error {
	if !dst.Is4() {
		return fmt.Errorf("%w: %s", ErrNotIPv4, dst)
	}
	return unix.Sendto(s.fd, b, 0, &unix.SockaddrInet4{Addr: dst.As4()})
}

// WaitReadable polls the socket until it is readable or deadline passes
func (s *RawSocket) WaitReadable(deadline time.Time) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false, nil
		}

		// round up, poll must not return before deadline
		ms := int((remaining + time.Millisecond - 1) / time.Millisecond)
		n, err := unix.Poll(fds, ms)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("poll raw socket: %w", err)
		}
		if n == 0 {
			continue
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLNVAL) != 0 {
			return false, fmt.Errorf("poll raw socket: revents %#x", fds[0].Revents)
		}
		if fds[0].Revents&unix.POLLIN != 0 {
			return true, nil
		}
	}
}

// Receive reads one datagram of at most max bytes
func (s *RawSocket) Receive(max int) ([]byte, netip.Addr, error) {
	buf := make([]byte, max)

	for {
		n, from, err := unix.Recvfrom(s.fd, buf, 0)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return nil, netip.Addr{}, fmt.Errorf("recvfrom raw socket: %w", err)
		}

		var src netip.Addr
		if sa, ok := from.(*unix.SockaddrInet4); ok {
			src = netip.AddrFrom4(sa.Addr)
		}
		return buf[:n], src, nil
	}
}

// Close closes the socket
func (s *RawSocket) Close() error {
	return unix.Close(s.fd)
}
