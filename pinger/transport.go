package pinger

import (
	"net/netip"
	"time"
)

// Transport moves raw ICMP datagrams. Datagrams returned by Receive start
// with the 20 byte IPv4 header.
type Transport interface {
	Send(b []byte, dst netip.Addr) error
	// WaitReadable blocks until a datagram can be received or deadline passes.
	// It returns false on deadline.
	WaitReadable(deadline time.Time) (bool, error)
	Receive(max int) ([]byte, netip.Addr, error)
}

// Observer is notified about probe engine events
type Observer interface {
	Sent()
	Received(rtt time.Duration)
	TimedOut()
	Discarded(reason string)
}

type nopObserver struct{}

func (nopObserver) Sent()                  {}
func (nopObserver) Received(time.Duration) {}
func (nopObserver) TimedOut()              {}
func (nopObserver) Discarded(string)       {}
