package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/drgkaleda/go-echoping/pinger"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
)

var _ pinger.Transport = (*ICMPConn)(nil)

const defaultTTL = 64

// ICMPConn is a transport on top of x/net/icmp packet connection.
//
// Privileged mode listens on "ip4:icmp" (raw socket). Unprivileged mode
// listens on "udp4", an ICMP datagram socket; the kernel then rewrites echo
// identifier, so replies must be matched by sequence only.
//
// The connection strips IPv4 header of received messages, ICMPConn puts
// a synthetic one back so datagrams look the same as on a raw socket.
// TTL and destination of that header come from IPv4 control messages.
type ICMPConn struct {
	conn       *icmp.PacketConn
	privileged bool

	pending    []byte
	pendingSrc netip.Addr
}

// ListenICMP opens ICMP packet connection on all local IPv4 addresses
func ListenICMP(privileged bool) (*ICMPConn, error) {
	network := "udp4"
	if privileged {
		network = "ip4:icmp"
	}

	conn, err := icmp.ListenPacket(network, "0.0.0.0")
	if err != nil {
		return nil, openError(network, err)
	}

	err = conn.IPv4PacketConn().SetControlMessage(ipv4.FlagTTL|ipv4.FlagDst, true)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable control messages: %w", err)
	}

	return &ICMPConn{
		conn:       conn,
		privileged: privileged,
	}, nil
}

// Privileged returns whether c is a raw ICMP connection
func (c *ICMPConn) Privileged() bool {
	return c.privileged
}

// Send writes b to dst
func (c *ICMPConn) Send(b []byte, dst netip.Addr) error {
	if !dst.Is4() {
		return fmt.Errorf("%w: %s", ErrNotIPv4, dst)
	}

	var addr net.Addr = &net.UDPAddr{IP: dst.AsSlice()}
	if c.privileged {
		addr = &net.IPAddr{IP: dst.AsSlice()}
	}

	_, err := c.conn.WriteTo(b, addr)
	return err
}

// WaitReadable reads next datagram into pending slot, bounded by deadline
func (c *ICMPConn) WaitReadable(deadline time.Time) (bool, error) {
	if c.pending != nil {
		return true, nil
	}

	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return false, err
	}

	buf := make([]byte, maxDatagram)
	n, cm, peer, err := c.conn.IPv4PacketConn().ReadFrom(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return false, nil
		}
		return false, err
	}

	src := peerIP(peer)
	c.pending = envelope(buf[:n], src, cm)
	c.pendingSrc, _ = netip.AddrFromSlice(src.To4())
	return true, nil
}

// Receive returns datagram read by WaitReadable, truncated to max bytes.
// Without pending datagram it blocks like WaitReadable without deadline.
func (c *ICMPConn) Receive(max int) ([]byte, netip.Addr, error) {
	if c.pending == nil {
		if _, err := c.WaitReadable(time.Time{}); err != nil {
			return nil, netip.Addr{}, err
		}
	}

	data, src := c.pending, c.pendingSrc
	c.pending, c.pendingSrc = nil, netip.Addr{}
	if len(data) > max {
		data = data[:max]
	}
	return data, src, nil
}

// Close closes the connection
func (c *ICMPConn) Close() error {
	return c.conn.Close()
}

func peerIP(peer net.Addr) net.IP {
	switch a := peer.(type) {
	case *net.IPAddr:
		return a.IP
	case *net.UDPAddr:
		return a.IP
	default:
		return nil
	}
}

// envelope prepends IPv4 header to ICMP message msg. TTL and destination
// are taken from cm; without them the header carries defaultTTL and 0.0.0.0.
func envelope(msg []byte, src net.IP, cm *ipv4.ControlMessage) []byte {
	h := &ipv4.Header{
		Version:  ipv4.Version,
		Len:      ipv4.HeaderLen,
		TotalLen: ipv4.HeaderLen + len(msg),
		TTL:      defaultTTL,
		Protocol: 1,
		Src:      src,
		Dst:      net.IPv4zero,
	}
	if cm != nil {
		if cm.TTL > 0 {
			h.TTL = cm.TTL
		}
		if cm.Dst != nil {
			h.Dst = cm.Dst
		}
	}

	hdr, err := h.Marshal()
	if err != nil {
		hdr = make([]byte, ipv4.HeaderLen)
	}
	// Marshal uses host byte order for these on some BSDs and darwin
	binary.BigEndian.PutUint16(hdr[2:], uint16(h.TotalLen))
	binary.BigEndian.PutUint16(hdr[6:], 0)
	binary.BigEndian.PutUint16(hdr[10:], pinger.Checksum(hdr))

	return append(hdr, msg...)
}
