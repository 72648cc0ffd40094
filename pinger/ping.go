// Package pinger implements ICMP echo packet engine: packet codec and
// single request/reply exchange over a Transport.
package pinger

import (
	"fmt"
	"net/netip"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultTimeout is how long a probe waits for its reply
	DefaultTimeout = 5 * time.Second
	// MaxDatagramLen is receive buffer size. Enough for echo traffic.
	MaxDatagramLen = 1024
)

// Discard reasons passed to Observer
const (
	DiscardMalformed  = "malformed"
	DiscardNotReply   = "not_echo_reply"
	DiscardSequence   = "sequence_mismatch"
	DiscardIdentifier = "identifier_mismatch"
)

// NewPinger returns a new Pinger instance with default settings
func NewPinger(logger *zap.Logger) *Pinger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pinger{
		Timeout:  DefaultTimeout,
		Payload:  DefaultPayload(DefaultPayloadLen),
		Logger:   logger,
		Observer: nopObserver{},
	}
}

// Pinger sends echo requests and waits for their replies.
// It never owns the Transport it is given.
type Pinger struct {
	// Timeout used by Ping
	Timeout time.Duration

	// Payload appended to every echo request
	Payload []byte

	// StrictIdentifier also requires reply identifier to match request.
	// Off by default: unprivileged sockets get the identifier rewritten
	// by the kernel.
	StrictIdentifier bool

	Logger   *zap.Logger
	Observer Observer
}

// Size returns ICMP message size of requests sent by p
func (p *Pinger) Size() int {
	return HeaderLen + len(p.Payload)
}

// Ping sends next request of session s using p.Timeout
func (p *Pinger) Ping(t Transport, dst netip.Addr, s *Session) (Result, error) {
	return p.SendAndWait(t, dst, s.ID(), s.Next(), p.Timeout)
}

// SendAndWait sends exactly one echo request and waits until a matching reply
// arrives or timeout elapses. Stray datagrams are discarded without extending
// the deadline. Only transport failures are returned as errors.
func (p *Pinger) SendAndWait(t Transport, dst netip.Addr, id, seq uint16, timeout time.Duration) (Result, error) {
	pkt := BuildEchoRequest(id, seq, p.Payload)

	start := time.Now()
	if err := t.Send(pkt, dst); err != nil {
		return Result{}, fmt.Errorf("send echo request to %s: %w", dst, err)
	}
	p.observer().Sent()
	deadline := start.Add(timeout)

	for time.Now().Before(deadline) {
		ready, err := t.WaitReadable(deadline)
		if err != nil {
			return Result{}, fmt.Errorf("wait for echo reply: %w", err)
		}
		if !ready {
			break
		}

		datagram, src, err := t.Receive(MaxDatagramLen)
		end := time.Now()
		if err != nil {
			return Result{}, fmt.Errorf("receive echo reply: %w", err)
		}

		if reason := p.match(datagram, id, seq); reason != "" {
			p.logger().Debug("discarding datagram",
				zap.String("reason", reason),
				zap.Stringer("src", src),
				zap.Uint16("seq", seq),
				zap.Int("len", len(datagram)))
			p.observer().Discarded(reason)
			continue
		}

		rtt := end.Sub(start)
		p.observer().Received(rtt)
		res := Success(rtt)
		res.Seq = seq
		return res, nil
	}

	p.observer().TimedOut()
	res := Timeout()
	res.Seq = seq
	return res, nil
}

// SendAndWait is Pinger.SendAndWait with default payload and no logging
func SendAndWait(t Transport, dst netip.Addr, id, seq uint16, timeout time.Duration) (Result, error) {
	return NewPinger(nil).SendAndWait(t, dst, id, seq, timeout)
}

// match returns discard reason, or empty string when datagram answers (id, seq)
func (p *Pinger) match(datagram []byte, id, seq uint16) string {
	reply, err := ParseEchoReply(datagram)
	if err != nil {
		return DiscardMalformed
	}
	if !reply.IsEchoReply() {
		return DiscardNotReply
	}
	if reply.Sequence != seq {
		return DiscardSequence
	}
	if p.StrictIdentifier && reply.Identifier != id {
		return DiscardIdentifier
	}
	return ""
}

func (p *Pinger) observer() Observer {
	if p.Observer == nil {
		return nopObserver{}
	}
	return p.Observer
}

func (p *Pinger) logger() *zap.Logger {
	if p.Logger == nil {
		return zap.NewNop()
	}
	return p.Logger
}
