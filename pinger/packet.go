package pinger

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/net/ipv4"
)

const (
	// HeaderLen is the ICMP echo header length
	HeaderLen = 8
	// EnvelopeLen is the IPv4 header that precedes every received reply
	EnvelopeLen = 20
	// MinReplyLen is the shortest datagram ParseEchoReply accepts
	MinReplyLen = EnvelopeLen + HeaderLen
	// DefaultPayloadLen makes a 64 byte ICMP message
	DefaultPayloadLen = 56
)

// ErrParse is returned for datagrams that can not hold an echo reply
var ErrParse = errors.New("malformed echo reply")

var (
	typeEchoRequest = uint8(ipv4.ICMPTypeEcho)
	typeEchoReply   = uint8(ipv4.ICMPTypeEchoReply)
)

// EchoReply is ICMP header decoded from received datagram
type EchoReply struct {
	Type       uint8
	Code       uint8
	Checksum   uint16
	Identifier uint16
	Sequence   uint16
}

// IsEchoReply reports whether type and code are (0, 0)
func (r EchoReply) IsEchoReply() bool {
	return r.Type == typeEchoReply && r.Code == 0
}

// Valid verifies the ICMP checksum of the full datagram r was parsed from.
// ParseEchoReply never does this on its own.
func (r EchoReply) Valid(datagram []byte) bool {
	if len(datagram) < MinReplyLen {
		return false
	}
	return Checksum(datagram[EnvelopeLen:]) == 0
}

// Checksum calculates the Internet Checksum (RFC 1071).
// Odd length data is summed as if padded with one zero byte.
func Checksum(data []byte) uint16 {
	var sum uint32

	n := len(data) &^ 1
	for i := 0; i < n; i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i:]))
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}

	for sum > 0xffff {
		sum = (sum >> 16) + (sum & 0xffff)
	}

	return ^uint16(sum)
}

// BuildEchoRequest serializes echo request header followed by payload
func BuildEchoRequest(id, seq uint16, payload []byte) []byte {
	pkt := make([]byte, HeaderLen+len(payload))
	pkt[0] = typeEchoRequest
	pkt[1] = 0
	binary.BigEndian.PutUint16(pkt[4:], id)
	binary.BigEndian.PutUint16(pkt[6:], seq)
	copy(pkt[HeaderLen:], payload)

	binary.BigEndian.PutUint16(pkt[2:], Checksum(pkt))
	return pkt
}

// ParseEchoReply decodes ICMP header placed right after the IPv4 envelope
func ParseEchoReply(datagram []byte) (EchoReply, error) {
	if len(datagram) < MinReplyLen {
		return EchoReply{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrParse, len(datagram), MinReplyLen)
	}

	hdr := datagram[EnvelopeLen:MinReplyLen]
	return EchoReply{
		Type:       hdr[0],
		Code:       hdr[1],
		Checksum:   binary.BigEndian.Uint16(hdr[2:]),
		Identifier: binary.BigEndian.Uint16(hdr[4:]),
		Sequence:   binary.BigEndian.Uint16(hdr[6:]),
	}, nil
}

// DefaultPayload returns n bytes of printable filler
func DefaultPayload(n int) []byte {
	const pattern = "Hey there im an icmp ping "

	payload := make([]byte, n)
	for i := range payload {
		payload[i] = pattern[i%len(pattern)]
	}
	return payload
}
