package pinger

import (
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
)

// echoDatagram forges IPv4 datagram carrying ICMP message of given type
func echoDatagram(t *testing.T, typ uint8, id, seq uint16, payload []byte) []byte {
	t.Helper()

	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.IPv4(192, 0, 2, 1),
		DstIP:    net.IPv4(192, 0, 2, 100),
	}
	icmp := &layers.ICMPv4{
		TypeCode: layers.CreateICMPv4TypeCode(typ, 0),
		Id:       id,
		Seq:      seq,
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	err := gopacket.SerializeLayers(buf, opts, ip, icmp, gopacket.Payload(payload))
	require.NoError(t, err)

	return buf.Bytes()
}

func echoReply(t *testing.T, id, seq uint16) []byte {
	return echoDatagram(t, layers.ICMPv4TypeEchoReply, id, seq, DefaultPayload(DefaultPayloadLen))
}
