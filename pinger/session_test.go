package pinger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSessionSequence(t *testing.T) {
	s := NewSession(0x4242, 1)

	assert.Equal(t, uint16(0x4242), s.ID())
	assert.Equal(t, uint16(1), s.Next())
	assert.Equal(t, uint16(2), s.Next())
	assert.Equal(t, uint16(3), s.Next())
}

func TestSessionSequenceWraps(t *testing.T) {
	s := NewSession(1, 0xfffe)

	assert.Equal(t, uint16(0xfffe), s.Next())
	assert.Equal(t, uint16(0xffff), s.Next())
	assert.Equal(t, uint16(0), s.Next())
	assert.Equal(t, uint16(1), s.Next())
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "replied", Replied.String())
	assert.Equal(t, "timeout", TimedOut.String())
	assert.Equal(t, "unknown", Status(9).String())
}
