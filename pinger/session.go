package pinger

// Session holds the identifier and sequence counter of a single probing
// session. It is owned by the caller and is not safe for concurrent use.
type Session struct {
	id   uint16
	next uint16
}

// NewSession creates a session whose first request carries firstSeq
func NewSession(id, firstSeq uint16) *Session {
	return &Session{id: id, next: firstSeq}
}

// ID returns session identifier
func (s *Session) ID() uint16 {
	return s.id
}

// Next returns sequence for the next request and advances the counter.
// Counter wraps from 0xffff to 0.
func (s *Session) Next() uint16 {
	seq := s.next
	s.next++
	return seq
}
