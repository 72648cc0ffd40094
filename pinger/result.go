package pinger

import "time"

// Status is the outcome of a single probe
type Status int

const (
	// Replied means a matching echo reply arrived before deadline
	Replied Status = iota
	// TimedOut means no matching reply arrived before deadline
	TimedOut
)

func (s Status) String() string {
	switch s {
	case Replied:
		return "replied"
	case TimedOut:
		return "timeout"
	default:
		return "unknown"
	}
}

// Result of one SendAndWait call
type Result struct {
	Status Status
	// RTT is set for replied probes only
	RTT time.Duration
	Seq uint16
}

// Success returns replied result
func Success(rtt time.Duration) Result {
	return Result{Status: Replied, RTT: rtt}
}

// Timeout returns lost probe result
func Timeout() Result {
	return Result{Status: TimedOut}
}

// OK reports whether the probe was replied
func (r Result) OK() bool {
	return r.Status == Replied
}
