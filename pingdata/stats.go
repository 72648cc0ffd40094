// Package pingdata accumulates probe results of one session into summary
// statistics.
package pingdata

import (
	"math"
	"time"

	"github.com/drgkaleda/go-echoping/pinger"
)

// minSentinel is larger than any realistic RTT so the first sample sets min
const minSentinel = time.Duration(math.MaxInt64)

// Stats folds probe results in send order. Use New to create one.
type Stats struct {
	sent     int
	received int
	min      time.Duration
	max      time.Duration
	total    time.Duration
}

// Timing holds RTT aggregates of received probes
type Timing struct {
	Min time.Duration `json:"-" yaml:"-"`
	Max time.Duration `json:"-" yaml:"-"`
	Avg time.Duration `json:"-" yaml:"-"`

	MinMs int64 `json:"min_ms" yaml:"min_ms"`
	MaxMs int64 `json:"max_ms" yaml:"max_ms"`
	AvgMs int64 `json:"avg_ms" yaml:"avg_ms"`
}

// Summary is consumer visible aggregate of a session.
// Timing is nil when nothing was received.
type Summary struct {
	Sent        int     `json:"sent" yaml:"sent"`
	Received    int     `json:"received" yaml:"received"`
	Lost        int     `json:"lost" yaml:"lost"`
	LossPercent int     `json:"loss_percent" yaml:"loss_percent"`
	RTT         *Timing `json:"rtt,omitempty" yaml:"rtt,omitempty"`
}

// NoData reports whether no reply was received
func (s Summary) NoData() bool {
	return s.RTT == nil
}

// New returns empty Stats
func New() *Stats {
	return &Stats{min: minSentinel}
}

// Record adds outcome of one probe
func (s *Stats) Record(res pinger.Result) {
	s.sent++
	if !res.OK() {
		return
	}

	s.received++
	if res.RTT < s.min {
		s.min = res.RTT
	}
	if res.RTT > s.max {
		s.max = res.RTT
	}
	s.total += res.RTT
}

// Sent returns number of recorded probes
func (s *Stats) Sent() int {
	return s.sent
}

// Received returns number of replied probes
func (s *Stats) Received() int {
	return s.received
}

// Summarize computes summary of everything recorded so far
func (s *Stats) Summarize() Summary {
	sum := Summary{
		Sent:     s.sent,
		Received: s.received,
		Lost:     s.sent - s.received,
	}
	if s.sent > 0 {
		sum.LossPercent = 100 * sum.Lost / s.sent
	}
	if s.received == 0 {
		return sum
	}

	avg := s.total / time.Duration(s.received)
	sum.RTT = &Timing{
		Min:   s.min,
		Max:   s.max,
		Avg:   avg,
		MinMs: s.min.Milliseconds(),
		MaxMs: s.max.Milliseconds(),
		AvgMs: avg.Milliseconds(),
	}
	return sum
}
