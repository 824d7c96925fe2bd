// Package classifier holds the per-packet entry points. Every program lets
// the packet through; a Verdict only records what was changed and why.
package classifier

import (
	"fmt"
	"sync/atomic"
)

// Reason explains a Verdict.
type Reason uint8

const (
	ReasonMalformed Reason = iota
	ReasonNotUDP
	ReasonPrivatePair
	ReasonPublicEndpoint
	ReasonNotAccelerated
	ReasonMarked
	ReasonOtherPort
	ReasonUndecodable
	ReasonNoMatch
	ReasonSteered
	ReasonRestored

	numReasons
)

var reasonNames = [numReasons]string{
	ReasonMalformed:      "malformed",
	ReasonNotUDP:         "not_udp",
	ReasonPrivatePair:    "private_pair",
	ReasonPublicEndpoint: "public_endpoint",
	ReasonNotAccelerated: "not_accelerated",
	ReasonMarked:         "marked",
	ReasonOtherPort:      "other_port",
	ReasonUndecodable:    "undecodable",
	ReasonNoMatch:        "no_match",
	ReasonSteered:        "steered",
	ReasonRestored:       "restored",
}

func (r Reason) String() string {
	if r < numReasons {
		return reasonNames[r]
	}
	return fmt.Sprintf("Reason(%d)", r)
}

// Verdict is the outcome of one program run. The packet is always passed.
type Verdict struct {
	// Modified is set when frame bytes were rewritten.
	Modified bool
	// Marked is set when Meta.Mark was written.
	Marked bool
	Reason Reason
}

// Meta is the packet metadata a program may annotate.
type Meta struct {
	Mark uint32
}

// Program is a packet entry point.
type Program interface {
	Process(frame []byte, meta *Meta) Verdict
}

// Chain runs programs in order on the same frame. The merged verdict carries
// the reason of the last program that changed something, or of the first
// program when none did.
type Chain []Program

func (c Chain) Process(frame []byte, meta *Meta) Verdict {
	var out Verdict
	changed := false
	for i, p := range c {
		v := p.Process(frame, meta)
		switch {
		case v.Modified || v.Marked:
			out.Reason = v.Reason
			changed = true
		case i == 0 && !changed:
			out.Reason = v.Reason
		}
		out.Modified = out.Modified || v.Modified
		out.Marked = out.Marked || v.Marked
	}
	return out
}

// Stats counts verdicts per reason.
type Stats struct {
	counts [numReasons]atomic.Uint64
}

func (s *Stats) record(v Verdict) Verdict {
	if v.Reason < numReasons {
		s.counts[v.Reason].Add(1)
	}
	return v
}

// Count returns the number of verdicts recorded with reason r.
func (s *Stats) Count(r Reason) uint64 {
	if r >= numReasons {
		return 0
	}
	return s.counts[r].Load()
}

// Snapshot returns the non-zero counters keyed by reason name.
func (s *Stats) Snapshot() map[string]uint64 {
	out := make(map[string]uint64)
	for r := Reason(0); r < numReasons; r++ {
		if n := s.counts[r].Load(); n > 0 {
			out[r.String()] = n
		}
	}
	return out
}
