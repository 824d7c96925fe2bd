package classifier

import (
	"errors"

	"github.com/netaccel/direct-path/internal/dpath/gateways/packet"
)

// TCProgram marks accelerated flows and restores resolver replies in a
// single pass over the frame.
type TCProgram struct {
	marker *FlowMarker
	steer  *DNSSteer
	stats  Stats
}

func NewTCProgram(marker *FlowMarker, steer *DNSSteer) (*TCProgram, error) {
	if marker == nil || steer == nil {
		return nil, errors.New("classifier: marker and steer are required")
	}
	return &TCProgram{marker: marker, steer: steer}, nil
}

func (t *TCProgram) Process(frame []byte, meta *Meta) Verdict {
	p, st := packet.Parse(frame)
	if st != packet.StatusOK {
		return t.stats.record(Verdict{Reason: ReasonMalformed})
	}

	out := t.marker.classify(&p, meta)

	if v, ok := t.restoreReply(&p); ok {
		out.Modified = v.Modified
		out.Reason = v.Reason
	}
	return t.stats.record(out)
}

func (t *TCProgram) restoreReply(p *packet.Packet) (Verdict, bool) {
	if !p.IsUDP() || p.UDP.SrcPort() != t.steer.resolverPort {
		return Verdict{}, false
	}
	if !isPrivatePair(p) {
		return Verdict{}, false
	}
	return t.steer.restore(p), true
}

// Stats returns the verdict counters.
func (t *TCProgram) Stats() *Stats { return &t.stats }
