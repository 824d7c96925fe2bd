package classifier

import (
	"errors"

	"github.com/netaccel/direct-path/internal/dpath/common/netaddr"
	"github.com/netaccel/direct-path/internal/dpath/domain"
	"github.com/netaccel/direct-path/internal/dpath/gateways/packet"
)

// FlowMarker tags accelerated IPv4 flows with a mark for policy routing.
type FlowMarker struct {
	ips   IPClassifier
	mark  uint32
	stats Stats
}

// NewFlowMarker returns a marker writing mark; zero selects domain.DirectMark.
func NewFlowMarker(ips IPClassifier, mark uint32) (*FlowMarker, error) {
	if ips == nil {
		return nil, errors.New("classifier: ip classifier is required")
	}
	if mark == 0 {
		mark = domain.DirectMark
	}
	return &FlowMarker{ips: ips, mark: mark}, nil
}

func (f *FlowMarker) Process(frame []byte, meta *Meta) Verdict {
	p, st := packet.Parse(frame)
	if st != packet.StatusOK {
		return f.stats.record(Verdict{Reason: ReasonMalformed})
	}
	return f.stats.record(f.classify(&p, meta))
}

func (f *FlowMarker) classify(p *packet.Packet, meta *Meta) Verdict {
	if isPrivatePair(p) {
		return Verdict{Reason: ReasonPrivatePair}
	}
	if !f.ips.Classify(p.IP.Src(), p.IP.Dst()) {
		return Verdict{Reason: ReasonNotAccelerated}
	}
	if meta != nil {
		meta.Mark = f.mark
	}
	return Verdict{Marked: true, Reason: ReasonMarked}
}

// Mark returns the configured mark value.
func (f *FlowMarker) Mark() uint32 { return f.mark }

// Stats returns the verdict counters.
func (f *FlowMarker) Stats() *Stats { return &f.stats }

func isPrivatePair(p *packet.Packet) bool {
	return netaddr.IsPrivate(p.IP.Src()) && netaddr.IsPrivate(p.IP.Dst())
}
