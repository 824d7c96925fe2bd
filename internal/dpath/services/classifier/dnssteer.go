package classifier

import (
	"errors"

	"github.com/netaccel/direct-path/internal/dpath/domain"
	"github.com/netaccel/direct-path/internal/dpath/gateways/packet"
	"github.com/netaccel/direct-path/internal/dpath/gateways/wire"
)

// DNSSteer redirects queries for whitelisted names to the internal resolver
// port and restores the standard port on the replies. Only traffic between
// two private endpoints is touched.
type DNSSteer struct {
	domains      DomainMatcher
	decoder      *wire.Decoder
	dnsPort      uint16
	resolverPort uint16
	stats        Stats
}

type SteerOptions struct {
	Domains     DomainMatcher
	LabelPolicy wire.LabelPolicy
	// Zero ports select domain.DNSPort and domain.ResolverPort.
	DNSPort      uint16
	ResolverPort uint16
}

func NewDNSSteer(opts SteerOptions) (*DNSSteer, error) {
	if opts.Domains == nil {
		return nil, errors.New("classifier: domain matcher is required")
	}
	if opts.DNSPort == 0 {
		opts.DNSPort = domain.DNSPort
	}
	if opts.ResolverPort == 0 {
		opts.ResolverPort = domain.ResolverPort
	}
	if opts.DNSPort == opts.ResolverPort {
		return nil, errors.New("classifier: dns and resolver ports must differ")
	}
	return &DNSSteer{
		domains:      opts.Domains,
		decoder:      wire.NewDecoder(opts.LabelPolicy),
		dnsPort:      opts.DNSPort,
		resolverPort: opts.ResolverPort,
	}, nil
}

// Process steers a query or restores a reply, whichever applies.
func (s *DNSSteer) Process(frame []byte, _ *Meta) Verdict {
	p, v, ok := s.privateUDP(frame)
	if !ok {
		return s.stats.record(v)
	}
	switch {
	case p.UDP.DstPort() == s.dnsPort:
		return s.stats.record(s.steer(&p))
	case p.UDP.SrcPort() == s.resolverPort:
		return s.stats.record(s.restore(&p))
	default:
		return s.stats.record(Verdict{Reason: ReasonOtherPort})
	}
}

// Egress handles the query direction only.
func (s *DNSSteer) Egress(frame []byte) Verdict {
	p, v, ok := s.privateUDP(frame)
	if !ok {
		return s.stats.record(v)
	}
	if p.UDP.DstPort() != s.dnsPort {
		return s.stats.record(Verdict{Reason: ReasonOtherPort})
	}
	return s.stats.record(s.steer(&p))
}

// Return handles the reply direction only.
func (s *DNSSteer) Return(frame []byte) Verdict {
	p, v, ok := s.privateUDP(frame)
	if !ok {
		return s.stats.record(v)
	}
	if p.UDP.SrcPort() != s.resolverPort {
		return s.stats.record(Verdict{Reason: ReasonOtherPort})
	}
	return s.stats.record(s.restore(&p))
}

func (s *DNSSteer) privateUDP(frame []byte) (packet.Packet, Verdict, bool) {
	p, st := packet.Parse(frame)
	if st != packet.StatusOK {
		return p, Verdict{Reason: ReasonMalformed}, false
	}
	if !p.IsUDP() {
		return p, Verdict{Reason: ReasonNotUDP}, false
	}
	if !isPrivatePair(&p) {
		return p, Verdict{Reason: ReasonPublicEndpoint}, false
	}
	return p, Verdict{}, true
}

func (s *DNSSteer) steer(p *packet.Packet) Verdict {
	key, res := s.decoder.Decode(p.Payload)
	defer s.decoder.Release(key)
	if !res.OK() {
		return Verdict{Reason: ReasonUndecodable}
	}
	if !s.domains.MatchDomain(key) {
		return Verdict{Reason: ReasonNoMatch}
	}
	p.UDP.SetDstPort(s.resolverPort)
	return Verdict{Modified: true, Reason: ReasonSteered}
}

func (s *DNSSteer) restore(p *packet.Packet) Verdict {
	p.UDP.SetSrcPort(s.dnsPort)
	return Verdict{Modified: true, Reason: ReasonRestored}
}

// Stats returns the verdict counters.
func (s *DNSSteer) Stats() *Stats { return &s.stats }
