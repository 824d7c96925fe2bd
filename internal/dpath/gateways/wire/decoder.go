// Package wire extracts the question name of a DNS query from a raw UDP
// payload and turns it into a reversed domain.DomainKey.
//
// The decoder never follows compression pointers and never looks past the
// first 64 bytes of the name: every loop has a fixed trip count.
package wire

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/netaccel/direct-path/internal/dpath/domain"
)

// LabelPolicy selects how a length byte >= 63 inside the name is handled.
type LabelPolicy uint8

const (
	// LabelSkip drops the byte and keeps scanning for the next label start.
	LabelSkip LabelPolicy = iota
	// LabelAbort gives up on the packet.
	LabelAbort
)

func (p LabelPolicy) String() string {
	switch p {
	case LabelSkip:
		return "skip"
	case LabelAbort:
		return "abort"
	default:
		return fmt.Sprintf("LabelPolicy(%d)", p)
	}
}

// ParseLabelPolicy accepts "skip" or "abort".
func ParseLabelPolicy(s string) (LabelPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "skip", "":
		return LabelSkip, nil
	case "abort":
		return LabelAbort, nil
	default:
		return 0, fmt.Errorf("unsupported label policy: %q", s)
	}
}

// Reason says why a payload was passed through. ReasonDecoded means a key
// was produced.
type Reason uint8

const (
	ReasonDecoded Reason = iota
	ReasonTruncated
	ReasonQDCount
	ReasonNotQuery
	ReasonOpcode
	ReasonEmptyName
	ReasonLabelTooLong
)

func (r Reason) String() string {
	switch r {
	case ReasonDecoded:
		return "decoded"
	case ReasonTruncated:
		return "truncated"
	case ReasonQDCount:
		return "qdcount"
	case ReasonNotQuery:
		return "not_query"
	case ReasonOpcode:
		return "opcode"
	case ReasonEmptyName:
		return "empty_name"
	case ReasonLabelTooLong:
		return "label_too_long"
	default:
		return fmt.Sprintf("Reason(%d)", r)
	}
}

// Result of DecodeQueryName. Copied is the number of name bytes written into
// the key; Iterations is the number of payload bytes examined (<= 64).
type Result struct {
	Reason     Reason
	Copied     int
	Iterations int
}

// OK reports whether a key was produced.
func (r Result) OK() bool { return r.Reason == ReasonDecoded }

const minQueryLen = domain.DNSHeaderLen + 2

// DecodeQueryName validates the DNS header in payload and writes the
// reversed question name into key. key is zeroed first, whatever the outcome.
//
// Only standard queries with exactly one question are decoded. Length bytes
// are copied as-is; label bytes outside [0-9a-zA-Z_-] end the current label
// and are dropped; upper case is folded to lower case. Copying stops at a zero
// byte, at the end of the payload or after 64 bytes.
func DecodeQueryName(payload []byte, key *domain.DomainKey, policy LabelPolicy) Result {
	key.Reset()

	if len(payload) < minQueryLen {
		return Result{Reason: ReasonTruncated}
	}
	if binary.BigEndian.Uint16(payload[domain.DNSQDCountOffset:]) != 1 {
		return Result{Reason: ReasonQDCount}
	}
	flags := payload[2]
	if flags>>7 != 0 {
		return Result{Reason: ReasonNotQuery}
	}
	if (flags>>3)&0x0F != 0 {
		return Result{Reason: ReasonOpcode}
	}

	name := payload[domain.DNSHeaderLen:]
	n, iters := 0, 0
	remaining := byte(0)
	for i := 0; i < domain.DomainMaxLen; i++ {
		if i >= len(name) || name[i] == 0 {
			break
		}
		iters++
		c := name[i]
		if remaining == 0 {
			if c >= domain.DNSLabelMaxLen {
				if policy == LabelAbort {
					key.Reset()
					return Result{Reason: ReasonLabelTooLong, Iterations: iters}
				}
				continue
			}
			remaining = c
		} else {
			if !validChar(c) {
				remaining = 0
				continue
			}
			if 'A' <= c && c <= 'Z' {
				c += 'a' - 'A'
			}
			remaining--
		}
		key.Domain[n] = c
		n++
	}

	if n == 0 || n > domain.DomainMaxLen {
		key.Reset()
		return Result{Reason: ReasonEmptyName, Iterations: iters}
	}
	key.PrefixLen = uint32(n * 8)
	reverse(key, n)
	return Result{Reason: ReasonDecoded, Copied: n, Iterations: iters}
}

func validChar(c byte) bool {
	switch {
	case '0' <= c && c <= '9':
	case 'a' <= c && c <= 'z':
	case 'A' <= c && c <= 'Z':
	case c == '-' || c == '_':
	default:
		return false
	}
	return true
}

// reverse swaps key.Domain[i] and key.Domain[n-1-i], at most 32 swaps.
func reverse(key *domain.DomainKey, n int) {
	for i := 0; i < domain.DomainMaxLen/2; i++ {
		j := n - 1 - i
		if i >= j {
			break
		}
		key.Domain[i], key.Domain[j] = key.Domain[j], key.Domain[i]
	}
}

// Decoder reuses scratch keys across calls.
type Decoder struct {
	policy LabelPolicy
	pool   sync.Pool
}

func NewDecoder(policy LabelPolicy) *Decoder {
	return &Decoder{
		policy: policy,
		pool:   sync.Pool{New: func() any { return new(domain.DomainKey) }},
	}
}

// Policy returns the configured label policy.
func (d *Decoder) Policy() LabelPolicy { return d.policy }

// Decode decodes payload into a pooled key. The caller must Release the key
// once done with it, on success or failure.
func (d *Decoder) Decode(payload []byte) (*domain.DomainKey, Result) {
	key := d.pool.Get().(*domain.DomainKey)
	return key, DecodeQueryName(payload, key, d.policy)
}

// Release returns a key obtained from Decode.
func (d *Decoder) Release(key *domain.DomainKey) {
	if key != nil {
		d.pool.Put(key)
	}
}
