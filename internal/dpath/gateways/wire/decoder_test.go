package wire

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netaccel/direct-path/internal/dpath/domain"
)

func packQuery(t *testing.T, name string, mutate func(*dns.Msg)) []byte {
	t.Helper()
	m := new(dns.Msg)
	m.SetQuestion(name, dns.TypeA)
	if mutate != nil {
		mutate(m)
	}
	b, err := m.Pack()
	require.NoError(t, err)
	return b
}

// rawQuery builds a one-question header followed by the given name bytes.
func rawQuery(name []byte) []byte {
	hdr := make([]byte, domain.DNSHeaderLen)
	binary.BigEndian.PutUint16(hdr[0:2], 0xBEEF)
	hdr[2] = 0x01 // RD
	binary.BigEndian.PutUint16(hdr[4:6], 1)
	return append(hdr, name...)
}

func expectKey(t *testing.T, name string) domain.DomainKey {
	t.Helper()
	k, err := domain.EncodeDomainKey(name)
	require.NoError(t, err)
	return k
}

func TestDecodeQueryName_Valid(t *testing.T) {
	tests := []struct {
		qname string
		want  string
	}{
		{"baidu.com.", "baidu.com"},
		{"www.baidu.com.", "www.baidu.com"},
		{"WWW.Baidu.COM.", "www.baidu.com"},
		{"_dmarc.mail-01.qq.com.", "_dmarc.mail-01.qq.com"},
		{"cn.", "cn"},
	}
	for _, tt := range tests {
		t.Run(tt.qname, func(t *testing.T) {
			var key domain.DomainKey
			res := DecodeQueryName(packQuery(t, tt.qname, nil), &key, LabelSkip)
			require.True(t, res.OK(), res.Reason.String())

			want := expectKey(t, tt.want)
			assert.Equal(t, want, key)
			assert.Equal(t, len(want.Bytes()), res.Copied)
			assert.Equal(t, uint32(res.Copied*8), key.PrefixLen)
		})
	}
}

func TestDecodeQueryName_ReversedLayout(t *testing.T) {
	var key domain.DomainKey
	res := DecodeQueryName(packQuery(t, "baidu.com.", nil), &key, LabelSkip)
	require.True(t, res.OK())
	assert.Equal(t, 10, res.Copied)
	assert.Equal(t, []byte("moc\x03udiab\x05"), key.Bytes())

	com := expectKey(t, "com")
	assert.True(t, bytes.HasPrefix(key.Bytes(), com.Bytes()))
}

func TestDecodeQueryName_PassThrough(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    Reason
	}{
		{"empty payload", nil, ReasonTruncated},
		{"header only", make([]byte, 12), ReasonTruncated},
		{"two questions", packQuery(t, "baidu.com.", func(m *dns.Msg) {
			m.Question = append(m.Question, dns.Question{Name: "qq.com.", Qtype: dns.TypeA, Qclass: dns.ClassINET})
		}), ReasonQDCount},
		{"no question", rawQuery(nil)[:12:12], ReasonTruncated},
		{"response", packQuery(t, "baidu.com.", func(m *dns.Msg) { m.Response = true }), ReasonNotQuery},
		{"notify opcode", packQuery(t, "baidu.com.", func(m *dns.Msg) { m.Opcode = dns.OpcodeNotify }), ReasonOpcode},
		{"root name", packQuery(t, ".", nil), ReasonEmptyName},
		{"only invalid bytes", rawQuery([]byte{0x40, 0x41, 0x00}), ReasonEmptyName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := expectKey(t, "stale.example")
			res := DecodeQueryName(tt.payload, &key, LabelSkip)
			assert.Equal(t, tt.want, res.Reason)
			assert.False(t, res.OK())
			assert.Equal(t, domain.DomainKey{}, key, "scratch key must be zeroed")
		})
	}
}

func TestDecodeQueryName_ZeroCountField(t *testing.T) {
	payload := rawQuery([]byte("\x03com\x00"))
	binary.BigEndian.PutUint16(payload[4:6], 0)
	var key domain.DomainKey
	assert.Equal(t, ReasonQDCount, DecodeQueryName(payload, &key, LabelSkip).Reason)
}

func TestDecodeQueryName_InvalidCharResetsLabel(t *testing.T) {
	payload := rawQuery([]byte("\x03a*\x03com\x00"))

	var key domain.DomainKey
	res := DecodeQueryName(payload, &key, LabelSkip)
	require.True(t, res.OK())
	// "\x03a" survives, '*' is dropped and the next length byte starts a new label
	assert.Equal(t, []byte("moc\x03a\x03"), key.Bytes())
	assert.Equal(t, 6, res.Copied)
	assert.Equal(t, 7, res.Iterations)
}

func TestDecodeQueryName_LabelPolicy(t *testing.T) {
	payload := rawQuery([]byte("\x40\x03com\x00"))

	var key domain.DomainKey
	res := DecodeQueryName(payload, &key, LabelSkip)
	require.True(t, res.OK())
	assert.Equal(t, expectKey(t, "com"), key)

	res = DecodeQueryName(payload, &key, LabelAbort)
	assert.Equal(t, ReasonLabelTooLong, res.Reason)
	assert.Equal(t, domain.DomainKey{}, key)

	// 62 is still a valid label length
	label := bytes.Repeat([]byte("a"), 62)
	ok := rawQuery(append(append([]byte{62}, label...), 0))
	res = DecodeQueryName(ok, &key, LabelAbort)
	require.True(t, res.OK())
	assert.Equal(t, 63, res.Copied)
}

func TestDecodeQueryName_IterationCap(t *testing.T) {
	long := ""
	for i := 0; i < 10; i++ {
		long += "abcdefghi."
	}
	var key domain.DomainKey
	res := DecodeQueryName(packQuery(t, long, nil), &key, LabelSkip)
	require.True(t, res.OK())
	assert.Equal(t, domain.DomainMaxLen, res.Copied)
	assert.Equal(t, domain.DomainMaxLen, res.Iterations)
	assert.Equal(t, uint32(512), key.PrefixLen)
	// first wire byte ends up last
	assert.Equal(t, byte(9), key.Domain[63])

	// no terminator at all: still bounded
	unterminated := rawQuery(bytes.Repeat([]byte{5, 'a', 'b', 'c', 'd', 'e'}, 40))
	res = DecodeQueryName(unterminated, &key, LabelSkip)
	require.True(t, res.OK())
	assert.Equal(t, domain.DomainMaxLen, res.Iterations)
}

func TestDecodeQueryName_TruncatedName(t *testing.T) {
	// payload ends in the middle of a label
	payload := rawQuery([]byte("\x05bai"))
	var key domain.DomainKey
	res := DecodeQueryName(payload, &key, LabelSkip)
	require.True(t, res.OK())
	assert.Equal(t, []byte("iab\x05"), key.Bytes())
	_, wellFormed := key.Name()
	assert.False(t, wellFormed)
}

func TestDecodeQueryName_ScratchReuse(t *testing.T) {
	var key domain.DomainKey
	require.True(t, DecodeQueryName(packQuery(t, "very.long.subdomain.example.com.", nil), &key, LabelSkip).OK())
	require.True(t, DecodeQueryName(packQuery(t, "qq.com.", nil), &key, LabelSkip).OK())
	assert.Equal(t, expectKey(t, "qq.com"), key)
}

func TestDecoder_Pool(t *testing.T) {
	d := NewDecoder(LabelAbort)
	assert.Equal(t, LabelAbort, d.Policy())

	key, res := d.Decode(packQuery(t, "jd.com.", nil))
	require.True(t, res.OK())
	assert.Equal(t, expectKey(t, "jd.com"), *key)
	d.Release(key)
	d.Release(nil)

	key, res = d.Decode(packQuery(t, "x.", func(m *dns.Msg) { m.Response = true }))
	assert.False(t, res.OK())
	assert.Equal(t, domain.DomainKey{}, *key)
	d.Release(key)
}

func TestParseLabelPolicy(t *testing.T) {
	p, err := ParseLabelPolicy("ABORT")
	require.NoError(t, err)
	assert.Equal(t, LabelAbort, p)
	p, err = ParseLabelPolicy("")
	require.NoError(t, err)
	assert.Equal(t, LabelSkip, p)
	_, err = ParseLabelPolicy("drop")
	assert.Error(t, err)
	assert.Equal(t, "skip", LabelSkip.String())
	assert.Equal(t, "label_too_long", ReasonLabelTooLong.String())
}

func TestDecodeQueryName_MatchesEncodedRule(t *testing.T) {
	rule := expectKey(t, "Baidu.COM")
	var key domain.DomainKey
	res := DecodeQueryName(packQuery(t, "BAIDU.com.", nil), &key, LabelSkip)
	require.True(t, res.OK())
	assert.Equal(t, rule, key)
}
