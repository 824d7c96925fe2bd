package domain

import "time"

// Wire and policy constants shared by the packet path and the importer.
const (
	// DNSHeaderLen is the fixed RFC 1035 header size.
	DNSHeaderLen = 12
	// DNSQDCountOffset is the byte offset of QDCOUNT inside the header.
	DNSQDCountOffset = 4
	// DomainMaxLen bounds the copied query name and every loop over it.
	// RFC 1035 allows 255; 64 keeps the per-packet work fixed.
	DomainMaxLen = 64
	// DNSLabelMaxLen is the smallest length byte treated as invalid.
	DNSLabelMaxLen = 63

	// DNSPort is the standard DNS port.
	DNSPort uint16 = 53
	// ResolverPort is the dedicated internal resolver for domestic names.
	ResolverPort uint16 = 15301

	// DirectMark tags accelerated flows for downstream policy routing.
	DirectMark uint32 = 0x88

	// HotpathMinPackets and HotpathMinAge gate promotion from the
	// pre-cache into the hotpath cache.
	HotpathMinPackets uint32 = 20
	HotpathMinAge            = 10 * time.Second
)

// Default table capacities.
const (
	HotpathCacheSize    = 65536
	PreCacheSize        = 65536
	BlacklistSize       = 8192
	IPWhitelistSize     = 16384
	DomainCacheSize     = 8192
	DomainWhitelistSize = 10485760
)
