package classifier

import "github.com/netaccel/direct-path/internal/dpath/domain"

// IPClassifier decides whether a flow is accelerated.
type IPClassifier interface {
	Classify(src, dst uint32) bool
}

// DomainMatcher decides whether a decoded query name is whitelisted.
type DomainMatcher interface {
	MatchDomain(k *domain.DomainKey) bool
}
