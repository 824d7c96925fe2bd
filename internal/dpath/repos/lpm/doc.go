// Package lpm implements the longest-prefix-match tables behind the blacklist,
// the IP whitelist and the domain whitelist.
//
// IPv4 prefixes live in a bart routing table. Reversed domain keys are up to
// 512 bits wide and live in an lpmtrie, which follows the kernel's
// BPF_MAP_TYPE_LPM_TRIE matching rules. Both tables enforce a fixed capacity
// the way a pinned map would.
package lpm

import "errors"

var (
	// ErrTableFull is returned when an insert would exceed the table capacity.
	ErrTableFull = errors.New("lpm: table full")
	// ErrInvalidPrefix is returned for prefix lengths beyond the key width.
	ErrInvalidPrefix = errors.New("lpm: invalid prefix")
	// ErrNotFound is returned by Delete when no entry has the exact prefix.
	ErrNotFound = errors.New("lpm: entry not found")
)

// full reports whether a table holding n entries can take no more.
// capacity <= 0 means unbounded.
func full(n, capacity int) bool {
	return capacity > 0 && n >= capacity
}
