package vcon

import (
	"crypto/sha1" //nolint:gosec // domain fingerprint, not a security boundary
	"time"

	"github.com/google/uuid"
)

// DefaultDomain seeds document identifiers when no domain is configured.
const DefaultDomain = "vcon.dev"

// UUID8DomainName builds a version 8 UUID from a millisecond timestamp and a
// domain fingerprint. Layout: 48 bits of unix milliseconds, the version
// nibble, 12 bits of sub-millisecond fraction, the RFC 4122 variant, then 62
// bits of SHA-1(domain).
func UUID8DomainName(domain string, now time.Time) uuid.UUID {
	var u uuid.UUID

	ms := uint64(now.UnixMilli())
	u[0] = byte(ms >> 40)
	u[1] = byte(ms >> 32)
	u[2] = byte(ms >> 24)
	u[3] = byte(ms >> 16)
	u[4] = byte(ms >> 8)
	u[5] = byte(ms)

	subsec := uint16(int64(now.Nanosecond()%1_000_000) * 4096 / 1_000_000)
	u[6] = 0x80 | byte(subsec>>8)&0x0f
	u[7] = byte(subsec)

	sum := sha1.Sum([]byte(domain))
	copy(u[8:], sum[:8])
	u[8] = 0x80 | u[8]&0x3f
	return u
}
