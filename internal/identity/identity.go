// Package identity derives the pseudonymous user ids sent to rate limiters,
// logs and the usage ledger. Raw host user ids never leave the orchestrator.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
)

// Pseudonymizer maps a host user id to a stable opaque id.
type Pseudonymizer interface {
	Hash(userID string) string
}

// SiteHasher hashes user ids salted with the site identifier.
type SiteHasher struct {
	siteIdentifier string
}

// New creates a SiteHasher for siteIdentifier.
func New(siteIdentifier string) SiteHasher {
	return SiteHasher{siteIdentifier: siteIdentifier}
}

// Hash returns hex(sha256(siteIdentifier + userID)).
func (h SiteHasher) Hash(userID string) string {
	sum := sha256.Sum256([]byte(h.siteIdentifier + userID))
	return hex.EncodeToString(sum[:])
}

var _ Pseudonymizer = SiteHasher{}
