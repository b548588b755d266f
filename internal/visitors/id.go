package visitors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// IdentityLength is the number of hex characters kept from the IP+UA hash.
const IdentityLength = 16

const (
	anonymousIP      = "anon"
	missingUserAgent = "no-ua"
)

// Identity resolves the visitor key for a traffic row. An explicit client
// fingerprint is returned verbatim. Otherwise the key is a truncated SHA-256
// of "ip-userAgent", so visitors sharing both (e.g. behind one NAT with the
// same browser build) resolve to the same identity.
func Identity(fingerprint, ipAddress, userAgent string) string {
	if fingerprint != "" {
		return fingerprint
	}
	return HashIdentity(ipAddress, userAgent)
}

// HashIdentity derives the fallback key from IP and user agent only.
func HashIdentity(ipAddress, userAgent string) string {
	if ipAddress == "" {
		ipAddress = anonymousIP
	}
	if userAgent == "" {
		userAgent = missingUserAgent
	}

	hash := sha256.Sum256([]byte(fmt.Sprintf("%s-%s", ipAddress, userAgent)))
	return hex.EncodeToString(hash[:])[:IdentityLength]
}
