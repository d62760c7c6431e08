// Package lead implements lead normalization, identity fingerprinting, and
// deduplication against local storage.
package lead

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/sells-group/leadsync/internal/model"
)

// Fingerprint computes the stable identity key for a lead from its
// normalized email, full name, organization, and website domain. Equivalent
// inputs that differ only in casing or whitespace yield the same key.
func Fingerprint(email, fullName, organization, domain string) string {
	parts := []string{
		canonical(email),
		canonical(fullName),
		canonical(organization),
		canonical(domain),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// FingerprintFor computes the fingerprint from a lead's current fields,
// using the website domain when present and the email domain otherwise.
// Every place that assigns a fingerprint goes through this so the domain
// selection never drifts.
func FingerprintFor(l model.Lead) string {
	return Fingerprint(l.Email, l.FullName(), l.Organization, domainFor(l))
}

// canonical lowercases, trims, and collapses internal whitespace runs to a
// single space.
func canonical(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
