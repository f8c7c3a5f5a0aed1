package changesource

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// DomainName separates change-source name fingerprints from any other
// digest stored alongside them. The version suffix allows algorithm migration.
const DomainName = "csledger/changesource-name/v1"

// FingerprintLen is the fixed width of a name fingerprint in hex characters.
const FingerprintLen = sha256.Size * 2

// NormalizeName trims surrounding whitespace and NFC-normalizes a change-source
// name so that canonically equivalent spellings resolve to one identity.
func NormalizeName(name string) (string, error) {
	n := norm.NFC.String(strings.TrimSpace(name))
	if n == "" {
		return "", fmt.Errorf("%w: name is empty", ErrInvalidName)
	}
	return n, nil
}

// Fingerprint computes the fixed-width lookup key for a normalized name.
// Format: hex(SHA256(domain + 0x00 + name)).
//
// A fingerprint is only an index pre-filter; equal fingerprints do not imply
// equal names.
func Fingerprint(name string) string {
	h := sha256.New()
	h.Write([]byte(DomainName))
	h.Write([]byte{0x00})
	h.Write([]byte(name))
	return hex.EncodeToString(h.Sum(nil))
}
