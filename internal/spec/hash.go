package spec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with old hashes.
const (
	DomainSpec  = "crossplot/spec/v1"
	DomainState = "crossplot/state/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash returns the canonical content hash of a chart spec.
func Hash(s ChartSpec) (string, error) {
	canonical, err := MarshalCanonical(s)
	if err != nil {
		return "", fmt.Errorf("hash spec: %w", err)
	}
	return hashWithDomain(DomainSpec, canonical), nil
}

// HashValue returns the canonical content hash of an arbitrary JSON value
// under the given domain.
func HashValue(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("hash value: %w", err)
	}
	return hashWithDomain(domain, canonical), nil
}

// Equal reports whether two specs are deep-equal as JSON documents. Specs
// that cannot be canonicalized are never equal.
func Equal(a, b ChartSpec) bool {
	ha, err := Hash(a)
	if err != nil {
		return false
	}
	hb, err := Hash(b)
	if err != nil {
		return false
	}
	return ha == hb
}
