package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity. The version suffix
// enables future algorithm migration.
const (
	DomainResolution = "overrule/resolution/v1"
	DomainUniverse   = "overrule/universe/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ResolutionID computes the content-addressed ID of a resolution record.
// The ID is stable across restarts and replays given the same call: the
// same call token, operation, variant, operand types, and sequence number
// always produce the same ID, which makes replay comparison a string
// equality check.
func ResolutionID(callToken, op, variant string, inputTypes []string, seq int64) (string, error) {
	obj := Object{
		"call_token":  String(callToken),
		"op":          String(op),
		"variant":     String(variant),
		"input_types": StringsToArray(inputTypes),
		"seq":         Int(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("ResolutionID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainResolution, canonical), nil
}

// UniverseHash computes the content-addressed hash of a compiled universe
// spec, given its canonical object form. Stored on every resolution so a
// trace can be matched back to the exact universe that produced it.
func UniverseHash(spec Object) (string, error) {
	canonical, err := MarshalCanonical(spec)
	if err != nil {
		return "", fmt.Errorf("UniverseHash: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainUniverse, canonical), nil
}

// MustResolutionID is like ResolutionID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustResolutionID(callToken, op, variant string, inputTypes []string, seq int64) string {
	id, err := ResolutionID(callToken, op, variant, inputTypes, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// MustUniverseHash is like UniverseHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustUniverseHash(spec Object) string {
	h, err := UniverseHash(spec)
	if err != nil {
		panic(err)
	}
	return h
}
