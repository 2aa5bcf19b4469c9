package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainDocument = "chord/ir/v1"
	DomainResult   = "chord/result/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentHash computes the content hash of a compiled document.
// Two compilations of the same source always hash identically; run records
// carry this hash so history can be tied back to the program that produced it.
func DocumentHash(doc *Document) (string, error) {
	raw, err := Marshal(doc, false)
	if err != nil {
		return "", fmt.Errorf("DocumentHash: %w", err)
	}
	val, err := UnmarshalValue(raw)
	if err != nil {
		return "", fmt.Errorf("DocumentHash: %w", err)
	}
	canonical, err := MarshalCanonical(val)
	if err != nil {
		return "", fmt.Errorf("DocumentHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDocument, canonical), nil
}

// ResultHash computes the content hash of an execution result.
func ResultHash(result Value) (string, error) {
	canonical, err := MarshalCanonical(result)
	if err != nil {
		return "", fmt.Errorf("ResultHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainResult, canonical), nil
}

// MustDocumentHash is like DocumentHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDocumentHash(doc *Document) string {
	h, err := DocumentHash(doc)
	if err != nil {
		panic(err)
	}
	return h
}
