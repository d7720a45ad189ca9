package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed hashes.
// The version suffix leaves room for algorithm changes.
const (
	DomainKind = "specialize/kind/v1"
	DomainArgs = "specialize/args/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// KindHash computes the content hash of a node kind declaration.
// Two declarations hash equal only if they declare the same specializations,
// guards, implementations and rewrite kinds in the same order.
func KindHash(kind *NodeKind) (string, error) {
	canonical, err := MarshalCanonical(kind.canonicalMap())
	if err != nil {
		return "", fmt.Errorf("KindHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainKind, canonical), nil
}

// ArgsHash computes the content hash of an argument snapshot.
func ArgsHash(args Args) (string, error) {
	canonical, err := MarshalArgs(args)
	if err != nil {
		return "", fmt.Errorf("ArgsHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainArgs, canonical), nil
}

// MustKindHash is like KindHash but panics on error.
// Use only in tests or when the declaration is known to be valid.
func MustKindHash(kind *NodeKind) string {
	h, err := KindHash(kind)
	if err != nil {
		panic(err)
	}
	return h
}
