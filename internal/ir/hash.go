package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes.
// Version suffix enables future algorithm migration.
const (
	DomainDefinition = "appsim/definition/v1"
	DomainState      = "appsim/state/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DefinitionHash computes the content hash of an app definition.
// Two definitions that serialize to the same canonical JSON share a hash,
// regardless of key order or whitespace in their source files.
func DefinitionHash(def *AppDefinition) (string, error) {
	obj, err := def.ToObject()
	if err != nil {
		return "", fmt.Errorf("DefinitionHash: %w", err)
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DefinitionHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainDefinition, canonical), nil
}

// StateHash computes the content hash of a state document
// (the {per_agent, shared} object).
func StateHash(state IRObject) (string, error) {
	canonical, err := MarshalCanonical(state)
	if err != nil {
		return "", fmt.Errorf("StateHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// MustDefinitionHash is like DefinitionHash but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDefinitionHash(def *AppDefinition) string {
	h, err := DefinitionHash(def)
	if err != nil {
		panic(err)
	}
	return h
}
