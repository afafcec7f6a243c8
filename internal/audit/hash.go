package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/agentsh/guardian/pkg/types"
)

// GenesisHash is the prev_hash of the first record in an empty log.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// canonicalFields returns the hashable representation of a receipt: every
// field except hash itself, as a flat map so json.Marshal emits sorted
// keys with no extra whitespace.
func canonicalFields(r types.Receipt) map[string]any {
	m := map[string]any{
		"ts":         r.TS,
		"intent":     string(r.Intent),
		"command":    r.Command,
		"decision":   string(r.Decision),
		"reason":     r.Reason,
		"token_id":   nil,
		"expires_at": nil,
		"prev_hash":  r.PrevHash,
	}
	if r.TokenID != nil {
		m["token_id"] = *r.TokenID
	}
	if r.ExpiresAt != nil {
		m["expires_at"] = *r.ExpiresAt
	}
	return m
}

// ComputeHash digests the canonical serialization of a receipt's fields
// (prev_hash included, hash excluded).
func ComputeHash(r types.Receipt) (string, error) {
	return hashCanonical(canonicalFields(r))
}

// hashCanonical digests an already-parsed record map, dropping any stored
// "hash" key. Verification hashes the record exactly as stored, so a
// tampered or injected field changes the digest.
func hashCanonical(fields map[string]any) (string, error) {
	m := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == "hash" {
			continue
		}
		m[k] = v
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("canonicalize receipt: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
