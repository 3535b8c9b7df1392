package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/finguard/finguard/internal/models"
)

// GenesisHash is the previous_hash of the first record in any subject's chain.
var GenesisHash = strings.Repeat("0", 64)

// canonicalTimeFormat renders timestamps at fixed microsecond precision so the
// encoding is byte-stable across append and verify, including after a round
// trip through Postgres timestamptz columns.
const canonicalTimeFormat = "2006-01-02T15:04:05.000000Z07:00"

// ComputeHash returns the lowercase hex SHA-256 digest of the record's
// canonical encoding. The encoding is a JSON object with lexicographically
// sorted keys over the committed field set; previous_hash is part of the
// hashed content, which is what links records into a chain. The same function
// runs at append time and verification time.
func ComputeHash(r *models.AuditRecord) string {
	assets := r.AffectedAssets
	if assets == nil {
		assets = []string{}
	}

	payload := map[string]interface{}{
		"id":              r.ID,
		"subject_id":      r.SubjectID,
		"timestamp":       r.Timestamp.UTC().Format(canonicalTimeFormat),
		"action_type":     string(r.ActionType),
		"description":     r.Description,
		"affected_assets": assets,
		"previous_hash":   r.PreviousHash,
		"sequence_number": r.SequenceNumber,
	}

	// encoding/json sorts map keys, giving an order-stable byte sequence.
	// All value types above marshal deterministically.
	encoded, err := json.Marshal(payload)
	if err != nil {
		// Unreachable: the payload contains only strings, a string slice
		// and an integer.
		panic(err)
	}

	digest := sha256.Sum256(encoded)
	return hex.EncodeToString(digest[:])
}

// hashPreview truncates a hash for human-readable issue detail.
func hashPreview(hash string) string {
	if len(hash) <= 16 {
		return hash
	}
	return hash[:16] + "..."
}
