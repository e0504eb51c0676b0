package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeRunID computes a deterministic run_id using SHA256.
// Formula: SHA256(campaign_id|strategy_id|started_at|attempt_seq)
// Returns hex-encoded hash truncated to 32 characters; collisions are
// practically impossible within one campaign.
func ComputeRunID(campaignID, strategyID string, startedAt int64, attemptSeq int) string {
	data := fmt.Sprintf("%s|%s|%d|%d", campaignID, strategyID, startedAt, attemptSeq)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])[:32]
}
