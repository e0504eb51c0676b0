package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(strategy_id|entry_time|entry_index)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(strategyID string, entryTime int64, entryIndex int) string {
	data := fmt.Sprintf("%s|%d|%d", strategyID, entryTime, entryIndex)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
