package domain

import (
	"time"
)

const (
	// MaxReferenceBytes bounds the external payment reference string.
	MaxReferenceBytes = 64

	// FraudFlagThreshold is the strict lower bound above which a scored
	// transaction is flagged (score > 75 flags; 75 itself does not).
	FraudFlagThreshold = 75

	// RecordLayoutVersion tags the persisted transaction record layout.
	RecordLayoutVersion = 1
)

// TransactionRecord is the idempotency and audit record for one settlement.
// It is keyed by the hex SHA-256 digest of the external reference, so at most
// one record can ever exist per distinct reference, across all three
// settlement flows. Settlement fields are write-once; only the fraud fields
// may change afterwards.
type TransactionRecord struct {
	ReferenceDigest string    `json:"reference_digest"` // hex, 64 chars
	Initialized     bool      `json:"initialized"`
	Sender          string    `json:"sender"`
	Receiver        string    `json:"receiver"`
	Amount          uint64    `json:"amount"`
	Timestamp       time.Time `json:"timestamp"`
	Reference       string    `json:"reference"` // verified external reference, audit copy
	FraudScore      uint8     `json:"fraud_score"`
	IsFlagged       bool      `json:"is_flagged"`
	Version         int16     `json:"-"`
}

// ShouldFlag reports whether a fraud score crosses the flagging threshold.
func ShouldFlag(score uint8) bool {
	return score > FraudFlagThreshold
}
