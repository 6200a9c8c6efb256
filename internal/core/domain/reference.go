package domain

import (
	"crypto/sha256"
	"encoding/hex"

	"usdc-settlement-ledger/pkg/apperror"
)

// CommitReference computes the 32-byte commitment of an external payment
// reference. The hex form of this digest is the deterministic storage key of
// the reference's TransactionRecord, so callers can derive the key before the
// record exists.
func CommitReference(reference string) [32]byte {
	return sha256.Sum256([]byte(reference))
}

// ReferenceDigestHex returns the lowercase hex commitment of a reference.
func ReferenceDigestHex(reference string) string {
	sum := CommitReference(reference)
	return hex.EncodeToString(sum[:])
}

// VerifyReference checks that the caller's claimed digest matches the
// recomputed commitment of the supplied reference. This runs before any other
// check on every settlement and scoring operation.
func VerifyReference(reference string, claimedDigestHex string) error {
	claimed, err := hex.DecodeString(claimedDigestHex)
	if err != nil || len(claimed) != sha256.Size {
		return apperror.ErrReferenceHashMismatch()
	}
	sum := CommitReference(reference)
	for i := range sum {
		if sum[i] != claimed[i] {
			return apperror.ErrReferenceHashMismatch()
		}
	}
	return nil
}

// ValidateReferenceLength checks the reference byte-length upper bound.
func ValidateReferenceLength(reference string) error {
	if len(reference) > MaxReferenceBytes {
		return apperror.ErrReferenceTooLong()
	}
	return nil
}
