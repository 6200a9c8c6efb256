package domain

import (
	"math"
	"time"

	"github.com/google/uuid"

	"usdc-settlement-ledger/pkg/apperror"
)

// MaxCountryBytes bounds the opaque country code stored per student.
const MaxCountryBytes = 32

// StudentLayoutVersion tags the persisted student record layout.
const StudentLayoutVersion = 1

// Student represents one registered participant able to send and receive
// settled value. Students are keyed by their owning wallet address; at most
// one student exists per owner.
type Student struct {
	ID           uuid.UUID `json:"id"`
	Owner        string    `json:"owner"` // on-chain wallet address, unique
	Country      string    `json:"country"`
	IsFrozen     bool      `json:"is_frozen"`
	TotalVolume  uint64    `json:"total_volume"` // cumulative settled volume, never decreases
	Flagged      bool      `json:"flagged"`
	AccessKey    string    `json:"access_key"`
	SecretKeyEnc string    `json:"-"` // Encrypted, never expose
	Version      int16     `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AddVolume increments the cumulative settled volume with checked addition.
// Volume must never wrap; overflow fails the whole settlement.
func (s *Student) AddVolume(amount uint64) error {
	if s.TotalVolume > math.MaxUint64-amount {
		return apperror.ErrMathOverflow()
	}
	s.TotalVolume += amount
	return nil
}

// ValidateCountry checks the country byte-length bound.
func ValidateCountry(country string) error {
	if len(country) > MaxCountryBytes {
		return apperror.ErrCountryTooLong()
	}
	return nil
}
