package domain

import (
	"time"

	"usdc-settlement-ledger/pkg/apperror"
)

// MaxFeeBps is the upper bound for the treasury fee (100%).
const MaxFeeBps = 10_000

// TreasuryLayoutVersion tags the persisted treasury record layout.
const TreasuryLayoutVersion = 1

// TreasuryKey is the fixed storage key of the treasury singleton. A second
// initialization attempt collides on it and is rejected.
const TreasuryKey = "treasury"

// Treasury is the singleton custodial-pool configuration. Its fields are
// immutable after initialization; no update operation exists.
type Treasury struct {
	Authority            string    `json:"authority"` // controlling authority wallet
	USDCMint             string    `json:"usdc_mint"`
	TreasuryTokenAccount string    `json:"treasury_token_account"` // custodial pool account
	FeeBps               uint16    `json:"fee_bps"`
	Version              int16     `json:"-"`
	CreatedAt            time.Time `json:"created_at"`
}

// ValidateFeeBps checks the basis-point bound.
func ValidateFeeBps(feeBps uint16) error {
	if feeBps > MaxFeeBps {
		return apperror.ErrInvalidFeeBps()
	}
	return nil
}
