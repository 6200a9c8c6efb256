package service

import (
	"context"
	"fmt"

	"usdc-settlement-ledger/internal/core/domain"
	"usdc-settlement-ledger/internal/core/ports"
	"usdc-settlement-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

// TreasuryServiceImpl implements ports.TreasuryService.
type TreasuryServiceImpl struct {
	treasuryRepo ports.TreasuryRepository
	clock        ports.Clock
	log          zerolog.Logger
}

// NewTreasuryService creates a new TreasuryServiceImpl.
func NewTreasuryService(treasuryRepo ports.TreasuryRepository, clock ports.Clock, log zerolog.Logger) *TreasuryServiceImpl {
	return &TreasuryServiceImpl{treasuryRepo: treasuryRepo, clock: clock, log: log}
}

// Initialize creates the treasury singleton. The row lives at a fixed key, so
// a second initialization collides and fails with STATE_002 regardless of who
// calls it.
func (s *TreasuryServiceImpl) Initialize(ctx context.Context, req ports.InitTreasuryRequest) (*domain.Treasury, error) {
	if req.Authority == "" {
		return nil, apperror.Validation("authority is required")
	}
	if req.USDCMint == "" {
		return nil, apperror.ErrInvalidMint()
	}
	// The pool is a token account holding the mint, never the mint itself.
	if req.TreasuryTokenAccount == "" || req.TreasuryTokenAccount == req.USDCMint {
		return nil, apperror.ErrInvalidTreasuryTokenAccount()
	}
	if err := domain.ValidateFeeBps(req.FeeBps); err != nil {
		return nil, err
	}

	treasury := &domain.Treasury{
		Authority:            req.Authority,
		USDCMint:             req.USDCMint,
		TreasuryTokenAccount: req.TreasuryTokenAccount,
		FeeBps:               req.FeeBps,
		Version:              domain.TreasuryLayoutVersion,
		CreatedAt:            s.clock.Now().UTC(),
	}

	if err := s.treasuryRepo.Create(ctx, treasury); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("authority", treasury.Authority).
		Str("usdc_mint", treasury.USDCMint).
		Uint16("fee_bps", treasury.FeeBps).
		Msg("treasury initialized")

	return treasury, nil
}

// Get returns the treasury singleton.
func (s *TreasuryServiceImpl) Get(ctx context.Context) (*domain.Treasury, error) {
	treasury, err := s.treasuryRepo.Get(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load treasury: %w", err))
	}
	if treasury == nil {
		return nil, apperror.ErrNotFound("Treasury")
	}
	return treasury, nil
}
