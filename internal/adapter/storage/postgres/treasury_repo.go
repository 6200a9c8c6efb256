package postgres

import (
	"context"
	"errors"
	"fmt"

	"usdc-settlement-ledger/internal/core/domain"
	"usdc-settlement-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// TreasuryRepo implements ports.TreasuryRepository. The treasury is a
// singleton row stored at a fixed key; the primary key collision on a second
// insert is what makes initialization once-only.
type TreasuryRepo struct {
	pool Pool
}

// NewTreasuryRepo creates a new TreasuryRepo.
func NewTreasuryRepo(pool Pool) *TreasuryRepo {
	return &TreasuryRepo{pool: pool}
}

// Create inserts the treasury singleton at its fixed key.
func (r *TreasuryRepo) Create(ctx context.Context, t *domain.Treasury) error {
	query := `INSERT INTO treasury (key, authority, usdc_mint, treasury_token_account, fee_bps, version, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		domain.TreasuryKey, t.Authority, t.USDCMint, t.TreasuryTokenAccount,
		t.FeeBps, t.Version, t.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return apperror.ErrAlreadyExists("Treasury")
		}
		return fmt.Errorf("insert treasury: %w", err)
	}
	return nil
}

// Get fetches the treasury singleton. Returns nil if not yet initialized.
func (r *TreasuryRepo) Get(ctx context.Context) (*domain.Treasury, error) {
	query := `SELECT authority, usdc_mint, treasury_token_account, fee_bps, version, created_at
		FROM treasury WHERE key = $1`

	t := &domain.Treasury{}
	err := r.pool.QueryRow(ctx, query, domain.TreasuryKey).Scan(
		&t.Authority, &t.USDCMint, &t.TreasuryTokenAccount,
		&t.FeeBps, &t.Version, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get treasury: %w", err)
	}
	return t, nil
}
