package postgres

import (
	"context"
	"errors"
	"fmt"

	"usdc-settlement-ledger/internal/core/domain"
	"usdc-settlement-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// StudentRepo implements ports.StudentRepository.
type StudentRepo struct {
	pool Pool
}

// NewStudentRepo creates a new StudentRepo.
func NewStudentRepo(pool Pool) *StudentRepo {
	return &StudentRepo{pool: pool}
}

const studentColumns = `id, owner, country, is_frozen, total_volume, flagged, access_key, secret_key_enc, version, created_at, updated_at`

// Create inserts a new student within a database transaction. The owner
// column is unique; a duplicate registration maps to STATE_002.
func (r *StudentRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.Student) error {
	query := `INSERT INTO students (id, owner, country, is_frozen, total_volume, flagged, access_key, secret_key_enc, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := tx.Exec(ctx, query,
		s.ID, s.Owner, s.Country, s.IsFrozen, s.TotalVolume, s.Flagged,
		s.AccessKey, s.SecretKeyEnc, s.Version, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return apperror.ErrAlreadyExists("Student")
		}
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// GetByOwner fetches a student by owner wallet (without locking).
func (r *StudentRepo) GetByOwner(ctx context.Context, owner string) (*domain.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE owner = $1`
	return scanStudent(r.pool.QueryRow(ctx, query, owner))
}

// GetByAccessKey fetches a student by its public access key.
func (r *StudentRepo) GetByAccessKey(ctx context.Context, accessKey string) (*domain.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE access_key = $1`
	return scanStudent(r.pool.QueryRow(ctx, query, accessKey))
}

// GetByOwnerForUpdate fetches and row-locks a student within a transaction.
func (r *StudentRepo) GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, owner string) (*domain.Student, error) {
	query := `SELECT ` + studentColumns + ` FROM students WHERE owner = $1 FOR UPDATE`
	return scanStudent(tx.QueryRow(ctx, query, owner))
}

// UpdateVolume sets a student's cumulative volume within a transaction.
func (r *StudentRepo) UpdateVolume(ctx context.Context, tx pgx.Tx, id uuid.UUID, totalVolume uint64) error {
	query := `UPDATE students SET total_volume = $1, updated_at = NOW() WHERE id = $2`

	tag, err := tx.Exec(ctx, query, totalVolume, id)
	if err != nil {
		return fmt.Errorf("update student volume: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("student not found: %s", id)
	}
	return nil
}

// SetFrozen marks a student frozen within a transaction. There is no unfreeze.
func (r *StudentRepo) SetFrozen(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE students SET is_frozen = TRUE, updated_at = NOW() WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("freeze student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("student not found: %s", id)
	}
	return nil
}

// SetFlagged marks a student flagged within a transaction. One-way, like
// freezing.
func (r *StudentRepo) SetFlagged(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	query := `UPDATE students SET flagged = TRUE, updated_at = NOW() WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("flag student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("student not found: %s", id)
	}
	return nil
}

// scanStudent is a helper to scan a single row into a Student.
func scanStudent(row pgx.Row) (*domain.Student, error) {
	s := &domain.Student{}
	err := row.Scan(
		&s.ID, &s.Owner, &s.Country, &s.IsFrozen, &s.TotalVolume, &s.Flagged,
		&s.AccessKey, &s.SecretKeyEnc, &s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan student: %w", err)
	}
	return s, nil
}
