package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"usdc-settlement-ledger/internal/core/domain"
	"usdc-settlement-ledger/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// RecordRepo implements ports.RecordRepository.
type RecordRepo struct {
	pool Pool
}

// NewRecordRepo creates a new RecordRepo.
func NewRecordRepo(pool Pool) *RecordRepo {
	return &RecordRepo{pool: pool}
}

const recordColumns = `reference_digest, initialized, sender, receiver, amount, settled_at, reference, fraud_score, is_flagged, version`

// InsertIfAbsent atomically claims the record slot for a reference digest.
// ON CONFLICT DO NOTHING makes concurrent claimants race safely: exactly one
// insert wins and the rest observe zero affected rows.
func (r *RecordRepo) InsertIfAbsent(ctx context.Context, tx pgx.Tx, rec *domain.TransactionRecord) (bool, error) {
	query := `INSERT INTO transaction_records (reference_digest, initialized, sender, receiver, amount, settled_at, reference, fraud_score, is_flagged, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (reference_digest) DO NOTHING`

	tag, err := tx.Exec(ctx, query,
		rec.ReferenceDigest, rec.Initialized, rec.Sender, rec.Receiver,
		rec.Amount, rec.Timestamp, rec.Reference, rec.FraudScore,
		rec.IsFlagged, rec.Version,
	)
	if err != nil {
		return false, fmt.Errorf("insert transaction record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByDigest fetches a record by reference digest (without locking).
func (r *RecordRepo) GetByDigest(ctx context.Context, digest string) (*domain.TransactionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM transaction_records WHERE reference_digest = $1`
	return scanRecord(r.pool.QueryRow(ctx, query, digest))
}

// GetByDigestForUpdate fetches and row-locks a record within a transaction.
func (r *RecordRepo) GetByDigestForUpdate(ctx context.Context, tx pgx.Tx, digest string) (*domain.TransactionRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM transaction_records WHERE reference_digest = $1 FOR UPDATE`
	return scanRecord(tx.QueryRow(ctx, query, digest))
}

// UpdateFraud sets the fraud score and flag within a transaction. Settlement
// fields are never touched here.
func (r *RecordRepo) UpdateFraud(ctx context.Context, tx pgx.Tx, digest string, score uint8, flagged bool) error {
	query := `UPDATE transaction_records SET fraud_score = $1, is_flagged = $2 WHERE reference_digest = $3`

	tag, err := tx.Exec(ctx, query, score, flagged, digest)
	if err != nil {
		return fmt.Errorf("update record fraud fields: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction record not found: %s", digest)
	}
	return nil
}

// List fetches transaction records with filtering and pagination.
func (r *RecordRepo) List(ctx context.Context, params ports.RecordListParams) ([]domain.TransactionRecord, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.Wallet != nil {
		conditions = append(conditions, fmt.Sprintf("(sender = $%d OR receiver = $%d)", argIdx, argIdx))
		args = append(args, *params.Wallet)
		argIdx++
	}
	if params.Flagged != nil {
		conditions = append(conditions, fmt.Sprintf("is_flagged = $%d", argIdx))
		args = append(args, *params.Flagged)
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM transaction_records %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transaction records: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM transaction_records %s ORDER BY settled_at DESC LIMIT $%d OFFSET $%d`,
		recordColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list transaction records: %w", err)
	}
	defer rows.Close()

	var records []domain.TransactionRecord
	for rows.Next() {
		rec := domain.TransactionRecord{}
		err := rows.Scan(
			&rec.ReferenceDigest, &rec.Initialized, &rec.Sender, &rec.Receiver,
			&rec.Amount, &rec.Timestamp, &rec.Reference, &rec.FraudScore,
			&rec.IsFlagged, &rec.Version,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan record row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate record rows: %w", err)
	}
	return records, total, nil
}

// GetStats retrieves aggregated ledger statistics.
func (r *RecordRepo) GetStats(ctx context.Context) (*ports.LedgerStats, error) {
	query := `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE is_flagged) AS flagged,
		COALESCE(SUM(amount), 0) AS total_volume,
		COALESCE(AVG(fraud_score), 0) AS average_score,
		COALESCE(MAX(amount), 0) AS highest_amount
		FROM transaction_records`

	stats := &ports.LedgerStats{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&stats.TotalRecords, &stats.Flagged, &stats.TotalVolume,
		&stats.AverageScore, &stats.HighestAmount,
	)
	if err != nil {
		return nil, fmt.Errorf("get ledger stats: %w", err)
	}
	return stats, nil
}

// scanRecord is a helper to scan a single row into a TransactionRecord.
func scanRecord(row pgx.Row) (*domain.TransactionRecord, error) {
	rec := &domain.TransactionRecord{}
	err := row.Scan(
		&rec.ReferenceDigest, &rec.Initialized, &rec.Sender, &rec.Receiver,
		&rec.Amount, &rec.Timestamp, &rec.Reference, &rec.FraudScore,
		&rec.IsFlagged, &rec.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction record: %w", err)
	}
	return rec, nil
}
