package postgres

import (
	"context"
	"testing"
	"time"

	"usdc-settlement-ledger/internal/core/domain"
	"usdc-settlement-ledger/internal/core/ports"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() *domain.TransactionRecord {
	return &domain.TransactionRecord{
		ReferenceDigest: domain.ReferenceDigestHex("KTN-2024-0001"),
		Initialized:     true,
		Sender:          "treasuryPool",
		Receiver:        "walletA",
		Amount:          1000,
		Timestamp:       time.Now().UTC().Truncate(time.Microsecond),
		Reference:       "KTN-2024-0001",
		Version:         1,
	}
}

func TestRecordRepo_InsertIfAbsent_Claims(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRecordRepo(mock)
	rec := sampleRecord()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transaction_records").
		WithArgs(rec.ReferenceDigest, rec.Initialized, rec.Sender, rec.Receiver,
			rec.Amount, rec.Timestamp, rec.Reference, rec.FraudScore,
			rec.IsFlagged, rec.Version).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	inserted, err := repo.InsertIfAbsent(context.Background(), tx, rec)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepo_InsertIfAbsent_AlreadyClaimed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRecordRepo(mock)
	rec := sampleRecord()

	mock.ExpectBegin()
	// ON CONFLICT DO NOTHING: zero rows affected means an earlier settlement won
	mock.ExpectExec("INSERT INTO transaction_records").
		WithArgs(rec.ReferenceDigest, rec.Initialized, rec.Sender, rec.Receiver,
			rec.Amount, rec.Timestamp, rec.Reference, rec.FraudScore,
			rec.IsFlagged, rec.Version).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	inserted, err := repo.InsertIfAbsent(context.Background(), tx, rec)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepo_GetByDigest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRecordRepo(mock)
	rec := sampleRecord()

	mock.ExpectQuery("SELECT .+ FROM transaction_records WHERE reference_digest").
		WithArgs(rec.ReferenceDigest).
		WillReturnRows(pgxmock.NewRows([]string{
			"reference_digest", "initialized", "sender", "receiver", "amount",
			"settled_at", "reference", "fraud_score", "is_flagged", "version",
		}).AddRow(rec.ReferenceDigest, rec.Initialized, rec.Sender, rec.Receiver,
			rec.Amount, rec.Timestamp, rec.Reference, rec.FraudScore,
			rec.IsFlagged, rec.Version))

	got, err := repo.GetByDigest(context.Background(), rec.ReferenceDigest)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, rec.Sender, got.Sender)
	assert.Equal(t, rec.Amount, got.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepo_GetByDigest_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRecordRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM transaction_records WHERE reference_digest").
		WithArgs("missing-digest").
		WillReturnRows(pgxmock.NewRows([]string{
			"reference_digest", "initialized", "sender", "receiver", "amount",
			"settled_at", "reference", "fraud_score", "is_flagged", "version",
		}))

	got, err := repo.GetByDigest(context.Background(), "missing-digest")
	assert.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepo_UpdateFraud(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRecordRepo(mock)
	digest := domain.ReferenceDigestHex("KTN-2024-0002")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE transaction_records SET fraud_score").
		WithArgs(uint8(80), true, digest).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.UpdateFraud(context.Background(), tx, digest, 80, true)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepo_List_FlaggedFilter(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRecordRepo(mock)
	rec := sampleRecord()
	rec.IsFlagged = true
	flagged := true

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM transaction_records").
		WithArgs(flagged).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM transaction_records .+ ORDER BY settled_at DESC").
		WithArgs(flagged, 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"reference_digest", "initialized", "sender", "receiver", "amount",
			"settled_at", "reference", "fraud_score", "is_flagged", "version",
		}).AddRow(rec.ReferenceDigest, rec.Initialized, rec.Sender, rec.Receiver,
			rec.Amount, rec.Timestamp, rec.Reference, rec.FraudScore,
			rec.IsFlagged, rec.Version))

	records, total, err := repo.List(context.Background(), ports.RecordListParams{
		Flagged:  &flagged,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, records, 1)
	assert.True(t, records[0].IsFlagged)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordRepo_GetStats(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewRecordRepo(mock)

	mock.ExpectQuery("SELECT").
		WillReturnRows(pgxmock.NewRows([]string{
			"total", "flagged", "total_volume", "average_score", "highest_amount",
		}).AddRow(int64(12), int64(2), int64(54000), 31.5, int64(9000)))

	stats, err := repo.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.TotalRecords)
	assert.Equal(t, int64(2), stats.Flagged)
	assert.Equal(t, int64(54000), stats.TotalVolume)
	assert.NoError(t, mock.ExpectationsWereMet())
}
