package ports

import (
	"context"

	"usdc-settlement-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// StudentRepository defines persistence operations for students.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic
// locking; the settlement engine always locks student rows before touching
// volume counters.
type StudentRepository interface {
	// Create inserts a new student within a transaction. The owner column
	// carries a unique index, so a second registration for the same owner
	// fails on insert with STATE_002.
	Create(ctx context.Context, tx pgx.Tx, student *domain.Student) error
	GetByOwner(ctx context.Context, owner string) (*domain.Student, error)
	GetByAccessKey(ctx context.Context, accessKey string) (*domain.Student, error)
	GetByOwnerForUpdate(ctx context.Context, tx pgx.Tx, owner string) (*domain.Student, error)
	UpdateVolume(ctx context.Context, tx pgx.Tx, id uuid.UUID, totalVolume uint64) error
	SetFrozen(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	SetFlagged(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// TreasuryRepository defines persistence for the treasury singleton.
type TreasuryRepository interface {
	// Create inserts the singleton row at its fixed key. A second call
	// collides on the key and fails.
	Create(ctx context.Context, treasury *domain.Treasury) error
	Get(ctx context.Context) (*domain.Treasury, error)
}

// RecordRepository defines persistence for transaction records keyed by the
// reference digest.
type RecordRepository interface {
	// InsertIfAbsent atomically inserts the record unless one already exists
	// for its digest. Returns true if the row was inserted, false if an
	// earlier settlement already claimed the slot. This is the system's sole
	// idempotency mechanism; it must not be replaced by a check-then-insert.
	InsertIfAbsent(ctx context.Context, tx pgx.Tx, record *domain.TransactionRecord) (bool, error)
	GetByDigest(ctx context.Context, digest string) (*domain.TransactionRecord, error)
	GetByDigestForUpdate(ctx context.Context, tx pgx.Tx, digest string) (*domain.TransactionRecord, error)
	UpdateFraud(ctx context.Context, tx pgx.Tx, digest string, score uint8, flagged bool) error
	// Reporting queries
	List(ctx context.Context, params RecordListParams) ([]domain.TransactionRecord, int64, error)
	GetStats(ctx context.Context) (*LedgerStats, error)
}

// RecordListParams holds filter + pagination for listing transaction records.
type RecordListParams struct {
	Wallet   *string // matches sender or receiver
	Flagged  *bool
	Page     int
	PageSize int
}

// LedgerStats holds aggregated ledger statistics for the dashboard.
type LedgerStats struct {
	TotalRecords  int64
	Flagged       int64
	TotalVolume   int64 // Sum of all settled amounts
	AverageScore  float64
	HighestAmount int64
}

// EventRepository defines persistence for the append-only notification log.
type EventRepository interface {
	// Append writes an event within the transaction that produced it, so
	// notifications commit atomically with the state change they describe.
	Append(ctx context.Context, tx pgx.Tx, event *domain.Event) error
	ListRecent(ctx context.Context, limit int) ([]domain.Event, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
