package ports

import (
	"context"
	"time"

	"usdc-settlement-ledger/internal/core/domain"
)

// --- External collaborators ---

// TransferParams describes one token movement on the token node.
type TransferParams struct {
	FromAccount string
	ToAccount   string
	Mint        string
	Amount      uint64
	Authority   string // signing authority for the transfer
	Reference   string // forwarded so the node can key its own idempotency
}

// TokenTransferService is the external value-transfer primitive. A failure
// aborts the whole settlement; errors are propagated verbatim.
type TokenTransferService interface {
	Transfer(ctx context.Context, params TransferParams) error
}

// Clock supplies ledger time. Injected so tests can pin timestamps.
type Clock interface {
	Now() time.Time
}

// --- Infrastructure ports ---

// RecordCache is the Redis fast path for idempotent replay detection, keyed
// by reference digest. Postgres remains the source of truth; cache errors are
// logged and ignored.
type RecordCache interface {
	Get(ctx context.Context, digest string) ([]byte, error) // nil if absent
	Set(ctx context.Context, digest string, value []byte, ttl time.Duration) error
}

// NonceStore manages nonce uniqueness for request replay prevention.
type NonceStore interface {
	// CheckAndSet atomically checks if a nonce exists, sets it if not.
	// Returns true if the nonce is new (valid), false if already used.
	CheckAndSet(ctx context.Context, owner string, nonce string, ttl time.Duration) (bool, error)
}

// EncryptionService handles AES-256-GCM encryption of secrets at rest.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification of
// student-authorized requests.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
	BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string
}

// HashService handles password hashing (Argon2id) for the authority login.
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations for authority routes.
type TokenService interface {
	Generate(authority string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Authority string // authority wallet address
}

// --- Service ports (business logic) ---

// RegistryService manages the student lifecycle.
type RegistryService interface {
	Register(ctx context.Context, req RegisterStudentRequest) (*RegisterStudentResponse, error)
	Freeze(ctx context.Context, req FreezeRequest) (*domain.Student, error)
	GetByOwner(ctx context.Context, owner string) (*domain.Student, error)
}

// RegisterStudentRequest holds validated input for registration.
type RegisterStudentRequest struct {
	Owner   string
	Country string
}

// RegisterStudentResponse holds the registration result. SecretKey is
// plaintext and shown only once.
type RegisterStudentResponse struct {
	Student   *domain.Student
	SecretKey string
}

// FreezeRequest names the student to freeze. Authority is the caller's
// identity; it must equal the treasury authority.
type FreezeRequest struct {
	Authority string
	Owner     string
}

// TreasuryService manages the treasury singleton.
type TreasuryService interface {
	Initialize(ctx context.Context, req InitTreasuryRequest) (*domain.Treasury, error)
	Get(ctx context.Context) (*domain.Treasury, error)
}

// InitTreasuryRequest holds validated input for treasury initialization.
type InitTreasuryRequest struct {
	Authority            string
	USDCMint             string
	TreasuryTokenAccount string
	FeeBps               uint16
}

// SettlementService implements the idempotent record-and-transfer protocol.
// All three operations return the settled record and whether the call was an
// idempotent replay (record already existed; nothing moved).
type SettlementService interface {
	SettleOnramp(ctx context.Context, req OnrampRequest) (*domain.TransactionRecord, bool, error)
	SettleOfframp(ctx context.Context, req OfframpRequest) (*domain.TransactionRecord, bool, error)
	SendUSDC(ctx context.Context, req SendRequest) (*domain.TransactionRecord, bool, error)
}

// OnrampRequest settles external funds into a student's account. Authority is
// the caller's identity and must equal the treasury authority.
type OnrampRequest struct {
	Authority       string
	StudentOwner    string
	ReferenceDigest string // claimed hex digest of Reference
	Amount          uint64
	Reference       string
}

// OfframpRequest settles a student's funds out to the external rail. Owner is
// the authenticated caller.
type OfframpRequest struct {
	Owner           string
	ReferenceDigest string
	Amount          uint64
	Reference       string
}

// SendRequest moves value between two students. Sender is the authenticated
// caller.
type SendRequest struct {
	Sender          string
	Receiver        string
	ReferenceDigest string
	Amount          uint64
	Reference       string
}

// FraudService applies externally supplied fraud scores to settled records.
type FraudService interface {
	UpdateScore(ctx context.Context, req UpdateScoreRequest) (*domain.TransactionRecord, error)
}

// UpdateScoreRequest holds validated input for fraud scoring. Authority is
// the caller's identity; it must equal the treasury authority.
type UpdateScoreRequest struct {
	Authority       string
	ReferenceDigest string
	Reference       string
	Score           uint8
}

// FraudDirection is the money-movement direction used by the scoring engine.
type FraudDirection string

const (
	DirectionOnramp   FraudDirection = "onramp"
	DirectionOfframp  FraudDirection = "offramp"
	DirectionTransfer FraudDirection = "transfer"
)

// ScoreInput holds the stable features the engine scores on.
type ScoreInput struct {
	Amount        uint64
	Reference     string
	StudentWallet string
	Direction     FraudDirection
}

// FraudEngine produces a deterministic risk score in 0..100.
type FraudEngine interface {
	Score(input ScoreInput) uint8
}

// AuthService authenticates the treasury authority for admin routes.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error) // token, expiry, error
}

// ReportingService defines dashboard/reporting business logic.
type ReportingService interface {
	ListRecords(ctx context.Context, params RecordListParams) ([]domain.TransactionRecord, int64, error)
	GetStats(ctx context.Context) (*LedgerStats, error)
	ListEvents(ctx context.Context, limit int) ([]domain.Event, error)
}
