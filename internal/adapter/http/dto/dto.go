package dto

// RegisterStudentRequest is the request body for student registration.
// Country length is checked by the registry so the byte-bound error code
// stays stable; binding only enforces presence and shape of the owner.
type RegisterStudentRequest struct {
	Owner   string `json:"owner" binding:"required,min=1,max=64,safe_id"`
	Country string `json:"country"`
}

// RegisterStudentResponse is the response body for successful registration.
// SecretKey is returned exactly once; only its encrypted form is stored.
type RegisterStudentResponse struct {
	Student   StudentResponse `json:"student"`
	AccessKey string          `json:"access_key"`
	SecretKey string          `json:"secret_key"`
}

// StudentResponse is the public view of a student.
type StudentResponse struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	Country     string `json:"country"`
	IsFrozen    bool   `json:"is_frozen"`
	TotalVolume uint64 `json:"total_volume"`
	Flagged     bool   `json:"flagged"`
	CreatedAt   string `json:"created_at"`
}

// LoginRequest is the request body for authority login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// InitTreasuryRequest is the request body for treasury initialization.
// FeeBps bounds are checked by the treasury service (VAL_005).
type InitTreasuryRequest struct {
	USDCMint             string `json:"usdc_mint" binding:"required,safe_id"`
	TreasuryTokenAccount string `json:"treasury_token_account" binding:"required,safe_id"`
	FeeBps               uint16 `json:"fee_bps"`
}

// TreasuryResponse is the public view of the treasury.
type TreasuryResponse struct {
	Authority            string `json:"authority"`
	USDCMint             string `json:"usdc_mint"`
	TreasuryTokenAccount string `json:"treasury_token_account"`
	FeeBps               uint16 `json:"fee_bps"`
	CreatedAt            string `json:"created_at"`
}

// Settlement request bodies. Amount, reference and digest semantics are
// validated by the settlement engine so its precondition order (and error
// codes) stay authoritative; binding stops only absent fields.

// OnrampRequest is the request body for onramp settlement.
type OnrampRequest struct {
	StudentOwner    string `json:"student_owner" binding:"required,safe_id"`
	ReferenceDigest string `json:"reference_digest" binding:"required"`
	Amount          uint64 `json:"amount"`
	Reference       string `json:"reference"`
}

// OfframpRequest is the request body for offramp settlement. The student is
// identified by the HMAC credentials on the request.
type OfframpRequest struct {
	ReferenceDigest string `json:"reference_digest" binding:"required"`
	Amount          uint64 `json:"amount"`
	Reference       string `json:"reference"`
}

// SendRequest is the request body for a peer transfer. The sender is
// identified by the HMAC credentials on the request.
type SendRequest struct {
	Receiver        string `json:"receiver" binding:"required,safe_id"`
	ReferenceDigest string `json:"reference_digest" binding:"required"`
	Amount          uint64 `json:"amount"`
	Reference       string `json:"reference"`
}

// RecordResponse is the response body for settlement results and record reads.
type RecordResponse struct {
	ReferenceDigest string `json:"reference_digest"`
	Sender          string `json:"sender"`
	Receiver        string `json:"receiver"`
	Amount          uint64 `json:"amount"`
	Reference       string `json:"reference"`
	FraudScore      uint8  `json:"fraud_score"`
	IsFlagged       bool   `json:"is_flagged"`
	SettledAt       string `json:"settled_at"`
	Replayed        bool   `json:"replayed"` // true when this call was an idempotent no-op
}

// UpdateScoreRequest is the request body for fraud score updates.
type UpdateScoreRequest struct {
	ReferenceDigest string `json:"reference_digest" binding:"required"`
	Reference       string `json:"reference" binding:"required"`
	Score           *int   `json:"score" binding:"required,gte=0,lte=255"`
}

// RailWebhookRequest is the payload the fiat rail posts on completed deposits.
type RailWebhookRequest struct {
	Status        string `json:"status" binding:"required"`
	WalletAddress string `json:"wallet_address" binding:"required"`
	Amount        uint64 `json:"amount"`
	Reference     string `json:"reference" binding:"required"`
}

// RailWebhookResponse acknowledges a rail webhook.
type RailWebhookResponse struct {
	ReferenceDigest string `json:"reference_digest"`
	Replayed        bool   `json:"replayed"`
	FraudScore      uint8  `json:"fraud_score"`
	IsFlagged       bool   `json:"is_flagged"`
}

// LedgerStatsResponse is the response for dashboard statistics.
type LedgerStatsResponse struct {
	TotalRecords  int64   `json:"total_records"`
	Flagged       int64   `json:"flagged"`
	TotalVolume   int64   `json:"total_volume"`
	AverageScore  float64 `json:"average_score"`
	HighestAmount int64   `json:"highest_amount"`
}

// RecordListResponse wraps a paginated record list.
type RecordListResponse struct {
	Items      []RecordResponse `json:"items"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

// EventResponse is one entry of the notification log.
type EventResponse struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Payload   string `json:"payload"` // JSON-encoded payload
	CreatedAt string `json:"created_at"`
}
