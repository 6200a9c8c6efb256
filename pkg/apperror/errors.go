package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Authorization (AUTH) ----

func ErrUnauthorized() *AppError {
	return New("AUTH_001", "Unauthorized", http.StatusForbidden)
}

func ErrInvalidStudentOwner() *AppError {
	return New("AUTH_002", "Invalid student owner", http.StatusForbidden)
}

func ErrInvalidTreasuryTokenAccount() *AppError {
	return New("AUTH_003", "Invalid treasury token account", http.StatusForbidden)
}

func ErrInvalidMint() *AppError {
	return New("AUTH_004", "Invalid mint", http.StatusForbidden)
}

// ---- Input validation (VAL) ----

func ErrCountryTooLong() *AppError {
	return New("VAL_001", "Country must be <= 32 bytes", http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New("VAL_002", "Invalid amount", http.StatusBadRequest)
}

func ErrInvalidReference() *AppError {
	return New("VAL_003", "Invalid reference", http.StatusBadRequest)
}

func ErrReferenceTooLong() *AppError {
	return New("VAL_004", "Reference too long", http.StatusBadRequest)
}

func ErrInvalidFeeBps() *AppError {
	return New("VAL_005", "Invalid fee_bps", http.StatusBadRequest)
}

// ---- Integrity (INT) ----

func ErrReferenceHashMismatch() *AppError {
	return New("INT_001", "Reference hash mismatch", http.StatusBadRequest)
}

// ---- State preconditions (STATE) ----

func ErrStudentFrozen() *AppError {
	return New("STATE_001", "Student is frozen", http.StatusForbidden)
}

func ErrAlreadyExists(entity string) *AppError {
	return New("STATE_002", fmt.Sprintf("%s already exists", entity), http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("STATE_003", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Arithmetic (MATH) ----

func ErrMathOverflow() *AppError {
	return New("MATH_001", "Math overflow", http.StatusUnprocessableEntity)
}

// ---- External transfer (XFER) ----

// ErrTransferFailed propagates a token-node transfer failure verbatim.
func ErrTransferFailed(err error) *AppError {
	return Wrap("XFER_001", "Token transfer failed", http.StatusBadGateway, err)
}

// ---- Request security (SEC) ----

func ErrInvalidAccessKey() *AppError {
	return New("SEC_001", "Invalid access key", http.StatusUnauthorized)
}

func ErrInvalidSignature() *AppError {
	return New("SEC_002", "Invalid signature", http.StatusUnauthorized)
}

func ErrTimestampExpired() *AppError {
	return New("SEC_003", "Request timestamp expired", http.StatusForbidden)
}

func ErrNonceUsed() *AppError {
	return New("SEC_004", "Nonce has already been used", http.StatusForbidden)
}

func ErrInvalidCredentials() *AppError {
	return New("SEC_005", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("SEC_006", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a VAL_000-style error for malformed request bodies.
func Validation(message string) *AppError {
	return New("VAL_000", message, http.StatusBadRequest)
}
