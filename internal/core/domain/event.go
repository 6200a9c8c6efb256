package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType names an externally observable ledger notification.
type EventType string

const (
	EventStudentRegistered EventType = "StudentRegistered"
	EventStudentFrozen     EventType = "StudentFrozen"
	EventOnRampSettled     EventType = "OnRampSettled"
	EventOffRampSettled    EventType = "OffRampSettled"
	EventTransferExecuted  EventType = "TransferExecuted"
	EventFraudFlagged      EventType = "FraudFlagged"
)

// Event is one entry in the append-only notification log. Events are written
// in the same database transaction as the state change they describe, so the
// log is exactly as durable as the ledger itself.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Type      EventType `json:"type"`
	Payload   []byte    `json:"payload"` // JSON-encoded payload struct below
	CreatedAt time.Time `json:"created_at"`
}

// StudentRegisteredPayload is emitted once per registration.
type StudentRegisteredPayload struct {
	Owner     string `json:"owner"`
	Country   string `json:"country"`
	Timestamp int64  `json:"timestamp"`
}

// StudentFrozenPayload is emitted when the authority freezes a student.
type StudentFrozenPayload struct {
	Student   string `json:"student"`
	Timestamp int64  `json:"timestamp"`
}

// SettlementPayload is emitted for onramp and offramp settlements.
type SettlementPayload struct {
	Student   string `json:"student"`
	Amount    uint64 `json:"amount"`
	Reference string `json:"reference"`
	Timestamp int64  `json:"timestamp"`
}

// TransferExecutedPayload is emitted for peer transfers.
type TransferExecutedPayload struct {
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Amount    uint64 `json:"amount"`
	Reference string `json:"reference"`
	Timestamp int64  `json:"timestamp"`
}

// FraudFlaggedPayload is emitted when a score crosses the flag threshold.
type FraudFlaggedPayload struct {
	Student   string `json:"student"`
	Amount    uint64 `json:"amount"`
	Reference string `json:"reference"`
	Score     uint8  `json:"score"`
	Timestamp int64  `json:"timestamp"`
}
