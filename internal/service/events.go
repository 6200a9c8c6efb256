package service

import (
	"context"
	"encoding/json"
	"fmt"

	"usdc-settlement-ledger/internal/core/domain"
	"usdc-settlement-ledger/internal/core/ports"
	"usdc-settlement-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// appendEventTx marshals a payload and appends the event inside the caller's
// transaction, so the notification commits atomically with the state change
// it describes.
func appendEventTx(ctx context.Context, repo ports.EventRepository, tx pgx.Tx, clock ports.Clock, typ domain.EventType, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("marshal event payload: %w", err))
	}
	event := &domain.Event{
		ID:        uuid.New(),
		Type:      typ,
		Payload:   raw,
		CreatedAt: clock.Now().UTC(),
	}
	if err := repo.Append(ctx, tx, event); err != nil {
		return apperror.InternalError(fmt.Errorf("append %s event: %w", typ, err))
	}
	return nil
}
