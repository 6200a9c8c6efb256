package postgres

import (
	"context"
	"fmt"

	"usdc-settlement-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// EventRepo implements ports.EventRepository over an append-only table.
type EventRepo struct {
	pool Pool
}

// NewEventRepo creates a new EventRepo.
func NewEventRepo(pool Pool) *EventRepo {
	return &EventRepo{pool: pool}
}

// Append writes an event within the transaction that produced it.
func (r *EventRepo) Append(ctx context.Context, tx pgx.Tx, e *domain.Event) error {
	query := `INSERT INTO events (id, event_type, payload, created_at) VALUES ($1, $2, $3, $4)`

	_, err := tx.Exec(ctx, query, e.ID, e.Type, e.Payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// ListRecent fetches the most recent events, newest first.
func (r *EventRepo) ListRecent(ctx context.Context, limit int) ([]domain.Event, error) {
	query := `SELECT id, event_type, payload, created_at FROM events ORDER BY created_at DESC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e := domain.Event{}
		if err := rows.Scan(&e.ID, &e.Type, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event rows: %w", err)
	}
	return events, nil
}
