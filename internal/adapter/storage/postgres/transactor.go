package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor hands out pgx transactions for operations whose writes must land
// together: the record insert, volume updates and event append of one
// settlement share a single transaction obtained here.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a new Transactor on top of the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin opens a database transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.Begin(ctx)
}
