package service

import (
	"context"
	"fmt"

	"usdc-settlement-ledger/internal/core/domain"
	"usdc-settlement-ledger/internal/core/ports"
	"usdc-settlement-ledger/pkg/apperror"
)

// ReportingServiceImpl implements ports.ReportingService for the operator
// dashboard. Read-only.
type ReportingServiceImpl struct {
	recordRepo ports.RecordRepository
	eventRepo  ports.EventRepository
}

// NewReportingService creates a new ReportingServiceImpl.
func NewReportingService(recordRepo ports.RecordRepository, eventRepo ports.EventRepository) *ReportingServiceImpl {
	return &ReportingServiceImpl{recordRepo: recordRepo, eventRepo: eventRepo}
}

// ListRecords returns a page of transaction records plus the total count.
func (s *ReportingServiceImpl) ListRecords(ctx context.Context, params ports.RecordListParams) ([]domain.TransactionRecord, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}
	records, total, err := s.recordRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list records: %w", err))
	}
	return records, total, nil
}

// GetStats returns aggregate ledger statistics.
func (s *ReportingServiceImpl) GetStats(ctx context.Context) (*ports.LedgerStats, error) {
	stats, err := s.recordRepo.GetStats(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("ledger stats: %w", err))
	}
	return stats, nil
}

// ListEvents returns the most recent notification events.
func (s *ReportingServiceImpl) ListEvents(ctx context.Context, limit int) ([]domain.Event, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	events, err := s.eventRepo.ListRecent(ctx, limit)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list events: %w", err))
	}
	return events, nil
}
