package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"usdc-settlement-ledger/internal/core/domain"
	"usdc-settlement-ledger/internal/core/ports"
	"usdc-settlement-ledger/pkg/apperror"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// FraudServiceImpl implements ports.FraudService. Scores arrive from the
// outside (operator tooling or the deterministic engine) and are applied to
// settled records; crossing the flag threshold also flags the involved
// students. Flagging is one-way.
type FraudServiceImpl struct {
	studentRepo  ports.StudentRepository
	treasuryRepo ports.TreasuryRepository
	recordRepo   ports.RecordRepository
	eventRepo    ports.EventRepository
	recordCache  ports.RecordCache
	transactor   ports.DBTransactor
	clock        ports.Clock
	log          zerolog.Logger
}

// NewFraudService creates a new FraudServiceImpl.
func NewFraudService(
	studentRepo ports.StudentRepository,
	treasuryRepo ports.TreasuryRepository,
	recordRepo ports.RecordRepository,
	eventRepo ports.EventRepository,
	recordCache ports.RecordCache,
	transactor ports.DBTransactor,
	clock ports.Clock,
	log zerolog.Logger,
) *FraudServiceImpl {
	return &FraudServiceImpl{
		studentRepo:  studentRepo,
		treasuryRepo: treasuryRepo,
		recordRepo:   recordRepo,
		eventRepo:    eventRepo,
		recordCache:  recordCache,
		transactor:   transactor,
		clock:        clock,
		log:          log,
	}
}

// UpdateScore attaches a fraud score to a settled record. The same integrity
// prefix as settlement applies: the supplied reference must hash to the
// claimed digest before anything is looked up.
func (s *FraudServiceImpl) UpdateScore(ctx context.Context, req ports.UpdateScoreRequest) (*domain.TransactionRecord, error) {
	if err := domain.VerifyReference(req.Reference, req.ReferenceDigest); err != nil {
		return nil, err
	}
	if len(req.Reference) == 0 {
		return nil, apperror.ErrInvalidReference()
	}
	if err := domain.ValidateReferenceLength(req.Reference); err != nil {
		return nil, err
	}

	treasury, err := s.treasuryRepo.Get(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load treasury: %w", err))
	}
	if treasury == nil {
		return nil, apperror.ErrNotFound("Treasury")
	}
	if req.Authority != treasury.Authority {
		return nil, apperror.ErrUnauthorized()
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	record, err := s.recordRepo.GetByDigestForUpdate(ctx, tx, req.ReferenceDigest)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock record: %w", err))
	}
	if record == nil {
		return nil, apperror.ErrNotFound("Transaction record")
	}

	flagged := record.IsFlagged || domain.ShouldFlag(req.Score)
	if err := s.recordRepo.UpdateFraud(ctx, tx, record.ReferenceDigest, req.Score, flagged); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update fraud fields: %w", err))
	}

	record.FraudScore = req.Score
	record.IsFlagged = flagged

	// Every score over the threshold flags the participants and emits,
	// including re-scores of an already-flagged record. Low scores never
	// clear an existing flag and never notify.
	if domain.ShouldFlag(req.Score) {
		flaggedStudent, err := s.flagParticipants(ctx, tx, record)
		if err != nil {
			return nil, err
		}

		payload := domain.FraudFlaggedPayload{
			Student:   flaggedStudent,
			Amount:    record.Amount,
			Reference: record.Reference,
			Score:     req.Score,
			Timestamp: s.clock.Now().UTC().Unix(),
		}
		if err := appendEventTx(ctx, s.eventRepo, tx, s.clock, domain.EventFraudFlagged, payload); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.refreshCache(ctx, record)

	logEvent := s.log.Info()
	if record.IsFlagged {
		logEvent = s.log.Warn()
	}
	logEvent.
		Str("reference_digest", record.ReferenceDigest).
		Uint8("score", req.Score).
		Bool("flagged", record.IsFlagged).
		Msg("fraud score applied")

	return record, nil
}

// flagParticipants flags every registered student involved in the record and
// returns the owner named in the FraudFlagged event: the receiver if
// registered, otherwise the sender. Treasury pool accounts are not students
// and are skipped.
func (s *FraudServiceImpl) flagParticipants(ctx context.Context, tx pgx.Tx, record *domain.TransactionRecord) (string, error) {
	flaggedStudent := record.Sender
	for _, owner := range []string{record.Sender, record.Receiver} {
		student, err := s.studentRepo.GetByOwnerForUpdate(ctx, tx, owner)
		if err != nil {
			return "", apperror.InternalError(fmt.Errorf("lock student %s: %w", owner, err))
		}
		if student == nil {
			continue
		}
		if !student.Flagged {
			if err := s.studentRepo.SetFlagged(ctx, tx, student.ID); err != nil {
				return "", apperror.InternalError(fmt.Errorf("flag student: %w", err))
			}
		}
		if owner == record.Receiver {
			flaggedStudent = owner
		}
	}
	return flaggedStudent, nil
}

func (s *FraudServiceImpl) refreshCache(ctx context.Context, record *domain.TransactionRecord) {
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.recordCache.Set(ctx, record.ReferenceDigest, raw, 24*time.Hour); err != nil {
		s.log.Warn().Err(err).Str("reference_digest", record.ReferenceDigest).Msg("failed to refresh cached record")
	}
}
