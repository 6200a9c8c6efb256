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

const recordCacheTTL = 24 * time.Hour

// SettlementServiceImpl implements ports.SettlementService.
//
// All three flows share one protocol: verify the reference commitment and the
// input bounds, check freeze state, then claim the record slot keyed by the
// reference digest with an atomic insert-if-absent. Whoever claims the slot
// performs the token transfer and the volume updates inside the same database
// transaction; everyone else observes the existing record and becomes a
// no-op. The Redis record cache is a read-only fast path in front of that.
type SettlementServiceImpl struct {
	studentRepo  ports.StudentRepository
	treasuryRepo ports.TreasuryRepository
	recordRepo   ports.RecordRepository
	eventRepo    ports.EventRepository
	recordCache  ports.RecordCache
	tokenSvc     ports.TokenTransferService
	transactor   ports.DBTransactor
	clock        ports.Clock
	log          zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	studentRepo ports.StudentRepository,
	treasuryRepo ports.TreasuryRepository,
	recordRepo ports.RecordRepository,
	eventRepo ports.EventRepository,
	recordCache ports.RecordCache,
	tokenSvc ports.TokenTransferService,
	transactor ports.DBTransactor,
	clock ports.Clock,
	log zerolog.Logger,
) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		studentRepo:  studentRepo,
		treasuryRepo: treasuryRepo,
		recordRepo:   recordRepo,
		eventRepo:    eventRepo,
		recordCache:  recordCache,
		tokenSvc:     tokenSvc,
		transactor:   transactor,
		clock:        clock,
		log:          log,
	}
}

// SettleOnramp settles external rail funds into a student's token account.
// Authorized by the treasury authority; the pool pays out.
func (s *SettlementServiceImpl) SettleOnramp(ctx context.Context, req ports.OnrampRequest) (*domain.TransactionRecord, bool, error) {
	if err := verifySettlementInputs(req.Reference, req.ReferenceDigest, req.Amount); err != nil {
		return nil, false, err
	}

	treasury, err := s.getTreasury(ctx)
	if err != nil {
		return nil, false, err
	}
	if req.Authority != treasury.Authority {
		return nil, false, apperror.ErrUnauthorized()
	}

	student, err := s.studentRepo.GetByOwner(ctx, req.StudentOwner)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("find student: %w", err))
	}
	if student == nil {
		return nil, false, apperror.ErrNotFound("Student")
	}
	if student.IsFrozen {
		return nil, false, apperror.ErrStudentFrozen()
	}

	if cached := s.cachedRecord(ctx, req.ReferenceDigest); cached != nil {
		return cached, true, nil
	}

	record := &domain.TransactionRecord{
		ReferenceDigest: req.ReferenceDigest,
		Initialized:     true,
		Sender:          treasury.TreasuryTokenAccount,
		Receiver:        student.Owner,
		Amount:          req.Amount,
		Timestamp:       s.clock.Now().UTC(),
		Reference:       req.Reference,
		Version:         domain.RecordLayoutVersion,
	}

	return s.settle(ctx, record, func(ctx context.Context, tx pgx.Tx) error {
		// Transfer pool -> student, signed by the treasury's own delegated
		// authority, not an external signer.
		if err := s.tokenSvc.Transfer(ctx, ports.TransferParams{
			FromAccount: treasury.TreasuryTokenAccount,
			ToAccount:   student.Owner,
			Mint:        treasury.USDCMint,
			Amount:      req.Amount,
			Authority:   treasury.Authority,
			Reference:   req.Reference,
		}); err != nil {
			return apperror.ErrTransferFailed(err)
		}

		if err := s.creditVolume(ctx, tx, student.Owner, req.Amount); err != nil {
			return err
		}

		return s.appendEvent(ctx, tx, domain.EventOnRampSettled, domain.SettlementPayload{
			Student:   student.Owner,
			Amount:    req.Amount,
			Reference: req.Reference,
			Timestamp: record.Timestamp.Unix(),
		})
	})
}

// SettleOfframp settles a student's funds out to the external rail.
// Authorized by the student themselves; the pool receives.
func (s *SettlementServiceImpl) SettleOfframp(ctx context.Context, req ports.OfframpRequest) (*domain.TransactionRecord, bool, error) {
	if err := verifySettlementInputs(req.Reference, req.ReferenceDigest, req.Amount); err != nil {
		return nil, false, err
	}

	treasury, err := s.getTreasury(ctx)
	if err != nil {
		return nil, false, err
	}

	student, err := s.studentRepo.GetByOwner(ctx, req.Owner)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("find student: %w", err))
	}
	if student == nil {
		return nil, false, apperror.ErrUnauthorized()
	}
	if student.IsFrozen {
		return nil, false, apperror.ErrStudentFrozen()
	}

	if cached := s.cachedRecord(ctx, req.ReferenceDigest); cached != nil {
		return cached, true, nil
	}

	record := &domain.TransactionRecord{
		ReferenceDigest: req.ReferenceDigest,
		Initialized:     true,
		Sender:          student.Owner,
		Receiver:        treasury.TreasuryTokenAccount,
		Amount:          req.Amount,
		Timestamp:       s.clock.Now().UTC(),
		Reference:       req.Reference,
		Version:         domain.RecordLayoutVersion,
	}

	return s.settle(ctx, record, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.tokenSvc.Transfer(ctx, ports.TransferParams{
			FromAccount: student.Owner,
			ToAccount:   treasury.TreasuryTokenAccount,
			Mint:        treasury.USDCMint,
			Amount:      req.Amount,
			Authority:   student.Owner,
			Reference:   req.Reference,
		}); err != nil {
			return apperror.ErrTransferFailed(err)
		}

		if err := s.creditVolume(ctx, tx, student.Owner, req.Amount); err != nil {
			return err
		}

		return s.appendEvent(ctx, tx, domain.EventOffRampSettled, domain.SettlementPayload{
			Student:   student.Owner,
			Amount:    req.Amount,
			Reference: req.Reference,
			Timestamp: record.Timestamp.Unix(),
		})
	})
}

// SendUSDC moves value directly between two students' token accounts,
// authorized by the sender. Both volume counters advance.
func (s *SettlementServiceImpl) SendUSDC(ctx context.Context, req ports.SendRequest) (*domain.TransactionRecord, bool, error) {
	if err := verifySettlementInputs(req.Reference, req.ReferenceDigest, req.Amount); err != nil {
		return nil, false, err
	}

	treasury, err := s.getTreasury(ctx)
	if err != nil {
		return nil, false, err
	}

	sender, err := s.studentRepo.GetByOwner(ctx, req.Sender)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("find sender: %w", err))
	}
	if sender == nil {
		return nil, false, apperror.ErrUnauthorized()
	}

	receiver, err := s.studentRepo.GetByOwner(ctx, req.Receiver)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("find receiver: %w", err))
	}
	if receiver == nil || receiver.Owner != req.Receiver {
		return nil, false, apperror.ErrInvalidStudentOwner()
	}

	if sender.IsFrozen || receiver.IsFrozen {
		return nil, false, apperror.ErrStudentFrozen()
	}

	// Peer transfers additionally require a non-empty reference and a
	// receiver distinct from the sender. Frozen state wins over both.
	if len(req.Reference) == 0 {
		return nil, false, apperror.ErrInvalidReference()
	}
	if req.Receiver == req.Sender {
		return nil, false, apperror.ErrInvalidStudentOwner()
	}

	if cached := s.cachedRecord(ctx, req.ReferenceDigest); cached != nil {
		return cached, true, nil
	}

	record := &domain.TransactionRecord{
		ReferenceDigest: req.ReferenceDigest,
		Initialized:     true,
		Sender:          sender.Owner,
		Receiver:        receiver.Owner,
		Amount:          req.Amount,
		Timestamp:       s.clock.Now().UTC(),
		Reference:       req.Reference,
		Version:         domain.RecordLayoutVersion,
	}

	return s.settle(ctx, record, func(ctx context.Context, tx pgx.Tx) error {
		if err := s.tokenSvc.Transfer(ctx, ports.TransferParams{
			FromAccount: sender.Owner,
			ToAccount:   receiver.Owner,
			Mint:        treasury.USDCMint,
			Amount:      req.Amount,
			Authority:   sender.Owner,
			Reference:   req.Reference,
		}); err != nil {
			return apperror.ErrTransferFailed(err)
		}

		// Both counters advance, each behind its own checked addition.
		// Lock in stable owner order so two crossing transfers cannot
		// deadlock.
		first, second := sender.Owner, receiver.Owner
		if second < first {
			first, second = second, first
		}
		if err := s.creditVolume(ctx, tx, first, req.Amount); err != nil {
			return err
		}
		if err := s.creditVolume(ctx, tx, second, req.Amount); err != nil {
			return err
		}

		return s.appendEvent(ctx, tx, domain.EventTransferExecuted, domain.TransferExecutedPayload{
			Sender:    sender.Owner,
			Receiver:  receiver.Owner,
			Amount:    req.Amount,
			Reference: req.Reference,
			Timestamp: record.Timestamp.Unix(),
		})
	})
}

// settle runs the shared record-and-transfer protocol: claim the record slot,
// run the flow-specific mutations, commit. If the slot was already claimed the
// call degrades into an idempotent replay with zero side effects.
func (s *SettlementServiceImpl) settle(
	ctx context.Context,
	record *domain.TransactionRecord,
	mutate func(ctx context.Context, tx pgx.Tx) error,
) (*domain.TransactionRecord, bool, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	inserted, err := s.recordRepo.InsertIfAbsent(ctx, dbTx, record)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("claim record slot: %w", err))
	}

	if !inserted {
		// Already settled: replay with no transfer, no counter update, no
		// event. Success, not an error.
		existing, err := s.recordRepo.GetByDigest(ctx, record.ReferenceDigest)
		if err != nil {
			return nil, false, apperror.InternalError(fmt.Errorf("load settled record: %w", err))
		}
		if existing == nil {
			return nil, false, apperror.InternalError(fmt.Errorf("record slot claimed but unreadable: %s", record.ReferenceDigest))
		}
		s.cacheRecord(ctx, existing)
		s.log.Info().
			Str("reference_digest", record.ReferenceDigest).
			Msg("idempotent replay, settlement suppressed")
		return existing, true, nil
	}

	if err := mutate(ctx, dbTx); err != nil {
		return nil, false, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.cacheRecord(ctx, record)

	s.log.Info().
		Str("reference_digest", record.ReferenceDigest).
		Str("sender", record.Sender).
		Str("receiver", record.Receiver).
		Uint64("amount", record.Amount).
		Msg("settlement recorded")

	return record, false, nil
}

// creditVolume locks a student row and applies a checked volume increment.
func (s *SettlementServiceImpl) creditVolume(ctx context.Context, tx pgx.Tx, owner string, amount uint64) error {
	student, err := s.studentRepo.GetByOwnerForUpdate(ctx, tx, owner)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("lock student %s: %w", owner, err))
	}
	if student == nil {
		return apperror.ErrNotFound("Student")
	}
	if err := student.AddVolume(amount); err != nil {
		return err
	}
	if err := s.studentRepo.UpdateVolume(ctx, tx, student.ID, student.TotalVolume); err != nil {
		return apperror.InternalError(fmt.Errorf("update volume: %w", err))
	}
	return nil
}

func (s *SettlementServiceImpl) appendEvent(ctx context.Context, tx pgx.Tx, typ domain.EventType, payload any) error {
	return appendEventTx(ctx, s.eventRepo, tx, s.clock, typ, payload)
}

func (s *SettlementServiceImpl) getTreasury(ctx context.Context) (*domain.Treasury, error) {
	treasury, err := s.treasuryRepo.Get(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load treasury: %w", err))
	}
	if treasury == nil {
		return nil, apperror.ErrNotFound("Treasury")
	}
	return treasury, nil
}

// cachedRecord checks the Redis fast path. Cache failures fall through to the
// database; the cache is never authoritative.
func (s *SettlementServiceImpl) cachedRecord(ctx context.Context, digest string) *domain.TransactionRecord {
	raw, err := s.recordCache.Get(ctx, digest)
	if err != nil {
		s.log.Warn().Err(err).Str("reference_digest", digest).Msg("record cache check failed, falling through to DB")
		return nil
	}
	if raw == nil {
		return nil
	}
	record := &domain.TransactionRecord{}
	if err := json.Unmarshal(raw, record); err != nil {
		s.log.Warn().Err(err).Str("reference_digest", digest).Msg("corrupt cached record, falling through to DB")
		return nil
	}
	return record
}

func (s *SettlementServiceImpl) cacheRecord(ctx context.Context, record *domain.TransactionRecord) {
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	if err := s.recordCache.Set(ctx, record.ReferenceDigest, raw, recordCacheTTL); err != nil {
		s.log.Warn().Err(err).Str("reference_digest", record.ReferenceDigest).Msg("failed to cache settled record")
	}
}

// verifySettlementInputs runs the shared precondition prefix, first failure
// wins: digest integrity, then amount, then reference length.
func verifySettlementInputs(reference, claimedDigest string, amount uint64) error {
	if err := domain.VerifyReference(reference, claimedDigest); err != nil {
		return err
	}
	if amount == 0 {
		return apperror.ErrInvalidAmount()
	}
	if err := domain.ValidateReferenceLength(reference); err != nil {
		return err
	}
	return nil
}
