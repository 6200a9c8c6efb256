package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"usdc-settlement-ledger/internal/core/domain"
	"usdc-settlement-ledger/internal/core/ports"
	"usdc-settlement-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RegistryServiceImpl implements ports.RegistryService.
type RegistryServiceImpl struct {
	studentRepo  ports.StudentRepository
	treasuryRepo ports.TreasuryRepository
	eventRepo    ports.EventRepository
	transactor   ports.DBTransactor
	encSvc       ports.EncryptionService
	clock        ports.Clock
	log          zerolog.Logger
}

// NewRegistryService creates a new RegistryServiceImpl.
func NewRegistryService(
	studentRepo ports.StudentRepository,
	treasuryRepo ports.TreasuryRepository,
	eventRepo ports.EventRepository,
	transactor ports.DBTransactor,
	encSvc ports.EncryptionService,
	clock ports.Clock,
	log zerolog.Logger,
) *RegistryServiceImpl {
	return &RegistryServiceImpl{
		studentRepo:  studentRepo,
		treasuryRepo: treasuryRepo,
		eventRepo:    eventRepo,
		transactor:   transactor,
		encSvc:       encSvc,
		clock:        clock,
		log:          log,
	}
}

// Register creates a student for an owner wallet and issues its API key pair.
// The secret key is returned in plaintext exactly once; only its encrypted
// form is stored.
func (s *RegistryServiceImpl) Register(ctx context.Context, req ports.RegisterStudentRequest) (*ports.RegisterStudentResponse, error) {
	if req.Owner == "" {
		return nil, apperror.Validation("owner is required")
	}
	if err := domain.ValidateCountry(req.Country); err != nil {
		return nil, err
	}

	accessKey, err := generateRandomHex(32)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate access key: %w", err))
	}
	secretKey, err := generateRandomHex(32)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate secret key: %w", err))
	}
	secretEnc, err := s.encSvc.Encrypt(secretKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("encrypt secret key: %w", err))
	}

	now := s.clock.Now().UTC()
	student := &domain.Student{
		ID:           uuid.New(),
		Owner:        req.Owner,
		Country:      req.Country,
		AccessKey:    accessKey,
		SecretKeyEnc: secretEnc,
		Version:      domain.StudentLayoutVersion,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// A second registration for the same owner trips the unique index and
	// comes back as STATE_002 from the repository.
	if err := s.studentRepo.Create(ctx, tx, student); err != nil {
		return nil, err
	}

	payload := domain.StudentRegisteredPayload{
		Owner:     student.Owner,
		Country:   student.Country,
		Timestamp: now.Unix(),
	}
	if err := appendEventTx(ctx, s.eventRepo, tx, s.clock, domain.EventStudentRegistered, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("student_id", student.ID.String()).
		Str("owner", student.Owner).
		Msg("student registered")

	return &ports.RegisterStudentResponse{Student: student, SecretKey: secretKey}, nil
}

// Freeze marks a student frozen. One-way: there is no thaw operation.
// Freezing an already-frozen student changes no state but still notifies,
// one StudentFrozen event per authorized call.
func (s *RegistryServiceImpl) Freeze(ctx context.Context, req ports.FreezeRequest) (*domain.Student, error) {
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

	student, err := s.studentRepo.GetByOwnerForUpdate(ctx, tx, req.Owner)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock student: %w", err))
	}
	if student == nil {
		return nil, apperror.ErrNotFound("Student")
	}

	if !student.IsFrozen {
		if err := s.studentRepo.SetFrozen(ctx, tx, student.ID); err != nil {
			return nil, apperror.InternalError(fmt.Errorf("freeze student: %w", err))
		}
		student.IsFrozen = true
	}

	payload := domain.StudentFrozenPayload{
		Student:   student.Owner,
		Timestamp: s.clock.Now().UTC().Unix(),
	}
	if err := appendEventTx(ctx, s.eventRepo, tx, s.clock, domain.EventStudentFrozen, payload); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Warn().
		Str("owner", student.Owner).
		Msg("student frozen")

	return student, nil
}

// GetByOwner returns the student registered for an owner wallet.
func (s *RegistryServiceImpl) GetByOwner(ctx context.Context, owner string) (*domain.Student, error) {
	student, err := s.studentRepo.GetByOwner(ctx, owner)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("find student: %w", err))
	}
	if student == nil {
		return nil, apperror.ErrNotFound("Student")
	}
	return student, nil
}

// generateRandomHex returns n random bytes hex-encoded (2n characters).
func generateRandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
