package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"usdc-settlement-ledger/internal/core/domain"
	"usdc-settlement-ledger/internal/core/ports"
	"usdc-settlement-ledger/internal/core/ports/mocks"
	"usdc-settlement-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type settlementTestDeps struct {
	svc          *SettlementServiceImpl
	studentRepo  *mocks.MockStudentRepository
	treasuryRepo *mocks.MockTreasuryRepository
	recordRepo   *mocks.MockRecordRepository
	eventRepo    *mocks.MockEventRepository
	recordCache  *mocks.MockRecordCache
	tokenSvc     *mocks.MockTokenTransferService
	transactor   *mocks.MockDBTransactor
	clock        *mocks.MockClock
	ctrl         *gomock.Controller
}

func setupSettlementService(t *testing.T) *settlementTestDeps {
	ctrl := gomock.NewController(t)
	d := &settlementTestDeps{
		studentRepo:  mocks.NewMockStudentRepository(ctrl),
		treasuryRepo: mocks.NewMockTreasuryRepository(ctrl),
		recordRepo:   mocks.NewMockRecordRepository(ctrl),
		eventRepo:    mocks.NewMockEventRepository(ctrl),
		recordCache:  mocks.NewMockRecordCache(ctrl),
		tokenSvc:     mocks.NewMockTokenTransferService(ctrl),
		transactor:   mocks.NewMockDBTransactor(ctrl),
		clock:        mocks.NewMockClock(ctrl),
		ctrl:         ctrl,
	}
	d.svc = NewSettlementService(
		d.studentRepo, d.treasuryRepo, d.recordRepo, d.eventRepo,
		d.recordCache, d.tokenSvc, d.transactor, d.clock, zerolog.Nop(),
	)
	d.clock.EXPECT().Now().Return(time.Unix(1_700_000_000, 0)).AnyTimes()
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

var testTreasury = &domain.Treasury{
	Authority:            "authorityWallet",
	USDCMint:             "usdcMint",
	TreasuryTokenAccount: "treasuryPool",
	FeeBps:               50,
}

func testStudent(owner string) *domain.Student {
	return &domain.Student{ID: uuid.New(), Owner: owner}
}

// ==================== SettleOnramp Tests ====================

func TestSettlementService_SettleOnramp_Success(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	student := testStudent("studentWallet")
	ref := "KTN-2024-0001"
	digest := domain.ReferenceDigestHex(ref)

	req := ports.OnrampRequest{
		Authority:       "authorityWallet",
		StudentOwner:    "studentWallet",
		ReferenceDigest: digest,
		Amount:          1000,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "studentWallet").Return(student, nil)
	// Redis fast-path miss
	d.recordCache.EXPECT().Get(ctx, digest).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// First writer claims the slot
	d.recordRepo.EXPECT().InsertIfAbsent(ctx, tx, gomock.Any()).Return(true, nil)
	// Pool pays out to the student
	d.tokenSvc.EXPECT().Transfer(ctx, ports.TransferParams{
		FromAccount: "treasuryPool",
		ToAccount:   "studentWallet",
		Mint:        "usdcMint",
		Amount:      1000,
		Authority:   "authorityWallet",
		Reference:   ref,
	}).Return(nil)
	d.studentRepo.EXPECT().GetByOwnerForUpdate(ctx, tx, "studentWallet").Return(student, nil)
	d.studentRepo.EXPECT().UpdateVolume(ctx, tx, student.ID, uint64(1000)).Return(nil)
	d.eventRepo.EXPECT().Append(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, event *domain.Event) error {
			assert.Equal(t, domain.EventOnRampSettled, event.Type)
			var p domain.SettlementPayload
			require.NoError(t, json.Unmarshal(event.Payload, &p))
			assert.Equal(t, "studentWallet", p.Student)
			assert.Equal(t, uint64(1000), p.Amount)
			return nil
		})
	d.recordCache.EXPECT().Set(ctx, digest, gomock.Any(), recordCacheTTL).Return(nil)

	record, replayed, err := d.svc.SettleOnramp(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.False(t, replayed)
	assert.True(t, record.Initialized)
	assert.Equal(t, "treasuryPool", record.Sender)
	assert.Equal(t, "studentWallet", record.Receiver)
	assert.Equal(t, uint64(1000), record.Amount)
	assert.Equal(t, digest, record.ReferenceDigest)
}

func TestSettlementService_SettleOnramp_DigestMismatchWinsOverAmount(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	// Both the digest and the amount are wrong; the digest check runs first.
	req := ports.OnrampRequest{
		Authority:       "authorityWallet",
		StudentOwner:    "studentWallet",
		ReferenceDigest: domain.ReferenceDigestHex("some-other-reference"),
		Amount:          0,
		Reference:       "KTN-2024-0001",
	}

	record, _, err := d.svc.SettleOnramp(context.Background(), req)
	assert.Nil(t, record)
	assertAppError(t, err, "INT_001")
}

func TestSettlementService_SettleOnramp_ZeroAmount(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ref := "KTN-2024-0002"
	req := ports.OnrampRequest{
		Authority:       "authorityWallet",
		StudentOwner:    "studentWallet",
		ReferenceDigest: domain.ReferenceDigestHex(ref),
		Amount:          0,
		Reference:       ref,
	}

	record, _, err := d.svc.SettleOnramp(context.Background(), req)
	assert.Nil(t, record)
	assertAppError(t, err, "VAL_002")
}

func TestSettlementService_SettleOnramp_ReferenceTooLong(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ref := strings.Repeat("r", domain.MaxReferenceBytes+1)
	req := ports.OnrampRequest{
		Authority:       "authorityWallet",
		StudentOwner:    "studentWallet",
		ReferenceDigest: domain.ReferenceDigestHex(ref),
		Amount:          1000,
		Reference:       ref,
	}

	record, _, err := d.svc.SettleOnramp(context.Background(), req)
	assert.Nil(t, record)
	assertAppError(t, err, "VAL_004")
}

func TestSettlementService_SettleOnramp_WrongAuthority(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ref := "KTN-2024-0003"
	req := ports.OnrampRequest{
		Authority:       "someoneElse",
		StudentOwner:    "studentWallet",
		ReferenceDigest: domain.ReferenceDigestHex(ref),
		Amount:          1000,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)

	record, _, err := d.svc.SettleOnramp(ctx, req)
	assert.Nil(t, record)
	assertAppError(t, err, "AUTH_001")
}

func TestSettlementService_SettleOnramp_FrozenStudent(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ref := "KTN-2024-0004"
	student := testStudent("studentWallet")
	student.IsFrozen = true

	req := ports.OnrampRequest{
		Authority:       "authorityWallet",
		StudentOwner:    "studentWallet",
		ReferenceDigest: domain.ReferenceDigestHex(ref),
		Amount:          1000,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "studentWallet").Return(student, nil)

	record, _, err := d.svc.SettleOnramp(ctx, req)
	assert.Nil(t, record)
	assertAppError(t, err, "STATE_001")
}

func TestSettlementService_SettleOnramp_ReplayFromDB(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	student := testStudent("studentWallet")
	ref := "KTN-2024-0005"
	digest := domain.ReferenceDigestHex(ref)
	existing := &domain.TransactionRecord{
		ReferenceDigest: digest,
		Initialized:     true,
		Sender:          "treasuryPool",
		Receiver:        "studentWallet",
		Amount:          1000,
		Reference:       ref,
	}

	req := ports.OnrampRequest{
		Authority:       "authorityWallet",
		StudentOwner:    "studentWallet",
		ReferenceDigest: digest,
		Amount:          1000,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "studentWallet").Return(student, nil)
	d.recordCache.EXPECT().Get(ctx, digest).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	// Slot already claimed: no transfer, no volume update, no event
	d.recordRepo.EXPECT().InsertIfAbsent(ctx, tx, gomock.Any()).Return(false, nil)
	d.recordRepo.EXPECT().GetByDigest(ctx, digest).Return(existing, nil)
	d.recordCache.EXPECT().Set(ctx, digest, gomock.Any(), recordCacheTTL).Return(nil)

	record, replayed, err := d.svc.SettleOnramp(ctx, req)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, existing, record)
}

func TestSettlementService_SettleOnramp_ReplayFromCache(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	student := testStudent("studentWallet")
	ref := "KTN-2024-0006"
	digest := domain.ReferenceDigestHex(ref)
	existing := &domain.TransactionRecord{
		ReferenceDigest: digest,
		Initialized:     true,
		Sender:          "treasuryPool",
		Receiver:        "studentWallet",
		Amount:          1000,
		Reference:       ref,
	}
	cached, err := json.Marshal(existing)
	require.NoError(t, err)

	req := ports.OnrampRequest{
		Authority:       "authorityWallet",
		StudentOwner:    "studentWallet",
		ReferenceDigest: digest,
		Amount:          1000,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "studentWallet").Return(student, nil)
	// Cache hit short-circuits before the database transaction
	d.recordCache.EXPECT().Get(ctx, digest).Return(cached, nil)

	record, replayed, err := d.svc.SettleOnramp(ctx, req)
	require.NoError(t, err)
	assert.True(t, replayed)
	assert.Equal(t, existing.ReferenceDigest, record.ReferenceDigest)
	assert.Equal(t, existing.Amount, record.Amount)
}

func TestSettlementService_SettleOnramp_TransferFailure(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	student := testStudent("studentWallet")
	ref := "KTN-2024-0007"
	digest := domain.ReferenceDigestHex(ref)

	req := ports.OnrampRequest{
		Authority:       "authorityWallet",
		StudentOwner:    "studentWallet",
		ReferenceDigest: digest,
		Amount:          1000,
		Reference:       ref,
	}

	nodeErr := errors.New("node: insufficient pool balance")

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "studentWallet").Return(student, nil)
	d.recordCache.EXPECT().Get(ctx, digest).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.recordRepo.EXPECT().InsertIfAbsent(ctx, tx, gomock.Any()).Return(true, nil)
	d.tokenSvc.EXPECT().Transfer(ctx, gomock.Any()).Return(nodeErr)

	record, _, err := d.svc.SettleOnramp(ctx, req)
	assert.Nil(t, record)
	assertAppError(t, err, "XFER_001")
	// Underlying node error stays reachable through the chain
	assert.True(t, errors.Is(err, nodeErr))
}

func TestSettlementService_SettleOnramp_VolumeOverflow(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	student := testStudent("studentWallet")
	student.TotalVolume = math.MaxUint64 - 10
	ref := "KTN-2024-0008"
	digest := domain.ReferenceDigestHex(ref)

	req := ports.OnrampRequest{
		Authority:       "authorityWallet",
		StudentOwner:    "studentWallet",
		ReferenceDigest: digest,
		Amount:          11,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "studentWallet").Return(student, nil)
	d.recordCache.EXPECT().Get(ctx, digest).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.recordRepo.EXPECT().InsertIfAbsent(ctx, tx, gomock.Any()).Return(true, nil)
	d.tokenSvc.EXPECT().Transfer(ctx, gomock.Any()).Return(nil)
	d.studentRepo.EXPECT().GetByOwnerForUpdate(ctx, tx, "studentWallet").Return(student, nil)
	// No UpdateVolume, no event, no cache: the tx rolls back

	record, _, err := d.svc.SettleOnramp(ctx, req)
	assert.Nil(t, record)
	assertAppError(t, err, "MATH_001")
}

// ==================== SettleOfframp Tests ====================

func TestSettlementService_SettleOfframp_Success(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	student := testStudent("studentWallet")
	ref := "KTN-2024-0100"
	digest := domain.ReferenceDigestHex(ref)

	req := ports.OfframpRequest{
		Owner:           "studentWallet",
		ReferenceDigest: digest,
		Amount:          750,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "studentWallet").Return(student, nil)
	d.recordCache.EXPECT().Get(ctx, digest).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.recordRepo.EXPECT().InsertIfAbsent(ctx, tx, gomock.Any()).Return(true, nil)
	// Student pays into the pool, signing for themselves
	d.tokenSvc.EXPECT().Transfer(ctx, ports.TransferParams{
		FromAccount: "studentWallet",
		ToAccount:   "treasuryPool",
		Mint:        "usdcMint",
		Amount:      750,
		Authority:   "studentWallet",
		Reference:   ref,
	}).Return(nil)
	d.studentRepo.EXPECT().GetByOwnerForUpdate(ctx, tx, "studentWallet").Return(student, nil)
	d.studentRepo.EXPECT().UpdateVolume(ctx, tx, student.ID, uint64(750)).Return(nil)
	d.eventRepo.EXPECT().Append(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, event *domain.Event) error {
			assert.Equal(t, domain.EventOffRampSettled, event.Type)
			return nil
		})
	d.recordCache.EXPECT().Set(ctx, digest, gomock.Any(), recordCacheTTL).Return(nil)

	record, replayed, err := d.svc.SettleOfframp(ctx, req)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, "studentWallet", record.Sender)
	assert.Equal(t, "treasuryPool", record.Receiver)
}

func TestSettlementService_SettleOfframp_UnknownOwner(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ref := "KTN-2024-0101"
	req := ports.OfframpRequest{
		Owner:           "ghostWallet",
		ReferenceDigest: domain.ReferenceDigestHex(ref),
		Amount:          750,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "ghostWallet").Return(nil, nil)

	record, _, err := d.svc.SettleOfframp(ctx, req)
	assert.Nil(t, record)
	assertAppError(t, err, "AUTH_001")
}

func TestSettlementService_SettleOfframp_FrozenStudent(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ref := "KTN-2024-0102"
	student := testStudent("studentWallet")
	student.IsFrozen = true

	req := ports.OfframpRequest{
		Owner:           "studentWallet",
		ReferenceDigest: domain.ReferenceDigestHex(ref),
		Amount:          750,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "studentWallet").Return(student, nil)

	record, _, err := d.svc.SettleOfframp(ctx, req)
	assert.Nil(t, record)
	assertAppError(t, err, "STATE_001")
}

// ==================== SendUSDC Tests ====================

func TestSettlementService_SendUSDC_Success(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	// Sender sorts after receiver; locks must still go in owner order
	sender := testStudent("walletB")
	receiver := testStudent("walletA")
	ref := "P2P-2024-0001"
	digest := domain.ReferenceDigestHex(ref)

	req := ports.SendRequest{
		Sender:          "walletB",
		Receiver:        "walletA",
		ReferenceDigest: digest,
		Amount:          400,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "walletB").Return(sender, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "walletA").Return(receiver, nil)
	d.recordCache.EXPECT().Get(ctx, digest).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.recordRepo.EXPECT().InsertIfAbsent(ctx, tx, gomock.Any()).Return(true, nil)
	d.tokenSvc.EXPECT().Transfer(ctx, ports.TransferParams{
		FromAccount: "walletB",
		ToAccount:   "walletA",
		Mint:        "usdcMint",
		Amount:      400,
		Authority:   "walletB",
		Reference:   ref,
	}).Return(nil)

	gomock.InOrder(
		d.studentRepo.EXPECT().GetByOwnerForUpdate(ctx, tx, "walletA").Return(receiver, nil),
		d.studentRepo.EXPECT().GetByOwnerForUpdate(ctx, tx, "walletB").Return(sender, nil),
	)
	d.studentRepo.EXPECT().UpdateVolume(ctx, tx, receiver.ID, uint64(400)).Return(nil)
	d.studentRepo.EXPECT().UpdateVolume(ctx, tx, sender.ID, uint64(400)).Return(nil)
	d.eventRepo.EXPECT().Append(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, event *domain.Event) error {
			assert.Equal(t, domain.EventTransferExecuted, event.Type)
			var p domain.TransferExecutedPayload
			require.NoError(t, json.Unmarshal(event.Payload, &p))
			assert.Equal(t, "walletB", p.Sender)
			assert.Equal(t, "walletA", p.Receiver)
			return nil
		})
	d.recordCache.EXPECT().Set(ctx, digest, gomock.Any(), recordCacheTTL).Return(nil)

	record, replayed, err := d.svc.SendUSDC(ctx, req)
	require.NoError(t, err)
	assert.False(t, replayed)
	assert.Equal(t, "walletB", record.Sender)
	assert.Equal(t, "walletA", record.Receiver)
}

func TestSettlementService_SendUSDC_EmptyReference(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	req := ports.SendRequest{
		Sender:          "walletB",
		Receiver:        "walletA",
		ReferenceDigest: domain.ReferenceDigestHex(""),
		Amount:          400,
		Reference:       "",
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "walletB").Return(testStudent("walletB"), nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "walletA").Return(testStudent("walletA"), nil)

	record, _, err := d.svc.SendUSDC(ctx, req)
	assert.Nil(t, record)
	assertAppError(t, err, "VAL_003")
}

// A frozen participant beats the peer-specific checks: an empty-reference
// transfer from a frozen sender reports the freeze, not the reference.
func TestSettlementService_SendUSDC_FrozenSenderWinsOverEmptyReference(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	sender := testStudent("walletB")
	sender.IsFrozen = true

	req := ports.SendRequest{
		Sender:          "walletB",
		Receiver:        "walletA",
		ReferenceDigest: domain.ReferenceDigestHex(""),
		Amount:          400,
		Reference:       "",
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "walletB").Return(sender, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "walletA").Return(testStudent("walletA"), nil)

	record, _, err := d.svc.SendUSDC(ctx, req)
	assert.Nil(t, record)
	assertAppError(t, err, "STATE_001")
}

func TestSettlementService_SendUSDC_SelfTransfer(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ref := "P2P-2024-0002"
	req := ports.SendRequest{
		Sender:          "walletA",
		Receiver:        "walletA",
		ReferenceDigest: domain.ReferenceDigestHex(ref),
		Amount:          400,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "walletA").Return(testStudent("walletA"), nil).Times(2)

	record, _, err := d.svc.SendUSDC(ctx, req)
	assert.Nil(t, record)
	assertAppError(t, err, "AUTH_002")
}

func TestSettlementService_SendUSDC_UnregisteredSender(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ref := "P2P-2024-0003"
	req := ports.SendRequest{
		Sender:          "ghostWallet",
		Receiver:        "walletA",
		ReferenceDigest: domain.ReferenceDigestHex(ref),
		Amount:          400,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "ghostWallet").Return(nil, nil)

	record, _, err := d.svc.SendUSDC(ctx, req)
	assert.Nil(t, record)
	assertAppError(t, err, "AUTH_001")
}

func TestSettlementService_SendUSDC_UnregisteredReceiver(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ref := "P2P-2024-0004"
	req := ports.SendRequest{
		Sender:          "walletB",
		Receiver:        "ghostWallet",
		ReferenceDigest: domain.ReferenceDigestHex(ref),
		Amount:          400,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "walletB").Return(testStudent("walletB"), nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "ghostWallet").Return(nil, nil)

	record, _, err := d.svc.SendUSDC(ctx, req)
	assert.Nil(t, record)
	assertAppError(t, err, "AUTH_002")
}

func TestSettlementService_SendUSDC_FrozenReceiver(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	ref := "P2P-2024-0005"
	receiver := testStudent("walletA")
	receiver.IsFrozen = true

	req := ports.SendRequest{
		Sender:          "walletB",
		Receiver:        "walletA",
		ReferenceDigest: domain.ReferenceDigestHex(ref),
		Amount:          400,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "walletB").Return(testStudent("walletB"), nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "walletA").Return(receiver, nil)

	record, _, err := d.svc.SendUSDC(ctx, req)
	assert.Nil(t, record)
	assertAppError(t, err, "STATE_001")
}

// A reference settled through one flow suppresses settlement of the same
// reference through any other flow.
func TestSettlementService_SendUSDC_CrossFlowReplay(t *testing.T) {
	d := setupSettlementService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	tx := &mockTx{}
	ref := "KTN-2024-0001" // previously settled as an onramp
	digest := domain.ReferenceDigestHex(ref)
	existing := &domain.TransactionRecord{
		ReferenceDigest: digest,
		Initialized:     true,
		Sender:          "treasuryPool",
		Receiver:        "walletA",
		Amount:          1000,
		Reference:       ref,
	}

	req := ports.SendRequest{
		Sender:          "walletB",
		Receiver:        "walletA",
		ReferenceDigest: digest,
		Amount:          400,
		Reference:       ref,
	}

	d.treasuryRepo.EXPECT().Get(ctx).Return(testTreasury, nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "walletB").Return(testStudent("walletB"), nil)
	d.studentRepo.EXPECT().GetByOwner(ctx, "walletA").Return(testStudent("walletA"), nil)
	d.recordCache.EXPECT().Get(ctx, digest).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.recordRepo.EXPECT().InsertIfAbsent(ctx, tx, gomock.Any()).Return(false, nil)
	d.recordRepo.EXPECT().GetByDigest(ctx, digest).Return(existing, nil)
	d.recordCache.EXPECT().Set(ctx, digest, gomock.Any(), recordCacheTTL).Return(nil)

	record, replayed, err := d.svc.SendUSDC(ctx, req)
	require.NoError(t, err)
	assert.True(t, replayed)
	// The surviving record is the original onramp, untouched
	assert.Equal(t, "treasuryPool", record.Sender)
	assert.Equal(t, uint64(1000), record.Amount)
}

func assertAppError(t *testing.T, err error, code string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, code, appErr.Code)
}
