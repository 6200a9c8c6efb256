package handler

import (
	"usdc-settlement-ledger/internal/adapter/http/dto"
	"usdc-settlement-ledger/internal/adapter/http/middleware"
	"usdc-settlement-ledger/internal/core/domain"
	"usdc-settlement-ledger/internal/core/ports"
	"usdc-settlement-ledger/pkg/apperror"
	"usdc-settlement-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// SettlementHandler handles the three settlement flows. Onramp is an
// authority operation (the pool pays out); offramp and peer send are
// student-authorized HMAC requests.
type SettlementHandler struct {
	settlementSvc ports.SettlementService
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlementSvc ports.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementSvc: settlementSvc}
}

// Onramp handles POST /api/v1/settlements/onramp.
func (h *SettlementHandler) Onramp(c *gin.Context) {
	authority, ok := c.Get(middleware.CtxAuthority)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.OnrampRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	record, replayed, err := h.settlementSvc.SettleOnramp(c.Request.Context(), ports.OnrampRequest{
		Authority:       authority.(string),
		StudentOwner:    req.StudentOwner,
		ReferenceDigest: req.ReferenceDigest,
		Amount:          req.Amount,
		Reference:       req.Reference,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	respond(c, record, replayed)
}

// Offramp handles POST /api/v1/settlements/offramp.
func (h *SettlementHandler) Offramp(c *gin.Context) {
	owner, ok := c.Get(middleware.CtxStudentOwner)
	if !ok {
		response.Error(c, apperror.ErrInvalidAccessKey())
		return
	}

	var req dto.OfframpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	record, replayed, err := h.settlementSvc.SettleOfframp(c.Request.Context(), ports.OfframpRequest{
		Owner:           owner.(string),
		ReferenceDigest: req.ReferenceDigest,
		Amount:          req.Amount,
		Reference:       req.Reference,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	respond(c, record, replayed)
}

// Send handles POST /api/v1/settlements/send.
func (h *SettlementHandler) Send(c *gin.Context) {
	owner, ok := c.Get(middleware.CtxStudentOwner)
	if !ok {
		response.Error(c, apperror.ErrInvalidAccessKey())
		return
	}

	var req dto.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	record, replayed, err := h.settlementSvc.SendUSDC(c.Request.Context(), ports.SendRequest{
		Sender:          owner.(string),
		Receiver:        req.Receiver,
		ReferenceDigest: req.ReferenceDigest,
		Amount:          req.Amount,
		Reference:       req.Reference,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	respond(c, record, replayed)
}

// respond maps a settlement outcome to the wire. A replay is a success that
// moved nothing, so it answers 200; a fresh settlement answers 201.
func respond(c *gin.Context, record *domain.TransactionRecord, replayed bool) {
	if replayed {
		response.OK(c, toRecordResponse(record, true))
		return
	}
	response.Created(c, toRecordResponse(record, false))
}

// toRecordResponse converts domain.TransactionRecord to DTO.
func toRecordResponse(r *domain.TransactionRecord, replayed bool) dto.RecordResponse {
	return dto.RecordResponse{
		ReferenceDigest: r.ReferenceDigest,
		Sender:          r.Sender,
		Receiver:        r.Receiver,
		Amount:          r.Amount,
		Reference:       r.Reference,
		FraudScore:      r.FraudScore,
		IsFlagged:       r.IsFlagged,
		SettledAt:       r.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
		Replayed:        replayed,
	}
}
