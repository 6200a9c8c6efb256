package handler

import (
	"usdc-settlement-ledger/internal/adapter/http/dto"
	"usdc-settlement-ledger/internal/adapter/http/middleware"
	"usdc-settlement-ledger/internal/core/ports"
	"usdc-settlement-ledger/pkg/apperror"
	"usdc-settlement-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// FraudHandler handles fraud score updates.
type FraudHandler struct {
	fraudSvc ports.FraudService
}

// NewFraudHandler creates a new FraudHandler.
func NewFraudHandler(fraudSvc ports.FraudService) *FraudHandler {
	return &FraudHandler{fraudSvc: fraudSvc}
}

// UpdateScore handles POST /api/v1/fraud/score.
func (h *FraudHandler) UpdateScore(c *gin.Context) {
	authority, ok := c.Get(middleware.CtxAuthority)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.UpdateScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	record, err := h.fraudSvc.UpdateScore(c.Request.Context(), ports.UpdateScoreRequest{
		Authority:       authority.(string),
		ReferenceDigest: req.ReferenceDigest,
		Reference:       req.Reference,
		Score:           uint8(*req.Score),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toRecordResponse(record, false))
}
