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

// TreasuryHandler handles treasury endpoints.
type TreasuryHandler struct {
	treasurySvc ports.TreasuryService
}

// NewTreasuryHandler creates a new TreasuryHandler.
func NewTreasuryHandler(treasurySvc ports.TreasuryService) *TreasuryHandler {
	return &TreasuryHandler{treasurySvc: treasurySvc}
}

// Initialize handles POST /api/v1/treasury. The authenticated authority
// becomes the treasury authority; the singleton row rejects a second call.
func (h *TreasuryHandler) Initialize(c *gin.Context) {
	authority, ok := c.Get(middleware.CtxAuthority)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.InitTreasuryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	treasury, err := h.treasurySvc.Initialize(c.Request.Context(), ports.InitTreasuryRequest{
		Authority:            authority.(string),
		USDCMint:             req.USDCMint,
		TreasuryTokenAccount: req.TreasuryTokenAccount,
		FeeBps:               req.FeeBps,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toTreasuryResponse(treasury))
}

// Get handles GET /api/v1/treasury.
func (h *TreasuryHandler) Get(c *gin.Context) {
	treasury, err := h.treasurySvc.Get(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTreasuryResponse(treasury))
}

// toTreasuryResponse converts domain.Treasury to its public DTO.
func toTreasuryResponse(t *domain.Treasury) dto.TreasuryResponse {
	return dto.TreasuryResponse{
		Authority:            t.Authority,
		USDCMint:             t.USDCMint,
		TreasuryTokenAccount: t.TreasuryTokenAccount,
		FeeBps:               t.FeeBps,
		CreatedAt:            t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
