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

// RegistryHandler handles student registry endpoints.
type RegistryHandler struct {
	registrySvc ports.RegistryService
}

// NewRegistryHandler creates a new RegistryHandler.
func NewRegistryHandler(registrySvc ports.RegistryService) *RegistryHandler {
	return &RegistryHandler{registrySvc: registrySvc}
}

// Register handles POST /api/v1/students.
func (h *RegistryHandler) Register(c *gin.Context) {
	var req dto.RegisterStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.registrySvc.Register(c.Request.Context(), ports.RegisterStudentRequest{
		Owner:   req.Owner,
		Country: req.Country,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.RegisterStudentResponse{
		Student:   toStudentResponse(result.Student),
		AccessKey: result.Student.AccessKey,
		SecretKey: result.SecretKey,
	})
}

// Freeze handles POST /api/v1/students/:owner/freeze.
func (h *RegistryHandler) Freeze(c *gin.Context) {
	authority, ok := c.Get(middleware.CtxAuthority)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	student, err := h.registrySvc.Freeze(c.Request.Context(), ports.FreezeRequest{
		Authority: authority.(string),
		Owner:     c.Param("owner"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toStudentResponse(student))
}

// GetStudent handles GET /api/v1/students/:owner.
func (h *RegistryHandler) GetStudent(c *gin.Context) {
	student, err := h.registrySvc.GetByOwner(c.Request.Context(), c.Param("owner"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toStudentResponse(student))
}

// toStudentResponse converts domain.Student to its public DTO.
func toStudentResponse(s *domain.Student) dto.StudentResponse {
	return dto.StudentResponse{
		ID:          s.ID.String(),
		Owner:       s.Owner,
		Country:     s.Country,
		IsFrozen:    s.IsFrozen,
		TotalVolume: s.TotalVolume,
		Flagged:     s.Flagged,
		CreatedAt:   s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
