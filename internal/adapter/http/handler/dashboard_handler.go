package handler

import (
	"math"
	"strconv"

	"usdc-settlement-ledger/internal/adapter/http/dto"
	"usdc-settlement-ledger/internal/core/domain"
	"usdc-settlement-ledger/internal/core/ports"
	"usdc-settlement-ledger/pkg/apperror"
	"usdc-settlement-ledger/pkg/response"

	"github.com/gin-gonic/gin"
)

// DashboardHandler handles ledger reporting endpoints.
type DashboardHandler struct {
	reportingSvc ports.ReportingService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(reportingSvc ports.ReportingService) *DashboardHandler {
	return &DashboardHandler{reportingSvc: reportingSvc}
}

// ListRecords handles GET /api/v1/dashboard/records.
func (h *DashboardHandler) ListRecords(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.RecordListParams{
		Page:     page,
		PageSize: pageSize,
	}

	if w := c.Query("wallet"); w != "" {
		params.Wallet = &w
	}
	if f := c.Query("flagged"); f != "" {
		if v, err := strconv.ParseBool(f); err == nil {
			params.Flagged = &v
		} else {
			response.Error(c, apperror.Validation("flagged must be a boolean"))
			return
		}
	}

	records, total, err := h.reportingSvc.ListRecords(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.RecordResponse, 0, len(records))
	for i := range records {
		items = append(items, toRecordResponse(&records[i], false))
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	response.OK(c, dto.RecordListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

// GetStats handles GET /api/v1/dashboard/stats.
func (h *DashboardHandler) GetStats(c *gin.Context) {
	stats, err := h.reportingSvc.GetStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.LedgerStatsResponse{
		TotalRecords:  stats.TotalRecords,
		Flagged:       stats.Flagged,
		TotalVolume:   stats.TotalVolume,
		AverageScore:  stats.AverageScore,
		HighestAmount: stats.HighestAmount,
	})
}

// ListEvents handles GET /api/v1/dashboard/events.
func (h *DashboardHandler) ListEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	events, err := h.reportingSvc.ListEvents(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.EventResponse, 0, len(events))
	for i := range events {
		items = append(items, toEventResponse(&events[i]))
	}

	response.OK(c, items)
}

// toEventResponse converts domain.Event to DTO.
func toEventResponse(e *domain.Event) dto.EventResponse {
	return dto.EventResponse{
		ID:        e.ID.String(),
		Type:      string(e.Type),
		Payload:   string(e.Payload),
		CreatedAt: e.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
