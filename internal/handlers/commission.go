package handlers

import (
	"log"

	"rede/internal/models"
	"rede/internal/repositories"
	"rede/internal/services/report"
	"rede/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type CommissionHandler struct {
	reportService report.Service
}

func NewCommissionHandler(reportService report.Service) *CommissionHandler {
	return &CommissionHandler{reportService: reportService}
}

// ListMine returns the caller's commission ledger, newest first, optionally
// filtered by status.
func (h *CommissionHandler) ListMine(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	p := utils.GetPagination(c, 1, 20)
	filter := repositories.CommissionFilter{
		UserID: claims.UserID,
		Status: models.CommissionStatus(c.Query("status")),
		Limit:  p.Limit,
		Offset: p.Offset,
	}

	commissions, total, err := h.reportService.ListCommissions(c.Context(), filter)
	if err != nil {
		log.Printf("Failed to list commissions for user %d: %v", claims.UserID, err)
		return utils.InternalError(c, "Failed to list commissions")
	}

	p.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(commissions, p))
}

// GetSummary returns the caller's balance and earnings summary.
func (h *CommissionHandler) GetSummary(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	summary, err := h.reportService.GetSummary(c.Context(), claims.UserID)
	if err != nil {
		log.Printf("Failed to build summary for user %d: %v", claims.UserID, err)
		return utils.InternalError(c, "Failed to build summary")
	}

	return utils.Success(c, summary)
}
