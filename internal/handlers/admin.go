package handlers

import (
	"errors"
	"log"
	"strconv"
	"time"

	"rede/internal/models"
	"rede/internal/repositories"
	"rede/internal/services/balance"
	"rede/internal/services/report"
	"rede/internal/services/settings"
	"rede/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// AdminHandler groups the back-office operations: withdrawal moderation,
// commission settings, rankings, CSV export and ledger reconciliation.
// Routes mounting it sit behind AdminAuthMiddleware.
type AdminHandler struct {
	balanceService  balance.Service
	reportService   report.Service
	settingsService settings.Service
	ledger          repositories.LedgerRepository
}

func NewAdminHandler(
	balanceService balance.Service,
	reportService report.Service,
	settingsService settings.Service,
	ledger repositories.LedgerRepository,
) *AdminHandler {
	return &AdminHandler{
		balanceService:  balanceService,
		reportService:   reportService,
		settingsService: settingsService,
		ledger:          ledger,
	}
}

func paramID(c *fiber.Ctx, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil || id == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(id), nil
}

func (h *AdminHandler) ListWithdrawals(c *fiber.Ctx) error {
	p := utils.GetPagination(c, 1, 20)
	filter := repositories.WithdrawalFilter{
		Status: models.WithdrawalStatus(c.Query("status")),
		Limit:  p.Limit,
		Offset: p.Offset,
	}

	withdrawals, total, err := h.ledger.ListWithdrawals(filter)
	if err != nil {
		log.Printf("Failed to list withdrawals: %v", err)
		return utils.InternalError(c, "Failed to list withdrawals")
	}

	p.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(withdrawals, p))
}

func (h *AdminHandler) ApproveWithdrawal(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid withdrawal id")
	}
	return h.respondTransition(c, h.balanceService.ApproveWithdrawal(c.Context(), id), "approved")
}

func (h *AdminHandler) PayWithdrawal(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid withdrawal id")
	}
	return h.respondTransition(c, h.balanceService.PayWithdrawal(c.Context(), id), "paid")
}

func (h *AdminHandler) RejectWithdrawal(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid withdrawal id")
	}

	var input struct {
		Reason string `json:"reason"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}
	if input.Reason == "" {
		return utils.BadRequest(c, "A rejection reason is required")
	}

	return h.respondTransition(c, h.balanceService.RejectWithdrawal(c.Context(), id, input.Reason), "rejected")
}

func (h *AdminHandler) respondTransition(c *fiber.Ctx, err error, action string) error {
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrWithdrawalNotFound):
			return utils.NotFound(c, "Withdrawal not found")
		case errors.Is(err, balance.ErrInvalidTransition):
			return utils.UnprocessableEntity(c, "Withdrawal cannot be "+action+" from its current status")
		case errors.Is(err, balance.ErrConcurrencyConflict):
			return utils.Conflict(c, "Withdrawal was modified concurrently, retry")
		default:
			log.Printf("Withdrawal transition (%s) failed: %v", action, err)
			return utils.InternalError(c, "Failed to update withdrawal")
		}
	}
	return utils.Success(c, fiber.Map{"message": "Withdrawal " + action})
}

// ExportWithdrawals streams the pending-withdrawal payout sheet as CSV.
func (h *AdminHandler) ExportWithdrawals(c *fiber.Ctx) error {
	status := models.WithdrawalStatus(c.Query("status", string(models.WithdrawalStatusPending)))

	data, err := h.reportService.ExportWithdrawalsCSV(c.Context(), status)
	if err != nil {
		log.Printf("Failed to export withdrawals: %v", err)
		return utils.InternalError(c, "Failed to export withdrawals")
	}

	c.Set(fiber.HeaderContentType, "text/csv")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="withdrawals.csv"`)
	return c.Send(data)
}

func (h *AdminHandler) GetSettings(c *fiber.Ctx) error {
	cfg, err := h.settingsService.Get(c.Context())
	if err != nil {
		log.Printf("Failed to load settings: %v", err)
		return utils.InternalError(c, "Failed to load settings")
	}
	return utils.Success(c, cfg)
}

func (h *AdminHandler) UpdateSettings(c *fiber.Ctx) error {
	var input models.CommissionSettings
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	if err := h.settingsService.Update(c.Context(), &input); err != nil {
		if errors.Is(err, settings.ErrInvalidSettings) {
			return utils.UnprocessableEntity(c, err.Error())
		}
		log.Printf("Failed to update settings: %v", err)
		return utils.InternalError(c, "Failed to update settings")
	}

	return utils.Success(c, input)
}

// Reconcile recomputes one user's balances from the ledger and reports drift.
func (h *AdminHandler) Reconcile(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return utils.BadRequest(c, "Invalid user id")
	}

	rep, err := h.balanceService.Reconcile(c.Context(), id)
	if err != nil && !errors.Is(err, balance.ErrLedgerMismatch) {
		log.Printf("Reconciliation failed for user %d: %v", id, err)
		return utils.InternalError(c, "Failed to reconcile balances")
	}

	return utils.Success(c, fiber.Map{
		"report":   rep,
		"in_sync":  err == nil,
	})
}

func (h *AdminHandler) GetRanking(c *fiber.Ctx) error {
	criteria := report.RankingCriteria(c.Query("by", string(report.RankBySales)))

	period := report.MonthToDate(time.Now().UTC())
	if from := c.Query("from"); from != "" {
		start, err := time.Parse(time.DateOnly, from)
		if err != nil {
			return utils.BadRequest(c, "Invalid from date, expected YYYY-MM-DD")
		}
		period.Start = start
	}
	if to := c.Query("to"); to != "" {
		end, err := time.Parse(time.DateOnly, to)
		if err != nil {
			return utils.BadRequest(c, "Invalid to date, expected YYYY-MM-DD")
		}
		period.End = end.AddDate(0, 0, 1)
	}

	limit := c.QueryInt("limit", report.DefaultRankingLimit)
	entries, err := h.reportService.GetRanking(c.Context(), criteria, period, limit)
	if err != nil {
		log.Printf("Failed to build ranking (%s): %v", criteria, err)
		return utils.InternalError(c, "Failed to build ranking")
	}

	return utils.Success(c, fiber.Map{
		"criteria": criteria,
		"period":   fiber.Map{"start": period.Start, "end": period.End},
		"ranking":  entries,
	})
}

// ListCommissions lets admins inspect any user's commission ledger.
func (h *AdminHandler) ListCommissions(c *fiber.Ctx) error {
	p := utils.GetPagination(c, 1, 20)
	filter := repositories.CommissionFilter{
		UserID: uint(c.QueryInt("user_id", 0)),
		Status: models.CommissionStatus(c.Query("status")),
		Limit:  p.Limit,
		Offset: p.Offset,
	}

	commissions, total, err := h.reportService.ListCommissions(c.Context(), filter)
	if err != nil {
		log.Printf("Failed to list commissions: %v", err)
		return utils.InternalError(c, "Failed to list commissions")
	}

	p.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(commissions, p))
}
