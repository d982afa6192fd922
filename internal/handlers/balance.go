package handlers

import (
	"errors"
	"log"

	"rede/internal/models"
	"rede/internal/repositories"
	"rede/internal/services/balance"
	"rede/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type BalanceHandler struct {
	balanceService balance.Service
	ledger         repositories.LedgerRepository
}

func NewBalanceHandler(balanceService balance.Service, ledger repositories.LedgerRepository) *BalanceHandler {
	return &BalanceHandler{
		balanceService: balanceService,
		ledger:         ledger,
	}
}

func (h *BalanceHandler) GetBalances(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	available, blocked, err := h.balanceService.GetBalances(c.Context(), claims.UserID)
	if err != nil {
		log.Printf("Failed to get balances for user %d: %v", claims.UserID, err)
		return utils.InternalError(c, "Failed to get balances")
	}

	return utils.Success(c, fiber.Map{
		"available_balance": available,
		"blocked_balance":   blocked,
	})
}

func (h *BalanceHandler) RequestWithdrawal(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var input struct {
		Amount float64 `json:"amount"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	withdrawal, err := h.balanceService.RequestWithdrawal(c.Context(), claims.UserID, input.Amount)
	if err != nil {
		switch {
		case errors.Is(err, balance.ErrInvalidAmount):
			return utils.BadRequest(c, "Amount must be greater than 0")
		case errors.Is(err, balance.ErrBelowMinimum):
			return utils.UnprocessableEntity(c, "Amount is below the minimum withdrawal")
		case errors.Is(err, balance.ErrMissingPayoutDetails):
			return utils.UnprocessableEntity(c, "Register payout details before withdrawing")
		case errors.Is(err, balance.ErrInsufficientBalance):
			return utils.UnprocessableEntity(c, "Insufficient available balance")
		default:
			log.Printf("Withdrawal request failed for user %d: %v", claims.UserID, err)
			return utils.InternalError(c, "Failed to request withdrawal")
		}
	}

	return utils.Respond(c, fiber.StatusCreated, fiber.Map{"withdrawal": withdrawal})
}

func (h *BalanceHandler) ListMyWithdrawals(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	p := utils.GetPagination(c, 1, 20)
	filter := repositories.WithdrawalFilter{
		UserID: claims.UserID,
		Status: models.WithdrawalStatus(c.Query("status")),
		Limit:  p.Limit,
		Offset: p.Offset,
	}

	withdrawals, total, err := h.ledger.ListWithdrawals(filter)
	if err != nil {
		log.Printf("Failed to list withdrawals for user %d: %v", claims.UserID, err)
		return utils.InternalError(c, "Failed to list withdrawals")
	}

	p.SetTotal(total)
	return utils.Success(c, utils.NewPaginatedResponse(withdrawals, p))
}
