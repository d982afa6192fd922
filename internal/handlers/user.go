package handlers

import (
	"errors"
	"log"

	"rede/internal/models"
	"rede/internal/services/referral"
	"rede/internal/services/user"
	"rede/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type UserHandler struct {
	userService     user.Service
	referralService referral.Service
}

func NewUserHandler(userService user.Service, referralService referral.Service) *UserHandler {
	return &UserHandler{userService: userService, referralService: referralService}
}

func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	u, err := h.userService.GetByID(claims.UserID)
	if err != nil {
		log.Printf("Failed to load user %d: %v", claims.UserID, err)
		return utils.InternalError(c, "Failed to load profile")
	}

	return utils.Success(c, fiber.Map{
		"id":                u.ID,
		"email":             u.Email,
		"name":              u.Name,
		"phone":             u.Phone,
		"access_level":      u.AccessLevel,
		"sponsor_code":      u.SponsorCode,
		"sponsor_id":        u.SponsorID,
		"available_balance": u.AvailableBalance,
		"blocked_balance":   u.BlockedBalance,
		"payout_details":    u.PayoutDetails,
	})
}

func (h *UserHandler) UpdatePayoutDetails(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var details models.PayoutDetails
	if err := c.BodyParser(&details); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	if err := h.userService.UpdatePayoutDetails(claims.UserID, details); err != nil {
		if errors.Is(err, user.ErrInvalidInput) {
			return utils.BadRequest(c, "Provide a PIX key or a full bank account")
		}
		log.Printf("Failed to update payout details for user %d: %v", claims.UserID, err)
		return utils.InternalError(c, "Failed to update payout details")
	}

	return utils.Success(c, fiber.Map{"message": "Payout details updated"})
}

// GetDownline lists the caller's direct recruits.
func (h *UserHandler) GetDownline(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	p := utils.GetPagination(c, 1, 20)
	downline, total, err := h.userService.ListDirectDownline(claims.UserID, p.Limit, p.Offset)
	if err != nil {
		log.Printf("Failed to list downline for user %d: %v", claims.UserID, err)
		return utils.InternalError(c, "Failed to list downline")
	}
	p.SetTotal(total)

	members := make([]fiber.Map, 0, len(downline))
	for _, m := range downline {
		members = append(members, fiber.Map{
			"id":           m.ID,
			"name":         m.Name,
			"access_level": m.AccessLevel,
			"joined_at":    m.CreatedAt,
		})
	}

	return utils.Success(c, utils.NewPaginatedResponse(members, p))
}

// GetUpline shows the caller's commission-earning sponsor chain.
func (h *UserHandler) GetUpline(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	chain, err := h.referralService.ResolveUpline(c.Context(), claims.UserID, 0)
	if err != nil && !errors.Is(err, referral.ErrSponsorCycle) {
		log.Printf("Failed to resolve upline for user %d: %v", claims.UserID, err)
		return utils.InternalError(c, "Failed to resolve upline")
	}

	entries := make([]fiber.Map, 0, len(chain))
	for _, e := range chain {
		entry := fiber.Map{"level": e.Level + 1, "user_id": e.UserID}
		if sponsor, err := h.userService.GetByID(e.UserID); err == nil {
			entry["name"] = sponsor.Name
			entry["access_level"] = sponsor.AccessLevel
		}
		entries = append(entries, entry)
	}

	return utils.Success(c, fiber.Map{"upline": entries})
}
