package handlers

import (
	"errors"
	"log"

	"rede/internal/models"
	"rede/internal/services/auth"
	"rede/internal/services/user"
	"rede/internal/utils"

	"github.com/gofiber/fiber/v2"
)

type AuthHandler struct {
	authService auth.Service
	userService user.Service
}

func NewAuthHandler(authService auth.Service, userService user.Service) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
	}
}

// extractUserClaims is a helper function to reduce duplication
func extractUserClaims(c *fiber.Ctx) (*models.UserClaims, error) {
	claims, ok := c.Locals("claims").(*models.UserClaims)
	if !ok || claims == nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var input user.RegisterInput
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	created, err := h.userService.Register(input)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidInput):
			return utils.BadRequest(c, err.Error())
		case errors.Is(err, user.ErrUnknownSponsorCode):
			return utils.UnprocessableEntity(c, "Unknown sponsor code")
		case errors.Is(err, user.ErrDuplicateUser):
			return utils.Conflict(c, "Email, phone or CPF already registered")
		default:
			log.Printf("Registration failed: %v", err)
			return utils.InternalError(c, "Failed to register user")
		}
	}

	return utils.Respond(c, fiber.StatusCreated, fiber.Map{
		"user": fiber.Map{
			"id":           created.ID,
			"email":        created.Email,
			"name":         created.Name,
			"access_level": created.AccessLevel,
			"sponsor_code": created.SponsorCode,
		},
	})
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var input struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	logged, accessToken, refreshToken, err := h.authService.Login(input.Email, input.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return utils.Unauthorized(c, "Invalid credentials")
		}
		log.Printf("Login failed for %s: %v", input.Email, err)
		return utils.InternalError(c, "Failed to log in")
	}

	return utils.Success(c, fiber.Map{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user": fiber.Map{
			"id":           logged.ID,
			"email":        logged.Email,
			"name":         logged.Name,
			"access_level": logged.AccessLevel,
			"sponsor_code": logged.SponsorCode,
		},
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, err := extractUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	if err := h.authService.Logout(claims.UserID); err != nil {
		log.Printf("Logout failed for user %d: %v", claims.UserID, err)
		return utils.InternalError(c, "Failed to log out")
	}

	return utils.Success(c, fiber.Map{"message": "Logged out"})
}
