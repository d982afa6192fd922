package handlers

import (
	"errors"
	"log"

	"rede/internal/config"
	"rede/internal/services/order"
	"rede/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// WebhookHandler receives storefront order notifications over HTTP. The same
// events also arrive on the broker topic; both paths funnel into the order
// service, which keeps re-delivery harmless.
type WebhookHandler struct {
	orderService order.Service
}

func NewWebhookHandler(orderService order.Service) *WebhookHandler {
	return &WebhookHandler{orderService: orderService}
}

// VerifySecret guards the webhook endpoints with a shared-secret header.
func (h *WebhookHandler) VerifySecret(c *fiber.Ctx) error {
	secret := config.GetEnv("WEBHOOK_SECRET", "")
	if secret == "" || c.Get("X-Webhook-Secret") != secret {
		return utils.Unauthorized(c, "invalid webhook secret")
	}
	return c.Next()
}

func (h *WebhookHandler) OrderPaid(c *fiber.Ctx) error {
	var event order.PaidEvent
	if err := c.BodyParser(&event); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	ord, created, err := h.orderService.RecordPaid(c.Context(), event)
	if err != nil {
		if errors.Is(err, order.ErrInvalidEvent) {
			return utils.BadRequest(c, err.Error())
		}
		log.Printf("Failed to process paid order %s: %v", event.ExternalID, err)
		return utils.InternalError(c, "Failed to process order")
	}

	return utils.Success(c, fiber.Map{
		"order_id":            ord.ID,
		"commissions_created": len(created),
	})
}

func (h *WebhookHandler) OrderCancelled(c *fiber.Ctx) error {
	var event order.CancelledEvent
	if err := c.BodyParser(&event); err != nil {
		return utils.BadRequest(c, "Invalid request format")
	}

	reversed, err := h.orderService.RecordCancelled(c.Context(), event)
	if err != nil {
		switch {
		case errors.Is(err, order.ErrInvalidEvent):
			return utils.BadRequest(c, err.Error())
		case errors.Is(err, order.ErrOrderNotFound):
			return utils.NotFound(c, "Order not found")
		default:
			log.Printf("Failed to process cancelled order %s: %v", event.ExternalID, err)
			return utils.InternalError(c, "Failed to process cancellation")
		}
	}

	return utils.Success(c, fiber.Map{"commissions_reversed": reversed})
}
