package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/earnflow/earnflow/internal/vending"
)

// RegisterVendingRoutes wires the vend endpoint behind its rate limiter.
func RegisterVendingRoutes(r fiber.Router, h *vending.Handler, rateLimiter fiber.Handler) {
	r.Post("/vend", rateLimiter, h.Vend)
}
