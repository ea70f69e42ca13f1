package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/earnflow/earnflow/internal/fraud"
)

// RegisterFraudRoutes wires the risk scoring endpoint.
func RegisterFraudRoutes(r fiber.Router, h *fraud.Handler) {
	r.Post("/fraud/:userId/score", h.Score)
}
