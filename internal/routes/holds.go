package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/earnflow/earnflow/internal/hold"
)

// RegisterHoldRoutes wires hold lifecycle endpoints.
func RegisterHoldRoutes(r fiber.Router, h *hold.Handler) {
	r.Post("/holds", h.Place)
	r.Get("/holds/:holdId", h.Get)
	r.Post("/holds/:holdId/capture", h.Capture)
	r.Post("/holds/:holdId/release", h.Release)
	r.Post("/holds/:holdId/refund", h.Refund)
	r.Post("/holds/:holdId/forfeit", h.Forfeit)
}
