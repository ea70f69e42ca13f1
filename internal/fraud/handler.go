package fraud

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the scoring endpoint for admin/audit surfaces.
type Handler struct {
	aggregator *Aggregator
}

// NewHandler constructs a fraud handler.
func NewHandler(aggregator *Aggregator) *Handler {
	return &Handler{aggregator: aggregator}
}

type scoreRequest struct {
	Amount int64 `json:"amount"`
}

// Score recomputes and returns the user's risk assessment.
func (h *Handler) Score(c *fiber.Ctx) error {
	var req scoreRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	score, err := h.aggregator.Score(c.UserContext(), c.Params("userId"), req.Amount)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"user_id":        score.UserID,
		"score":          score.Score,
		"factors":        score.Factors,
		"flagged":        score.Flagged,
		"vend_count":     score.VendCount,
		"expired_holds":  score.ExpiredHolds,
		"cooldown_until": score.CooldownUntil,
		"updated_at":     score.UpdatedAt,
	})
}
