package hold

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/earnflow/earnflow/internal/ledger"
)

// Handler exposes hold lifecycle HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a hold HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type placeRequest struct {
	WalletID  string `json:"wallet_id"`
	Amount    int64  `json:"amount"`
	Purpose   string `json:"purpose"`
	HoldID    string `json:"hold_id"`
	ExpiresIn int64  `json:"expires_in_seconds"`
}

// Place reserves funds against a wallet.
func (h *Handler) Place(c *fiber.Ctx) error {
	var req placeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	hold, err := h.service.Place(c.UserContext(), PlaceInput{
		WalletID:  req.WalletID,
		Amount:    req.Amount,
		Purpose:   ledger.HoldPurpose(req.Purpose),
		HoldID:    req.HoldID,
		ExpiresIn: time.Duration(req.ExpiresIn) * time.Second,
	})
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(holdResponse(hold))
}

type resolveRequest struct {
	Reason string `json:"reason"`
}

// Capture finalizes a hold as spent.
func (h *Handler) Capture(c *fiber.Ctx) error {
	hold, err := h.service.Capture(c.UserContext(), c.Params("holdId"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(holdResponse(hold))
}

// Release returns a hold's funds to the wallet.
func (h *Handler) Release(c *fiber.Ctx) error {
	return h.resolve(c, h.service.Release)
}

// Refund returns a hold's funds after a failed fulfilment.
func (h *Handler) Refund(c *fiber.Ctx) error {
	return h.resolve(c, h.service.Refund)
}

// Forfeit removes a hold's funds permanently.
func (h *Handler) Forfeit(c *fiber.Ctx) error {
	return h.resolve(c, h.service.Forfeit)
}

func (h *Handler) resolve(c *fiber.Ctx, op func(ctx context.Context, holdID, reason string) (ledger.Hold, error)) error {
	var req resolveRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	hold, err := op(c.UserContext(), c.Params("holdId"), req.Reason)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(holdResponse(hold))
}

// Get fetches a hold by id.
func (h *Handler) Get(c *fiber.Ctx) error {
	hold, err := h.service.Get(c.UserContext(), c.Params("holdId"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(holdResponse(hold))
}

func holdResponse(hold ledger.Hold) fiber.Map {
	return fiber.Map{
		"id":          hold.ID,
		"wallet_id":   hold.WalletID,
		"amount":      hold.Amount,
		"purpose":     hold.Purpose,
		"status":      hold.Status,
		"reason":      hold.Reason,
		"expires_at":  hold.ExpiresAt,
		"created_at":  hold.CreatedAt,
		"resolved_at": hold.ResolvedAt,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ErrRiskBlocked):
		return fiber.NewError(http.StatusForbidden, "placement blocked by risk policy")
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient available funds")
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "hold not found")
	case errors.Is(err, ledger.ErrInvalidStateTransition):
		return fiber.NewError(http.StatusConflict, "hold already resolved")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
