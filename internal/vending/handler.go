package vending

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/earnflow/earnflow/internal/hold"
	"github.com/earnflow/earnflow/internal/ledger"
)

// Handler exposes the vend HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHandler builds a vending handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type vendRequest struct {
	WalletID    string `json:"wallet_id"`
	Product     string `json:"product"`
	Amount      int64  `json:"amount"`
	PhoneNumber string `json:"phone_number"`
	VendID      string `json:"vend_id"`
}

// Vend places a data or airtime order against the wallet.
func (h *Handler) Vend(c *fiber.Ctx) error {
	var req vendRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	result, err := h.service.Vend(c.UserContext(), VendInput{
		WalletID:    req.WalletID,
		Product:     ledger.HoldPurpose(req.Product),
		Amount:      req.Amount,
		PhoneNumber: req.PhoneNumber,
		VendID:      req.VendID,
	})
	if err != nil {
		switch {
		case errors.Is(err, hold.ErrRiskBlocked):
			return fiber.NewError(http.StatusForbidden, "vend blocked by risk policy")
		case errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, "amount must be positive")
		case errors.Is(err, ledger.ErrInsufficientFunds):
			return fiber.NewError(http.StatusBadRequest, "insufficient available funds")
		case errors.Is(err, ledger.ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case result.Status == ledger.HoldRefunded:
			// Vendor failure with funds restored.
			return c.Status(http.StatusBadGateway).JSON(vendResponse(result))
		default:
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}

	return c.Status(http.StatusCreated).JSON(vendResponse(result))
}

func vendResponse(result VendResult) fiber.Map {
	return fiber.Map{
		"vend_id":          result.VendID,
		"hold_id":          result.HoldID,
		"status":           result.Status,
		"vendor_reference": result.VendorReference,
		"completed_at":     result.CompletedAt,
	}
}
