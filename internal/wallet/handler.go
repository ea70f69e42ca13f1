package wallet

import (
	"context"
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/earnflow/earnflow/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createRequest struct {
	OwnerID string `json:"owner_id"`
}

type postingRequest struct {
	Amount    int64             `json:"amount"`
	Reference string            `json:"reference"`
	Metadata  map[string]string `json:"metadata"`
}

// Create provisions a wallet for a user.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	w, err := h.service.Create(c.UserContext(), CreateInput{OwnerID: req.OwnerID})
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"id":       w.ID,
		"owner_id": w.OwnerID,
	})
}

// Snapshot returns the wallet's balances.
func (h *Handler) Snapshot(c *fiber.Ctx) error {
	snap, err := h.service.Snapshot(c.UserContext(), c.Params("walletId"))
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"wallet_id": snap.WalletID,
		"available": snap.Available,
		"locked":    snap.Locked,
		"spent":     snap.Spent,
		"as_of":     snap.AsOf,
	})
}

// Credit posts earnings into the wallet.
func (h *Handler) Credit(c *fiber.Ctx) error {
	return h.post(c, h.service.Credit)
}

// Debit withdraws available funds from the wallet.
func (h *Handler) Debit(c *fiber.Ctx) error {
	return h.post(c, h.service.Debit)
}

func (h *Handler) post(c *fiber.Ctx, op func(ctx context.Context, walletID string, amount int64, reference string, metadata map[string]string) (ledger.Transaction, error)) error {
	var req postingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, err := op(c.UserContext(), c.Params("walletId"), req.Amount, req.Reference, req.Metadata)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(transactionResponse(tx))
}

// Transactions lists ledger entries for audit.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	filter := ledger.TransactionFilter{
		Type:   ledger.TransactionType(c.Query("type")),
		Status: ledger.TransactionStatus(c.Query("status")),
		Limit:  c.QueryInt("limit"),
	}
	txs, err := h.service.Transactions(c.UserContext(), c.Params("walletId"), filter)
	if err != nil {
		return mapError(err)
	}
	out := make([]fiber.Map, 0, len(txs))
	for _, tx := range txs {
		out = append(out, transactionResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

type reverseRequest struct {
	Reason  string `json:"reason"`
	ActorID string `json:"actor_id"`
}

// Reverse compensates a committed transaction.
func (h *Handler) Reverse(c *fiber.Ctx) error {
	var req reverseRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	comp, err := h.service.Reverse(c.UserContext(), c.Params("transactionId"), req.Reason, req.ActorID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(transactionResponse(comp))
}

func transactionResponse(tx ledger.Transaction) fiber.Map {
	return fiber.Map{
		"id":             tx.ID,
		"wallet_id":      tx.WalletID,
		"type":           tx.Type,
		"amount":         tx.Amount,
		"status":         tx.Status,
		"reference":      tx.Reference,
		"hold_id":        tx.HoldID,
		"balance_before": tx.BalanceBefore,
		"balance_after":  tx.BalanceAfter,
		"hash":           tx.Hash,
		"created_at":     tx.CreatedAt,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "not found")
	case errors.Is(err, ledger.ErrImmutable):
		return fiber.NewError(http.StatusConflict, "transaction already committed")
	case errors.Is(err, ledger.ErrInvalidStateTransition):
		return fiber.NewError(http.StatusConflict, "invalid state transition")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
