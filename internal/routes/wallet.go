package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/earnflow/earnflow/internal/wallet"
)

// RegisterWalletRoutes wires wallet-related endpoints.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	r.Post("/wallets", h.Create)
	r.Get("/wallets/:walletId/balance", h.Snapshot)
	r.Post("/wallets/:walletId/credit", h.Credit)
	r.Post("/wallets/:walletId/debit", h.Debit)
	r.Get("/wallets/:walletId/transactions", h.Transactions)
	r.Post("/transactions/:transactionId/reverse", h.Reverse)
}
