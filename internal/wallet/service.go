package wallet

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/earnflow/earnflow/internal/ledger"
)

// Service exposes wallet balance operations backed by the ledger store.
type Service struct {
	store ledger.Store
}

// NewService builds a wallet service instance.
func NewService(store ledger.Store) *Service {
	return &Service{store: store}
}

// CreateInput captures data required to provision a wallet.
type CreateInput struct {
	OwnerID string
}

// Create provisions a wallet for the owner, returning the existing one if the
// owner already has a wallet.
func (s *Service) Create(ctx context.Context, input CreateInput) (ledger.Wallet, error) {
	if _, err := uuid.Parse(input.OwnerID); err != nil {
		return ledger.Wallet{}, err
	}
	return s.store.EnsureWallet(ctx, "", input.OwnerID)
}

// ByOwner resolves the wallet belonging to a user.
func (s *Service) ByOwner(ctx context.Context, ownerID string) (ledger.Wallet, error) {
	return s.store.WalletByOwner(ctx, ownerID)
}

// Snapshot returns the wallet's current balances. Read-only; callers must not
// use it to authorize a mutation, every mutation re-validates in its own unit.
func (s *Service) Snapshot(ctx context.Context, walletID string) (ledger.Snapshot, error) {
	return s.store.Snapshot(ctx, walletID)
}

// Credit posts earnings into the wallet. A replayed reference returns the
// original committed transaction unchanged.
func (s *Service) Credit(ctx context.Context, walletID string, amount int64, reference string, metadata map[string]string) (ledger.Transaction, error) {
	if reference == "" {
		reference = uuid.NewString()
	}
	tx, err := s.store.Credit(ctx, walletID, amount, reference, metadata)
	if errors.Is(err, ledger.ErrDuplicateReference) {
		return tx, nil
	}
	return tx, err
}

// Debit withdraws available funds. A replayed reference returns the original
// committed transaction unchanged.
func (s *Service) Debit(ctx context.Context, walletID string, amount int64, reference string, metadata map[string]string) (ledger.Transaction, error) {
	if reference == "" {
		reference = uuid.NewString()
	}
	tx, err := s.store.Debit(ctx, walletID, amount, reference, metadata)
	if errors.Is(err, ledger.ErrDuplicateReference) {
		return tx, nil
	}
	return tx, err
}

// Transactions lists the wallet's ledger entries for audit surfaces.
func (s *Service) Transactions(ctx context.Context, walletID string, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	return s.store.ListTransactions(ctx, walletID, filter)
}

// Reverse compensates a committed credit/debit, preserving the original row.
func (s *Service) Reverse(ctx context.Context, transactionID, reason, actorID string) (ledger.Transaction, error) {
	return s.store.Reverse(ctx, transactionID, reason, actorID)
}
