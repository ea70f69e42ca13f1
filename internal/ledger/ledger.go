package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidAmount occurs when a posting amount is zero or negative.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds occurs when the wallet lacks available balance
	// to cover a requested debit or hold placement.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateReference indicates the provided transaction reference
	// already exists and therefore the operation should be treated as
	// idempotent: the prior record is returned alongside this error.
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrDuplicateHoldID indicates the caller-supplied hold id already
	// exists; the prior hold is returned alongside this error.
	ErrDuplicateHoldID = errors.New("duplicate hold id")

	// ErrInvalidStateTransition indicates an operation was attempted on a
	// hold or transaction that is not in the required source state.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrImmutable indicates an attempt to alter a committed transaction.
	ErrImmutable = errors.New("transaction immutable")

	// ErrNotFound indicates an unknown wallet, hold, or transaction id.
	ErrNotFound = errors.New("not found")
)

// TransactionType classifies a ledger posting.
type TransactionType string

const (
	TypeCredit  TransactionType = "credit"
	TypeDebit   TransactionType = "debit"
	TypeHold    TransactionType = "hold"
	TypeRelease TransactionType = "release"
)

// TransactionStatus tracks a transaction through its lifecycle.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCommitted TransactionStatus = "committed"
	StatusReversed  TransactionStatus = "reversed"
)

// HoldPurpose names the external operation a reservation backs.
type HoldPurpose string

const (
	PurposeWithdrawal HoldPurpose = "withdrawal"
	PurposeData       HoldPurpose = "data"
	PurposeAirtime    HoldPurpose = "airtime"
	PurposeOther      HoldPurpose = "other"
)

// HoldStatus tracks a hold through its one-shot state machine. Every status
// other than active is terminal.
type HoldStatus string

const (
	HoldActive    HoldStatus = "active"
	HoldCaptured  HoldStatus = "captured"
	HoldReleased  HoldStatus = "released"
	HoldRefunded  HoldStatus = "refunded"
	HoldForfeited HoldStatus = "forfeited"
)

// Wallet is the per-user balance record. Available and Locked never go
// negative; only a capture moves value out of the available+locked pair.
type Wallet struct {
	ID        string
	OwnerID   string
	Available int64
	Locked    int64
	Spent     int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot is a read-only view of a wallet's balances. It must not be used to
// authorize a later mutation; mutations re-validate inside their atomic unit.
type Snapshot struct {
	WalletID  string
	Available int64
	Locked    int64
	Spent     int64
	AsOf      time.Time
}

// Reversal records who reversed a committed transaction and why. The original
// row is preserved; a compensating transaction carries the balance effect.
type Reversal struct {
	Reason           string
	ActorID          string
	CompensatingTxID string
	ReversedAt       time.Time
}

// Transaction is an append-only ledger entry. Once committed it is immutable:
// the commitment hash is stamped exactly once and any later alteration fails.
type Transaction struct {
	ID            string
	WalletID      string
	Type          TransactionType
	Amount        int64
	Status        TransactionStatus
	Reference     string
	HoldID        string
	BalanceBefore int64
	BalanceAfter  int64
	Hash          string
	Metadata      map[string]string
	FraudFlags    []string
	Reversal      *Reversal
	CreatedAt     time.Time
	CommittedAt   time.Time
}

// Hold ties a reservation of locked funds to a pending external operation.
type Hold struct {
	ID         string
	WalletID   string
	Purpose    HoldPurpose
	Amount     int64
	Status     HoldStatus
	Reason     string
	ExpiresAt  time.Time
	CreatedAt  time.Time
	ResolvedAt time.Time
}

// TransactionFilter narrows ListTransactions results. Zero values mean no
// filtering on that field.
type TransactionFilter struct {
	Type   TransactionType
	Status TransactionStatus
	Since  time.Time
	Limit  int
}

// PlaceHoldInput captures the data needed to reserve funds.
type PlaceHoldInput struct {
	WalletID   string
	Amount     int64
	Purpose    HoldPurpose
	HoldID     string
	ExpiresAt  time.Time
	FraudFlags []string
}

// Store is the contract implemented by ledger backends (in-memory, Postgres).
// Every balance-mutating method executes the wallet mutation and the
// transaction/hold status write as one atomic unit; a mid-sequence failure
// leaves neither record updated.
type Store interface {
	EnsureWallet(ctx context.Context, walletID, ownerID string) (Wallet, error)
	Wallet(ctx context.Context, walletID string) (Wallet, error)
	WalletByOwner(ctx context.Context, ownerID string) (Wallet, error)
	Snapshot(ctx context.Context, walletID string) (Snapshot, error)

	// Credit and Debit open and commit a transaction in a single unit.
	Credit(ctx context.Context, walletID string, amount int64, reference string, metadata map[string]string) (Transaction, error)
	Debit(ctx context.Context, walletID string, amount int64, reference string, metadata map[string]string) (Transaction, error)

	// Open creates a pending credit/debit transaction capturing
	// balanceBefore; Commit applies the balance mutation, stamps
	// balanceAfter and the commitment hash exactly once.
	Open(ctx context.Context, walletID string, txType TransactionType, amount int64, reference string, metadata map[string]string) (Transaction, error)
	Commit(ctx context.Context, transactionID string) (Transaction, error)
	Reverse(ctx context.Context, transactionID, reason, actorID string) (Transaction, error)

	Transaction(ctx context.Context, transactionID string) (Transaction, error)
	ListTransactions(ctx context.Context, walletID string, filter TransactionFilter) ([]Transaction, error)

	PlaceHold(ctx context.Context, input PlaceHoldInput) (Hold, error)
	CaptureHold(ctx context.Context, holdID string) (Hold, error)
	ReleaseHold(ctx context.Context, holdID, reason string) (Hold, error)
	RefundHold(ctx context.Context, holdID, reason string) (Hold, error)
	ForfeitHold(ctx context.Context, holdID, reason string) (Hold, error)
	Hold(ctx context.Context, holdID string) (Hold, error)
	ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]Hold, error)
}
