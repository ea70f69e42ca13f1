package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryStore struct {
	mu           sync.RWMutex
	wallets      map[string]*Wallet
	owners       map[string]string
	transactions map[string]*Transaction
	references   map[string]string
	holds        map[string]*Hold
	walletTxs    map[string][]string
}

// NewInMemory creates a concurrency-safe in-memory store. It backs unit tests
// and dev mode; every mutating method holds the store lock for the whole
// sequence, giving the same atomic-unit guarantee as the Postgres backend.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets:      make(map[string]*Wallet),
		owners:       make(map[string]string),
		transactions: make(map[string]*Transaction),
		references:   make(map[string]string),
		holds:        make(map[string]*Hold),
		walletTxs:    make(map[string][]string),
	}
}

func (s *inMemoryStore) EnsureWallet(_ context.Context, walletID, ownerID string) (Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if walletID == "" {
		walletID = uuid.NewString()
	}
	if w, exists := s.wallets[walletID]; exists {
		return *w, nil
	}
	if existing, exists := s.owners[ownerID]; exists {
		return *s.wallets[existing], nil
	}

	now := time.Now().UTC()
	w := &Wallet{ID: walletID, OwnerID: ownerID, CreatedAt: now, UpdatedAt: now}
	s.wallets[walletID] = w
	s.owners[ownerID] = walletID
	return *w, nil
}

func (s *inMemoryStore) Wallet(_ context.Context, walletID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return *w, nil
}

func (s *inMemoryStore) WalletByOwner(_ context.Context, ownerID string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	walletID, ok := s.owners[ownerID]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return *s.wallets[walletID], nil
}

func (s *inMemoryStore) Snapshot(_ context.Context, walletID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[walletID]
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return Snapshot{
		WalletID:  w.ID,
		Available: w.Available,
		Locked:    w.Locked,
		Spent:     w.Spent,
		AsOf:      time.Now().UTC(),
	}, nil
}

func (s *inMemoryStore) Credit(_ context.Context, walletID string, amount int64, reference string, metadata map[string]string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postLocked(walletID, TypeCredit, amount, reference, "", metadata, nil)
}

func (s *inMemoryStore) Debit(_ context.Context, walletID string, amount int64, reference string, metadata map[string]string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.postLocked(walletID, TypeDebit, amount, reference, "", metadata, nil)
}

func (s *inMemoryStore) Open(_ context.Context, walletID string, txType TransactionType, amount int64, reference string, metadata map[string]string) (Transaction, error) {
	if txType != TypeCredit && txType != TypeDebit {
		return Transaction{}, fmt.Errorf("unsupported transaction type %q", txType)
	}
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if existingID, exists := s.references[reference]; exists {
		return *s.transactions[existingID], ErrDuplicateReference
	}

	tx := &Transaction{
		ID:            uuid.NewString(),
		WalletID:      walletID,
		Type:          txType,
		Amount:        amount,
		Status:        StatusPending,
		Reference:     reference,
		BalanceBefore: w.Available,
		Metadata:      metadata,
		CreatedAt:     time.Now().UTC(),
	}
	s.recordLocked(tx)
	return *tx, nil
}

func (s *inMemoryStore) Commit(_ context.Context, transactionID string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.transactions[transactionID]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	switch tx.Status {
	case StatusCommitted:
		return *tx, ErrImmutable
	case StatusReversed:
		return *tx, ErrInvalidStateTransition
	}

	w := s.wallets[tx.WalletID]
	switch tx.Type {
	case TypeCredit:
		w.Available += tx.Amount
	case TypeDebit:
		if w.Available < tx.Amount {
			return Transaction{}, ErrInsufficientFunds
		}
		w.Available -= tx.Amount
	}
	w.UpdatedAt = time.Now().UTC()

	tx.Status = StatusCommitted
	tx.BalanceBefore = walletBalanceBefore(w, tx)
	tx.BalanceAfter = w.Available
	tx.Hash = CommitmentHash(tx.Amount, tx.Type, tx.Reference, tx.BalanceBefore, tx.BalanceAfter)
	tx.CommittedAt = w.UpdatedAt
	return *tx, nil
}

// walletBalanceBefore recomputes the pre-mutation available balance at commit
// time. The snapshot taken at Open may be stale if other postings landed in
// between; the committed record must reflect the balance it actually moved.
func walletBalanceBefore(w *Wallet, tx *Transaction) int64 {
	switch tx.Type {
	case TypeCredit:
		return w.Available - tx.Amount
	case TypeDebit:
		return w.Available + tx.Amount
	default:
		return w.Available
	}
}

func (s *inMemoryStore) Reverse(_ context.Context, transactionID, reason, actorID string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orig, ok := s.transactions[transactionID]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if orig.Status != StatusCommitted {
		return Transaction{}, ErrInvalidStateTransition
	}
	if orig.Type != TypeCredit && orig.Type != TypeDebit {
		return Transaction{}, ErrInvalidStateTransition
	}

	compType := TypeDebit
	if orig.Type == TypeDebit {
		compType = TypeCredit
	}

	comp, err := s.postLocked(orig.WalletID, compType, orig.Amount, "rev:"+orig.Reference, orig.HoldID,
		map[string]string{"reversal_of": orig.ID, "reason": reason}, nil)
	if err != nil {
		return Transaction{}, err
	}

	orig.Status = StatusReversed
	orig.Reversal = &Reversal{
		Reason:           reason,
		ActorID:          actorID,
		CompensatingTxID: comp.ID,
		ReversedAt:       time.Now().UTC(),
	}
	return comp, nil
}

func (s *inMemoryStore) Transaction(_ context.Context, transactionID string) (Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[transactionID]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	return *tx, nil
}

func (s *inMemoryStore) ListTransactions(_ context.Context, walletID string, filter TransactionFilter) ([]Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.wallets[walletID]; !ok {
		return nil, ErrNotFound
	}

	var out []Transaction
	for _, txID := range s.walletTxs[walletID] {
		tx := s.transactions[txID]
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if filter.Status != "" && tx.Status != filter.Status {
			continue
		}
		if !filter.Since.IsZero() && tx.CreatedAt.Before(filter.Since) {
			continue
		}
		out = append(out, *tx)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *inMemoryStore) PlaceHold(_ context.Context, input PlaceHoldInput) (Hold, error) {
	if input.Amount <= 0 {
		return Hold{}, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[input.WalletID]
	if !ok {
		return Hold{}, ErrNotFound
	}

	holdID := input.HoldID
	if holdID == "" {
		holdID = uuid.NewString()
	}
	if existing, exists := s.holds[holdID]; exists {
		return *existing, ErrDuplicateHoldID
	}

	if w.Available < input.Amount {
		return Hold{}, ErrInsufficientFunds
	}

	if _, err := s.postLocked(input.WalletID, TypeHold, input.Amount, "hold:"+holdID, holdID, nil, input.FraudFlags); err != nil {
		return Hold{}, err
	}

	now := time.Now().UTC()
	h := &Hold{
		ID:        holdID,
		WalletID:  input.WalletID,
		Purpose:   input.Purpose,
		Amount:    input.Amount,
		Status:    HoldActive,
		ExpiresAt: input.ExpiresAt,
		CreatedAt: now,
	}
	s.holds[holdID] = h
	return *h, nil
}

func (s *inMemoryStore) CaptureHold(_ context.Context, holdID string) (Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(holdID, HoldCaptured, "")
}

func (s *inMemoryStore) ReleaseHold(_ context.Context, holdID, reason string) (Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(holdID, HoldReleased, reason)
}

func (s *inMemoryStore) RefundHold(_ context.Context, holdID, reason string) (Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(holdID, HoldRefunded, reason)
}

func (s *inMemoryStore) ForfeitHold(_ context.Context, holdID, reason string) (Hold, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(holdID, HoldForfeited, reason)
}

func (s *inMemoryStore) Hold(_ context.Context, holdID string) (Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.holds[holdID]
	if !ok {
		return Hold{}, ErrNotFound
	}
	return *h, nil
}

func (s *inMemoryStore) ExpiredHolds(_ context.Context, now time.Time, limit int) ([]Hold, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Hold
	for _, h := range s.holds {
		if h.Status != HoldActive || h.ExpiresAt.After(now) {
			continue
		}
		out = append(out, *h)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// resolveLocked applies a terminal hold transition and the paired wallet
// mutation under the store lock. Callers must hold s.mu.
func (s *inMemoryStore) resolveLocked(holdID string, target HoldStatus, reason string) (Hold, error) {
	h, ok := s.holds[holdID]
	if !ok {
		return Hold{}, ErrNotFound
	}
	if h.Status != HoldActive {
		return *h, ErrInvalidStateTransition
	}

	w := s.wallets[h.WalletID]

	var txType TransactionType
	var reference string
	metadata := map[string]string{}
	if reason != "" {
		metadata["reason"] = reason
	}

	switch target {
	case HoldCaptured:
		txType = TypeDebit
		reference = "capture:" + holdID
		metadata["event"] = "capture"
	case HoldReleased:
		txType = TypeRelease
		reference = "release:" + holdID
	case HoldRefunded:
		txType = TypeRelease
		reference = "refund:" + holdID
	case HoldForfeited:
		txType = TypeDebit
		reference = "forfeit:" + holdID
		metadata["event"] = "forfeit"
	default:
		return Hold{}, ErrInvalidStateTransition
	}

	now := time.Now().UTC()
	before := w.Available

	switch target {
	case HoldCaptured:
		w.Locked -= h.Amount
		w.Spent += h.Amount
	case HoldReleased, HoldRefunded:
		w.Locked -= h.Amount
		w.Available += h.Amount
	case HoldForfeited:
		w.Locked -= h.Amount
	}
	w.UpdatedAt = now

	tx := &Transaction{
		ID:            uuid.NewString(),
		WalletID:      h.WalletID,
		Type:          txType,
		Amount:        h.Amount,
		Status:        StatusCommitted,
		Reference:     reference,
		HoldID:        holdID,
		BalanceBefore: before,
		BalanceAfter:  w.Available,
		Metadata:      metadata,
		CreatedAt:     now,
		CommittedAt:   now,
	}
	tx.Hash = CommitmentHash(tx.Amount, tx.Type, tx.Reference, tx.BalanceBefore, tx.BalanceAfter)
	s.recordLocked(tx)

	h.Status = target
	h.Reason = reason
	h.ResolvedAt = now
	return *h, nil
}

// postLocked opens and commits a transaction in one step. Callers must hold
// s.mu. Hold placements route through here with TypeHold so the reservation
// and its ledger entry land together.
func (s *inMemoryStore) postLocked(walletID string, txType TransactionType, amount int64, reference, holdID string, metadata map[string]string, fraudFlags []string) (Transaction, error) {
	if amount <= 0 {
		return Transaction{}, ErrInvalidAmount
	}
	w, ok := s.wallets[walletID]
	if !ok {
		return Transaction{}, ErrNotFound
	}
	if existingID, exists := s.references[reference]; exists {
		return *s.transactions[existingID], ErrDuplicateReference
	}

	before := w.Available
	switch txType {
	case TypeCredit:
		w.Available += amount
	case TypeDebit:
		if w.Available < amount {
			return Transaction{}, ErrInsufficientFunds
		}
		w.Available -= amount
	case TypeHold:
		if w.Available < amount {
			return Transaction{}, ErrInsufficientFunds
		}
		w.Available -= amount
		w.Locked += amount
	}

	now := time.Now().UTC()
	w.UpdatedAt = now
	tx := &Transaction{
		ID:            uuid.NewString(),
		WalletID:      walletID,
		Type:          txType,
		Amount:        amount,
		Status:        StatusCommitted,
		Reference:     reference,
		HoldID:        holdID,
		BalanceBefore: before,
		BalanceAfter:  w.Available,
		Metadata:      metadata,
		FraudFlags:    fraudFlags,
		CreatedAt:     now,
		CommittedAt:   now,
	}
	tx.Hash = CommitmentHash(tx.Amount, tx.Type, tx.Reference, tx.BalanceBefore, tx.BalanceAfter)
	s.recordLocked(tx)
	return *tx, nil
}

func (s *inMemoryStore) recordLocked(tx *Transaction) {
	s.transactions[tx.ID] = tx
	s.references[tx.Reference] = tx.ID
	s.walletTxs[tx.WalletID] = append(s.walletTxs[tx.WalletID], tx.ID)
}
