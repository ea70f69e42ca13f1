package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestWallet(t *testing.T, s Store, available int64) Wallet {
	t.Helper()
	w, err := s.EnsureWallet(context.Background(), "", "owner-"+t.Name())
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if available > 0 {
		SeedBalance(s, w.ID, available)
	}
	return w
}

func TestInMemoryStore_CreditDebitReplay(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, s, 0)

	postings := []struct {
		txType TransactionType
		amount int64
	}{
		{TypeCredit, 1_000},
		{TypeCredit, 250},
		{TypeDebit, 400},
		{TypeCredit, 150},
		{TypeDebit, 100},
	}

	for i, p := range postings {
		ref := fmt.Sprintf("posting-%d", i)
		var err error
		if p.txType == TypeCredit {
			_, err = s.Credit(ctx, w.ID, p.amount, ref, nil)
		} else {
			_, err = s.Debit(ctx, w.ID, p.amount, ref, nil)
		}
		if err != nil {
			t.Fatalf("posting %d: %v", i, err)
		}
	}

	txs, err := s.ListTransactions(ctx, w.ID, TransactionFilter{Status: StatusCommitted})
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	var replayed int64
	for _, tx := range txs {
		switch tx.Type {
		case TypeCredit:
			replayed += tx.Amount
		case TypeDebit:
			replayed -= tx.Amount
		}
	}

	snap, err := s.Snapshot(ctx, w.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if replayed != snap.Available+snap.Locked {
		t.Fatalf("replay mismatch: replayed=%d available+locked=%d", replayed, snap.Available+snap.Locked)
	}
	if snap.Available != 900 {
		t.Fatalf("expected available 900, got %d", snap.Available)
	}
}

func TestInMemoryStore_DuplicateReferenceReturnsPrior(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, s, 0)

	first, err := s.Credit(ctx, w.ID, 500, "task-42", nil)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}

	replay, err := s.Credit(ctx, w.ID, 500, "task-42", nil)
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}
	if replay.ID != first.ID || replay.Hash != first.Hash {
		t.Fatalf("expected prior record back, got %+v", replay)
	}

	snap, _ := s.Snapshot(ctx, w.ID)
	if snap.Available != 500 {
		t.Fatalf("duplicate credit must not post twice, available=%d", snap.Available)
	}
}

func TestInMemoryStore_DebitInsufficientFunds(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, s, 100)

	if _, err := s.Debit(ctx, w.ID, 200, "over", nil); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
	if _, err := s.Credit(ctx, w.ID, 0, "zero", nil); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
}

func TestInMemoryStore_OpenCommitOnce(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, s, 0)

	pending, err := s.Open(ctx, w.ID, TypeCredit, 750, "earn-1", map[string]string{"task": "survey"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if pending.Status != StatusPending || pending.Hash != "" {
		t.Fatalf("open must not stamp the hash: %+v", pending)
	}

	committed, err := s.Commit(ctx, pending.ID)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if committed.Status != StatusCommitted {
		t.Fatalf("expected committed, got %s", committed.Status)
	}
	want := CommitmentHash(750, TypeCredit, "earn-1", 0, 750)
	if committed.Hash != want {
		t.Fatalf("hash mismatch: got %s want %s", committed.Hash, want)
	}

	again, err := s.Commit(ctx, pending.ID)
	if !errors.Is(err, ErrImmutable) {
		t.Fatalf("second commit must fail immutable, got %v", err)
	}
	if again.Hash != committed.Hash {
		t.Fatalf("stored hash changed after second commit attempt")
	}
}

func TestInMemoryStore_OpenDuplicateReference(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, s, 0)

	first, err := s.Open(ctx, w.ID, TypeCredit, 10, "dup", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	existing, err := s.Open(ctx, w.ID, TypeCredit, 10, "dup", nil)
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference, got %v", err)
	}
	if existing.ID != first.ID {
		t.Fatalf("expected existing pending record back")
	}
}

func TestInMemoryStore_ReverseCreatesCompensation(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, s, 0)

	credit, err := s.Credit(ctx, w.ID, 1_000, "earn-9", nil)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}

	comp, err := s.Reverse(ctx, credit.ID, "task rejected on review", "admin-1")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if comp.Type != TypeDebit || comp.Amount != 1_000 {
		t.Fatalf("unexpected compensating transaction: %+v", comp)
	}

	orig, err := s.Transaction(ctx, credit.ID)
	if err != nil {
		t.Fatalf("get original: %v", err)
	}
	if orig.Status != StatusReversed || orig.Reversal == nil {
		t.Fatalf("original not marked reversed: %+v", orig)
	}
	if orig.Reversal.ActorID != "admin-1" || orig.Reversal.CompensatingTxID != comp.ID {
		t.Fatalf("reversal metadata missing: %+v", orig.Reversal)
	}
	if orig.Hash != credit.Hash {
		t.Fatalf("reversal must not touch the original hash")
	}

	if _, err := s.Reverse(ctx, credit.ID, "again", "admin-1"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("double reverse must fail, got %v", err)
	}

	snap, _ := s.Snapshot(ctx, w.ID)
	if snap.Available != 0 {
		t.Fatalf("expected available 0 after reversal, got %d", snap.Available)
	}
}

func TestInMemoryStore_HoldCaptureScenario(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, s, 1_000)

	h, err := s.PlaceHold(ctx, PlaceHoldInput{
		WalletID:  w.ID,
		Amount:    300,
		Purpose:   PurposeWithdrawal,
		HoldID:    "tx1",
		ExpiresAt: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("place hold: %v", err)
	}
	if h.Status != HoldActive {
		t.Fatalf("expected active hold, got %s", h.Status)
	}

	snap, _ := s.Snapshot(ctx, w.ID)
	if snap.Available != 700 || snap.Locked != 300 {
		t.Fatalf("after placement: %+v", snap)
	}

	captured, err := s.CaptureHold(ctx, "tx1")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if captured.Status != HoldCaptured {
		t.Fatalf("expected captured, got %s", captured.Status)
	}

	snap, _ = s.Snapshot(ctx, w.ID)
	if snap.Available != 700 || snap.Locked != 0 || snap.Spent != 300 {
		t.Fatalf("after capture: %+v", snap)
	}
}

func TestInMemoryStore_HoldReleaseScenario(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, s, 1_000)

	if _, err := s.PlaceHold(ctx, PlaceHoldInput{
		WalletID: w.ID, Amount: 300, Purpose: PurposeWithdrawal, HoldID: "tx1",
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("place hold: %v", err)
	}

	released, err := s.ReleaseHold(ctx, "tx1", "user cancelled")
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.Status != HoldReleased || released.Reason != "user cancelled" {
		t.Fatalf("unexpected hold: %+v", released)
	}

	snap, _ := s.Snapshot(ctx, w.ID)
	if snap.Available != 1_000 || snap.Locked != 0 || snap.Spent != 0 {
		t.Fatalf("after release: %+v", snap)
	}
}

func TestInMemoryStore_ForfeitIsAuditedLoss(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, s, 1_000)

	if _, err := s.PlaceHold(ctx, PlaceHoldInput{
		WalletID: w.ID, Amount: 250, Purpose: PurposeOther, HoldID: "fraud-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("place hold: %v", err)
	}

	forfeited, err := s.ForfeitHold(ctx, "fraud-1", "confirmed fraud")
	if err != nil {
		t.Fatalf("forfeit: %v", err)
	}
	if forfeited.Status != HoldForfeited {
		t.Fatalf("expected forfeited, got %s", forfeited.Status)
	}

	snap, _ := s.Snapshot(ctx, w.ID)
	if snap.Available != 750 || snap.Locked != 0 || snap.Spent != 0 {
		t.Fatalf("forfeit must not restore or spend funds: %+v", snap)
	}
}

func TestInMemoryStore_DuplicateHoldID(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, s, 1_000)

	input := PlaceHoldInput{
		WalletID: w.ID, Amount: 300, Purpose: PurposeData, HoldID: "vend-1",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	first, err := s.PlaceHold(ctx, input)
	if err != nil {
		t.Fatalf("place hold: %v", err)
	}

	replay, err := s.PlaceHold(ctx, input)
	if !errors.Is(err, ErrDuplicateHoldID) {
		t.Fatalf("expected duplicate hold id, got %v", err)
	}
	if replay.ID != first.ID {
		t.Fatalf("expected prior hold back")
	}

	snap, _ := s.Snapshot(ctx, w.ID)
	if snap.Available != 700 || snap.Locked != 300 {
		t.Fatalf("duplicate placement must deduct once: %+v", snap)
	}
}

func TestInMemoryStore_NoTerminalRetransition(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, s, 1_000)

	if _, err := s.PlaceHold(ctx, PlaceHoldInput{
		WalletID: w.ID, Amount: 300, Purpose: PurposeAirtime, HoldID: "h1",
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("place hold: %v", err)
	}
	if _, err := s.ReleaseHold(ctx, "h1", "vendor failure"); err != nil {
		t.Fatalf("release: %v", err)
	}

	before, _ := s.Snapshot(ctx, w.ID)
	if _, err := s.CaptureHold(ctx, "h1"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("capture after release must fail, got %v", err)
	}
	if _, err := s.RefundHold(ctx, "h1", "retry"); !errors.Is(err, ErrInvalidStateTransition) {
		t.Fatalf("refund after release must fail, got %v", err)
	}
	after, _ := s.Snapshot(ctx, w.ID)
	if after.Available != before.Available || after.Locked != before.Locked || after.Spent != before.Spent {
		t.Fatalf("failed transition changed balances: before=%+v after=%+v", before, after)
	}
}

func TestInMemoryStore_ConcurrentHoldsConserveFunds(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, s, 10_000)

	const workers = 10
	const amount = int64(500)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			holdID := fmt.Sprintf("h-%d", i)
			if _, err := s.PlaceHold(ctx, PlaceHoldInput{
				WalletID: w.ID, Amount: amount, Purpose: PurposeData, HoldID: holdID,
				ExpiresAt: time.Now().Add(time.Hour),
			}); err != nil {
				t.Errorf("place hold %d: %v", i, err)
				return
			}
			if i%2 == 0 {
				if _, err := s.CaptureHold(ctx, holdID); err != nil {
					t.Errorf("capture %d: %v", i, err)
				}
			} else {
				if _, err := s.ReleaseHold(ctx, holdID, "cancelled"); err != nil {
					t.Errorf("release %d: %v", i, err)
				}
			}
		}(i)
	}
	wg.Wait()

	snap, _ := s.Snapshot(ctx, w.ID)
	if snap.Available+snap.Locked+snap.Spent != 10_000 {
		t.Fatalf("funds not conserved: %+v", snap)
	}
	if snap.Locked != 0 {
		t.Fatalf("all holds resolved but locked=%d", snap.Locked)
	}
	if snap.Spent != 5*amount {
		t.Fatalf("expected spent %d, got %d", 5*amount, snap.Spent)
	}
}

func TestInMemoryStore_ExpiredHolds(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()
	w := newTestWallet(t, s, 1_000)

	if _, err := s.PlaceHold(ctx, PlaceHoldInput{
		WalletID: w.ID, Amount: 100, Purpose: PurposeData, HoldID: "old",
		ExpiresAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("place expired hold: %v", err)
	}
	if _, err := s.PlaceHold(ctx, PlaceHoldInput{
		WalletID: w.ID, Amount: 100, Purpose: PurposeData, HoldID: "fresh",
		ExpiresAt: time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatalf("place fresh hold: %v", err)
	}

	expired, err := s.ExpiredHolds(ctx, time.Now(), 10)
	if err != nil {
		t.Fatalf("expired holds: %v", err)
	}
	if len(expired) != 1 || expired[0].ID != "old" {
		t.Fatalf("expected only the stale hold, got %+v", expired)
	}
}
