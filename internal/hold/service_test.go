package hold

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/earnflow/earnflow/internal/fraud"
	"github.com/earnflow/earnflow/internal/ledger"
)

type stubScorer struct {
	score fraud.Score
	err   error
}

func (s stubScorer) Score(context.Context, string, int64) (fraud.Score, error) {
	return s.score, s.err
}

type recordingObserver struct {
	expired []ledger.Hold
}

func (o *recordingObserver) HoldExpired(_ context.Context, h ledger.Hold) {
	o.expired = append(o.expired, h)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, policy *RiskPolicy) (*Service, ledger.Store, ledger.Wallet) {
	t.Helper()
	store := ledger.NewInMemory()
	w, err := store.EnsureWallet(context.Background(), "", "owner-"+t.Name())
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	ledger.SeedBalance(store, w.ID, 1000)
	svc := NewService(store, policy, nil, nil, discardLogger())
	return svc, store, w
}

func TestServicePlaceAndCapture(t *testing.T) {
	svc, store, w := newTestService(t, nil)
	ctx := context.Background()

	h, err := svc.Place(ctx, PlaceInput{WalletID: w.ID, Amount: 300, Purpose: ledger.PurposeWithdrawal})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	snap, _ := store.Snapshot(ctx, w.ID)
	if snap.Available != 700 || snap.Locked != 300 {
		t.Fatalf("after place: available=%d locked=%d", snap.Available, snap.Locked)
	}

	if _, err := svc.Capture(ctx, h.ID); err != nil {
		t.Fatalf("capture: %v", err)
	}
	snap, _ = store.Snapshot(ctx, w.ID)
	if snap.Available != 700 || snap.Locked != 0 || snap.Spent != 300 {
		t.Fatalf("after capture: %+v", snap)
	}
}

func TestServiceReleaseRestoresFunds(t *testing.T) {
	svc, store, w := newTestService(t, nil)
	ctx := context.Background()

	h, err := svc.Place(ctx, PlaceInput{WalletID: w.ID, Amount: 300, Purpose: ledger.PurposeData})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := svc.Release(ctx, h.ID, "task cancelled"); err != nil {
		t.Fatalf("release: %v", err)
	}
	snap, _ := store.Snapshot(ctx, w.ID)
	if snap.Available != 1000 || snap.Locked != 0 {
		t.Fatalf("after release: %+v", snap)
	}
}

func TestServicePlaceIdempotentOnHoldID(t *testing.T) {
	svc, store, w := newTestService(t, nil)
	ctx := context.Background()

	first, err := svc.Place(ctx, PlaceInput{WalletID: w.ID, Amount: 200, Purpose: ledger.PurposeAirtime, HoldID: "vend-42"})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	again, err := svc.Place(ctx, PlaceInput{WalletID: w.ID, Amount: 200, Purpose: ledger.PurposeAirtime, HoldID: "vend-42"})
	if err != nil {
		t.Fatalf("replayed place: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected same hold, got %s and %s", first.ID, again.ID)
	}
	snap, _ := store.Snapshot(ctx, w.ID)
	if snap.Locked != 200 {
		t.Fatalf("funds reserved twice: locked=%d", snap.Locked)
	}
}

func TestServiceBlocksOnHighScore(t *testing.T) {
	policy := NewRiskPolicy(stubScorer{score: fraud.Score{Score: 90}}, 50, 80, discardLogger())
	svc, store, w := newTestService(t, policy)

	_, err := svc.Place(context.Background(), PlaceInput{WalletID: w.ID, Amount: 300, Purpose: ledger.PurposeWithdrawal})
	if !errors.Is(err, ErrRiskBlocked) {
		t.Fatalf("expected ErrRiskBlocked, got %v", err)
	}
	snap, _ := store.Snapshot(context.Background(), w.ID)
	if snap.Locked != 0 || snap.Available != 1000 {
		t.Fatalf("blocked placement moved funds: %+v", snap)
	}
}

func TestServiceFlagsButAllows(t *testing.T) {
	score := fraud.Score{Score: 60, Flagged: true, Factors: map[string]int{fraud.FactorLargeAmount: 20}}
	policy := NewRiskPolicy(stubScorer{score: score}, 50, 80, discardLogger())
	svc, store, w := newTestService(t, policy)
	ctx := context.Background()

	h, err := svc.Place(ctx, PlaceInput{WalletID: w.ID, Amount: 300, Purpose: ledger.PurposeWithdrawal})
	if err != nil {
		t.Fatalf("flagged place: %v", err)
	}
	txs, err := store.ListTransactions(ctx, w.ID, ledger.TransactionFilter{Type: ledger.TypeHold})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 || txs[0].HoldID != h.ID {
		t.Fatalf("expected one hold transaction, got %d", len(txs))
	}
	if len(txs[0].FraudFlags) == 0 {
		t.Fatal("expected fraud flags on the hold transaction")
	}
}

func TestServiceScorerFailureAllows(t *testing.T) {
	policy := NewRiskPolicy(stubScorer{err: errors.New("redis down")}, 50, 80, discardLogger())
	svc, _, w := newTestService(t, policy)

	if _, err := svc.Place(context.Background(), PlaceInput{WalletID: w.ID, Amount: 300, Purpose: ledger.PurposeWithdrawal}); err != nil {
		t.Fatalf("expected fail-open allow, got %v", err)
	}
}

func TestServiceResolveIsTerminal(t *testing.T) {
	svc, _, w := newTestService(t, nil)
	ctx := context.Background()

	h, err := svc.Place(ctx, PlaceInput{WalletID: w.ID, Amount: 100, Purpose: ledger.PurposeData})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := svc.Capture(ctx, h.ID); err != nil {
		t.Fatalf("capture: %v", err)
	}
	if _, err := svc.Release(ctx, h.ID, "too late"); !errors.Is(err, ledger.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
	if _, err := svc.Refund(ctx, h.ID, "too late"); !errors.Is(err, ledger.ErrInvalidStateTransition) {
		t.Fatalf("expected ErrInvalidStateTransition, got %v", err)
	}
}

func TestSweepReleasesExpiredHolds(t *testing.T) {
	svc, store, w := newTestService(t, nil)
	observer := &recordingObserver{}
	svc.observer = observer
	ctx := context.Background()

	h, err := svc.Place(ctx, PlaceInput{WalletID: w.ID, Amount: 250, Purpose: ledger.PurposeData, ExpiresIn: time.Minute})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	released, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if released != 1 {
		t.Fatalf("expected 1 released, got %d", released)
	}
	resolved, err := store.Hold(ctx, h.ID)
	if err != nil {
		t.Fatalf("hold: %v", err)
	}
	if resolved.Status != ledger.HoldReleased || resolved.Reason != ExpiryReason {
		t.Fatalf("unexpected hold state: %+v", resolved)
	}
	snap, _ := store.Snapshot(ctx, w.ID)
	if snap.Available != 1000 || snap.Locked != 0 {
		t.Fatalf("after sweep: %+v", snap)
	}
	if len(observer.expired) != 1 || observer.expired[0].ID != h.ID {
		t.Fatalf("observer not notified: %+v", observer.expired)
	}
}

func TestSweepSkipsCapturedHolds(t *testing.T) {
	svc, _, w := newTestService(t, nil)
	ctx := context.Background()

	h, err := svc.Place(ctx, PlaceInput{WalletID: w.ID, Amount: 250, Purpose: ledger.PurposeData, ExpiresIn: time.Minute})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := svc.Capture(ctx, h.ID); err != nil {
		t.Fatalf("capture: %v", err)
	}
	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	released, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if released != 0 {
		t.Fatalf("sweep released a captured hold")
	}
}
