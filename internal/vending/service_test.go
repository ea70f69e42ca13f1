package vending

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/earnflow/earnflow/internal/hold"
	"github.com/earnflow/earnflow/internal/ledger"
)

type failingVendor struct{ err error }

func (v failingVendor) Vend(context.Context, VendRequest) (VendDecision, error) {
	return VendDecision{}, v.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newVendFixture(t *testing.T, vendor Vendor) (*Service, ledger.Store, ledger.Wallet) {
	t.Helper()
	store := ledger.NewInMemory()
	w, err := store.EnsureWallet(context.Background(), "", "owner-"+t.Name())
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	ledger.SeedBalance(store, w.ID, 1000)
	holds := hold.NewService(store, nil, nil, nil, discardLogger())
	svc := NewService(holds, vendor, nil, nil, discardLogger())
	return svc, store, w
}

func TestVendCapturesOnSuccess(t *testing.T) {
	svc, store, w := newVendFixture(t, StaticVendor{})
	ctx := context.Background()

	result, err := svc.Vend(ctx, VendInput{
		WalletID:    w.ID,
		Product:     ledger.PurposeData,
		Amount:      300,
		PhoneNumber: "242060000001",
	})
	if err != nil {
		t.Fatalf("vend: %v", err)
	}
	if result.Status != ledger.HoldCaptured {
		t.Fatalf("expected captured, got %s", result.Status)
	}
	if result.VendorReference == "" {
		t.Fatal("expected a vendor reference")
	}
	snap, _ := store.Snapshot(ctx, w.ID)
	if snap.Available != 700 || snap.Locked != 0 || snap.Spent != 300 {
		t.Fatalf("after vend: %+v", snap)
	}
}

func TestVendRefundsOnVendorFailure(t *testing.T) {
	vendorErr := errors.New("supplier timeout")
	svc, store, w := newVendFixture(t, failingVendor{err: vendorErr})
	ctx := context.Background()

	result, err := svc.Vend(ctx, VendInput{
		WalletID:    w.ID,
		Product:     ledger.PurposeAirtime,
		Amount:      300,
		PhoneNumber: "242060000001",
	})
	if !errors.Is(err, vendorErr) {
		t.Fatalf("expected vendor error, got %v", err)
	}
	if result.Status != ledger.HoldRefunded {
		t.Fatalf("expected refunded, got %s", result.Status)
	}
	snap, _ := store.Snapshot(ctx, w.ID)
	if snap.Available != 1000 || snap.Locked != 0 || snap.Spent != 0 {
		t.Fatalf("funds lost on vendor failure: %+v", snap)
	}
}

func TestVendReplayedAfterSettlement(t *testing.T) {
	svc, store, w := newVendFixture(t, StaticVendor{})
	ctx := context.Background()

	input := VendInput{
		WalletID:    w.ID,
		Product:     ledger.PurposeData,
		Amount:      300,
		PhoneNumber: "242060000001",
		VendID:      "vend-7",
	}
	if _, err := svc.Vend(ctx, input); err != nil {
		t.Fatalf("vend: %v", err)
	}
	replay, err := svc.Vend(ctx, input)
	if err != nil {
		t.Fatalf("replayed vend: %v", err)
	}
	if replay.Status != ledger.HoldCaptured {
		t.Fatalf("expected captured on replay, got %s", replay.Status)
	}
	snap, _ := store.Snapshot(ctx, w.ID)
	if snap.Spent != 300 {
		t.Fatalf("replay spent twice: %+v", snap)
	}
}

func TestVendRejectsUnsupportedProduct(t *testing.T) {
	svc, _, w := newVendFixture(t, StaticVendor{})

	if _, err := svc.Vend(context.Background(), VendInput{
		WalletID: w.ID,
		Product:  ledger.PurposeWithdrawal,
		Amount:   300,
	}); err == nil {
		t.Fatal("expected unsupported product error")
	}
}

func TestTokenCacheRefreshesOnExpiry(t *testing.T) {
	var calls int
	cache := NewTokenCache(func(context.Context) (string, time.Duration, error) {
		calls++
		return "token-" + string(rune('0'+calls)), time.Hour, nil
	})
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }

	first, err := cache.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	again, err := cache.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if first != again || calls != 1 {
		t.Fatalf("expected cached token, got %q then %q after %d calls", first, again, calls)
	}

	clock = clock.Add(2 * time.Hour)
	refreshed, err := cache.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if refreshed == first || calls != 2 {
		t.Fatalf("expected refresh after expiry, got %q after %d calls", refreshed, calls)
	}
}

func TestTokenCacheInvalidateForcesRefresh(t *testing.T) {
	var calls int
	cache := NewTokenCache(func(context.Context) (string, time.Duration, error) {
		calls++
		return "tok", time.Hour, nil
	})

	if _, err := cache.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}
	cache.Invalidate()
	if _, err := cache.Token(context.Background()); err != nil {
		t.Fatalf("token: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 source calls, got %d", calls)
	}
}
