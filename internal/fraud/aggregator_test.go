package fraud

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/earnflow/earnflow/internal/ledger"
	"github.com/earnflow/earnflow/internal/logging"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.VelocityThreshold = 2
	cfg.LargeAmountThreshold = 5_000
	return cfg
}

func TestAggregatorAccumulatesFactors(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	ctx := context.Background()
	store := ledger.NewInMemory()
	velocity := NewRedisVelocity(cache)
	agg := NewAggregator(store, NewMemoryRegistry(), velocity, NewMemoryScoreStore(), testConfig(), logging.Discard())

	// Push platform vends past the velocity threshold.
	for i := 0; i < 3; i++ {
		if err := velocity.RecordVend(ctx); err != nil {
			t.Fatalf("record vend: %v", err)
		}
	}

	userID := uuid.NewString()
	score, err := agg.Score(ctx, userID, 6_000)
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	cfg := testConfig()
	want := cfg.WeightVelocity + cfg.WeightLargeAmount + cfg.WeightNewDevice
	if score.Score != want {
		t.Fatalf("expected score %d, got %d (factors %v)", want, score.Score, score.Factors)
	}
	for _, factor := range []string{FactorVelocity, FactorLargeAmount, FactorNewDevice} {
		if _, ok := score.Factors[factor]; !ok {
			t.Fatalf("missing factor %s: %v", factor, score.Factors)
		}
	}
	if _, ok := score.Factors[FactorFailureRatio]; ok {
		t.Fatalf("failure ratio must not fire with no hold history")
	}
	if !score.Flagged {
		t.Fatalf("score %d over flag threshold must set flagged", score.Score)
	}
	if score.VendCount != 1 {
		t.Fatalf("expected vend counter 1, got %d", score.VendCount)
	}
}

func TestAggregatorTrustedDeviceSuppressesNovelty(t *testing.T) {
	ctx := context.Background()
	registry := NewMemoryRegistry()
	agg := NewAggregator(ledger.NewInMemory(), registry, NewMemoryVelocity(), NewMemoryScoreStore(), testConfig(), logging.Discard())

	userID := uuid.NewString()
	registry.Set(userID, DeviceStats{TrustedDevices: 2, UniqueIPs: 1})

	score, err := agg.Score(ctx, userID, 10)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score.Score != 0 || score.Flagged {
		t.Fatalf("trusted device with small amount should score clean: %+v", score)
	}
}

func TestAggregatorFailureRatio(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewInMemory()
	agg := NewAggregator(store, NewMemoryRegistry(), NewMemoryVelocity(), NewMemoryScoreStore(), testConfig(), logging.Discard())

	userID := uuid.NewString()
	w, err := store.EnsureWallet(ctx, "", userID)
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	ledger.SeedBalance(store, w.ID, 10_000)

	// Two refunds out of three holds puts the ratio well past 0.3.
	for i, outcome := range []string{"capture", "refund", "refund"} {
		holdID := uuid.NewString()
		if _, err := store.PlaceHold(ctx, ledger.PlaceHoldInput{
			WalletID: w.ID, Amount: 100, Purpose: ledger.PurposeData, HoldID: holdID,
			ExpiresAt: time.Now().Add(time.Hour),
		}); err != nil {
			t.Fatalf("place hold %d: %v", i, err)
		}
		if outcome == "capture" {
			_, err = store.CaptureHold(ctx, holdID)
		} else {
			_, err = store.RefundHold(ctx, holdID, "vendor failure")
		}
		if err != nil {
			t.Fatalf("resolve hold %d: %v", i, err)
		}
	}

	score, err := agg.Score(ctx, userID, 10)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if _, ok := score.Factors[FactorFailureRatio]; !ok {
		t.Fatalf("expected failure ratio factor, got %v", score.Factors)
	}
}

func TestAggregatorHoldExpired(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewInMemory()
	scores := NewMemoryScoreStore()
	agg := NewAggregator(store, NewMemoryRegistry(), NewMemoryVelocity(), scores, testConfig(), logging.Discard())

	userID := uuid.NewString()
	w, _ := store.EnsureWallet(ctx, "", userID)
	ledger.SeedBalance(store, w.ID, 1_000)
	h, err := store.PlaceHold(ctx, ledger.PlaceHoldInput{
		WalletID: w.ID, Amount: 100, Purpose: ledger.PurposeData,
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("place hold: %v", err)
	}

	agg.HoldExpired(ctx, h)
	agg.HoldExpired(ctx, h)

	score, err := scores.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get score: %v", err)
	}
	if score.ExpiredHolds != 2 {
		t.Fatalf("expected 2 expired holds recorded, got %d", score.ExpiredHolds)
	}
}

func TestRedisVelocityBuckets(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	ctx := context.Background()
	v := NewRedisVelocity(cache)

	base := time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC)
	v.now = func() time.Time { return base }

	for i := 0; i < 5; i++ {
		if err := v.RecordVend(ctx); err != nil {
			t.Fatalf("record vend: %v", err)
		}
	}

	// Counts recorded in the previous hour still show up after rollover.
	v.now = func() time.Time { return base.Add(45 * time.Minute) }
	if err := v.RecordVend(ctx); err != nil {
		t.Fatalf("record vend after rollover: %v", err)
	}

	n, err := v.VendsLastHour(ctx)
	if err != nil {
		t.Fatalf("vends last hour: %v", err)
	}
	if n != 6 {
		t.Fatalf("expected 6 vends across buckets, got %d", n)
	}
}
