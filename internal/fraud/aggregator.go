package fraud

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/earnflow/earnflow/internal/ledger"
)

// Factor names recorded in the score's factors map.
const (
	FactorVelocity     = "platform_velocity"
	FactorFailureRatio = "failure_ratio"
	FactorLargeAmount  = "large_amount"
	FactorNewDevice    = "device_novelty"
)

// Config carries the additive weights and thresholds for scoring. The summed
// score is deliberately uncapped; Flagged derives from FlagThreshold.
type Config struct {
	VelocityThreshold     int64
	FailureRatioThreshold float64
	LargeAmountThreshold  int64
	WeightVelocity        int
	WeightFailureRatio    int
	WeightLargeAmount     int
	WeightNewDevice       int
	FlagThreshold         int
	Cooldown              time.Duration
}

// DefaultConfig returns the production scoring weights.
func DefaultConfig() Config {
	return Config{
		VelocityThreshold:     120,
		FailureRatioThreshold: 0.3,
		LargeAmountThreshold:  10_000,
		WeightVelocity:        25,
		WeightFailureRatio:    30,
		WeightLargeAmount:     20,
		WeightNewDevice:       25,
		FlagThreshold:         50,
		Cooldown:              30 * time.Minute,
	}
}

// Aggregator derives a per-user risk score from ledger history, platform
// vending velocity, and device trust data. It never authorizes or denies
// anything itself; policy above the hold manager interprets the score.
type Aggregator struct {
	store    ledger.Store
	devices  DeviceRegistry
	velocity VelocityCounter
	scores   ScoreStore
	cfg      Config
	logger   *slog.Logger
	now      func() time.Time
}

// NewAggregator builds a fraud signal aggregator.
func NewAggregator(store ledger.Store, devices DeviceRegistry, velocity VelocityCounter, scores ScoreStore, cfg Config, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		store:    store,
		devices:  devices,
		velocity: velocity,
		scores:   scores,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Score recomputes the user's risk assessment for a candidate vend amount and
// upserts the persisted record. Signal sources that fail are skipped rather
// than failing the scoring run; holds must stay placeable when Redis or the
// device registry is down.
func (a *Aggregator) Score(ctx context.Context, userID string, candidateAmount int64) (Score, error) {
	factors := make(map[string]int)

	if vends, err := a.velocity.VendsLastHour(ctx); err != nil {
		a.logger.Warn("velocity lookup failed", "error", err)
	} else if vends > a.cfg.VelocityThreshold {
		factors[FactorVelocity] = a.cfg.WeightVelocity
	}

	if ratio, err := a.failureRatio(ctx, userID); err != nil {
		a.logger.Warn("failure ratio lookup failed", "user_id", userID, "error", err)
	} else if ratio > a.cfg.FailureRatioThreshold {
		factors[FactorFailureRatio] = a.cfg.WeightFailureRatio
	}

	if candidateAmount >= a.cfg.LargeAmountThreshold {
		factors[FactorLargeAmount] = a.cfg.WeightLargeAmount
	}

	if stats, err := a.devices.DeviceStats(ctx, userID); err != nil {
		a.logger.Warn("device stats lookup failed", "user_id", userID, "error", err)
	} else if stats.TrustedDevices == 0 {
		factors[FactorNewDevice] = a.cfg.WeightNewDevice
	}

	var total int
	for _, w := range factors {
		total += w
	}

	prior, err := a.scores.Get(ctx, userID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return Score{}, err
	}

	now := a.now().UTC()
	score := Score{
		UserID:       userID,
		Score:        total,
		Factors:      factors,
		Flagged:      total >= a.cfg.FlagThreshold,
		VendCount:    prior.VendCount + 1,
		ExpiredHolds: prior.ExpiredHolds,
		UpdatedAt:    now,
	}
	if score.Flagged {
		score.CooldownUntil = now.Add(a.cfg.Cooldown)
	} else {
		score.CooldownUntil = prior.CooldownUntil
	}

	if err := a.scores.Upsert(ctx, score); err != nil {
		return Score{}, err
	}
	return score, nil
}

// HoldExpired records an expired-hold event from the sweep against the user's
// persisted score.
func (a *Aggregator) HoldExpired(ctx context.Context, h ledger.Hold) {
	w, err := a.store.Wallet(ctx, h.WalletID)
	if err != nil {
		a.logger.Warn("wallet lookup for expired hold failed", "hold_id", h.ID, "error", err)
		return
	}
	prior, err := a.scores.Get(ctx, w.OwnerID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		a.logger.Warn("score lookup for expired hold failed", "user_id", w.OwnerID, "error", err)
		return
	}
	prior.UserID = w.OwnerID
	prior.ExpiredHolds++
	prior.UpdatedAt = a.now().UTC()
	if err := a.scores.Upsert(ctx, prior); err != nil {
		a.logger.Warn("score upsert for expired hold failed", "user_id", w.OwnerID, "error", err)
	}
}

// failureRatio computes the user's refund/release share of hold outcomes from
// committed ledger history.
func (a *Aggregator) failureRatio(ctx context.Context, userID string) (float64, error) {
	w, err := a.store.WalletByOwner(ctx, userID)
	if errors.Is(err, ledger.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	txs, err := a.store.ListTransactions(ctx, w.ID, ledger.TransactionFilter{Status: ledger.StatusCommitted})
	if err != nil {
		return 0, err
	}

	var holds, releases int
	for _, tx := range txs {
		switch tx.Type {
		case ledger.TypeHold:
			holds++
		case ledger.TypeRelease:
			releases++
		}
	}
	if holds == 0 {
		return 0, nil
	}
	return float64(releases) / float64(holds), nil
}
