package hold

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/earnflow/earnflow/internal/ledger"
	"github.com/earnflow/earnflow/internal/notification"
)

const (
	// ExpiryReason is recorded on holds auto-released by the sweep.
	ExpiryReason = "expired"

	defaultTTL = 15 * time.Minute
	sweepBatch = 100
)

// ExpiryObserver is notified of holds released by the expiry sweep.
// Implemented by fraud.Aggregator.
type ExpiryObserver interface {
	HoldExpired(ctx context.Context, h ledger.Hold)
}

// Service manages the hold lifecycle over the ledger store's transactional
// transition methods. Each transition is a single storage-level atomic unit;
// the service layers risk policy, metrics, and notifications on top.
type Service struct {
	store    ledger.Store
	policy   *RiskPolicy
	observer ExpiryObserver
	notifier notification.Notifier
	logger   *slog.Logger
	ttl      time.Duration
	now      func() time.Time
}

// NewService builds a hold manager. Policy and observer may be nil.
func NewService(store ledger.Store, policy *RiskPolicy, observer ExpiryObserver, notifier notification.Notifier, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		policy:   policy,
		observer: observer,
		notifier: notifier,
		logger:   logger,
		ttl:      defaultTTL,
		now:      time.Now,
	}
}

// WithTTL overrides the default hold expiry window.
func (s *Service) WithTTL(ttl time.Duration) *Service {
	if ttl > 0 {
		s.ttl = ttl
	}
	return s
}

// PlaceInput captures a hold placement request.
type PlaceInput struct {
	WalletID  string
	Amount    int64
	Purpose   ledger.HoldPurpose
	HoldID    string
	ExpiresIn time.Duration
}

// Place reserves funds for a pending external operation. Idempotent on
// HoldID: a replayed placement returns the existing hold without reserving
// funds twice. Blocked placements fail ErrRiskBlocked; flagged placements
// succeed with fraud flags recorded on the hold's ledger entry.
func (s *Service) Place(ctx context.Context, input PlaceInput) (ledger.Hold, error) {
	if input.Amount <= 0 {
		return ledger.Hold{}, ledger.ErrInvalidAmount
	}

	w, err := s.store.Wallet(ctx, input.WalletID)
	if err != nil {
		return ledger.Hold{}, err
	}

	var flags []string
	if s.policy != nil {
		decision, score := s.policy.Evaluate(ctx, w.OwnerID, input.Amount)
		switch decision {
		case DecisionBlock:
			holdsBlocked.Inc()
			s.logger.Info("hold blocked by risk policy",
				"wallet_id", input.WalletID, "user_id", w.OwnerID, "score", score.Score)
			return ledger.Hold{}, fmt.Errorf("%w: score %d", ErrRiskBlocked, score.Score)
		case DecisionFlag:
			for factor := range score.Factors {
				flags = append(flags, factor)
			}
			s.logger.Info("hold flagged by risk policy",
				"wallet_id", input.WalletID, "user_id", w.OwnerID, "score", score.Score)
		}
	}

	expiresIn := input.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = s.ttl
	}

	h, err := s.store.PlaceHold(ctx, ledger.PlaceHoldInput{
		WalletID:   input.WalletID,
		Amount:     input.Amount,
		Purpose:    input.Purpose,
		HoldID:     input.HoldID,
		ExpiresAt:  s.now().Add(expiresIn),
		FraudFlags: flags,
	})
	if errors.Is(err, ledger.ErrDuplicateHoldID) {
		return h, nil
	}
	if err != nil {
		return ledger.Hold{}, err
	}

	holdsPlaced.Inc()
	return h, nil
}

// Capture finalizes an active hold as a non-reversible spend.
func (s *Service) Capture(ctx context.Context, holdID string) (ledger.Hold, error) {
	h, err := s.store.CaptureHold(ctx, holdID)
	if err != nil {
		return h, err
	}
	holdResolutions.WithLabelValues(string(ledger.HoldCaptured)).Inc()
	return h, nil
}

// Release returns an active hold's funds to the wallet.
func (s *Service) Release(ctx context.Context, holdID, reason string) (ledger.Hold, error) {
	h, err := s.store.ReleaseHold(ctx, holdID, reason)
	if err != nil {
		return h, err
	}
	holdResolutions.WithLabelValues(string(ledger.HoldReleased)).Inc()
	return h, nil
}

// Refund returns an active hold's funds after a vendor failure.
func (s *Service) Refund(ctx context.Context, holdID, reason string) (ledger.Hold, error) {
	h, err := s.store.RefundHold(ctx, holdID, reason)
	if err != nil {
		return h, err
	}
	holdResolutions.WithLabelValues(string(ledger.HoldRefunded)).Inc()
	return h, nil
}

// Forfeit removes an active hold's funds permanently as an audited loss.
func (s *Service) Forfeit(ctx context.Context, holdID, reason string) (ledger.Hold, error) {
	h, err := s.store.ForfeitHold(ctx, holdID, reason)
	if err != nil {
		return h, err
	}
	holdResolutions.WithLabelValues(string(ledger.HoldForfeited)).Inc()
	return h, nil
}

// Get fetches a hold by id.
func (s *Service) Get(ctx context.Context, holdID string) (ledger.Hold, error) {
	return s.store.Hold(ctx, holdID)
}

// SweepExpired releases active holds past their expiry. Safe to race against
// in-flight captures: the loser sees the hold already terminal and skips it.
// Returns the number of holds released.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.store.ExpiredHolds(ctx, s.now(), sweepBatch)
	if err != nil {
		return 0, err
	}

	var released int
	for _, h := range expired {
		resolved, err := s.store.ReleaseHold(ctx, h.ID, ExpiryReason)
		if errors.Is(err, ledger.ErrInvalidStateTransition) {
			// Lost the race to a capture or another sweep run.
			continue
		}
		if err != nil {
			return released, err
		}
		released++
		expiredSwept.Inc()

		if s.observer != nil {
			s.observer.HoldExpired(ctx, resolved)
		}
		if s.notifier != nil {
			_ = s.notifier.Send(ctx, notification.Message{
				Kind:        notification.KindHoldExpired,
				Destination: resolved.WalletID,
				Body:        fmt.Sprintf("Hold %s for %d expired and was released", resolved.ID, resolved.Amount),
			})
		}
	}
	return released, nil
}
