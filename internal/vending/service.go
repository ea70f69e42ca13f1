package vending

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/earnflow/earnflow/internal/fraud"
	"github.com/earnflow/earnflow/internal/hold"
	"github.com/earnflow/earnflow/internal/ledger"
	"github.com/earnflow/earnflow/internal/notification"
)

// Service coordinates a vend: reserve funds, call the vendor, then settle
// the hold. A vendor failure never loses wallet funds; the hold is refunded.
type Service struct {
	holds    *hold.Service
	vendor   Vendor
	velocity fraud.VelocityCounter
	notifier notification.Notifier
	logger   *slog.Logger
	ttl      time.Duration
}

// NewService builds a vending service. Velocity and notifier may be nil.
func NewService(holds *hold.Service, vendor Vendor, velocity fraud.VelocityCounter, notifier notification.Notifier, logger *slog.Logger) *Service {
	if vendor == nil {
		vendor = StaticVendor{}
	}
	return &Service{
		holds:    holds,
		vendor:   vendor,
		velocity: velocity,
		notifier: notifier,
		logger:   logger,
		ttl:      5 * time.Minute,
	}
}

// VendInput captures a vend request.
type VendInput struct {
	WalletID    string
	Product     ledger.HoldPurpose
	Amount      int64
	PhoneNumber string
	VendID      string
}

// VendResult is the domain outcome of a vend attempt.
type VendResult struct {
	VendID          string
	HoldID          string
	Status          ledger.HoldStatus
	VendorReference string
	CompletedAt     time.Time
}

// Vend places a hold for the order amount, submits the order to the vendor,
// and captures the hold on success or refunds it on failure. Idempotent on
// VendID through the hold layer: a replay of a settled vend reports the
// hold's terminal state without contacting the vendor again.
func (s *Service) Vend(ctx context.Context, input VendInput) (VendResult, error) {
	if input.Product != ledger.PurposeData && input.Product != ledger.PurposeAirtime {
		return VendResult{}, fmt.Errorf("unsupported product %q", input.Product)
	}
	if input.VendID == "" {
		input.VendID = uuid.NewString()
	}

	if s.velocity != nil {
		if err := s.velocity.RecordVend(ctx); err != nil {
			s.logger.Warn("velocity record failed", "error", err)
		}
	}

	h, err := s.holds.Place(ctx, hold.PlaceInput{
		WalletID:  input.WalletID,
		Amount:    input.Amount,
		Purpose:   input.Product,
		HoldID:    input.VendID,
		ExpiresIn: s.ttl,
	})
	if err != nil {
		return VendResult{}, err
	}
	if h.Status != ledger.HoldActive {
		// Replayed vend that already settled.
		return VendResult{
			VendID:      input.VendID,
			HoldID:      h.ID,
			Status:      h.Status,
			CompletedAt: h.ResolvedAt,
		}, nil
	}

	decision, err := s.vendor.Vend(ctx, VendRequest{
		Product:     input.Product,
		Amount:      input.Amount,
		PhoneNumber: input.PhoneNumber,
		Reference:   input.VendID,
	})
	if err != nil {
		s.logger.Warn("vendor call failed, refunding hold",
			"vend_id", input.VendID, "wallet_id", input.WalletID, "error", err)
		refunded, refundErr := s.holds.Refund(ctx, h.ID, "vendor failure")
		if refundErr != nil {
			return VendResult{}, fmt.Errorf("refund after vendor failure: %w", refundErr)
		}
		s.notify(ctx, notification.KindVendFailed, input.WalletID,
			fmt.Sprintf("Vend %s failed and %d was refunded", input.VendID, input.Amount))
		return VendResult{
			VendID:      input.VendID,
			HoldID:      refunded.ID,
			Status:      refunded.Status,
			CompletedAt: refunded.ResolvedAt,
		}, err
	}

	captured, err := s.holds.Capture(ctx, h.ID)
	if err != nil {
		return VendResult{}, fmt.Errorf("capture after vendor success: %w", err)
	}
	s.notify(ctx, notification.KindVendCompleted, input.WalletID,
		fmt.Sprintf("Vend %s for %d fulfilled", input.VendID, input.Amount))

	return VendResult{
		VendID:          input.VendID,
		HoldID:          captured.ID,
		Status:          captured.Status,
		VendorReference: decision.Reference,
		CompletedAt:     captured.ResolvedAt,
	}, nil
}

func (s *Service) notify(ctx context.Context, kind, destination, body string) {
	if s.notifier == nil {
		return
	}
	_ = s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: destination, Body: body})
}
