// Package reconcile consumes payment provider confirmations and settles the
// matching pending order: promote it to a paid order when stock still allows,
// refund and record a canceled order when it does not.
package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"datebox-be/internal/inventory"
	"datebox-be/internal/logger"
	"datebox-be/internal/order"
	"datebox-be/internal/payment"
	"datebox-be/internal/registration"

	"go.uber.org/zap"
)

const (
	cancelReasonInventory = "inventory-unavailable"

	refundStatusIssued        = "issued"
	refundStatusNotApplicable = "not-applicable"
)

// Notifier sends the customer-facing emails reconciliation triggers.
// Implementations must not block.
type Notifier interface {
	OrderPaid(ctx context.Context, ord *order.Order)
	OrderCanceled(ctx context.Context, ord *order.Order)
}

type Service interface {
	// HandleSessionCompleted settles a confirmed payment. It is safe to call
	// repeatedly with the same identifiers.
	HandleSessionCompleted(ctx context.Context, sessionID, paymentIntentID, pendingID string) error
	// HandleSessionExpired discards the pending order for an abandoned
	// checkout session.
	HandleSessionExpired(ctx context.Context, pendingID string) error
}

type service struct {
	orders   order.Repository
	reserve  order.ReserveFunc
	regs     registration.Repository
	gateway  payment.Gateway
	notifier Notifier
}

func NewService(orders order.Repository, reserve order.ReserveFunc, regs registration.Repository, gateway payment.Gateway, notifier Notifier) Service {
	return &service{
		orders:   orders,
		reserve:  reserve,
		regs:     regs,
		gateway:  gateway,
		notifier: notifier,
	}
}

func (s *service) HandleSessionCompleted(ctx context.Context, sessionID, paymentIntentID, pendingID string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("session_id", sessionID),
		zap.String("pending_id", pendingID),
	)

	pid, err := uuid.Parse(pendingID)
	if err != nil {
		// Not one of ours; acknowledging stops the provider from retrying.
		log.Warn("session completed with unparseable pending order id")
		return nil
	}

	promoted, err := s.orders.PromotePending(ctx, pid, sessionID, paymentIntentID, s.reserve)
	if err != nil {
		if inventory.IsConflict(err) {
			return s.cancelUnfulfillable(ctx, pid, sessionID, paymentIntentID, err)
		}
		return fmt.Errorf("failed to promote pending order: %w", err)
	}
	if promoted == nil {
		// Already settled by an earlier delivery.
		log.Info("session completed replay ignored")
		return nil
	}

	// Registrations and email are best effort: the customer has paid and the
	// order exists, so nothing past this point may fail the webhook.
	if err := s.regs.CreateForOrder(ctx, promoted); err != nil {
		log.Error("failed to create event registrations",
			zap.String("order_ref", promoted.OrderID), zap.Error(err))
	}
	s.notifier.OrderPaid(ctx, promoted)

	log.Info("order confirmed",
		zap.String("order_ref", promoted.OrderID),
		zap.Float64("total", promoted.Total),
	)
	return nil
}

// cancelUnfulfillable handles the paid-but-out-of-stock race: refund the
// charge in full, then record a canceled order so the money trail survives.
func (s *service) cancelUnfulfillable(ctx context.Context, pendingID uuid.UUID, sessionID, paymentIntentID string, conflict error) error {
	log := logger.FromCtx(ctx).With(zap.String("pending_id", pendingID.String()))
	log.Warn("paid order is unfulfillable", zap.Error(conflict))

	refundStatus := refundStatusNotApplicable
	var refundID *string
	if paymentIntentID != "" {
		refund, err := s.gateway.CreateRefund(ctx, paymentIntentID, 0)
		if err != nil {
			// Failing the webhook keeps the pending order around; the provider
			// redelivers and the refund is retried until it lands.
			return fmt.Errorf("failed to refund unfulfillable order: %w", err)
		}
		refundStatus = refundStatusIssued
		refundID = &refund.ID
	}

	canceled, err := s.orders.CreateCanceledFromPending(ctx, pendingID, sessionID, paymentIntentID,
		cancelReasonInventory, refundStatus, refundID)
	if err != nil {
		return fmt.Errorf("failed to record canceled order: %w", err)
	}
	if canceled == nil {
		log.Info("pending order already settled during cancel")
		return nil
	}

	s.notifier.OrderCanceled(ctx, canceled)
	return nil
}

func (s *service) HandleSessionExpired(ctx context.Context, pendingID string) error {
	log := logger.FromCtx(ctx).With(zap.String("pending_id", pendingID))

	pid, err := uuid.Parse(pendingID)
	if err != nil {
		log.Warn("session expired with unparseable pending order id")
		return nil
	}

	pending, err := s.orders.GetPendingOrder(ctx, pid)
	if err != nil {
		return fmt.Errorf("failed to load pending order: %w", err)
	}
	if pending == nil {
		return nil
	}

	// Stock is only reserved at promotion, so expiry just drops the snapshot.
	if err := s.orders.DeletePendingOrder(ctx, pid); err != nil {
		return fmt.Errorf("failed to delete expired pending order: %w", err)
	}
	log.Info("expired checkout session cleaned up",
		zap.String("order_ref", pending.OrderID))
	return nil
}
