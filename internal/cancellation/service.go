// Package cancellation refunds paid orders, in full or one line at a time.
// Money moves first: the order record is only mutated after the provider
// accepts the refund, so a failed refund leaves the order untouched and the
// operation safe to retry.
package cancellation

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"datebox-be/internal/inventory"
	"datebox-be/internal/logger"
	"datebox-be/internal/order"
	"datebox-be/internal/payment"
	"datebox-be/internal/pricing"
	"datebox-be/internal/registration"
	"datebox-be/internal/utils"

	"go.uber.org/zap"
)

// Restorer puts stock back after a cancellation.
type Restorer interface {
	Restore(ctx context.Context, lines []inventory.Line) error
}

// Notifier sends the cancellation email. Implementations must not block.
type Notifier interface {
	OrderCanceled(ctx context.Context, ord *order.Order)
}

// Result reports what a cancellation did. AlreadyCanceled marks the
// idempotent no-op path.
type Result struct {
	OK              bool         `json:"ok"`
	AlreadyCanceled bool         `json:"alreadyCanceled,omitempty"`
	RefundID        *string      `json:"refundId,omitempty"`
	RefundedAmount  float64      `json:"refundedAmount,omitempty"`
	Status          order.Status `json:"status,omitempty"`
}

type Service interface {
	CancelOrder(ctx context.Context, orderID uuid.UUID) (*Result, error)
	CancelOrderItem(ctx context.Context, orderID uuid.UUID, itemID string, itemType inventory.ItemType, size string) (*Result, error)
}

type service struct {
	orders   order.Repository
	ledger   Restorer
	regs     registration.Repository
	gateway  payment.Gateway
	notifier Notifier
}

func NewService(orders order.Repository, ledger Restorer, regs registration.Repository, gateway payment.Gateway, notifier Notifier) Service {
	return &service{
		orders:   orders,
		ledger:   ledger,
		regs:     regs,
		gateway:  gateway,
		notifier: notifier,
	}
}

// CancelOrder refunds whatever the customer is still owed and cancels the
// whole order. Calling it on an already canceled or refunded order is a
// no-op.
func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID) (*Result, error) {
	if !utils.IsAdminFromContext(ctx) {
		return nil, ErrForbidden
	}
	log := logger.FromCtx(ctx).With(zap.String("order_id", orderID.String()))

	ord, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord == nil {
		return nil, order.ErrOrderNotFound
	}

	switch ord.Status {
	case order.StatusCanceled, order.StatusRefunded:
		return &Result{OK: true, AlreadyCanceled: true, RefundID: ord.RefundID, Status: ord.Status}, nil
	case order.StatusPaid, order.StatusPartiallyRefunded:
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotCancellable, ord.Status)
	}

	// 1. Figure out what is still owed by repricing the lines that are still
	// active. Prior partial cancellations already returned their share and no
	// longer count.
	owed := pricing.Calculate(activeLines(ord), ord.TaxRate)
	remaining := owed.Total

	// 2. Refund through the provider.
	refundStatus := "not-applicable"
	var refundID *string
	if remaining > 0 && ord.StripePaymentIntent != "" {
		if err := s.checkRefundable(ctx, ord.StripePaymentIntent, toCents(remaining)); err != nil {
			return nil, err
		}
		refund, err := s.gateway.CreateRefund(ctx, ord.StripePaymentIntent, toCents(remaining))
		if err != nil {
			return nil, fmt.Errorf("failed to refund order: %w", err)
		}
		refundStatus = "issued"
		refundID = &refund.ID
	}

	// 3. Persist the cancellation.
	targetStatus := order.StatusCanceled
	if ord.Status == order.StatusPartiallyRefunded {
		targetStatus = order.StatusRefunded
	}
	// The refunded trackers absorb what this cancel returns on top of any
	// earlier partial refunds; the stored totals drop to zero in the update.
	refunded := order.RefundedAmounts{
		Subtotal: owed.Subtotal,
		Tax:      owed.TaxAmount,
		Total:    owed.Total,
	}
	if ord.Refunded != nil {
		refunded.Subtotal = pricing.RoundCurrency(refunded.Subtotal + ord.Refunded.Subtotal)
		refunded.Tax = pricing.RoundCurrency(refunded.Tax + ord.Refunded.Tax)
		refunded.Total = pricing.RoundCurrency(refunded.Total + ord.Refunded.Total)
	}

	restoreLines := ord.InventoryLines()
	updated, err := s.orders.CancelOrderTx(ctx, orderID, order.CancelUpdate{
		Status:       targetStatus,
		RefundID:     refundID,
		RefundStatus: refundStatus,
		CancelReason: "admin-cancel",
		Refunded:     refunded,
	})
	if err != nil {
		// The refund went through but the record did not update; surfacing
		// the error lets the operator retry, which will skip the refund via
		// the remaining-balance math.
		return nil, fmt.Errorf("failed to persist cancellation: %w", err)
	}

	// 4. Put stock back and drop registrations. Best effort: the refund is
	// done and must not be blocked by bookkeeping.
	if err := s.ledger.Restore(ctx, restoreLines); err != nil {
		log.Error("failed to restore inventory after cancel", zap.Error(err))
	}
	if err := s.regs.DeleteForOrder(ctx, updated.OrderID, updated.ID); err != nil {
		log.Error("failed to delete registrations after cancel", zap.Error(err))
	}
	s.notifier.OrderCanceled(ctx, updated)

	log.Info("order canceled",
		zap.String("order_ref", updated.OrderID),
		zap.Float64("refunded", remaining),
	)
	return &Result{OK: true, RefundID: refundID, RefundedAmount: remaining, Status: updated.Status}, nil
}

// CancelOrderItem cancels the remaining quantity of one line and refunds its
// share of the order, tax included.
func (s *service) CancelOrderItem(ctx context.Context, orderID uuid.UUID, itemID string, itemType inventory.ItemType, size string) (*Result, error) {
	if !utils.IsAdminFromContext(ctx) {
		return nil, ErrForbidden
	}
	log := logger.FromCtx(ctx).With(
		zap.String("order_id", orderID.String()),
		zap.String("item_id", itemID),
	)

	ord, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord == nil {
		return nil, order.ErrOrderNotFound
	}

	switch ord.Status {
	case order.StatusCanceled, order.StatusRefunded:
		return &Result{OK: true, AlreadyCanceled: true, Status: ord.Status}, nil
	case order.StatusPaid, order.StatusPartiallyRefunded:
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotCancellable, ord.Status)
	}

	key := order.ItemKey{ItemID: itemID, Type: itemType, Size: size}
	item := findItem(ord, key)
	if item == nil {
		return nil, order.ErrItemNotFound
	}
	cancelQty := item.ActiveQuantity()
	if cancelQty == 0 {
		return nil, order.ErrNothingToCancel
	}

	// 1. Price the line's share at the order's captured tax rate, and the
	// order's current worth from its active lines. Never trust the stored
	// totals here: repricing is what keeps them honest.
	lineQuote := pricing.Calculate([]pricing.Line{{Price: item.Price, Quantity: cancelQty}}, ord.TaxRate)
	orderRemaining := pricing.Calculate(activeLines(ord), ord.TaxRate).Total
	if lineQuote.Total > orderRemaining+0.005 {
		return nil, ErrRefundExceedsOrder
	}

	// What the order will be worth once this line is gone; persisted as the
	// new stored totals.
	newTotals := pricing.Calculate(activeLinesExcept(ord, key), ord.TaxRate)

	// 2. Refund the share.
	var refundID *string
	if lineQuote.Total > 0 && ord.StripePaymentIntent != "" {
		if err := s.checkRefundable(ctx, ord.StripePaymentIntent, toCents(lineQuote.Total)); err != nil {
			return nil, err
		}
		refund, err := s.gateway.CreateRefund(ctx, ord.StripePaymentIntent, toCents(lineQuote.Total))
		if err != nil {
			return nil, fmt.Errorf("failed to refund order item: %w", err)
		}
		refundID = &refund.ID
	}

	// 3. Persist. Status collapses to refunded when this was the last active
	// line.
	nextStatus := order.StatusPartiallyRefunded
	if activeQuantityExcept(ord, key) == 0 {
		nextStatus = order.StatusRefunded
	}
	updated, err := s.orders.ApplyItemCancellation(ctx, orderID, key, order.ItemCancelUpdate{
		CancelQuantity: cancelQty,
		RefundID:       refundID,
		Status:         nextStatus,
		RefundedDelta: order.RefundedAmounts{
			Subtotal: lineQuote.Subtotal,
			Tax:      lineQuote.TaxAmount,
			Total:    lineQuote.Total,
		},
		NewSubtotal:  newTotals.Subtotal,
		NewTaxAmount: newTotals.TaxAmount,
		NewTotal:     newTotals.Total,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to persist item cancellation: %w", err)
	}

	// 4. Bookkeeping, best effort.
	restoreErr := s.ledger.Restore(ctx, []inventory.Line{{
		ItemID:   key.ItemID,
		Type:     key.Type,
		Size:     key.Size,
		Quantity: cancelQty,
	}})
	if restoreErr != nil {
		log.Error("failed to restore inventory after item cancel", zap.Error(restoreErr))
	}
	if key.Type == inventory.TypeEvent {
		if err := s.regs.DeleteForItem(ctx, updated.OrderID, updated.ID, key.ItemID, key.Size); err != nil {
			log.Error("failed to delete registration after item cancel", zap.Error(err))
		}
	}
	s.notifier.OrderCanceled(ctx, updated)

	log.Info("order item canceled",
		zap.String("order_ref", updated.OrderID),
		zap.Int("quantity", cancelQty),
		zap.Float64("refunded", lineQuote.Total),
		zap.String("status", string(updated.Status)),
	)
	return &Result{OK: true, RefundID: refundID, RefundedAmount: lineQuote.Total, Status: updated.Status}, nil
}

// checkRefundable asks the provider how much of the charge is left. The check
// is opportunistic: if it cannot be answered the refund proceeds and the
// provider itself is the last line of defense.
func (s *service) checkRefundable(ctx context.Context, paymentIntentID string, refundCents int64) error {
	intent, err := s.gateway.GetPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		logger.FromCtx(ctx).Warn("could not verify remaining charge balance",
			zap.String("payment_intent", paymentIntentID), zap.Error(err))
		return nil
	}
	if intent.LatestCharge == nil {
		return nil
	}
	balance := intent.LatestCharge.Amount - intent.LatestCharge.AmountRefunded
	if refundCents > balance {
		return fmt.Errorf("%w: %d > %d cents", ErrRefundExceedsBalance, refundCents, balance)
	}
	return nil
}

func findItem(ord *order.Order, key order.ItemKey) *order.Item {
	for i := range ord.Items {
		item := &ord.Items[i]
		if item.ItemID == key.ItemID && item.Type == key.Type && item.Size == key.Size {
			return item
		}
	}
	return nil
}

// activeLines prices every line by its still-active quantity.
func activeLines(ord *order.Order) []pricing.Line {
	lines := make([]pricing.Line, 0, len(ord.Items))
	for i := range ord.Items {
		item := &ord.Items[i]
		if qty := item.ActiveQuantity(); qty > 0 {
			lines = append(lines, pricing.Line{Price: item.Price, Quantity: qty})
		}
	}
	return lines
}

// activeLinesExcept is activeLines with one line left out.
func activeLinesExcept(ord *order.Order, key order.ItemKey) []pricing.Line {
	lines := make([]pricing.Line, 0, len(ord.Items))
	for i := range ord.Items {
		item := &ord.Items[i]
		if item.ItemID == key.ItemID && item.Type == key.Type && item.Size == key.Size {
			continue
		}
		if qty := item.ActiveQuantity(); qty > 0 {
			lines = append(lines, pricing.Line{Price: item.Price, Quantity: qty})
		}
	}
	return lines
}

// activeQuantityExcept sums the still-active quantity on every line other
// than the one being canceled.
func activeQuantityExcept(ord *order.Order, key order.ItemKey) int {
	total := 0
	for i := range ord.Items {
		item := &ord.Items[i]
		if item.ItemID == key.ItemID && item.Type == key.Type && item.Size == key.Size {
			continue
		}
		total += item.ActiveQuantity()
	}
	return total
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
