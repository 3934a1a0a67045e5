package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"datebox-be/internal/db"
	"datebox-be/internal/inventory"
)

// ReserveFunc reserves inventory inside the caller's transaction. Injected so
// promotion can decrement stock and persist the order atomically without this
// package depending on the ledger's wiring.
type ReserveFunc func(ctx context.Context, tx *sql.Tx, lines []inventory.Line) error

// ItemKey identifies one line inside an order. Size distinguishes variants of
// the same catalog item, so a Medium and a Large of one shirt cancel
// independently.
type ItemKey struct {
	ItemID string
	Type   inventory.ItemType
	Size   string
}

// CancelUpdate carries the fields a full-order cancellation writes.
type CancelUpdate struct {
	Status       Status
	RefundID     *string
	RefundStatus string
	CancelReason string
	Refunded     RefundedAmounts
}

// ItemCancelUpdate carries the fields a single-line cancellation writes. The
// refunded amounts are deltas added to the order's running totals; the new
// totals are recomputed from the lines still active after the cancellation
// and replace the stored subtotal/tax/total.
type ItemCancelUpdate struct {
	CancelQuantity int
	RefundID       *string
	Status         Status
	RefundedDelta  RefundedAmounts
	NewSubtotal    float64
	NewTaxAmount   float64
	NewTotal       float64
}

type Repository interface {
	CreatePendingOrder(ctx context.Context, pending *PendingOrder) error
	SetPendingSessionID(ctx context.Context, pendingID uuid.UUID, sessionID string) error
	GetPendingOrder(ctx context.Context, pendingID uuid.UUID) (*PendingOrder, error)
	DeletePendingOrder(ctx context.Context, pendingID uuid.UUID) error

	PromotePending(ctx context.Context, pendingID uuid.UUID, sessionID, paymentIntentID string, reserve ReserveFunc) (*Order, error)
	CreateCanceledFromPending(ctx context.Context, pendingID uuid.UUID, sessionID, paymentIntentID, cancelReason, refundStatus string, refundID *string) (*Order, error)

	GetOrder(ctx context.Context, id uuid.UUID) (*Order, error)
	CancelOrderTx(ctx context.Context, id uuid.UUID, upd CancelUpdate) (*Order, error)
	ApplyItemCancellation(ctx context.Context, id uuid.UUID, key ItemKey, upd ItemCancelUpdate) (*Order, error)
	MarkShipped(ctx context.Context, id uuid.UUID, trackingNumber string) (*Order, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(database *sql.DB) Repository {
	return &repository{db: database}
}

func (r *repository) CreatePendingOrder(ctx context.Context, pending *PendingOrder) error {
	if pending.ID == uuid.Nil {
		pending.ID = uuid.New()
	}
	if pending.OrderID == "" {
		pending.OrderID = NewOrderRef()
	}
	pending.CreatedAt = time.Now().UTC()

	return db.RunSerializable(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders_pending
				(id, order_ref, customer_name, customer_email, customer_phone,
				 shipping_address, subtotal, tax_rate, tax_amount, total, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, pending.ID, pending.OrderID, pending.CustomerName, pending.CustomerEmail,
			pending.CustomerPhone, pending.ShippingAddress,
			pending.Subtotal, pending.TaxRate, pending.TaxAmount, pending.Total,
			pending.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert pending order: %w", err)
		}

		for _, item := range pending.Items {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO orders_pending_items
					(pending_id, item_id, item_type, name, price, quantity, size, image_url)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, pending.ID, item.ItemID, item.Type, item.Name, item.Price,
				item.Quantity, item.Size, item.ImageURL)
			if err != nil {
				return fmt.Errorf("failed to insert pending order item: %w", err)
			}
		}
		return nil
	})
}

func (r *repository) SetPendingSessionID(ctx context.Context, pendingID uuid.UUID, sessionID string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE orders_pending SET stripe_session_id = $1 WHERE id = $2
	`, sessionID, pendingID)
	if err != nil {
		return fmt.Errorf("failed to attach session to pending order: %w", err)
	}
	return nil
}

// GetPendingOrder returns nil, nil when the pending order does not exist,
// which after payment confirmation means it was already promoted.
func (r *repository) GetPendingOrder(ctx context.Context, pendingID uuid.UUID) (*PendingOrder, error) {
	return getPendingTx(ctx, r.db, pendingID)
}

func (r *repository) DeletePendingOrder(ctx context.Context, pendingID uuid.UUID) error {
	return db.RunSerializable(ctx, r.db, func(tx *sql.Tx) error {
		return deletePendingTx(ctx, tx, pendingID)
	})
}

// PromotePending turns a pending order into a confirmed paid order. The
// pending re-read, inventory reservation, order insert and pending delete all
// run inside one serializable transaction, so a replayed confirmation finds
// no pending order and decrements nothing twice. Returns nil, nil when the
// pending order is gone.
func (r *repository) PromotePending(ctx context.Context, pendingID uuid.UUID, sessionID, paymentIntentID string, reserve ReserveFunc) (*Order, error) {
	var promoted *Order
	err := db.RunSerializable(ctx, r.db, func(tx *sql.Tx) error {
		promoted = nil

		pending, err := getPendingTx(ctx, tx, pendingID)
		if err != nil {
			return err
		}
		if pending == nil {
			return nil
		}

		if err := reserve(ctx, tx, pending.InventoryLines()); err != nil {
			return err
		}

		now := time.Now().UTC()
		ord := &Order{
			ID:                  pending.ID,
			OrderID:             pending.OrderID,
			CustomerName:        pending.CustomerName,
			CustomerEmail:       pending.CustomerEmail,
			CustomerPhone:       pending.CustomerPhone,
			ShippingAddress:     pending.ShippingAddress,
			Items:               pending.Items,
			Subtotal:            pending.Subtotal,
			TaxRate:             pending.TaxRate,
			TaxAmount:           pending.TaxAmount,
			Total:               pending.Total,
			Paid:                true,
			Status:              StatusPaid,
			StripeSessionID:     sessionID,
			StripePaymentIntent: paymentIntentID,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if err := insertOrderTx(ctx, tx, ord); err != nil {
			return err
		}
		if err := deletePendingTx(ctx, tx, pendingID); err != nil {
			return err
		}

		promoted = ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	return promoted, nil
}

// CreateCanceledFromPending records an order that was paid but could not be
// fulfilled, keeping an audit trail of the refund. Returns nil, nil when the
// pending order is gone.
func (r *repository) CreateCanceledFromPending(ctx context.Context, pendingID uuid.UUID, sessionID, paymentIntentID, cancelReason, refundStatus string, refundID *string) (*Order, error) {
	var created *Order
	err := db.RunSerializable(ctx, r.db, func(tx *sql.Tx) error {
		created = nil

		pending, err := getPendingTx(ctx, tx, pendingID)
		if err != nil {
			return err
		}
		if pending == nil {
			return nil
		}

		now := time.Now().UTC()
		ord := &Order{
			ID:                  pending.ID,
			OrderID:             pending.OrderID,
			CustomerName:        pending.CustomerName,
			CustomerEmail:       pending.CustomerEmail,
			CustomerPhone:       pending.CustomerPhone,
			ShippingAddress:     pending.ShippingAddress,
			Items:               pending.Items,
			Subtotal:            pending.Subtotal,
			TaxRate:             pending.TaxRate,
			TaxAmount:           pending.TaxAmount,
			Total:               pending.Total,
			Paid:                false,
			Status:              StatusCanceled,
			StripeSessionID:     sessionID,
			StripePaymentIntent: paymentIntentID,
			RefundID:            refundID,
			RefundStatus:        refundStatus,
			CancelReason:        cancelReason,
			CreatedAt:           now,
			UpdatedAt:           now,
			CanceledAt:          &now,
		}
		if err := insertOrderTx(ctx, tx, ord); err != nil {
			return err
		}
		if err := deletePendingTx(ctx, tx, pendingID); err != nil {
			return err
		}

		created = ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetOrder returns nil, nil when the order does not exist.
func (r *repository) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return getOrderTx(ctx, r.db, id)
}

// CancelOrderTx persists a full-order cancellation and returns the updated
// order. The caller decides the refund amounts and target status beforehand.
func (r *repository) CancelOrderTx(ctx context.Context, id uuid.UUID, upd CancelUpdate) (*Order, error) {
	var updated *Order
	err := db.RunSerializable(ctx, r.db, func(tx *sql.Tx) error {
		updated = nil

		ord, err := getOrderTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if ord == nil {
			return ErrOrderNotFound
		}
		if !CanTransition(ord.Status, upd.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ord.Status, upd.Status)
		}

		// A full cancel returns everything, so the live totals drop to zero
		// and the pre-cancel amounts survive in the refunded trackers.
		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $1,
				refund_id = $2,
				refund_status = $3,
				cancel_reason = $4,
				refunded_subtotal = $5,
				refunded_tax = $6,
				refunded_total = $7,
				subtotal = 0,
				tax_amount = 0,
				total = 0,
				canceled_at = $8,
				updated_at = $8
			WHERE id = $9
		`, upd.Status, upd.RefundID, upd.RefundStatus, upd.CancelReason,
			upd.Refunded.Subtotal, upd.Refunded.Tax, upd.Refunded.Total, now, id)
		if err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}

		ord.Status = upd.Status
		ord.RefundID = upd.RefundID
		ord.RefundStatus = upd.RefundStatus
		ord.CancelReason = upd.CancelReason
		ord.Refunded = &RefundedAmounts{
			Subtotal: upd.Refunded.Subtotal,
			Tax:      upd.Refunded.Tax,
			Total:    upd.Refunded.Total,
		}
		ord.Subtotal = 0
		ord.TaxAmount = 0
		ord.Total = 0
		ord.CanceledAt = &now
		ord.UpdatedAt = now

		updated = ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ApplyItemCancellation marks part of one line canceled, folds the refund
// into the order's running refunded totals and rewrites the stored totals to
// the caller's recomputed values, all in one transaction.
func (r *repository) ApplyItemCancellation(ctx context.Context, id uuid.UUID, key ItemKey, upd ItemCancelUpdate) (*Order, error) {
	var updated *Order
	err := db.RunSerializable(ctx, r.db, func(tx *sql.Tx) error {
		updated = nil

		ord, err := getOrderTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if ord == nil {
			return ErrOrderNotFound
		}
		if !CanTransition(ord.Status, upd.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, ord.Status, upd.Status)
		}

		idx := findItem(ord.Items, key)
		if idx < 0 {
			return ErrItemNotFound
		}
		item := &ord.Items[idx]
		if item.ActiveQuantity() < upd.CancelQuantity {
			return ErrNothingToCancel
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx, `
			UPDATE order_items
			SET canceled_quantity = canceled_quantity + $1,
				refund_id = $2,
				canceled_at = $3
			WHERE order_id = $4 AND item_id = $5 AND item_type = $6 AND size = $7
		`, upd.CancelQuantity, upd.RefundID, now, id, key.ItemID, key.Type, key.Size)
		if err != nil {
			return fmt.Errorf("failed to cancel order item: %w", err)
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return ErrItemNotFound
		}

		var canceledAt *time.Time
		if upd.Status == StatusRefunded {
			canceledAt = &now
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE orders
			SET status = $1,
				refunded_subtotal = refunded_subtotal + $2,
				refunded_tax = refunded_tax + $3,
				refunded_total = refunded_total + $4,
				subtotal = $5,
				tax_amount = $6,
				total = $7,
				canceled_at = COALESCE($8, canceled_at),
				updated_at = $9
			WHERE id = $10
		`, upd.Status, upd.RefundedDelta.Subtotal, upd.RefundedDelta.Tax,
			upd.RefundedDelta.Total, upd.NewSubtotal, upd.NewTaxAmount, upd.NewTotal,
			canceledAt, now, id)
		if err != nil {
			return fmt.Errorf("failed to update order after item cancel: %w", err)
		}

		item.CanceledQuantity += upd.CancelQuantity
		item.RefundID = upd.RefundID
		item.CanceledAt = &now
		ord.Status = upd.Status
		if ord.Refunded == nil {
			ord.Refunded = &RefundedAmounts{}
		}
		ord.Refunded.Subtotal += upd.RefundedDelta.Subtotal
		ord.Refunded.Tax += upd.RefundedDelta.Tax
		ord.Refunded.Total += upd.RefundedDelta.Total
		ord.Subtotal = upd.NewSubtotal
		ord.TaxAmount = upd.NewTaxAmount
		ord.Total = upd.NewTotal
		ord.UpdatedAt = now
		if canceledAt != nil {
			ord.CanceledAt = canceledAt
		}

		updated = ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *repository) MarkShipped(ctx context.Context, id uuid.UUID, trackingNumber string) (*Order, error) {
	var updated *Order
	err := db.RunSerializable(ctx, r.db, func(tx *sql.Tx) error {
		updated = nil

		ord, err := getOrderTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if ord == nil {
			return ErrOrderNotFound
		}

		now := time.Now().UTC()
		_, err = tx.ExecContext(ctx, `
			UPDATE orders
			SET shipping_status = 'shipped',
				tracking_number = $1,
				updated_at = $2
			WHERE id = $3
		`, trackingNumber, now, id)
		if err != nil {
			return fmt.Errorf("failed to mark order shipped: %w", err)
		}

		ord.ShippingStatus = "shipped"
		ord.TrackingNumber = trackingNumber
		ord.UpdatedAt = now

		updated = ord
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// --- tx-scoped helpers ---

// querier lets the read helpers run against either the pool or a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getPendingTx(ctx context.Context, q querier, pendingID uuid.UUID) (*PendingOrder, error) {
	var pending PendingOrder
	var sessionID sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT id, order_ref, customer_name, customer_email, customer_phone,
			shipping_address, subtotal, tax_rate, tax_amount, total,
			stripe_session_id, created_at
		FROM orders_pending
		WHERE id = $1
	`, pendingID).Scan(&pending.ID, &pending.OrderID,
		&pending.CustomerName, &pending.CustomerEmail, &pending.CustomerPhone,
		&pending.ShippingAddress, &pending.Subtotal, &pending.TaxRate,
		&pending.TaxAmount, &pending.Total, &sessionID, &pending.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pending order: %w", err)
	}
	pending.StripeSessionID = sessionID.String

	rows, err := q.QueryContext(ctx, `
		SELECT item_id, item_type, name, price, quantity, size, image_url
		FROM orders_pending_items
		WHERE pending_id = $1
		ORDER BY item_id, size
	`, pendingID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ItemID, &item.Type, &item.Name, &item.Price,
			&item.Quantity, &item.Size, &item.ImageURL); err != nil {
			return nil, err
		}
		pending.Items = append(pending.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &pending, nil
}

func deletePendingTx(ctx context.Context, tx *sql.Tx, pendingID uuid.UUID) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM orders_pending_items WHERE pending_id = $1`, pendingID); err != nil {
		return fmt.Errorf("failed to delete pending order items: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM orders_pending WHERE id = $1`, pendingID); err != nil {
		return fmt.Errorf("failed to delete pending order: %w", err)
	}
	return nil
}

func insertOrderTx(ctx context.Context, tx *sql.Tx, ord *Order) error {
	var refunded RefundedAmounts
	if ord.Refunded != nil {
		refunded = *ord.Refunded
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO orders
			(id, order_ref, customer_name, customer_email, customer_phone,
			 shipping_address, subtotal, tax_rate, tax_amount, total,
			 paid, status, stripe_session_id, stripe_payment_intent,
			 refund_id, refund_status, cancel_reason,
			 refunded_subtotal, refunded_tax, refunded_total,
			 tracking_number, shipping_status, created_at, updated_at, canceled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
			$21, $22, $23, $24, $25)
	`, ord.ID, ord.OrderID, ord.CustomerName, ord.CustomerEmail, ord.CustomerPhone,
		ord.ShippingAddress, ord.Subtotal, ord.TaxRate, ord.TaxAmount, ord.Total,
		ord.Paid, ord.Status, ord.StripeSessionID, ord.StripePaymentIntent,
		ord.RefundID, ord.RefundStatus, ord.CancelReason,
		refunded.Subtotal, refunded.Tax, refunded.Total,
		ord.TrackingNumber, ord.ShippingStatus, ord.CreatedAt, ord.UpdatedAt, ord.CanceledAt)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}

	for _, item := range ord.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items
				(order_id, item_id, item_type, name, price, quantity, size,
				 image_url, canceled_quantity, refund_id, canceled_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, ord.ID, item.ItemID, item.Type, item.Name, item.Price, item.Quantity,
			item.Size, item.ImageURL, item.CanceledQuantity, item.RefundID, item.CanceledAt)
		if err != nil {
			return fmt.Errorf("failed to insert order item: %w", err)
		}
	}
	return nil
}

func getOrderTx(ctx context.Context, q querier, id uuid.UUID) (*Order, error) {
	var ord Order
	var refunded RefundedAmounts
	var refundID, refundStatus, cancelReason sql.NullString
	var trackingNumber, shippingStatus, sessionID, paymentIntent sql.NullString
	var canceledAt sql.NullTime
	err := q.QueryRowContext(ctx, `
		SELECT id, order_ref, customer_name, customer_email, customer_phone,
			shipping_address, subtotal, tax_rate, tax_amount, total,
			paid, status, stripe_session_id, stripe_payment_intent,
			refund_id, refund_status, cancel_reason,
			refunded_subtotal, refunded_tax, refunded_total,
			tracking_number, shipping_status, created_at, updated_at, canceled_at
		FROM orders
		WHERE id = $1
	`, id).Scan(&ord.ID, &ord.OrderID, &ord.CustomerName, &ord.CustomerEmail,
		&ord.CustomerPhone, &ord.ShippingAddress,
		&ord.Subtotal, &ord.TaxRate, &ord.TaxAmount, &ord.Total,
		&ord.Paid, &ord.Status, &sessionID, &paymentIntent,
		&refundID, &refundStatus, &cancelReason,
		&refunded.Subtotal, &refunded.Tax, &refunded.Total,
		&trackingNumber, &shippingStatus, &ord.CreatedAt, &ord.UpdatedAt, &canceledAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query order: %w", err)
	}

	ord.StripeSessionID = sessionID.String
	ord.StripePaymentIntent = paymentIntent.String
	if refundID.Valid {
		ord.RefundID = &refundID.String
	}
	ord.RefundStatus = refundStatus.String
	ord.CancelReason = cancelReason.String
	if refunded != (RefundedAmounts{}) {
		ord.Refunded = &refunded
	}
	ord.TrackingNumber = trackingNumber.String
	ord.ShippingStatus = shippingStatus.String
	if canceledAt.Valid {
		t := canceledAt.Time
		ord.CanceledAt = &t
	}

	rows, err := q.QueryContext(ctx, `
		SELECT item_id, item_type, name, price, quantity, size, image_url,
			canceled_quantity, refund_id, canceled_at
		FROM order_items
		WHERE order_id = $1
		ORDER BY item_id, size
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item Item
		var itemRefundID sql.NullString
		var itemCanceledAt sql.NullTime
		if err := rows.Scan(&item.ItemID, &item.Type, &item.Name, &item.Price,
			&item.Quantity, &item.Size, &item.ImageURL,
			&item.CanceledQuantity, &itemRefundID, &itemCanceledAt); err != nil {
			return nil, err
		}
		if itemRefundID.Valid {
			item.RefundID = &itemRefundID.String
		}
		if itemCanceledAt.Valid {
			t := itemCanceledAt.Time
			item.CanceledAt = &t
		}
		ord.Items = append(ord.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &ord, nil
}

func findItem(items []Item, key ItemKey) int {
	for i := range items {
		if items[i].ItemID == key.ItemID && items[i].Type == key.Type && items[i].Size == key.Size {
			return i
		}
	}
	return -1
}
