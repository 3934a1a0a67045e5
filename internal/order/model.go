// Package order persists pending and confirmed orders and owns the
// transitions between them. A pending order is a priced snapshot created at
// checkout; it becomes a real order only when the payment provider confirms
// the session.
package order

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"datebox-be/internal/inventory"
)

type Item struct {
	ItemID           string             `json:"itemId"`
	Type             inventory.ItemType `json:"type"`
	Name             string             `json:"name"`
	Price            float64            `json:"price"`
	Quantity         int                `json:"quantity"`
	Size             string             `json:"size,omitempty"`
	ImageURL         string             `json:"imageUrl,omitempty"`
	CanceledQuantity int                `json:"canceledQuantity,omitempty"`
	RefundID         *string            `json:"refundId,omitempty"`
	CanceledAt       *time.Time         `json:"canceledAt,omitempty"`
}

// ActiveQuantity is the quantity still owed to the customer.
func (i *Item) ActiveQuantity() int {
	remaining := i.Quantity - i.CanceledQuantity
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RefundedAmounts accumulates the money returned to the customer across
// partial cancellations.
type RefundedAmounts struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

type Order struct {
	ID                  uuid.UUID        `json:"id"`
	OrderID             string           `json:"orderId"`
	CustomerName        string           `json:"customerName"`
	CustomerEmail       string           `json:"customerEmail"`
	CustomerPhone       string           `json:"customerPhone,omitempty"`
	ShippingAddress     string           `json:"shippingAddress,omitempty"`
	Items               []Item           `json:"items"`
	Subtotal            float64          `json:"subtotal"`
	TaxRate             float64          `json:"taxRate"`
	TaxAmount           float64          `json:"taxAmount"`
	Total               float64          `json:"total"`
	Paid                bool             `json:"paid"`
	Status              Status           `json:"status"`
	StripeSessionID     string           `json:"stripeSessionId,omitempty"`
	StripePaymentIntent string           `json:"stripePaymentIntent,omitempty"`
	RefundID            *string          `json:"refundId,omitempty"`
	RefundStatus        string           `json:"refundStatus,omitempty"`
	CancelReason        string           `json:"cancelReason,omitempty"`
	Refunded            *RefundedAmounts `json:"refunded,omitempty"`
	TrackingNumber      string           `json:"trackingNumber,omitempty"`
	ShippingStatus      string           `json:"shippingStatus,omitempty"`
	CreatedAt           time.Time        `json:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt"`
	CanceledAt          *time.Time       `json:"canceledAt,omitempty"`
}

// InventoryLines maps the order's items onto ledger lines. Only still-active
// quantities are included, so the result is safe to restore after partial
// cancellations already returned their share.
func (o *Order) InventoryLines() []inventory.Line {
	lines := make([]inventory.Line, 0, len(o.Items))
	for _, item := range o.Items {
		active := item.ActiveQuantity()
		if active == 0 {
			continue
		}
		lines = append(lines, inventory.Line{
			ItemID:   item.ItemID,
			Type:     item.Type,
			Size:     item.Size,
			Quantity: active,
		})
	}
	return lines
}

// PendingOrder is the priced checkout snapshot awaiting payment confirmation.
// It shares the item shape with Order so promotion is a straight copy.
type PendingOrder struct {
	ID              uuid.UUID `json:"id"`
	OrderID         string    `json:"orderId"`
	CustomerName    string    `json:"customerName"`
	CustomerEmail   string    `json:"customerEmail"`
	CustomerPhone   string    `json:"customerPhone,omitempty"`
	ShippingAddress string    `json:"shippingAddress,omitempty"`
	Items           []Item    `json:"items"`
	Subtotal        float64   `json:"subtotal"`
	TaxRate         float64   `json:"taxRate"`
	TaxAmount       float64   `json:"taxAmount"`
	Total           float64   `json:"total"`
	StripeSessionID string    `json:"stripeSessionId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (p *PendingOrder) InventoryLines() []inventory.Line {
	lines := make([]inventory.Line, 0, len(p.Items))
	for _, item := range p.Items {
		if item.Quantity <= 0 {
			continue
		}
		lines = append(lines, inventory.Line{
			ItemID:   item.ItemID,
			Type:     item.Type,
			Size:     item.Size,
			Quantity: item.Quantity,
		})
	}
	return lines
}

// NewOrderRef builds the customer-facing order reference, e.g.
// "DB-MDX4K2-7F3A9Q". The timestamp segment keeps references roughly sortable
// by creation time.
func NewOrderRef() string {
	stamp := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	suffix := make([]byte, 6)
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	for i := range suffix {
		suffix[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return fmt.Sprintf("DB-%s-%s", stamp, suffix)
}
