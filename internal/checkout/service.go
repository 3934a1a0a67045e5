// Package checkout validates a cart against the live catalog, prices it,
// snapshots it as a pending order, and opens a hosted payment session.
// Nothing here reserves stock: availability checks are advisory until the
// payment confirmation promotes the pending order.
package checkout

import (
	"context"
	"fmt"
	"math"
	"strings"

	"datebox-be/internal/catalog"
	"datebox-be/internal/inventory"
	"datebox-be/internal/logger"
	"datebox-be/internal/order"
	"datebox-be/internal/payment"
	"datebox-be/internal/pricing"

	"go.uber.org/zap"
)

type CartLine struct {
	ItemID   string             `json:"itemId" validate:"required"`
	Type     inventory.ItemType `json:"type" validate:"required,oneof=shop event"`
	Size     string             `json:"size"`
	Quantity int                `json:"quantity" validate:"required,gt=0"`
}

type SessionRequest struct {
	Items           []CartLine `json:"items" validate:"required,dive"`
	CustomerName    string     `json:"customerName"`
	CustomerEmail   string     `json:"customerEmail" validate:"omitempty,email"`
	CustomerPhone   string     `json:"customerPhone"`
	ShippingAddress string     `json:"shippingAddress"`
	SuccessURL      string     `json:"successUrl"`
	CancelURL       string     `json:"cancelUrl"`
}

// SessionResult is what the storefront needs to redirect the customer.
type SessionResult struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
	OrderRef  string `json:"orderRef"`
}

type Service interface {
	CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error)
}

type service struct {
	catalog catalog.Repository
	orders  order.Repository
	gateway payment.Gateway
}

func NewService(cat catalog.Repository, orders order.Repository, gateway payment.Gateway) Service {
	return &service{catalog: cat, orders: orders, gateway: gateway}
}

func (s *service) CreateSession(ctx context.Context, req SessionRequest) (*SessionResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	// 1. Resolve every cart line against the catalog. Prices and names come
	// from the catalog, never from the client.
	items, err := s.resolveItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &CheckoutError{Code: CodeEmptyCart, Message: "cart is empty"}
	}

	// 2. Price the cart.
	taxRate, err := s.catalog.TaxRate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load tax rate: %w", err)
	}
	lines := make([]pricing.Line, len(items))
	for i, item := range items {
		lines[i] = pricing.Line{Price: item.Price, Quantity: item.Quantity}
	}
	quote := pricing.Calculate(lines, taxRate)

	// 3. Snapshot the priced cart as a pending order.
	pending := &order.PendingOrder{
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ShippingAddress: req.ShippingAddress,
		Items:           items,
		Subtotal:        quote.Subtotal,
		TaxRate:         taxRate,
		TaxAmount:       quote.TaxAmount,
		Total:           quote.Total,
	}
	if err := s.orders.CreatePendingOrder(ctx, pending); err != nil {
		return nil, fmt.Errorf("failed to create pending order: %w", err)
	}

	// 4. Open the hosted payment session. From here on, any failure must drop
	// the pending order again or it leaks.
	session, err := s.gateway.CreateCheckoutSession(ctx, payment.SessionParams{
		LineItems:         buildLineItems(items, quote.TaxAmount),
		CustomerEmail:     req.CustomerEmail,
		SuccessURL:        req.SuccessURL,
		CancelURL:         req.CancelURL,
		ClientReferenceID: pending.OrderID,
		Metadata: map[string]string{
			"orderId":        pending.OrderID,
			"orderPendingId": pending.ID.String(),
		},
	})
	if err != nil {
		s.dropPending(ctx, pending)
		return nil, fmt.Errorf("failed to create payment session: %w", err)
	}

	if err := s.orders.SetPendingSessionID(ctx, pending.ID, session.ID); err != nil {
		s.dropPending(ctx, pending)
		return nil, fmt.Errorf("failed to attach session to pending order: %w", err)
	}

	logger.FromCtx(ctx).Info("checkout session created",
		zap.String("order_ref", pending.OrderID),
		zap.String("session_id", session.ID),
		zap.Float64("total", quote.Total),
	)
	return &SessionResult{
		SessionID: session.ID,
		URL:       session.URL,
		OrderRef:  pending.OrderID,
	}, nil
}

func validateRequest(req SessionRequest) error {
	if len(req.Items) == 0 {
		return &CheckoutError{Code: CodeEmptyCart, Message: "cart is empty"}
	}
	if strings.TrimSpace(req.CustomerName) == "" || strings.TrimSpace(req.CustomerEmail) == "" {
		return &CheckoutError{Code: CodeMissingCustomerInfo, Message: "customer name and email are required"}
	}
	if req.SuccessURL == "" || req.CancelURL == "" {
		return &CheckoutError{Code: CodeMissingRedirectURLs, Message: "success and cancel URLs are required"}
	}
	return nil
}

func (s *service) resolveItems(ctx context.Context, cart []CartLine) ([]order.Item, error) {
	items := make([]order.Item, 0, len(cart))
	for _, line := range cart {
		if line.Quantity <= 0 {
			continue
		}
		switch line.Type {
		case inventory.TypeEvent:
			item, err := s.resolveEventLine(ctx, line)
			if err != nil {
				return nil, err
			}
			items = append(items, *item)
		default:
			item, err := s.resolveShopLine(ctx, line)
			if err != nil {
				return nil, err
			}
			items = append(items, *item)
		}
	}
	return items, nil
}

func (s *service) resolveEventLine(ctx context.Context, line CartLine) (*order.Item, error) {
	event, err := s.catalog.GetEvent(ctx, line.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load event: %w", err)
	}
	if event == nil || event.Status != catalog.EventStatusScheduled {
		return nil, &CheckoutError{Code: CodeItemUnavailable, ItemID: line.ItemID,
			Message: "event is not open for registration"}
	}

	if strings.TrimSpace(line.Size) == "" {
		return nil, &CheckoutError{Code: CodeMissingVariantSelection, ItemID: line.ItemID,
			Message: "ticket type is required"}
	}
	ticketType := canonicalTicketType(line.Size)
	if ticketType == "" {
		return nil, &CheckoutError{Code: CodeItemUnavailable, ItemID: line.ItemID,
			Message: "unknown ticket type"}
	}
	if event.TicketsFor(ticketType) < line.Quantity {
		return nil, &CheckoutError{Code: CodeSoldOut, ItemID: line.ItemID,
			Message: "not enough tickets remaining"}
	}

	return &order.Item{
		ItemID:   event.ID,
		Type:     inventory.TypeEvent,
		Name:     event.Title,
		Price:    event.TicketPrice,
		Quantity: line.Quantity,
		Size:     ticketType,
	}, nil
}

func (s *service) resolveShopLine(ctx context.Context, line CartLine) (*order.Item, error) {
	item, err := s.catalog.GetShopItem(ctx, line.ItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shop item: %w", err)
	}
	if item == nil || item.Status != catalog.ShopStatusAvailable {
		return nil, &CheckoutError{Code: CodeItemUnavailable, ItemID: line.ItemID,
			Message: "item is not available"}
	}

	size := strings.TrimSpace(line.Size)
	if item.HasSizes() {
		if size == "" {
			return nil, &CheckoutError{Code: CodeMissingVariantSelection, ItemID: line.ItemID,
				Message: "size selection is required"}
		}
		available, ok := item.SizeQuantity(size)
		if !ok {
			return nil, &CheckoutError{Code: CodeItemUnavailable, ItemID: line.ItemID,
				Message: "unknown size"}
		}
		if available < line.Quantity {
			return nil, &CheckoutError{Code: CodeSoldOut, ItemID: line.ItemID,
				Message: "not enough stock in this size"}
		}
	} else if item.Quantity < line.Quantity {
		return nil, &CheckoutError{Code: CodeSoldOut, ItemID: line.ItemID,
			Message: "not enough stock"}
	}

	return &order.Item{
		ItemID:   item.ID,
		Type:     inventory.TypeShop,
		Name:     item.Name,
		Price:    item.Price,
		Quantity: line.Quantity,
		Size:     size,
		ImageURL: item.ImageURL,
	}, nil
}

// buildLineItems converts the priced items to provider line items in cents,
// with the tax as its own line so the hosted page total matches the order.
func buildLineItems(items []order.Item, taxAmount float64) []payment.LineItem {
	out := make([]payment.LineItem, 0, len(items)+1)
	for _, item := range items {
		name := item.Name
		if item.Size != "" {
			name = fmt.Sprintf("%s (%s)", item.Name, item.Size)
		}
		out = append(out, payment.LineItem{
			Name:       name,
			UnitAmount: toCents(item.Price),
			Quantity:   item.Quantity,
			ImageURL:   item.ImageURL,
		})
	}
	if taxAmount > 0 {
		out = append(out, payment.LineItem{
			Name:       "Sales Tax",
			UnitAmount: toCents(taxAmount),
			Quantity:   1,
		})
	}
	return out
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func canonicalTicketType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male":
		return catalog.TicketTypeMale
	case "female":
		return catalog.TicketTypeFemale
	}
	return ""
}

// dropPending is the compensating delete after a failed session creation.
// Best effort: an orphaned pending order never holds stock.
func (s *service) dropPending(ctx context.Context, pending *order.PendingOrder) {
	if err := s.orders.DeletePendingOrder(ctx, pending.ID); err != nil {
		logger.FromCtx(ctx).Error("failed to drop pending order after session failure",
			zap.String("order_ref", pending.OrderID), zap.Error(err))
	}
}
