package notify

import (
	"fmt"
	"html"
	"strings"

	"datebox-be/internal/catalog"
	"datebox-be/internal/order"
)

func receiptSubject(ord *order.Order) string {
	return fmt.Sprintf("Order confirmed - %s", ord.OrderID)
}

func receiptBody(ord *order.Order, events map[string]*catalog.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Thanks for your order, %s!</h2>", html.EscapeString(ord.CustomerName))
	fmt.Fprintf(&b, "<p>Order reference: <strong>%s</strong></p>", html.EscapeString(ord.OrderID))

	b.WriteString("<table border=\"0\" cellpadding=\"4\">")
	b.WriteString("<tr><th align=\"left\">Item</th><th align=\"right\">Qty</th><th align=\"right\">Price</th></tr>")
	for _, item := range ord.Items {
		name := item.Name
		if item.Size != "" {
			name = fmt.Sprintf("%s (%s)", item.Name, item.Size)
		}
		fmt.Fprintf(&b, "<tr><td>%s</td><td align=\"right\">%d</td><td align=\"right\">$%.2f</td></tr>",
			html.EscapeString(name), item.Quantity, item.Price)
	}
	b.WriteString("</table>")

	fmt.Fprintf(&b, "<p>Subtotal: $%.2f<br>Tax: $%.2f<br><strong>Total: $%.2f</strong></p>",
		ord.Subtotal, ord.TaxAmount, ord.Total)

	for _, item := range ord.Items {
		event, ok := events[item.ItemID]
		if !ok || event == nil {
			continue
		}
		fmt.Fprintf(&b, "<h3>%s</h3><p>%s at %s<br>%s</p>",
			html.EscapeString(event.Title),
			html.EscapeString(event.Date), html.EscapeString(event.Time),
			html.EscapeString(event.Location))
	}

	if ord.ShippingAddress != "" {
		fmt.Fprintf(&b, "<p>Shipping to:<br>%s</p>", html.EscapeString(ord.ShippingAddress))
	}
	return b.String()
}

func shippedSubject(ord *order.Order) string {
	return fmt.Sprintf("Your order %s has shipped", ord.OrderID)
}

func shippedBody(ord *order.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Good news, %s!</h2>", html.EscapeString(ord.CustomerName))
	fmt.Fprintf(&b, "<p>Order <strong>%s</strong> is on its way.</p>", html.EscapeString(ord.OrderID))
	if ord.TrackingNumber != "" {
		fmt.Fprintf(&b, "<p>Tracking number: <strong>%s</strong></p>", html.EscapeString(ord.TrackingNumber))
	}
	return b.String()
}

func canceledSubject(ord *order.Order) string {
	return fmt.Sprintf("Update on your order %s", ord.OrderID)
}

func canceledBody(ord *order.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Hi %s,</h2>", html.EscapeString(ord.CustomerName))
	switch ord.Status {
	case order.StatusPartiallyRefunded:
		fmt.Fprintf(&b, "<p>Part of order <strong>%s</strong> was canceled.</p>", html.EscapeString(ord.OrderID))
	default:
		fmt.Fprintf(&b, "<p>Order <strong>%s</strong> was canceled.</p>", html.EscapeString(ord.OrderID))
	}
	if ord.Refunded != nil && ord.Refunded.Total > 0 {
		fmt.Fprintf(&b, "<p>A refund of <strong>$%.2f</strong> has been issued to your original payment method.</p>",
			ord.Refunded.Total)
	} else if ord.RefundStatus == "issued" {
		fmt.Fprintf(&b, "<p>A full refund of <strong>$%.2f</strong> has been issued to your original payment method.</p>",
			ord.Total)
	}
	if ord.CancelReason == "inventory-unavailable" {
		b.WriteString("<p>Unfortunately an item in your order sold out before your payment completed. We're sorry for the inconvenience.</p>")
	}
	return b.String()
}
