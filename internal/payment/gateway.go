package payment

import "context"

// Gateway abstracts the payment provider so checkout, reconciliation and
// cancellation can be tested against a mock.
type Gateway interface {
	// CreateCheckoutSession opens a hosted payment page for the given lines.
	CreateCheckoutSession(ctx context.Context, params SessionParams) (*CheckoutSession, error)
	// CreateRefund refunds amountCents against the payment intent. A zero or
	// negative amount requests a full refund.
	CreateRefund(ctx context.Context, paymentIntentID string, amountCents int64) (*Refund, error)
	// GetPaymentIntent loads the intent with its latest charge expanded.
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)
	// VerifyWebhookSignature checks the signature header against the raw
	// payload and returns an error when it does not match or is too old.
	VerifyWebhookSignature(payload []byte, sigHeader string) error
}
