// Package payment talks to the card payment provider: hosted checkout
// sessions, refunds, and webhook signature verification.
package payment

// LineItem is one priced position on a hosted checkout page. UnitAmount is in
// the currency's smallest unit.
type LineItem struct {
	Name       string
	UnitAmount int64
	Quantity   int
	ImageURL   string
}

type SessionParams struct {
	LineItems         []LineItem
	CustomerEmail     string
	SuccessURL        string
	CancelURL         string
	ClientReferenceID string
	Metadata          map[string]string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type Refund struct {
	ID     string
	Status string
}

// Charge carries the amounts needed to bound further refunds.
type Charge struct {
	ID             string
	Amount         int64
	AmountRefunded int64
}

type PaymentIntent struct {
	ID           string
	Status       string
	LatestCharge *Charge
}
