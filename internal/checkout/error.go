package checkout

import (
	"errors"
	"fmt"
)

// Rejection codes returned to the storefront.
const (
	CodeEmptyCart               = "empty-cart"
	CodeMissingCustomerInfo     = "missing-customer-info"
	CodeMissingRedirectURLs     = "missing-redirect-urls"
	CodeMissingVariantSelection = "missing-variant-selection"
	CodeItemUnavailable         = "item-unavailable"
	CodeSoldOut                 = "sold-out"
)

// CheckoutError is a rejected checkout request. Code is stable API surface;
// Message is human readable.
type CheckoutError struct {
	Code    string
	Message string
	ItemID  string
}

func (e *CheckoutError) Error() string {
	if e.ItemID != "" {
		return fmt.Sprintf("checkout rejected: %s (item %s)", e.Code, e.ItemID)
	}
	return "checkout rejected: " + e.Code
}

// AsCheckoutError unwraps err to a CheckoutError if it is one.
func AsCheckoutError(err error) (*CheckoutError, bool) {
	var ce *CheckoutError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// Conflict reports whether the rejection reflects catalog state rather than a
// malformed request, which maps to a different HTTP status.
func (e *CheckoutError) Conflict() bool {
	return e.Code == CodeItemUnavailable || e.Code == CodeSoldOut
}
