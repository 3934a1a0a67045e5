package cancellation

import "errors"

var (
	ErrForbidden            = errors.New("admin privileges required")
	ErrNotCancellable       = errors.New("order is not in a cancellable state")
	ErrRefundExceedsBalance = errors.New("refund exceeds the charge's remaining balance")
	ErrRefundExceedsOrder   = errors.New("refund exceeds the order's remaining total")
)
