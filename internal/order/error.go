package order

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrItemNotFound      = errors.New("order item not found")
	ErrNothingToCancel   = errors.New("item has no active quantity left")
)
