package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"datebox-be/internal/logger"
	"datebox-be/internal/utils"

	"go.uber.org/zap"
)

var (
	ErrForbidden    = errors.New("admin privileges required")
	ErrNotShippable = errors.New("order is not in a shippable state")
)

// Notifier sends the shipping confirmation email. Implementations must not
// block.
type Notifier interface {
	OrderShipped(ctx context.Context, ord *Order)
}

type Service interface {
	MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*Order, error)
}

type service struct {
	repo     Repository
	notifier Notifier
}

func NewService(repo Repository, notifier Notifier) Service {
	return &service{repo: repo, notifier: notifier}
}

// MarkShipped records the tracking number and tells the customer. Shipping a
// canceled or fully refunded order is rejected.
func (s *service) MarkShipped(ctx context.Context, orderID uuid.UUID, trackingNumber string) (*Order, error) {
	if !utils.IsAdminFromContext(ctx) {
		return nil, ErrForbidden
	}

	ord, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if ord == nil {
		return nil, ErrOrderNotFound
	}
	switch ord.Status {
	case StatusPaid, StatusPartiallyRefunded:
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotShippable, ord.Status)
	}

	updated, err := s.repo.MarkShipped(ctx, orderID, trackingNumber)
	if err != nil {
		return nil, err
	}

	s.notifier.OrderShipped(ctx, updated)
	logger.FromCtx(ctx).Info("order shipped",
		zap.String("order_ref", updated.OrderID),
		zap.String("tracking_number", trackingNumber),
	)
	return updated, nil
}
