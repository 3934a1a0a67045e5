package notify

import (
	"context"
	"time"

	"datebox-be/internal/catalog"
	"datebox-be/internal/inventory"
	"datebox-be/internal/logger"
	"datebox-be/internal/order"

	"go.uber.org/zap"
)

// sendTimeout bounds each background delivery.
const sendTimeout = 15 * time.Second

// Dispatcher sends order lifecycle emails in the background. Every method
// returns immediately; failures are logged and dropped.
type Dispatcher struct {
	mailer  Mailer
	catalog catalog.Repository
}

func NewDispatcher(mailer Mailer, cat catalog.Repository) *Dispatcher {
	return &Dispatcher{mailer: mailer, catalog: cat}
}

func (d *Dispatcher) OrderPaid(ctx context.Context, ord *order.Order) {
	d.dispatch(ctx, ord, "receipt", func(ctx context.Context) error {
		events := d.loadEvents(ctx, ord)
		return d.mailer.Send(ord.CustomerEmail, receiptSubject(ord), receiptBody(ord, events))
	})
}

func (d *Dispatcher) OrderShipped(ctx context.Context, ord *order.Order) {
	d.dispatch(ctx, ord, "shipped", func(ctx context.Context) error {
		return d.mailer.Send(ord.CustomerEmail, shippedSubject(ord), shippedBody(ord))
	})
}

func (d *Dispatcher) OrderCanceled(ctx context.Context, ord *order.Order) {
	d.dispatch(ctx, ord, "canceled", func(ctx context.Context) error {
		return d.mailer.Send(ord.CustomerEmail, canceledSubject(ord), canceledBody(ord))
	})
}

// dispatch runs send on its own goroutine with a fresh context, detached from
// the request that triggered it.
func (d *Dispatcher) dispatch(ctx context.Context, ord *order.Order, kind string, send func(context.Context) error) {
	if ord == nil || ord.CustomerEmail == "" {
		return
	}
	log := logger.FromCtx(ctx).With(
		zap.String("email_kind", kind),
		zap.String("order_ref", ord.OrderID),
	)

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		if err := send(sendCtx); err != nil {
			log.Error("failed to send email", zap.Error(err))
			return
		}
		log.Info("email sent")
	}()
}

// loadEvents resolves event details for the receipt. Missing events are
// simply left off the email.
func (d *Dispatcher) loadEvents(ctx context.Context, ord *order.Order) map[string]*catalog.Event {
	events := make(map[string]*catalog.Event)
	for _, item := range ord.Items {
		if item.Type != inventory.TypeEvent {
			continue
		}
		if _, seen := events[item.ItemID]; seen {
			continue
		}
		event, err := d.catalog.GetEvent(ctx, item.ItemID)
		if err != nil {
			logger.FromCtx(ctx).Warn("could not load event for receipt",
				zap.String("event_id", item.ItemID), zap.Error(err))
			continue
		}
		events[item.ItemID] = event
	}
	return events
}
