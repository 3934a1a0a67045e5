package cancellation

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"datebox-be/internal/inventory"
	"datebox-be/internal/order"
	"datebox-be/internal/payment"
	"datebox-be/internal/utils"
)

// MockOrderRepo is a mock implementation of order.Repository.
type MockOrderRepo struct {
	mock.Mock
}

func (m *MockOrderRepo) CreatePendingOrder(ctx context.Context, pending *order.PendingOrder) error {
	return m.Called(ctx, pending).Error(0)
}

func (m *MockOrderRepo) SetPendingSessionID(ctx context.Context, pendingID uuid.UUID, sessionID string) error {
	return m.Called(ctx, pendingID, sessionID).Error(0)
}

func (m *MockOrderRepo) GetPendingOrder(ctx context.Context, pendingID uuid.UUID) (*order.PendingOrder, error) {
	args := m.Called(ctx, pendingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.PendingOrder), args.Error(1)
}

func (m *MockOrderRepo) DeletePendingOrder(ctx context.Context, pendingID uuid.UUID) error {
	return m.Called(ctx, pendingID).Error(0)
}

func (m *MockOrderRepo) PromotePending(ctx context.Context, pendingID uuid.UUID, sessionID, paymentIntentID string, reserve order.ReserveFunc) (*order.Order, error) {
	args := m.Called(ctx, pendingID, sessionID, paymentIntentID, reserve)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepo) CreateCanceledFromPending(ctx context.Context, pendingID uuid.UUID, sessionID, paymentIntentID, cancelReason, refundStatus string, refundID *string) (*order.Order, error) {
	args := m.Called(ctx, pendingID, sessionID, paymentIntentID, cancelReason, refundStatus, refundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepo) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepo) CancelOrderTx(ctx context.Context, id uuid.UUID, upd order.CancelUpdate) (*order.Order, error) {
	args := m.Called(ctx, id, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepo) ApplyItemCancellation(ctx context.Context, id uuid.UUID, key order.ItemKey, upd order.ItemCancelUpdate) (*order.Order, error) {
	args := m.Called(ctx, id, key, upd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepo) MarkShipped(ctx context.Context, id uuid.UUID, trackingNumber string) (*order.Order, error) {
	args := m.Called(ctx, id, trackingNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

// MockRestorer is a mock implementation of Restorer.
type MockRestorer struct {
	mock.Mock
}

func (m *MockRestorer) Restore(ctx context.Context, lines []inventory.Line) error {
	return m.Called(ctx, lines).Error(0)
}

// MockRegs is a mock implementation of registration.Repository.
type MockRegs struct {
	mock.Mock
}

func (m *MockRegs) CreateForOrder(ctx context.Context, ord *order.Order) error {
	return m.Called(ctx, ord).Error(0)
}

func (m *MockRegs) DeleteForOrder(ctx context.Context, orderRef string, orderDocID uuid.UUID) error {
	return m.Called(ctx, orderRef, orderDocID).Error(0)
}

func (m *MockRegs) DeleteForItem(ctx context.Context, orderRef string, orderDocID uuid.UUID, eventID, ticketType string) error {
	return m.Called(ctx, orderRef, orderDocID, eventID, ticketType).Error(0)
}

// MockGateway is a mock implementation of payment.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCheckoutSession(ctx context.Context, params payment.SessionParams) (*payment.CheckoutSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CheckoutSession), args.Error(1)
}

func (m *MockGateway) CreateRefund(ctx context.Context, paymentIntentID string, amountCents int64) (*payment.Refund, error) {
	args := m.Called(ctx, paymentIntentID, amountCents)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Refund), args.Error(1)
}

func (m *MockGateway) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*payment.PaymentIntent, error) {
	args := m.Called(ctx, paymentIntentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.PaymentIntent), args.Error(1)
}

func (m *MockGateway) VerifyWebhookSignature(payload []byte, sigHeader string) error {
	return m.Called(payload, sigHeader).Error(0)
}

// MockNotifier is a mock implementation of Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) OrderCanceled(ctx context.Context, ord *order.Order) {
	m.Called(ctx, ord)
}

func adminCtx() context.Context {
	return utils.SetUserContext(context.Background(), 1, "admin@example.com", utils.RoleAdmin)
}

func paidMixedOrder(id uuid.UUID) *order.Order {
	return &order.Order{
		ID:                  id,
		OrderID:             "DB-TEST-1",
		CustomerName:        "Jess Doe",
		CustomerEmail:       "jess@example.com",
		Status:              order.StatusPaid,
		Paid:                true,
		StripePaymentIntent: "pi_1",
		Items: []order.Item{
			{ItemID: "ev-1", Type: inventory.TypeEvent, Name: "Summer Mixer", Price: 30, Quantity: 1, Size: "Female"},
			{ItemID: "shirt-1", Type: inventory.TypeShop, Name: "Logo Tee", Price: 20, Quantity: 1, Size: "M"},
		},
		Subtotal:  50.00,
		TaxRate:   0.08,
		TaxAmount: 4.00,
		Total:     54.00,
	}
}

func TestService_CancelOrder(t *testing.T) {
	orderID := uuid.New()
	ctx := adminCtx()

	t.Run("FullRefundAndRestore", func(t *testing.T) {
		repo := new(MockOrderRepo)
		restorer := new(MockRestorer)
		regs := new(MockRegs)
		gateway := new(MockGateway)
		notifier := new(MockNotifier)
		svc := NewService(repo, restorer, regs, gateway, notifier)

		ord := paidMixedOrder(orderID)
		repo.On("GetOrder", ctx, orderID).Return(ord, nil)
		gateway.On("GetPaymentIntent", ctx, "pi_1").
			Return(&payment.PaymentIntent{
				ID:           "pi_1",
				LatestCharge: &payment.Charge{Amount: 5400, AmountRefunded: 0},
			}, nil)
		gateway.On("CreateRefund", ctx, "pi_1", int64(5400)).
			Return(&payment.Refund{ID: "re_1", Status: "succeeded"}, nil)

		canceled := paidMixedOrder(orderID)
		canceled.Status = order.StatusCanceled
		repo.On("CancelOrderTx", ctx, orderID, mock.MatchedBy(func(upd order.CancelUpdate) bool {
			return upd.Status == order.StatusCanceled &&
				upd.RefundStatus == "issued" &&
				upd.Refunded.Subtotal == 50.00 &&
				upd.Refunded.Tax == 4.00 &&
				upd.Refunded.Total == 54.00
		})).Return(canceled, nil)

		restorer.On("Restore", ctx, mock.MatchedBy(func(lines []inventory.Line) bool {
			return len(lines) == 2
		})).Return(nil)
		regs.On("DeleteForOrder", ctx, "DB-TEST-1", orderID).Return(nil)
		notifier.On("OrderCanceled", ctx, canceled).Return()

		result, err := svc.CancelOrder(ctx, orderID)
		require.NoError(t, err)

		assert.True(t, result.OK)
		assert.False(t, result.AlreadyCanceled)
		assert.Equal(t, 54.00, result.RefundedAmount)
		require.NotNil(t, result.RefundID)
		assert.Equal(t, "re_1", *result.RefundID)

		repo.AssertExpectations(t)
		gateway.AssertExpectations(t)
		restorer.AssertExpectations(t)
	})

	t.Run("AfterPartialCancelRefundsOnlyActiveLines", func(t *testing.T) {
		repo := new(MockOrderRepo)
		restorer := new(MockRestorer)
		regs := new(MockRegs)
		gateway := new(MockGateway)
		notifier := new(MockNotifier)
		svc := NewService(repo, restorer, regs, gateway, notifier)

		// The event line was already canceled. The stored totals are left at
		// their pre-cancel values on purpose: the refund has to come from
		// repricing the active lines, not from those columns.
		ord := paidMixedOrder(orderID)
		ord.Status = order.StatusPartiallyRefunded
		ord.Items[0].CanceledQuantity = 1
		ord.Refunded = &order.RefundedAmounts{Subtotal: 30, Tax: 2.40, Total: 32.40}
		repo.On("GetOrder", ctx, orderID).Return(ord, nil)
		gateway.On("GetPaymentIntent", ctx, "pi_1").
			Return(&payment.PaymentIntent{
				ID:           "pi_1",
				LatestCharge: &payment.Charge{Amount: 5400, AmountRefunded: 3240},
			}, nil)
		// Only the shirt is still active: 20 + 8% tax = 21.60.
		gateway.On("CreateRefund", ctx, "pi_1", int64(2160)).
			Return(&payment.Refund{ID: "re_4", Status: "succeeded"}, nil)

		refunded := paidMixedOrder(orderID)
		refunded.Status = order.StatusRefunded
		repo.On("CancelOrderTx", ctx, orderID, mock.MatchedBy(func(upd order.CancelUpdate) bool {
			return upd.Status == order.StatusRefunded &&
				upd.Refunded.Subtotal == 50.00 &&
				upd.Refunded.Total == 54.00
		})).Return(refunded, nil)

		restorer.On("Restore", ctx, mock.MatchedBy(func(lines []inventory.Line) bool {
			return len(lines) == 1 && lines[0].ItemID == "shirt-1"
		})).Return(nil)
		regs.On("DeleteForOrder", ctx, "DB-TEST-1", orderID).Return(nil)
		notifier.On("OrderCanceled", ctx, refunded).Return()

		result, err := svc.CancelOrder(ctx, orderID)
		require.NoError(t, err)

		assert.Equal(t, 21.60, result.RefundedAmount)
		assert.Equal(t, order.StatusRefunded, result.Status)

		repo.AssertExpectations(t)
		gateway.AssertExpectations(t)
		restorer.AssertExpectations(t)
	})

	t.Run("SecondCancelIsNoOp", func(t *testing.T) {
		repo := new(MockOrderRepo)
		gateway := new(MockGateway)
		svc := NewService(repo, new(MockRestorer), new(MockRegs), gateway, new(MockNotifier))

		ord := paidMixedOrder(orderID)
		ord.Status = order.StatusCanceled
		ord.RefundID = utils.StrPtr("re_1")
		repo.On("GetOrder", ctx, orderID).Return(ord, nil)

		result, err := svc.CancelOrder(ctx, orderID)
		require.NoError(t, err)

		assert.True(t, result.AlreadyCanceled)
		require.NotNil(t, result.RefundID)
		assert.Equal(t, "re_1", *result.RefundID)
		gateway.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("RefundExceedsRemainingBalance", func(t *testing.T) {
		repo := new(MockOrderRepo)
		gateway := new(MockGateway)
		svc := NewService(repo, new(MockRestorer), new(MockRegs), gateway, new(MockNotifier))

		ord := paidMixedOrder(orderID)
		repo.On("GetOrder", ctx, orderID).Return(ord, nil)
		gateway.On("GetPaymentIntent", ctx, "pi_1").
			Return(&payment.PaymentIntent{
				ID:           "pi_1",
				LatestCharge: &payment.Charge{Amount: 5400, AmountRefunded: 5400},
			}, nil)

		_, err := svc.CancelOrder(ctx, orderID)
		assert.ErrorIs(t, err, ErrRefundExceedsBalance)
		gateway.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("BalanceCheckFailureProceeds", func(t *testing.T) {
		repo := new(MockOrderRepo)
		restorer := new(MockRestorer)
		regs := new(MockRegs)
		gateway := new(MockGateway)
		notifier := new(MockNotifier)
		svc := NewService(repo, restorer, regs, gateway, notifier)

		ord := paidMixedOrder(orderID)
		repo.On("GetOrder", ctx, orderID).Return(ord, nil)
		gateway.On("GetPaymentIntent", ctx, "pi_1").
			Return(nil, errors.New("stripe timeout"))
		gateway.On("CreateRefund", ctx, "pi_1", int64(5400)).
			Return(&payment.Refund{ID: "re_1", Status: "succeeded"}, nil)

		canceled := paidMixedOrder(orderID)
		canceled.Status = order.StatusCanceled
		repo.On("CancelOrderTx", ctx, orderID, mock.Anything).Return(canceled, nil)
		restorer.On("Restore", ctx, mock.Anything).Return(nil)
		regs.On("DeleteForOrder", ctx, mock.Anything, orderID).Return(nil)
		notifier.On("OrderCanceled", ctx, canceled).Return()

		result, err := svc.CancelOrder(ctx, orderID)
		require.NoError(t, err)
		assert.True(t, result.OK)
	})

	t.Run("NonAdminRejected", func(t *testing.T) {
		svc := NewService(new(MockOrderRepo), new(MockRestorer), new(MockRegs), new(MockGateway), new(MockNotifier))

		_, err := svc.CancelOrder(context.Background(), orderID)
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("UnknownOrder", func(t *testing.T) {
		repo := new(MockOrderRepo)
		svc := NewService(repo, new(MockRestorer), new(MockRegs), new(MockGateway), new(MockNotifier))

		repo.On("GetOrder", ctx, orderID).Return(nil, nil)

		_, err := svc.CancelOrder(ctx, orderID)
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})
}

func TestService_CancelOrderItem(t *testing.T) {
	orderID := uuid.New()
	ctx := adminCtx()

	t.Run("FirstLineLeavesPartiallyRefunded", func(t *testing.T) {
		repo := new(MockOrderRepo)
		restorer := new(MockRestorer)
		regs := new(MockRegs)
		gateway := new(MockGateway)
		notifier := new(MockNotifier)
		svc := NewService(repo, restorer, regs, gateway, notifier)

		ord := paidMixedOrder(orderID)
		repo.On("GetOrder", ctx, orderID).Return(ord, nil)
		gateway.On("GetPaymentIntent", ctx, "pi_1").
			Return(&payment.PaymentIntent{
				ID:           "pi_1",
				LatestCharge: &payment.Charge{Amount: 5400, AmountRefunded: 0},
			}, nil)
		// 30 + 8% tax = 32.40
		gateway.On("CreateRefund", ctx, "pi_1", int64(3240)).
			Return(&payment.Refund{ID: "re_2", Status: "succeeded"}, nil)

		key := order.ItemKey{ItemID: "ev-1", Type: inventory.TypeEvent, Size: "Female"}
		updated := paidMixedOrder(orderID)
		updated.Status = order.StatusPartiallyRefunded
		updated.Items[0].CanceledQuantity = 1
		repo.On("ApplyItemCancellation", ctx, orderID, key,
			mock.MatchedBy(func(upd order.ItemCancelUpdate) bool {
				return upd.CancelQuantity == 1 &&
					upd.Status == order.StatusPartiallyRefunded &&
					upd.RefundedDelta.Total == 32.40 &&
					upd.NewSubtotal == 20.00 &&
					upd.NewTaxAmount == 1.60 &&
					upd.NewTotal == 21.60
			})).Return(updated, nil)

		restorer.On("Restore", ctx, []inventory.Line{
			{ItemID: "ev-1", Type: inventory.TypeEvent, Size: "Female", Quantity: 1},
		}).Return(nil)
		regs.On("DeleteForItem", ctx, "DB-TEST-1", orderID, "ev-1", "Female").Return(nil)
		notifier.On("OrderCanceled", ctx, updated).Return()

		result, err := svc.CancelOrderItem(ctx, orderID, "ev-1", inventory.TypeEvent, "Female")
		require.NoError(t, err)

		assert.True(t, result.OK)
		assert.Equal(t, 32.40, result.RefundedAmount)
		assert.Equal(t, order.StatusPartiallyRefunded, result.Status)

		repo.AssertExpectations(t)
		gateway.AssertExpectations(t)
	})

	t.Run("LastLineCollapsesToRefunded", func(t *testing.T) {
		repo := new(MockOrderRepo)
		restorer := new(MockRestorer)
		regs := new(MockRegs)
		gateway := new(MockGateway)
		notifier := new(MockNotifier)
		svc := NewService(repo, restorer, regs, gateway, notifier)

		ord := paidMixedOrder(orderID)
		ord.Status = order.StatusPartiallyRefunded
		ord.Items[0].CanceledQuantity = 1
		ord.Refunded = &order.RefundedAmounts{Subtotal: 30, Tax: 2.40, Total: 32.40}
		repo.On("GetOrder", ctx, orderID).Return(ord, nil)
		gateway.On("GetPaymentIntent", ctx, "pi_1").
			Return(&payment.PaymentIntent{
				ID:           "pi_1",
				LatestCharge: &payment.Charge{Amount: 5400, AmountRefunded: 3240},
			}, nil)
		// 20 + 8% tax = 21.60
		gateway.On("CreateRefund", ctx, "pi_1", int64(2160)).
			Return(&payment.Refund{ID: "re_3", Status: "succeeded"}, nil)

		key := order.ItemKey{ItemID: "shirt-1", Type: inventory.TypeShop, Size: "M"}
		updated := paidMixedOrder(orderID)
		updated.Status = order.StatusRefunded
		repo.On("ApplyItemCancellation", ctx, orderID, key,
			mock.MatchedBy(func(upd order.ItemCancelUpdate) bool {
				return upd.Status == order.StatusRefunded &&
					upd.RefundedDelta.Total == 21.60 &&
					upd.NewSubtotal == 0 &&
					upd.NewTotal == 0
			})).Return(updated, nil)

		restorer.On("Restore", ctx, mock.Anything).Return(nil)
		notifier.On("OrderCanceled", ctx, updated).Return()

		result, err := svc.CancelOrderItem(ctx, orderID, "shirt-1", inventory.TypeShop, "M")
		require.NoError(t, err)

		assert.Equal(t, order.StatusRefunded, result.Status)
		regs.AssertNotCalled(t, "DeleteForItem",
			mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("AlreadyCanceledLine", func(t *testing.T) {
		repo := new(MockOrderRepo)
		gateway := new(MockGateway)
		svc := NewService(repo, new(MockRestorer), new(MockRegs), gateway, new(MockNotifier))

		ord := paidMixedOrder(orderID)
		ord.Status = order.StatusPartiallyRefunded
		ord.Items[0].CanceledQuantity = 1
		repo.On("GetOrder", ctx, orderID).Return(ord, nil)

		_, err := svc.CancelOrderItem(ctx, orderID, "ev-1", inventory.TypeEvent, "Female")
		assert.ErrorIs(t, err, order.ErrNothingToCancel)
		gateway.AssertNotCalled(t, "CreateRefund", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("UnknownLine", func(t *testing.T) {
		repo := new(MockOrderRepo)
		svc := NewService(repo, new(MockRestorer), new(MockRegs), new(MockGateway), new(MockNotifier))

		ord := paidMixedOrder(orderID)
		repo.On("GetOrder", ctx, orderID).Return(ord, nil)

		_, err := svc.CancelOrderItem(ctx, orderID, "hat-9", inventory.TypeShop, "")
		assert.ErrorIs(t, err, order.ErrItemNotFound)
	})

	t.Run("CanceledOrderIsNoOp", func(t *testing.T) {
		repo := new(MockOrderRepo)
		svc := NewService(repo, new(MockRestorer), new(MockRegs), new(MockGateway), new(MockNotifier))

		ord := paidMixedOrder(orderID)
		ord.Status = order.StatusCanceled
		repo.On("GetOrder", ctx, orderID).Return(ord, nil)

		result, err := svc.CancelOrderItem(ctx, orderID, "ev-1", inventory.TypeEvent, "Female")
		require.NoError(t, err)
		assert.True(t, result.AlreadyCanceled)
	})
}
