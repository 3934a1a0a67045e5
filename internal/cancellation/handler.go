package cancellation

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"datebox-be/internal/inventory"
	"datebox-be/internal/order"
	"datebox-be/internal/utils"
	"datebox-be/internal/validation"

	validatorv10 "github.com/go-playground/validator/v10"
)

type cancelOrderRequest struct {
	OrderID string `json:"orderId" validate:"required,uuid"`
}

type cancelItemRequest struct {
	OrderID  string `json:"orderId" validate:"required,uuid"`
	ItemID   string `json:"itemId" validate:"required"`
	ItemType string `json:"itemType" validate:"required,oneof=shop event"`
	Size     string `json:"size"`
}

type Handler struct {
	service  Service
	validate *validatorv10.Validate
}

func NewHandler(service Service, validate *validatorv10.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

// CancelOrder handles POST /api/admin/orders/cancel.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelOrderRequest
	if err := validation.BindAndValidate(w, r, &req, h.validate); err != nil {
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		utils.WriteJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	result, err := h.service.CancelOrder(r.Context(), orderID)
	if err != nil {
		writeCancelError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

// CancelOrderItem handles POST /api/admin/orders/cancel-item.
func (h *Handler) CancelOrderItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req cancelItemRequest
	if err := validation.BindAndValidate(w, r, &req, h.validate); err != nil {
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		utils.WriteJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	result, err := h.service.CancelOrderItem(r.Context(), orderID,
		req.ItemID, inventory.ItemType(req.ItemType), req.Size)
	if err != nil {
		writeCancelError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, result)
}

func writeCancelError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrForbidden):
		utils.WriteJSONError(w, "forbidden", http.StatusForbidden)
	case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, order.ErrItemNotFound):
		utils.WriteJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, order.ErrNothingToCancel),
		errors.Is(err, ErrNotCancellable),
		errors.Is(err, ErrRefundExceedsOrder),
		errors.Is(err, ErrRefundExceedsBalance):
		utils.WriteJSONError(w, err.Error(), http.StatusConflict)
	default:
		utils.WriteJSONError(w, "cancellation failed", http.StatusInternalServerError)
	}
}
