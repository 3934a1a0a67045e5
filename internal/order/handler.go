package order

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"datebox-be/internal/utils"
	"datebox-be/internal/validation"

	validatorv10 "github.com/go-playground/validator/v10"
)

type shipRequest struct {
	OrderID        string `json:"orderId" validate:"required,uuid"`
	TrackingNumber string `json:"trackingNumber" validate:"required"`
}

type Handler struct {
	service  Service
	validate *validatorv10.Validate
}

func NewHandler(service Service, validate *validatorv10.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

// MarkShipped handles POST /api/admin/orders/ship.
func (h *Handler) MarkShipped(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req shipRequest
	if err := validation.BindAndValidate(w, r, &req, h.validate); err != nil {
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		utils.WriteJSONError(w, "invalid order id", http.StatusBadRequest)
		return
	}

	updated, err := h.service.MarkShipped(r.Context(), orderID, req.TrackingNumber)
	if err != nil {
		switch {
		case errors.Is(err, ErrForbidden):
			utils.WriteJSONError(w, "forbidden", http.StatusForbidden)
		case errors.Is(err, ErrOrderNotFound):
			utils.WriteJSONError(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, ErrNotShippable):
			utils.WriteJSONError(w, err.Error(), http.StatusConflict)
		default:
			utils.WriteJSONError(w, "failed to mark order shipped", http.StatusInternalServerError)
		}
		return
	}
	utils.WriteJSON(w, http.StatusOK, updated)
}
