package checkout

import (
	"net/http"

	"datebox-be/internal/utils"
	"datebox-be/internal/validation"

	validatorv10 "github.com/go-playground/validator/v10"
)

type Handler struct {
	service  Service
	validate *validatorv10.Validate
}

func NewHandler(service Service, validate *validatorv10.Validate) *Handler {
	return &Handler{service: service, validate: validate}
}

// CreateSession handles POST /api/checkout/session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SessionRequest
	if err := validation.BindAndValidate(w, r, &req, h.validate); err != nil {
		return
	}

	result, err := h.service.CreateSession(r.Context(), req)
	if err != nil {
		if ce, ok := AsCheckoutError(err); ok {
			status := http.StatusBadRequest
			if ce.Conflict() {
				status = http.StatusConflict
			}
			utils.WriteJSON(w, status, map[string]string{
				"error":  ce.Code,
				"itemId": ce.ItemID,
			})
			return
		}
		utils.WriteJSONError(w, "failed to create checkout session", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, result)
}
