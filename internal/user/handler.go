package user

import (
	"errors"
	"net/http"
	"time"

	"datebox-be/internal/utils"
	"datebox-be/internal/validation"

	validatorv10 "github.com/go-playground/validator/v10"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Handler struct {
	service  Service
	validate *validatorv10.Validate
	secure   bool
}

func NewHandler(service Service, validate *validatorv10.Validate, secureCookies bool) *Handler {
	return &Handler{service: service, validate: validate, secure: secureCookies}
}

// Login handles POST /api/admin/login. The token is returned in the body and
// also set as an http-only cookie for browser clients.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.WriteJSONError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req loginRequest
	if err := validation.BindAndValidate(w, r, &req, h.validate); err != nil {
		return
	}

	token, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			utils.WriteJSONError(w, "invalid email or password", http.StatusUnauthorized)
			return
		}
		utils.WriteJSONError(w, "login failed", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    token,
		Path:     "/",
		Expires:  time.Now().Add(24 * time.Hour),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	utils.WriteJSON(w, http.StatusOK, map[string]string{"token": token})
}
