package validation

import (
	"encoding/json"
	"net/http"

	"datebox-be/internal/utils"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns the shared validator instance used by the HTTP handlers.
func New() *validatorv10.Validate {
	return validatorv10.New()
}

// BindAndValidate decodes the JSON body into out and runs struct validation.
// On failure it writes a 400 response and returns an error so the handler can
// short-circuit.
func BindAndValidate(w http.ResponseWriter, r *http.Request, out interface{}, v *validatorv10.Validate) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		utils.WriteJSONError(w, "invalid request body", http.StatusBadRequest)
		return err
	}

	if err := v.Struct(out); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation_failed",
			"fields": validationErrorsToMap(err),
		})
		return err
	}
	return nil
}

func validationErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validatorv10.ValidationErrors); ok {
		for _, fe := range ve {
			out[fe.StructNamespace()] = fe.Tag()
		}
	} else {
		out["error"] = err.Error()
	}
	return out
}
