package common

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Decode reads a JSON body into payload and runs struct validation on it.
func Decode(r *http.Request, payload interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(payload); err != nil {
		return errors.New("invalid request body")
	}

	if err := validate.Struct(payload); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return validationErrors
		}
		return err
	}

	return nil
}

func ValidateAndDecode(w http.ResponseWriter, r *http.Request, payload interface{}) bool {
	if err := Decode(r, payload); err != nil {
		NewAppError(http.StatusBadRequest, err.Error(), nil).Send(w)
		return false
	}
	return true
}
