package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/vasiliy-maslov/storefront-orders/internal/order"
)

// parseTimestamp accepts RFC3339 or a bare date, which is what the admin
// console sends for delivery estimates.
func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("must be RFC3339 or YYYY-MM-DD, got %q", raw)
	}
	return t, nil
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON response")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(response); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

type ValidationErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details"`
}

func formatValidationErrors(errs validator.ValidationErrors) map[string]string {
	details := make(map[string]string, len(errs))
	for _, fieldErr := range errs {
		switch fieldErr.Tag() {
		case "required":
			details[fieldErr.Field()] = "this field is required"
		case "required_if":
			details[fieldErr.Field()] = "this field is required for the selected delivery method"
		case "min":
			details[fieldErr.Field()] = "value is below the allowed minimum"
		case "oneof":
			details[fieldErr.Field()] = "value is not one of the allowed options"
		default:
			details[fieldErr.Field()] = "invalid value"
		}
	}
	return details
}

func mapErrorToStatusCode(err error) int {
	var validationErr *order.ValidationError
	var stockErr *order.InsufficientStockError
	var incompatibleErr *order.IncompatiblePaymentStatusError

	switch {
	case errors.Is(err, order.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, order.ErrProductNotFound):
		return http.StatusBadRequest
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &incompatibleErr):
		return http.StatusBadRequest
	case errors.As(err, &stockErr):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
