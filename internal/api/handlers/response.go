package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/wonny/krxvalue/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// statusFor maps the domain error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, contracts.ErrInvalidParameter):
		return http.StatusBadRequest
	case errors.Is(err, contracts.ErrNoDataAvailable):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func errInvalidNumber(key, raw string) error {
	return fmt.Errorf("%w: %s must be a number (got %q)", contracts.ErrInvalidParameter, key, raw)
}
