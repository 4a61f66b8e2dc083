package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/property-booking/backend/internal/api/middleware"
	"github.com/property-booking/backend/internal/booking"
	"github.com/property-booking/backend/internal/pricing"
	"github.com/property-booking/backend/internal/storage"
)

var validate = validator.New()

// Invalidator discards cached search results after catalog changes.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

func invalidate(ctx context.Context, inv Invalidator) {
	if inv != nil {
		inv.Invalidate(ctx)
	}
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// pathID parses the {id} route variable. It writes a 400 and returns false
// when the id is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

// optIDList parses the ids of a parameter given as repeated or
// comma-separated values.
func optIDList(name string, values ...string) ([]int64, error) {
	var ids []int64
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, &paramError{name: name, value: part}
			}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// decodeBody decodes a JSON request body into dst and validates it. It
// writes the error response and returns false on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
		return false
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return false
		}
		details := make([]FieldError, len(verrs))
		for i, fe := range verrs {
			details[i] = FieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()}
		}
		middleware.WriteErrorWithDetails(w, http.StatusUnprocessableEntity, middleware.ErrValidation, "Request validation failed", details)
		return false
	}
	return true
}

// writeServiceError maps domain errors to HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, what+" not found")
	case errors.Is(err, pricing.ErrInvalidRange):
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrInvalidRange, err.Error())
	case errors.Is(err, booking.ErrUnavailable):
		middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, err.Error())
	case errors.Is(err, booking.ErrCapacityExceeded):
		middleware.WriteError(w, http.StatusUnprocessableEntity, middleware.ErrValidation, err.Error())
	case errors.Is(err, booking.ErrNotOwner):
		middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, err.Error())
	default:
		log.Printf("[%s] Error handling %s %s: %v", middleware.RequestID(r.Context()), r.Method, r.URL.Path, err)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to process "+what)
	}
}
