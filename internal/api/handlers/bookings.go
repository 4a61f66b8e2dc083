package handlers

import (
	"net/http"

	"github.com/property-booking/backend/internal/api/middleware"
	"github.com/property-booking/backend/internal/auth"
	"github.com/property-booking/backend/internal/booking"
	"github.com/property-booking/backend/internal/storage/models"
)

// CreateBookingRequest is the body of a booking request.
type CreateBookingRequest struct {
	ApartmentID    int64       `json:"apartment_id" validate:"required,gt=0"`
	StartDate      models.Date `json:"start_date"`
	EndDate        models.Date `json:"end_date"`
	GuestsAdults   int         `json:"guests_adults" validate:"gte=0,lte=100"`
	GuestsChildren int         `json:"guests_children" validate:"gte=0,lte=100"`
}

// RateBookingRequest sets or clears a rating. A null rating clears it.
type RateBookingRequest struct {
	Rating *int `json:"rating" validate:"omitempty,min=1,max=10"`
}

// ListBookings returns the caller's bookings.
func ListBookings(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())

		bookings, err := svc.List(r.Context(), p.UserID)
		if err != nil {
			writeServiceError(w, r, err, "bookings")
			return
		}
		if bookings == nil {
			bookings = []models.Booking{}
		}

		middleware.WriteJSON(w, http.StatusOK, bookings)
	}
}

// CreateBooking books an apartment for the caller.
func CreateBooking(svc *booking.Service, inv Invalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())

		var req CreateBookingRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.StartDate.IsZero() || req.EndDate.IsZero() {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "start_date and end_date are required")
			return
		}

		b, err := svc.Create(r.Context(), p.UserID, booking.CreateRequest{
			ApartmentID: req.ApartmentID,
			Stay:        models.DateRange{Start: req.StartDate, End: req.EndDate},
			Adults:      req.GuestsAdults,
			Children:    req.GuestsChildren,
		})
		if err != nil {
			writeServiceError(w, r, err, "booking")
			return
		}

		invalidate(r.Context(), inv)
		middleware.WriteJSON(w, http.StatusCreated, b)
	}
}

// RateBooking updates the rating of one of the caller's bookings.
func RateBooking(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())

		id, ok := pathID(w, r)
		if !ok {
			return
		}

		var req RateBookingRequest
		if !decodeBody(w, r, &req) {
			return
		}

		b, err := svc.Rate(r.Context(), p.UserID, id, req.Rating)
		if err != nil {
			writeServiceError(w, r, err, "booking")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, b)
	}
}

// CancelBooking soft-deletes one of the caller's bookings.
func CancelBooking(svc *booking.Service, inv Invalidator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := auth.FromContext(r.Context())

		id, ok := pathID(w, r)
		if !ok {
			return
		}

		if err := svc.Cancel(r.Context(), p.UserID, id); err != nil {
			writeServiceError(w, r, err, "booking")
			return
		}

		invalidate(r.Context(), inv)
		w.WriteHeader(http.StatusNoContent)
	}
}
