package models

import (
	"time"
)

// Booking is a guest's reservation of an apartment. Bookings are never erased;
// DeletedAt marks a soft-deleted booking.
type Booking struct {
	ID             int64      `json:"id"`
	ApartmentID    int64      `json:"apartment_id"`
	UserID         int64      `json:"user_id"`
	StartDate      Date       `json:"start_date"`
	EndDate        Date       `json:"end_date"`
	GuestsAdults   int        `json:"guests_adults"`
	GuestsChildren int        `json:"guests_children"`
	TotalPrice     int64      `json:"total_price"`
	Rating         *int       `json:"rating,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Range returns the stay as an inclusive date range.
func (b Booking) Range() DateRange {
	return DateRange{Start: b.StartDate, End: b.EndDate}
}

// IsDeleted reports whether the booking was soft-deleted.
func (b Booking) IsDeleted() bool {
	return b.DeletedAt != nil
}

// Rating bounds accepted from guests.
const (
	MinRating = 1
	MaxRating = 10
)
