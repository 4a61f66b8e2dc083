package models

import (
	"time"
)

// Apartment is a bookable unit of a property.
type Apartment struct {
	ID               int64     `json:"id"`
	PropertyID       int64     `json:"property_id"`
	Name             string    `json:"name"`
	CapacityAdults   int       `json:"capacity_adults"`
	CapacityChildren int       `json:"capacity_children"`
	Size             *int      `json:"size,omitempty"`
	ApartmentType    *string   `json:"apartment_type,omitempty"`
	CreatedAt        time.Time `json:"created_at"`

	// Hydrated on demand by the repositories; nil when not loaded.
	Prices     []PricingPeriod `json:"-"`
	Bookings   []Booking       `json:"-"`
	Beds       []BedTypeRef    `json:"-"`
	Facilities []Facility      `json:"-"`
}

// Fits reports whether the unit can host the given party.
func (a *Apartment) Fits(adults, children int) bool {
	return a.CapacityAdults >= adults && a.CapacityChildren >= children
}

// PricingPeriod is a nightly rate valid for an inclusive range of dates.
type PricingPeriod struct {
	ID          int64 `json:"id"`
	ApartmentID int64 `json:"apartment_id"`
	StartDate   Date  `json:"start_date"`
	EndDate     Date  `json:"end_date"`
	Price       int64 `json:"price"`
}

// Range returns the period's dates as an inclusive range.
func (p PricingPeriod) Range() DateRange {
	return DateRange{Start: p.StartDate, End: p.EndDate}
}

// Covers reports whether the period applies to day d.
func (p PricingPeriod) Covers(d Date) bool {
	return p.Range().Contains(d)
}
