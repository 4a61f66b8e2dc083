package booking

import (
	"sort"

	"github.com/property-booking/backend/internal/storage/models"
)

// Request is the party and optional stay a unit has to accommodate.
type Request struct {
	Adults   int
	Children int
	Stay     *models.DateRange
}

// Active reports whether the request constrains units at all. Missing guest
// counts are treated as zero once any criterion is given.
func (r Request) Active() bool {
	return r.Adults > 0 || r.Children > 0 || r.Stay != nil
}

// Accepts reports whether a unit fits the party and, when a stay is given,
// has no overlapping booking. Bookings must be loaded on the unit.
func (r Request) Accepts(a *models.Apartment) bool {
	if !a.Fits(r.Adults, r.Children) {
		return false
	}
	if r.Stay != nil && !IsAvailable(a.Bookings, *r.Stay) {
		return false
	}
	return true
}

// Qualifying returns the units accepting the request, smallest first:
// by adult capacity, then child capacity, then id.
func Qualifying(units []models.Apartment, req Request) []models.Apartment {
	var out []models.Apartment
	for i := range units {
		if req.Accepts(&units[i]) {
			out = append(out, units[i])
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.CapacityAdults != b.CapacityAdults {
			return a.CapacityAdults < b.CapacityAdults
		}
		if a.CapacityChildren != b.CapacityChildren {
			return a.CapacityChildren < b.CapacityChildren
		}
		return a.ID < b.ID
	})
	return out
}

// BestUnit returns the smallest unit accepting the request, or nil.
func BestUnit(units []models.Apartment, req Request) *models.Apartment {
	q := Qualifying(units, req)
	if len(q) == 0 {
		return nil
	}
	return &q[0]
}
