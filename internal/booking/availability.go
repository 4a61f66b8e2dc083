// Package booking decides which apartments can host a stay and manages
// guest bookings.
package booking

import (
	"context"
	"fmt"

	"github.com/property-booking/backend/internal/pricing"
	"github.com/property-booking/backend/internal/storage/models"
)

// IsAvailable reports whether none of the non-deleted bookings overlap the
// stay. Both ranges are inclusive, so a booking ending on the first day of
// the stay blocks it.
func IsAvailable(bookings []models.Booking, stay models.DateRange) bool {
	for _, b := range bookings {
		if b.IsDeleted() {
			continue
		}
		if b.Range().Overlaps(stay) {
			return false
		}
	}
	return true
}

// OverlapFinder returns the non-deleted bookings of the given apartments
// that overlap a stay, keyed by apartment id.
type OverlapFinder func(ctx context.Context, apartmentIDs []int64, stay models.DateRange) (map[int64][]models.Booking, error)

// AvailabilityChecker detects bookings that conflict with a requested stay.
type AvailabilityChecker struct {
	findOverlapping OverlapFinder
}

// NewAvailabilityChecker creates a new availability checker.
func NewAvailabilityChecker(find OverlapFinder) *AvailabilityChecker {
	return &AvailabilityChecker{
		findOverlapping: find,
	}
}

// Conflict describes an existing booking that overlaps a requested stay.
type Conflict struct {
	BookingID    int64       `json:"booking_id"`
	OverlapStart models.Date `json:"overlap_start"`
	OverlapEnd   models.Date `json:"overlap_end"`
}

// CheckConflicts lists the bookings of an apartment that overlap the stay.
func (c *AvailabilityChecker) CheckConflicts(ctx context.Context, apartmentID int64, stay models.DateRange) ([]Conflict, error) {
	if !stay.Valid() {
		return nil, pricing.ErrInvalidRange
	}

	found, err := c.findOverlapping(ctx, []int64{apartmentID}, stay)
	if err != nil {
		return nil, fmt.Errorf("checking conflicts: %w", err)
	}

	var conflicts []Conflict
	for _, b := range found[apartmentID] {
		if b.IsDeleted() || !b.Range().Overlaps(stay) {
			continue
		}

		overlapStart := stay.Start
		if b.StartDate.After(overlapStart) {
			overlapStart = b.StartDate
		}

		overlapEnd := stay.End
		if b.EndDate.Before(overlapEnd) {
			overlapEnd = b.EndDate
		}

		conflicts = append(conflicts, Conflict{
			BookingID:    b.ID,
			OverlapStart: overlapStart,
			OverlapEnd:   overlapEnd,
		})
	}

	return conflicts, nil
}

// IsAvailable returns true if no booking of the apartment overlaps the stay.
func (c *AvailabilityChecker) IsAvailable(ctx context.Context, apartmentID int64, stay models.DateRange) (bool, error) {
	conflicts, err := c.CheckConflicts(ctx, apartmentID, stay)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}
