// Package rating maintains each property's average guest rating.
//
// Ratings change when a guest rates or cancels a booking. Those changes only
// enqueue a recalculation; a worker later stores the new average on the
// property, so readers may briefly see a stale value.
package rating

import (
	"context"
	"fmt"
	"log"

	"github.com/property-booking/backend/internal/storage"
)

// Average returns the arithmetic mean of the ratings, or nil when there are
// none. A property without ratings is unrated, which is not the same as 0.
func Average(ratings []int) *float64 {
	if len(ratings) == 0 {
		return nil
	}

	sum := 0
	for _, r := range ratings {
		sum += r
	}
	avg := float64(sum) / float64(len(ratings))
	return &avg
}

// Queue schedules asynchronous recalculations.
type Queue interface {
	Enqueue(ctx context.Context, propertyID int64) error
}

// UpdateFunc is called after a property's average has been stored.
type UpdateFunc func(propertyID int64, avg *float64, count int)

// Recalculator recomputes and stores average ratings.
type Recalculator struct {
	properties *storage.PropertyRepository
	bookings   *storage.BookingRepository
	onUpdate   []UpdateFunc
}

// NewRecalculator creates a new recalculator.
func NewRecalculator(properties *storage.PropertyRepository, bookings *storage.BookingRepository) *Recalculator {
	return &Recalculator{
		properties: properties,
		bookings:   bookings,
	}
}

// OnUpdate registers fn to run after every stored recalculation.
// Register callbacks before the recalculator is shared with workers.
func (r *Recalculator) OnUpdate(fn UpdateFunc) {
	r.onUpdate = append(r.onUpdate, fn)
}

// Recalculate stores the current average rating of one property. It is
// idempotent, so running a job twice is harmless.
func (r *Recalculator) Recalculate(ctx context.Context, propertyID int64) error {
	ratings, err := r.bookings.RatingsForProperty(ctx, propertyID)
	if err != nil {
		return fmt.Errorf("loading ratings: %w", err)
	}

	avg := Average(ratings)
	if err := r.properties.SetRating(ctx, propertyID, avg, len(ratings)); err != nil {
		return fmt.Errorf("storing rating of property %d: %w", propertyID, err)
	}

	for _, fn := range r.onUpdate {
		fn(propertyID, avg, len(ratings))
	}
	return nil
}

// ResyncAll recalculates every property. Failures are logged and counted;
// the first one is returned after all properties were attempted.
func (r *Recalculator) ResyncAll(ctx context.Context) (int, error) {
	ids, err := r.properties.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	var firstErr error
	updated := 0
	for _, id := range ids {
		if err := r.Recalculate(ctx, id); err != nil {
			log.Printf("Rating resync failed for property %d: %v", id, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		updated++
	}

	return updated, firstErr
}
