package booking

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/property-booking/backend/internal/pricing"
	"github.com/property-booking/backend/internal/storage"
	"github.com/property-booking/backend/internal/storage/models"
)

var (
	// ErrUnavailable is returned when the apartment is already booked for part of the stay.
	ErrUnavailable = errors.New("apartment is not available for the requested dates")

	// ErrCapacityExceeded is returned when the party does not fit the apartment.
	ErrCapacityExceeded = errors.New("apartment cannot host the requested guests")

	// ErrNotOwner is returned when a user acts on someone else's booking.
	ErrNotOwner = errors.New("booking belongs to another user")
)

// RatingQueue schedules an asynchronous average-rating recalculation.
type RatingQueue interface {
	Enqueue(ctx context.Context, propertyID int64) error
}

// Notifier publishes booking events to connected clients.
type Notifier interface {
	BroadcastBookingCreated(b models.Booking, propertyID int64)
	BroadcastBookingCancelled(b models.Booking, propertyID int64)
}

// CreateRequest describes a new booking.
type CreateRequest struct {
	ApartmentID int64
	Stay        models.DateRange
	Adults      int
	Children    int
}

// Service creates, rates and cancels bookings.
//
// Availability is checked when the booking is read, not under a lock, so two
// concurrent requests for the same dates can both succeed.
type Service struct {
	apartments *storage.ApartmentRepository
	bookings   *storage.BookingRepository
	checker    *AvailabilityChecker
	queue      RatingQueue
	events     Notifier
}

// NewService creates a new booking service. events may be nil.
func NewService(
	apartments *storage.ApartmentRepository,
	bookings *storage.BookingRepository,
	queue RatingQueue,
	events Notifier,
) *Service {
	return &Service{
		apartments: apartments,
		bookings:   bookings,
		checker:    NewAvailabilityChecker(bookings.ListOverlapping),
		queue:      queue,
		events:     events,
	}
}

// Create books an apartment for a user at the price quoted now.
func (s *Service) Create(ctx context.Context, userID int64, req CreateRequest) (*models.Booking, error) {
	if !req.Stay.Valid() {
		return nil, pricing.ErrInvalidRange
	}

	apt, err := s.apartments.GetByID(ctx, req.ApartmentID)
	if err != nil {
		return nil, err
	}
	if !apt.Fits(req.Adults, req.Children) {
		return nil, ErrCapacityExceeded
	}

	available, err := s.checker.IsAvailable(ctx, apt.ID, req.Stay)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, ErrUnavailable
	}

	prices, err := s.apartments.ListPrices(ctx, []int64{apt.ID})
	if err != nil {
		return nil, fmt.Errorf("loading prices: %w", err)
	}
	total, err := pricing.Price(prices[apt.ID], req.Stay)
	if err != nil {
		return nil, err
	}

	b := &models.Booking{
		ApartmentID:    apt.ID,
		UserID:         userID,
		StartDate:      req.Stay.Start,
		EndDate:        req.Stay.End,
		GuestsAdults:   req.Adults,
		GuestsChildren: req.Children,
		TotalPrice:     total,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		return nil, err
	}

	log.Printf("Booking %d created: apartment=%d user=%d %s..%s", b.ID, apt.ID, userID, b.StartDate, b.EndDate)
	if s.events != nil {
		s.events.BroadcastBookingCreated(*b, apt.PropertyID)
	}

	return b, nil
}

// List returns the user's bookings.
func (s *Service) List(ctx context.Context, userID int64) ([]models.Booking, error) {
	return s.bookings.ListByUser(ctx, userID)
}

// Get returns one of the user's bookings.
func (s *Service) Get(ctx context.Context, userID, bookingID int64) (*models.Booking, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrNotOwner
	}
	return b, nil
}

// Rate sets or clears the user's rating of a booking. A changed rating
// schedules a recalculation of the property's average.
func (s *Service) Rate(ctx context.Context, userID, bookingID int64, rating *int) (*models.Booking, error) {
	b, err := s.Get(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}

	if sameRating(b.Rating, rating) {
		return b, nil
	}

	if err := s.bookings.SetRating(ctx, b.ID, rating); err != nil {
		return nil, err
	}
	b.Rating = rating

	s.enqueueRating(ctx, b.ApartmentID)
	return b, nil
}

// Cancel soft-deletes one of the user's bookings.
func (s *Service) Cancel(ctx context.Context, userID, bookingID int64) error {
	b, err := s.Get(ctx, userID, bookingID)
	if err != nil {
		return err
	}

	if err := s.bookings.SoftDelete(ctx, b.ID); err != nil {
		return err
	}
	log.Printf("Booking %d cancelled by user %d", b.ID, userID)

	propertyID := s.enqueueRating(ctx, b.ApartmentID)
	if s.events != nil && propertyID != 0 {
		s.events.BroadcastBookingCancelled(*b, propertyID)
	}
	return nil
}

// enqueueRating schedules a recalculation for the apartment's property and
// returns the property id. Failures are logged; the periodic resync catches
// anything that was not enqueued.
func (s *Service) enqueueRating(ctx context.Context, apartmentID int64) int64 {
	apt, err := s.apartments.GetByID(ctx, apartmentID)
	if err != nil {
		log.Printf("Error loading apartment %d for rating recalculation: %v", apartmentID, err)
		return 0
	}

	if err := s.queue.Enqueue(ctx, apt.PropertyID); err != nil {
		log.Printf("Error enqueuing rating recalculation for property %d: %v", apt.PropertyID, err)
	}
	return apt.PropertyID
}

func sameRating(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
