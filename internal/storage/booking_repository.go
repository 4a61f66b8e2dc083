package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/property-booking/backend/internal/storage/models"
)

// BookingRepository provides data access for bookings.
// All reads exclude soft-deleted bookings.
type BookingRepository struct {
	BaseRepository
}

// NewBookingRepository creates a new booking repository.
func NewBookingRepository(db *DB) *BookingRepository {
	return &BookingRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const bookingColumns = `
	id, apartment_id, user_id, start_date, end_date, guests_adults, guests_children,
	total_price, rating, created_at, updated_at, deleted_at`

func scanBooking(row interface{ Scan(...any) error }, b *models.Booking) error {
	return row.Scan(
		&b.ID, &b.ApartmentID, &b.UserID, &b.StartDate, &b.EndDate,
		&b.GuestsAdults, &b.GuestsChildren, &b.TotalPrice, &b.Rating,
		&b.CreatedAt, &b.UpdatedAt, &b.DeletedAt,
	)
}

// Create inserts a new booking.
func (r *BookingRepository) Create(ctx context.Context, b *models.Booking) error {
	b.CreatedAt = r.Now()
	b.UpdatedAt = b.CreatedAt

	id, err := insertReturningID(ctx, r.DB(), `
		INSERT INTO bookings (
			apartment_id, user_id, start_date, end_date, guests_adults, guests_children,
			total_price, rating, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`,
		b.ApartmentID, b.UserID, b.StartDate, b.EndDate, b.GuestsAdults, b.GuestsChildren,
		b.TotalPrice, b.Rating, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting booking: %w", err)
	}
	b.ID = id

	return nil
}

// GetByID retrieves a booking by its ID.
func (r *BookingRepository) GetByID(ctx context.Context, id int64) (*models.Booking, error) {
	b := &models.Booking{}

	err := scanBooking(r.DB().QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE id = ? AND deleted_at IS NULL", id), b)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying booking: %w", err)
	}

	return b, nil
}

// ListByUser retrieves a user's bookings, most recent stay first.
func (r *BookingRepository) ListByUser(ctx context.Context, userID int64) ([]models.Booking, error) {
	rows, err := r.DB().QueryContext(ctx,
		"SELECT "+bookingColumns+` FROM bookings
		WHERE user_id = ? AND deleted_at IS NULL
		ORDER BY start_date DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		bookings = append(bookings, b)
	}

	return bookings, rows.Err()
}

// ListOverlapping retrieves the bookings of the given apartments whose stay
// overlaps the inclusive range, keyed by apartment id.
func (r *BookingRepository) ListOverlapping(ctx context.Context, apartmentIDs []int64, stay models.DateRange) (map[int64][]models.Booking, error) {
	bookings := make(map[int64][]models.Booking)
	if len(apartmentIDs) == 0 {
		return bookings, nil
	}

	args := append(int64Args(apartmentIDs), stay.End, stay.Start)
	rows, err := r.DB().QueryContext(ctx,
		"SELECT "+bookingColumns+` FROM bookings
		WHERE apartment_id IN (`+Placeholders(len(apartmentIDs))+`)
		  AND deleted_at IS NULL
		  AND start_date <= ? AND end_date >= ?
		ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying overlapping bookings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b models.Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, fmt.Errorf("scanning booking: %w", err)
		}
		bookings[b.ApartmentID] = append(bookings[b.ApartmentID], b)
	}

	return bookings, rows.Err()
}

// SetRating updates the guest rating of a booking. A nil rating clears it.
func (r *BookingRepository) SetRating(ctx context.Context, id int64, rating *int) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE bookings SET rating = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL
	`, rating, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating booking rating: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// SoftDelete marks a booking as deleted.
func (r *BookingRepository) SoftDelete(ctx context.Context, id int64) error {
	now := r.Now()
	result, err := r.DB().ExecContext(ctx, `
		UPDATE bookings SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL
	`, now, now, id)
	if err != nil {
		return fmt.Errorf("deleting booking: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// RatingsForProperty retrieves the non-null ratings of all non-deleted
// bookings across the property's apartments.
func (r *BookingRepository) RatingsForProperty(ctx context.Context, propertyID int64) ([]int, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT b.rating
		FROM bookings b
		JOIN apartments a ON a.id = b.apartment_id
		WHERE a.property_id = ? AND b.deleted_at IS NULL AND b.rating IS NOT NULL
		ORDER BY b.id
	`, propertyID)
	if err != nil {
		return nil, fmt.Errorf("querying ratings: %w", err)
	}
	defer rows.Close()

	var ratings []int
	for rows.Next() {
		var rating int
		if err := rows.Scan(&rating); err != nil {
			return nil, fmt.Errorf("scanning rating: %w", err)
		}
		ratings = append(ratings, rating)
	}

	return ratings, rows.Err()
}
