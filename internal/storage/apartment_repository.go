package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/property-booking/backend/internal/storage/models"
)

// ApartmentRepository provides data access for apartments, their pricing
// periods, rooms and beds.
type ApartmentRepository struct {
	BaseRepository
}

// NewApartmentRepository creates a new apartment repository.
func NewApartmentRepository(db *DB) *ApartmentRepository {
	return &ApartmentRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const apartmentColumns = `
	id, property_id, name, capacity_adults, capacity_children, size, apartment_type, created_at`

func scanApartment(row interface{ Scan(...any) error }, a *models.Apartment) error {
	return row.Scan(
		&a.ID, &a.PropertyID, &a.Name, &a.CapacityAdults, &a.CapacityChildren,
		&a.Size, &a.ApartmentType, &a.CreatedAt,
	)
}

// Create inserts a new apartment and links the given facilities to it.
func (r *ApartmentRepository) Create(ctx context.Context, a *models.Apartment, facilityIDs []int64) error {
	a.CreatedAt = r.Now()

	return r.Transaction(ctx, func(tx *Tx) error {
		id, err := insertReturningID(ctx, tx, `
			INSERT INTO apartments (
				property_id, name, capacity_adults, capacity_children, size, apartment_type, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
			RETURNING id
		`,
			a.PropertyID, a.Name, a.CapacityAdults, a.CapacityChildren,
			a.Size, a.ApartmentType, a.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting apartment: %w", err)
		}
		a.ID = id

		for _, fid := range facilityIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO apartment_facility (apartment_id, facility_id) VALUES (?, ?)
			`, a.ID, fid); err != nil {
				return fmt.Errorf("linking facility %d: %w", fid, err)
			}
		}
		return nil
	})
}

// GetByID retrieves an apartment by its ID.
func (r *ApartmentRepository) GetByID(ctx context.Context, id int64) (*models.Apartment, error) {
	a := &models.Apartment{}

	err := scanApartment(r.DB().QueryRowContext(ctx,
		"SELECT "+apartmentColumns+" FROM apartments WHERE id = ?", id), a)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying apartment: %w", err)
	}

	return a, nil
}

// ListByProperties retrieves the apartments of the given properties,
// ordered by property then id.
func (r *ApartmentRepository) ListByProperties(ctx context.Context, propertyIDs []int64) ([]models.Apartment, error) {
	if len(propertyIDs) == 0 {
		return nil, nil
	}

	rows, err := r.DB().QueryContext(ctx,
		"SELECT "+apartmentColumns+" FROM apartments WHERE property_id IN ("+
			Placeholders(len(propertyIDs))+") ORDER BY property_id, id",
		int64Args(propertyIDs)...)
	if err != nil {
		return nil, fmt.Errorf("querying apartments: %w", err)
	}
	defer rows.Close()

	var apartments []models.Apartment
	for rows.Next() {
		var a models.Apartment
		if err := scanApartment(rows, &a); err != nil {
			return nil, fmt.Errorf("scanning apartment: %w", err)
		}
		apartments = append(apartments, a)
	}

	return apartments, rows.Err()
}

// AddPrice inserts a pricing period for an apartment.
func (r *ApartmentRepository) AddPrice(ctx context.Context, p *models.PricingPeriod) error {
	id, err := insertReturningID(ctx, r.DB(), `
		INSERT INTO apartment_prices (apartment_id, start_date, end_date, price)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, p.ApartmentID, p.StartDate, p.EndDate, p.Price)
	if err != nil {
		return fmt.Errorf("inserting apartment price: %w", err)
	}
	p.ID = id
	return nil
}

// ListPrices retrieves the pricing periods of the given apartments in
// storage order, keyed by apartment id.
func (r *ApartmentRepository) ListPrices(ctx context.Context, apartmentIDs []int64) (map[int64][]models.PricingPeriod, error) {
	prices := make(map[int64][]models.PricingPeriod)
	if len(apartmentIDs) == 0 {
		return prices, nil
	}

	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, apartment_id, start_date, end_date, price
		FROM apartment_prices
		WHERE apartment_id IN (`+Placeholders(len(apartmentIDs))+`)
		ORDER BY id
	`, int64Args(apartmentIDs)...)
	if err != nil {
		return nil, fmt.Errorf("querying apartment prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.PricingPeriod
		if err := rows.Scan(&p.ID, &p.ApartmentID, &p.StartDate, &p.EndDate, &p.Price); err != nil {
			return nil, fmt.Errorf("scanning apartment price: %w", err)
		}
		prices[p.ApartmentID] = append(prices[p.ApartmentID], p)
	}

	return prices, rows.Err()
}

// AddRoom inserts a room and its beds.
func (r *ApartmentRepository) AddRoom(ctx context.Context, room *models.Room) error {
	return r.Transaction(ctx, func(tx *Tx) error {
		id, err := insertReturningID(ctx, tx, `
			INSERT INTO rooms (apartment_id, room_type_id, name) VALUES (?, ?, ?) RETURNING id
		`, room.ApartmentID, room.RoomTypeID, room.Name)
		if err != nil {
			return fmt.Errorf("inserting room: %w", err)
		}
		room.ID = id

		for i := range room.Beds {
			bed := &room.Beds[i]
			bed.RoomID = room.ID
			bedID, err := insertReturningID(ctx, tx, `
				INSERT INTO beds (room_id, bed_type_id) VALUES (?, ?) RETURNING id
			`, bed.RoomID, bed.BedTypeID)
			if err != nil {
				return fmt.Errorf("inserting bed: %w", err)
			}
			bed.ID = bedID
		}
		return nil
	})
}

// ListBeds retrieves one entry per bed of the given apartments, in room then
// bed order, keyed by apartment id.
func (r *ApartmentRepository) ListBeds(ctx context.Context, apartmentIDs []int64) (map[int64][]models.BedTypeRef, error) {
	beds := make(map[int64][]models.BedTypeRef)
	if len(apartmentIDs) == 0 {
		return beds, nil
	}

	rows, err := r.DB().QueryContext(ctx, `
		SELECT r.apartment_id, bt.id, bt.name
		FROM rooms r
		JOIN beds b ON b.room_id = r.id
		JOIN bed_types bt ON bt.id = b.bed_type_id
		WHERE r.apartment_id IN (`+Placeholders(len(apartmentIDs))+`)
		ORDER BY r.id, b.id
	`, int64Args(apartmentIDs)...)
	if err != nil {
		return nil, fmt.Errorf("querying beds: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			apartmentID int64
			ref         models.BedTypeRef
		)
		if err := rows.Scan(&apartmentID, &ref.BedTypeID, &ref.Name); err != nil {
			return nil, fmt.Errorf("scanning bed: %w", err)
		}
		beds[apartmentID] = append(beds[apartmentID], ref)
	}

	return beds, rows.Err()
}
