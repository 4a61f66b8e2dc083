package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/property-booking/backend/internal/storage/models"
)

// PropertyRepository provides data access for properties.
type PropertyRepository struct {
	BaseRepository
}

// NewPropertyRepository creates a new property repository.
func NewPropertyRepository(db *DB) *PropertyRepository {
	return &PropertyRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

const propertyColumns = `
	p.id, p.owner_id, p.name, p.city_id, p.address_street, p.address_postcode,
	p.lat, p.long, p.avg_rating, p.rating_count, p.created_at, p.updated_at,
	c.id, c.country_id, c.name, co.id, co.name, co.lat, co.long`

const propertyJoins = `
	FROM properties p
	JOIN cities c ON c.id = p.city_id
	JOIN countries co ON co.id = c.country_id`

func scanProperty(row interface{ Scan(...any) error }) (*models.Property, error) {
	p := &models.Property{City: &models.City{Country: &models.Country{}}}
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.CityID, &p.AddressStreet, &p.AddressPostcode,
		&p.Lat, &p.Long, &p.AvgRating, &p.RatingCount, &p.CreatedAt, &p.UpdatedAt,
		&p.City.ID, &p.City.CountryID, &p.City.Name,
		&p.City.Country.ID, &p.City.Country.Name, &p.City.Country.Lat, &p.City.Country.Long,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new property and links the given facilities to it.
func (r *PropertyRepository) Create(ctx context.Context, p *models.Property, facilityIDs []int64) error {
	p.CreatedAt = r.Now()
	p.UpdatedAt = p.CreatedAt

	return r.Transaction(ctx, func(tx *Tx) error {
		id, err := insertReturningID(ctx, tx, `
			INSERT INTO properties (
				owner_id, name, city_id, address_street, address_postcode,
				lat, long, rating_count, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
			RETURNING id
		`,
			p.OwnerID, p.Name, p.CityID, p.AddressStreet, p.AddressPostcode,
			p.Lat, p.Long, p.CreatedAt, p.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting property: %w", err)
		}
		p.ID = id

		for _, fid := range facilityIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO facility_property (facility_id, property_id) VALUES (?, ?)
			`, fid, p.ID); err != nil {
				return fmt.Errorf("linking facility %d: %w", fid, err)
			}
		}
		return nil
	})
}

// AttachFacilities links facilities to an existing property. Links that
// already exist are left untouched.
func (r *PropertyRepository) AttachFacilities(ctx context.Context, propertyID int64, facilityIDs ...int64) error {
	for _, fid := range facilityIDs {
		if _, err := r.DB().ExecContext(ctx, `
			INSERT INTO facility_property (facility_id, property_id) VALUES (?, ?)
			ON CONFLICT (facility_id, property_id) DO NOTHING
		`, fid, propertyID); err != nil {
			return fmt.Errorf("linking facility %d: %w", fid, err)
		}
	}
	return nil
}

// GetByID retrieves a property with its city and country.
func (r *PropertyRepository) GetByID(ctx context.Context, id int64) (*models.Property, error) {
	p, err := scanProperty(r.DB().QueryRowContext(ctx,
		"SELECT "+propertyColumns+propertyJoins+" WHERE p.id = ?", id))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying property: %w", err)
	}

	return p, nil
}

// ListByIDs retrieves the given properties in the order of ids.
// Unknown ids are skipped.
func (r *PropertyRepository) ListByIDs(ctx context.Context, ids []int64) ([]models.Property, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.DB().QueryContext(ctx,
		"SELECT "+propertyColumns+propertyJoins+" WHERE p.id IN ("+Placeholders(len(ids))+")",
		int64Args(ids)...)
	if err != nil {
		return nil, fmt.Errorf("querying properties: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]*models.Property, len(ids))
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning property: %w", err)
		}
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	properties := make([]models.Property, 0, len(byID))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			properties = append(properties, *p)
		}
	}
	return properties, nil
}

// ListIDs returns the ids of all properties.
func (r *PropertyRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.DB().QueryContext(ctx, "SELECT id FROM properties ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying property ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning property id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetRating stores the materialized average rating of a property.
// A nil average marks the property as unrated.
func (r *PropertyRepository) SetRating(ctx context.Context, id int64, avg *float64, count int) error {
	result, err := r.DB().ExecContext(ctx, `
		UPDATE properties SET avg_rating = ?, rating_count = ?, updated_at = ? WHERE id = ?
	`, avg, count, r.Now(), id)
	if err != nil {
		return fmt.Errorf("updating property rating: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}
