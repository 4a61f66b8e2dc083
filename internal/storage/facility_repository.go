package storage

import (
	"context"
	"fmt"

	"github.com/property-booking/backend/internal/storage/models"
)

// FacilityRepository provides data access for facilities and their categories.
type FacilityRepository struct {
	BaseRepository
}

// NewFacilityRepository creates a new facility repository.
func NewFacilityRepository(db *DB) *FacilityRepository {
	return &FacilityRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// CreateCategory inserts a new facility category.
func (r *FacilityRepository) CreateCategory(ctx context.Context, c *models.FacilityCategory) error {
	id, err := insertReturningID(ctx, r.DB(), `
		INSERT INTO facility_categories (name) VALUES (?) RETURNING id
	`, c.Name)
	if err != nil {
		return fmt.Errorf("inserting facility category: %w", err)
	}
	c.ID = id
	return nil
}

// Create inserts a new facility.
func (r *FacilityRepository) Create(ctx context.Context, f *models.Facility) error {
	id, err := insertReturningID(ctx, r.DB(), `
		INSERT INTO facilities (category_id, name) VALUES (?, ?) RETURNING id
	`, f.CategoryID, f.Name)
	if err != nil {
		return fmt.Errorf("inserting facility: %w", err)
	}
	f.ID = id
	return nil
}

// ListByProperty retrieves the facilities linked to a property.
func (r *FacilityRepository) ListByProperty(ctx context.Context, propertyID int64) ([]models.Facility, error) {
	return r.list(ctx, `
		SELECT f.id, f.category_id, f.name, fc.name
		FROM facility_property fp
		JOIN facilities f ON f.id = fp.facility_id
		LEFT JOIN facility_categories fc ON fc.id = f.category_id
		WHERE fp.property_id = ?
		ORDER BY f.id
	`, propertyID)
}

// ListByApartment retrieves the facilities linked to an apartment.
func (r *FacilityRepository) ListByApartment(ctx context.Context, apartmentID int64) ([]models.Facility, error) {
	return r.list(ctx, `
		SELECT f.id, f.category_id, f.name, fc.name
		FROM apartment_facility af
		JOIN facilities f ON f.id = af.facility_id
		LEFT JOIN facility_categories fc ON fc.id = f.category_id
		WHERE af.apartment_id = ?
		ORDER BY fc.name, f.id
	`, apartmentID)
}

func (r *FacilityRepository) list(ctx context.Context, query string, args ...any) ([]models.Facility, error) {
	rows, err := r.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facilities: %w", err)
	}
	defer rows.Close()

	var facilities []models.Facility
	for rows.Next() {
		var f models.Facility
		if err := rows.Scan(&f.ID, &f.CategoryID, &f.Name, &f.Category); err != nil {
			return nil, fmt.Errorf("scanning facility: %w", err)
		}
		facilities = append(facilities, f)
	}

	return facilities, rows.Err()
}
