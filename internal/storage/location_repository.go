package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/property-booking/backend/internal/storage/models"
)

// LocationRepository provides data access for countries, cities and geoobjects.
type LocationRepository struct {
	BaseRepository
}

// NewLocationRepository creates a new location repository.
func NewLocationRepository(db *DB) *LocationRepository {
	return &LocationRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// CreateCountry inserts a new country.
func (r *LocationRepository) CreateCountry(ctx context.Context, c *models.Country) error {
	id, err := insertReturningID(ctx, r.DB(), `
		INSERT INTO countries (name, lat, long) VALUES (?, ?, ?) RETURNING id
	`, c.Name, c.Lat, c.Long)
	if err != nil {
		return fmt.Errorf("inserting country: %w", err)
	}
	c.ID = id
	return nil
}

// CreateCity inserts a new city.
func (r *LocationRepository) CreateCity(ctx context.Context, c *models.City) error {
	id, err := insertReturningID(ctx, r.DB(), `
		INSERT INTO cities (country_id, name) VALUES (?, ?) RETURNING id
	`, c.CountryID, c.Name)
	if err != nil {
		return fmt.Errorf("inserting city: %w", err)
	}
	c.ID = id
	return nil
}

// CreateGeoobject inserts a new point of interest.
func (r *LocationRepository) CreateGeoobject(ctx context.Context, g *models.Geoobject) error {
	id, err := insertReturningID(ctx, r.DB(), `
		INSERT INTO geoobjects (city_id, name, lat, long) VALUES (?, ?, ?, ?) RETURNING id
	`, g.CityID, g.Name, g.Lat, g.Long)
	if err != nil {
		return fmt.Errorf("inserting geoobject: %w", err)
	}
	g.ID = id
	return nil
}

// GetGeoobject retrieves a geoobject by its ID.
func (r *LocationRepository) GetGeoobject(ctx context.Context, id int64) (*models.Geoobject, error) {
	g := &models.Geoobject{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, city_id, name, lat, long FROM geoobjects WHERE id = ?
	`, id).Scan(&g.ID, &g.CityID, &g.Name, &g.Lat, &g.Long)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying geoobject: %w", err)
	}

	return g, nil
}

// GetCity retrieves a city together with its country.
func (r *LocationRepository) GetCity(ctx context.Context, id int64) (*models.City, error) {
	city := &models.City{Country: &models.Country{}}

	err := r.DB().QueryRowContext(ctx, `
		SELECT c.id, c.country_id, c.name, co.id, co.name, co.lat, co.long
		FROM cities c
		JOIN countries co ON co.id = c.country_id
		WHERE c.id = ?
	`, id).Scan(
		&city.ID, &city.CountryID, &city.Name,
		&city.Country.ID, &city.Country.Name, &city.Country.Lat, &city.Country.Long,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying city: %w", err)
	}

	return city, nil
}
