// Package search finds available properties and summarizes the results.
//
// A search narrows the catalog with a fixed list of filters compiled into a
// single SQL statement, ranks the matches by average rating, counts
// top-level facilities over the whole match set and hydrates one page of
// properties with their best-fitting apartment.
package search

import (
	"fmt"
	"sort"

	"github.com/property-booking/backend/internal/storage"
	"github.com/property-booking/backend/internal/storage/models"
)

// EarthRadiusKm is the mean Earth radius used by the distance formula.
const EarthRadiusKm = 6371.0

// GeoRadiusKm is the radius around a geoobject that a property must fall inside.
const GeoRadiusKm = 10.0

// Clause is a SQL condition over properties aliased p joined to cities aliased c.
type Clause struct {
	SQL  string
	Args []any
}

// Filter is one optional search predicate. Clause returns false when the
// filter cannot or need not constrain the query.
type Filter interface {
	Name() string
	Clause(d storage.Dialect) (Clause, bool)
}

// CityFilter keeps properties located in one city.
type CityFilter struct {
	CityID int64
}

func (f CityFilter) Name() string { return "city" }

func (f CityFilter) Clause(storage.Dialect) (Clause, bool) {
	return Clause{SQL: "p.city_id = ?", Args: []any{f.CityID}}, true
}

// CountryFilter keeps properties whose city belongs to one country.
type CountryFilter struct {
	CountryID int64
}

func (f CountryFilter) Name() string { return "country" }

func (f CountryFilter) Clause(storage.Dialect) (Clause, bool) {
	return Clause{SQL: "c.country_id = ?", Args: []any{f.CountryID}}, true
}

// GeoFilter keeps properties closer than RadiusKm to a point by great-circle
// distance. Backends without trigonometric functions skip it.
type GeoFilter struct {
	Lat      float64
	Long     float64
	RadiusKm float64
}

func (f GeoFilter) Name() string { return "geo" }

func (f GeoFilter) Clause(d storage.Dialect) (Clause, bool) {
	if !d.SupportsTrig {
		return Clause{}, false
	}

	cosine := "cos(radians(?)) * cos(radians(p.lat)) * cos(radians(p.long) - radians(?))" +
		" + sin(radians(?)) * sin(radians(p.lat))"
	// Rounding can push the cosine just past ±1, where acos is undefined.
	clamped := d.Greatest(d.Least(cosine, "1"), "-1")

	radius := f.RadiusKm
	if radius <= 0 {
		radius = GeoRadiusKm
	}

	return Clause{
		SQL:  fmt.Sprintf("%g * acos(%s) < ?", EarthRadiusKm, clamped),
		Args: []any{f.Lat, f.Long, f.Lat, radius},
	}, true
}

// UnitFilter keeps properties with at least one apartment that fits the
// party and, when a stay is given, has no overlapping booking.
type UnitFilter struct {
	Adults   int
	Children int
	Stay     *models.DateRange
}

func (f UnitFilter) Name() string { return "unit" }

func (f UnitFilter) Clause(storage.Dialect) (Clause, bool) {
	sql := `EXISTS (
		SELECT 1 FROM apartments a
		WHERE a.property_id = p.id
		  AND a.capacity_adults >= ?
		  AND a.capacity_children >= ?`
	args := []any{f.Adults, f.Children}

	if f.Stay != nil {
		sql += `
		  AND NOT EXISTS (
			SELECT 1 FROM bookings b
			WHERE b.apartment_id = a.id
			  AND b.deleted_at IS NULL
			  AND b.start_date <= ?
			  AND b.end_date >= ?
		  )`
		args = append(args, f.Stay.End, f.Stay.Start)
	}

	return Clause{SQL: sql + "\n\t)", Args: args}, true
}

// FacilityFilter keeps properties that have every listed facility.
type FacilityFilter struct {
	FacilityIDs []int64
}

func (f FacilityFilter) Name() string { return "facilities" }

func (f FacilityFilter) Clause(storage.Dialect) (Clause, bool) {
	ids := uniqueIDs(f.FacilityIDs)
	if len(ids) == 0 {
		return Clause{}, false
	}

	var c Clause
	for i, id := range ids {
		if i > 0 {
			c.SQL += " AND "
		}
		c.SQL += "EXISTS (SELECT 1 FROM facility_property fp WHERE fp.property_id = p.id AND fp.facility_id = ?)"
		c.Args = append(c.Args, id)
	}
	return c, true
}

// PriceFromFilter keeps properties with at least one pricing period priced
// at or above Min.
type PriceFromFilter struct {
	Min int64
}

func (f PriceFromFilter) Name() string { return "price_from" }

func (f PriceFromFilter) Clause(storage.Dialect) (Clause, bool) {
	return priceClause(">=", f.Min), true
}

// PriceToFilter keeps properties with at least one pricing period priced at
// or below Max. It is evaluated independently of PriceFromFilter.
type PriceToFilter struct {
	Max int64
}

func (f PriceToFilter) Name() string { return "price_to" }

func (f PriceToFilter) Clause(storage.Dialect) (Clause, bool) {
	return priceClause("<=", f.Max), true
}

func priceClause(op string, price int64) Clause {
	return Clause{
		SQL: `EXISTS (
		SELECT 1 FROM apartments a
		JOIN apartment_prices ap ON ap.apartment_id = a.id
		WHERE a.property_id = p.id AND ap.price ` + op + ` ?
	)`,
		Args: []any{price},
	}
}

// Where joins the clauses of the applicable filters with AND.
// An empty result means no constraint.
func Where(d storage.Dialect, filters []Filter) Clause {
	var where Clause
	for _, f := range filters {
		c, ok := f.Clause(d)
		if !ok {
			continue
		}
		if where.SQL != "" {
			where.SQL += "\n\t  AND "
		}
		where.SQL += c.SQL
		where.Args = append(where.Args, c.Args...)
	}
	return where
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
