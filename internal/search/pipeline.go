package search

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/property-booking/backend/internal/booking"
	"github.com/property-booking/backend/internal/pricing"
	"github.com/property-booking/backend/internal/storage"
	"github.com/property-booking/backend/internal/storage/models"
)

// Searcher runs property searches.
type Searcher interface {
	Search(ctx context.Context, c Criteria) (*Result, error)
}

// Result is a page of matching properties and the facility counts over all
// matches.
type Result struct {
	Properties Page   `json:"properties"`
	Facilities Facets `json:"facilities"`
}

// Page is one page of property summaries.
type Page struct {
	Data []PropertySummary `json:"data"`
	Meta PageMeta          `json:"meta"`
}

// PageMeta describes the pagination of a result.
type PageMeta struct {
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// PropertySummary is a property as listed in search results.
type PropertySummary struct {
	ID              int64         `json:"id"`
	Name            string        `json:"name"`
	AddressStreet   string        `json:"address_street"`
	AddressPostcode string        `json:"address_postcode"`
	Lat             float64       `json:"lat"`
	Long            float64       `json:"long"`
	City            *models.City  `json:"city"`
	AvgRating       *float64      `json:"avg_rating"`
	RatingCount     int           `json:"rating_count"`
	Apartments      []UnitSummary `json:"apartments"`
}

// UnitSummary is an apartment as listed in search results.
type UnitSummary struct {
	ID               int64   `json:"id"`
	Name             string  `json:"name"`
	Size             *int    `json:"size"`
	ApartmentType    *string `json:"apartment_type"`
	CapacityAdults   int     `json:"capacity_adults"`
	CapacityChildren int     `json:"capacity_children"`
	BedsList         string  `json:"beds_list"`
	Price            *int64  `json:"price,omitempty"`
}

// Pipeline searches the catalog stored in the database.
type Pipeline struct {
	db         *storage.DB
	locations  *storage.LocationRepository
	properties *storage.PropertyRepository
	apartments *storage.ApartmentRepository
	bookings   *storage.BookingRepository
}

// NewPipeline creates a new search pipeline.
func NewPipeline(
	db *storage.DB,
	locations *storage.LocationRepository,
	properties *storage.PropertyRepository,
	apartments *storage.ApartmentRepository,
	bookings *storage.BookingRepository,
) *Pipeline {
	return &Pipeline{
		db:         db,
		locations:  locations,
		properties: properties,
		apartments: apartments,
		bookings:   bookings,
	}
}

// Filters builds the filters for the criteria in their fixed order:
// city, country, geo, unit, facilities, price from, price to.
// An unknown geoobject leaves the search unconstrained by distance.
func (p *Pipeline) Filters(ctx context.Context, c Criteria) ([]Filter, error) {
	req, err := c.UnitRequest()
	if err != nil {
		return nil, err
	}

	var filters []Filter
	if c.CityID != nil {
		filters = append(filters, CityFilter{CityID: *c.CityID})
	}
	if c.CountryID != nil {
		filters = append(filters, CountryFilter{CountryID: *c.CountryID})
	}
	if c.GeoobjectID != nil {
		g, err := p.locations.GetGeoobject(ctx, *c.GeoobjectID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			log.Printf("Ignoring unknown geoobject %d in search", *c.GeoobjectID)
		case err != nil:
			return nil, err
		default:
			filters = append(filters, GeoFilter{Lat: g.Lat, Long: g.Long, RadiusKm: GeoRadiusKm})
		}
	}
	if req.Active() {
		filters = append(filters, UnitFilter{Adults: req.Adults, Children: req.Children, Stay: req.Stay})
	}
	if len(c.FacilityIDs) > 0 {
		filters = append(filters, FacilityFilter{FacilityIDs: c.FacilityIDs})
	}
	if c.PriceFrom != nil {
		filters = append(filters, PriceFromFilter{Min: *c.PriceFrom})
	}
	if c.PriceTo != nil {
		filters = append(filters, PriceToFilter{Max: *c.PriceTo})
	}
	return filters, nil
}

const matchFrom = `
	FROM properties p
	JOIN cities c ON c.id = p.city_id`

// Search runs the full pipeline for one page.
func (p *Pipeline) Search(ctx context.Context, c Criteria) (*Result, error) {
	filters, err := p.Filters(ctx, c)
	if err != nil {
		return nil, err
	}
	where := Where(p.db.Dialect(), filters)

	matches, err := p.matches(ctx, where)
	if err != nil {
		return nil, err
	}
	RankByRating(matches)

	facets, err := p.facets(ctx, where)
	if err != nil {
		return nil, err
	}

	page := c.PageNumber()
	meta := PageMeta{
		CurrentPage: page,
		PerPage:     PageSize,
		Total:       len(matches),
		LastPage:    (len(matches) + PageSize - 1) / PageSize,
	}
	if meta.LastPage == 0 {
		meta.LastPage = 1
	}

	var pageIDs []int64
	start, end := pageBounds(page, len(matches))
	for _, m := range matches[start:end] {
		pageIDs = append(pageIDs, m.PropertyID)
	}

	req, _ := c.UnitRequest()
	data, err := p.hydrate(ctx, pageIDs, req)
	if err != nil {
		return nil, err
	}

	return &Result{
		Properties: Page{Data: data, Meta: meta},
		Facilities: facets,
	}, nil
}

// pageBounds returns the slice bounds of a 1-based page over total items.
// Pages past the end are empty, however large the page number.
func pageBounds(page, total int) (start, end int) {
	if page < 1 || page-1 > total/PageSize {
		return total, total
	}
	start = min((page-1)*PageSize, total)
	end = min(start+PageSize, total)
	return start, end
}

func (p *Pipeline) matches(ctx context.Context, where Clause) ([]Match, error) {
	query := "SELECT p.id, p.avg_rating" + matchFrom
	if where.SQL != "" {
		query += "\n\tWHERE " + where.SQL
	}

	rows, err := p.db.QueryContext(ctx, query, where.Args...)
	if err != nil {
		return nil, fmt.Errorf("querying matches: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.PropertyID, &m.AvgRating); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (p *Pipeline) facets(ctx context.Context, where Clause) (Facets, error) {
	sub := "SELECT p.id" + matchFrom
	if where.SQL != "" {
		sub += "\n\tWHERE " + where.SQL
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.category_id, fp.property_id
		FROM facility_property fp
		JOIN facilities f ON f.id = fp.facility_id
		WHERE f.category_id IS NULL
		  AND fp.property_id IN (`+sub+`)
	`, where.Args...)
	if err != nil {
		return nil, fmt.Errorf("querying facets: %w", err)
	}
	defer rows.Close()

	var links []FacilityLink
	for rows.Next() {
		var l FacilityLink
		if err := rows.Scan(&l.FacilityID, &l.Name, &l.CategoryID, &l.PropertyID); err != nil {
			return nil, fmt.Errorf("scanning facet: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return AggregateFacilities(links), nil
}

// hydrate loads the page's properties in rank order. With an active unit
// request each property keeps only its best apartment, priced when a stay
// is given.
func (p *Pipeline) hydrate(ctx context.Context, ids []int64, req booking.Request) ([]PropertySummary, error) {
	if len(ids) == 0 {
		return []PropertySummary{}, nil
	}

	properties, err := p.properties.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	units, err := p.apartments.ListByProperties(ctx, ids)
	if err != nil {
		return nil, err
	}

	unitIDs := make([]int64, len(units))
	for i, u := range units {
		unitIDs[i] = u.ID
	}
	beds, err := p.apartments.ListBeds(ctx, unitIDs)
	if err != nil {
		return nil, err
	}

	var prices map[int64][]models.PricingPeriod
	if req.Stay != nil {
		booked, err := p.bookings.ListOverlapping(ctx, unitIDs, *req.Stay)
		if err != nil {
			return nil, err
		}
		prices, err = p.apartments.ListPrices(ctx, unitIDs)
		if err != nil {
			return nil, err
		}
		for i := range units {
			units[i].Bookings = booked[units[i].ID]
		}
	}

	byProperty := make(map[int64][]models.Apartment)
	for _, u := range units {
		u.Beds = beds[u.ID]
		byProperty[u.PropertyID] = append(byProperty[u.PropertyID], u)
	}

	summaries := make([]PropertySummary, 0, len(properties))
	for _, prop := range properties {
		candidates := byProperty[prop.ID]
		if req.Active() {
			candidates = nil
			if best := booking.BestUnit(byProperty[prop.ID], req); best != nil {
				candidates = []models.Apartment{*best}
			}
		}

		s := PropertySummary{
			ID:              prop.ID,
			Name:            prop.Name,
			AddressStreet:   prop.AddressStreet,
			AddressPostcode: prop.AddressPostcode,
			Lat:             prop.Lat,
			Long:            prop.Long,
			City:            prop.City,
			AvgRating:       prop.AvgRating,
			RatingCount:     prop.RatingCount,
			Apartments:      make([]UnitSummary, 0, len(candidates)),
		}
		for _, u := range candidates {
			us := UnitSummary{
				ID:               u.ID,
				Name:             u.Name,
				Size:             u.Size,
				ApartmentType:    u.ApartmentType,
				CapacityAdults:   u.CapacityAdults,
				CapacityChildren: u.CapacityChildren,
				BedsList:         SummarizeBeds(u.Beds),
			}
			if req.Stay != nil {
				total, err := pricing.Price(prices[u.ID], *req.Stay)
				if err != nil {
					return nil, err
				}
				us.Price = &total
			}
			s.Apartments = append(s.Apartments, us)
		}
		summaries = append(summaries, s)
	}

	return summaries, nil
}
