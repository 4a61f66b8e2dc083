package search

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/property-booking/backend/internal/booking"
	"github.com/property-booking/backend/internal/pricing"
	"github.com/property-booking/backend/internal/storage/models"
)

// PageSize is the fixed number of properties per result page.
const PageSize = 10

// Criteria holds the optional search inputs. A nil or empty field does not
// constrain the search.
type Criteria struct {
	CityID      *int64
	CountryID   *int64
	GeoobjectID *int64
	Adults      *int
	Children    *int
	StartDate   *models.Date
	EndDate     *models.Date
	FacilityIDs []int64
	PriceFrom   *int64
	PriceTo     *int64
	Page        int
}

// Stay returns the requested date range, or nil unless both dates are given.
func (c Criteria) Stay() (*models.DateRange, error) {
	if c.StartDate == nil || c.EndDate == nil {
		return nil, nil
	}
	r := models.DateRange{Start: *c.StartDate, End: *c.EndDate}
	if !r.Valid() {
		return nil, pricing.ErrInvalidRange
	}
	return &r, nil
}

// UnitRequest returns the per-apartment requirements of the search.
func (c Criteria) UnitRequest() (booking.Request, error) {
	stay, err := c.Stay()
	if err != nil {
		return booking.Request{}, err
	}

	req := booking.Request{Stay: stay}
	if c.Adults != nil {
		req.Adults = *c.Adults
	}
	if c.Children != nil {
		req.Children = *c.Children
	}
	return req, nil
}

// PageNumber returns the requested page, starting at 1.
func (c Criteria) PageNumber() int {
	if c.Page < 1 {
		return 1
	}
	return c.Page
}

// Key returns a canonical representation used as cache key. Criteria that
// select the same results produce the same key.
func (c Criteria) Key() string {
	var b strings.Builder
	field := func(name, value string) {
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(value)
		b.WriteByte(';')
	}
	optInt64 := func(name string, v *int64) {
		if v != nil {
			field(name, strconv.FormatInt(*v, 10))
		}
	}
	optInt := func(name string, v *int) {
		if v != nil {
			field(name, strconv.Itoa(*v))
		}
	}

	optInt64("city", c.CityID)
	optInt64("country", c.CountryID)
	optInt64("geo", c.GeoobjectID)
	optInt("adults", c.Adults)
	optInt("children", c.Children)
	if c.StartDate != nil {
		field("start", c.StartDate.String())
	}
	if c.EndDate != nil {
		field("end", c.EndDate.String())
	}
	if ids := uniqueIDs(c.FacilityIDs); len(ids) > 0 {
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.FormatInt(id, 10)
		}
		field("facilities", strings.Join(parts, ","))
	}
	optInt64("price_from", c.PriceFrom)
	optInt64("price_to", c.PriceTo)
	field("page", fmt.Sprint(c.PageNumber()))

	return b.String()
}
