package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/property-booking/backend/internal/api/middleware"
	"github.com/property-booking/backend/internal/search"
	"github.com/property-booking/backend/internal/storage/models"
)

// Search returns a handler that runs a property search.
func Search(searcher search.Searcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := ParseCriteria(r.URL.Query())
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}

		res, err := searcher.Search(r.Context(), c)
		if err != nil {
			writeServiceError(w, r, err, "search")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, res)
	}
}

// ParseCriteria reads search criteria from query parameters. Empty values
// are treated as absent. Facilities may be repeated (facilities[]=1) or
// comma separated (facilities=1,2).
func ParseCriteria(q url.Values) (search.Criteria, error) {
	var (
		c   search.Criteria
		err error
	)

	if c.CityID, err = optInt64(q, "city"); err != nil {
		return c, err
	}
	if c.CountryID, err = optInt64(q, "country"); err != nil {
		return c, err
	}
	if c.GeoobjectID, err = optInt64(q, "geoobject"); err != nil {
		return c, err
	}
	if c.Adults, err = optInt(q, "adults"); err != nil {
		return c, err
	}
	if c.Children, err = optInt(q, "children"); err != nil {
		return c, err
	}
	if c.StartDate, err = optDate(q, "start_date"); err != nil {
		return c, err
	}
	if c.EndDate, err = optDate(q, "end_date"); err != nil {
		return c, err
	}
	if c.PriceFrom, err = optInt64(q, "price_from"); err != nil {
		return c, err
	}
	if c.PriceTo, err = optInt64(q, "price_to"); err != nil {
		return c, err
	}

	facilities := append(append([]string{}, q["facilities[]"]...), q["facilities"]...)
	if c.FacilityIDs, err = optIDList("facilities", facilities...); err != nil {
		return c, err
	}

	if page, err := optInt(q, "page"); err != nil {
		return c, err
	} else if page != nil {
		c.Page = *page
	}

	return c, nil
}

type paramError struct {
	name  string
	value string
}

func (e *paramError) Error() string {
	return "invalid value " + strconv.Quote(e.value) + " for parameter " + e.name
}

func optInt64(q url.Values, name string) (*int64, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, &paramError{name: name, value: raw}
	}
	return &v, nil
}

func optInt(q url.Values, name string) (*int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return nil, &paramError{name: name, value: raw}
	}
	return &v, nil
}

func optDate(q url.Values, name string) (*models.Date, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return nil, &paramError{name: name, value: raw}
	}
	return &d, nil
}
