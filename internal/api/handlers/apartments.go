package handlers

import (
	"net/http"

	"github.com/property-booking/backend/internal/api/middleware"
	"github.com/property-booking/backend/internal/pricing"
	"github.com/property-booking/backend/internal/search"
	"github.com/property-booking/backend/internal/storage"
	"github.com/property-booking/backend/internal/storage/models"
)

// ApartmentResponse is the apartment detail returned by the API.
type ApartmentResponse struct {
	ID                 int64               `json:"id"`
	PropertyID         int64               `json:"property_id"`
	Name               string              `json:"name"`
	Size               *int                `json:"size"`
	ApartmentType      *string             `json:"apartment_type"`
	CapacityAdults     int                 `json:"capacity_adults"`
	CapacityChildren   int                 `json:"capacity_children"`
	BedsList           string              `json:"beds_list"`
	FacilityCategories map[string][]string `json:"facility_categories"`
}

// GetApartment returns a handler for the apartment detail. Facilities are
// grouped by category name; uncategorized ones are listed under "".
func GetApartment(apartments *storage.ApartmentRepository, facilities *storage.FacilityRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, ok := pathID(w, r)
		if !ok {
			return
		}

		a, err := apartments.GetByID(ctx, id)
		if err != nil {
			writeServiceError(w, r, err, "apartment")
			return
		}

		beds, err := apartments.ListBeds(ctx, []int64{id})
		if err != nil {
			writeServiceError(w, r, err, "apartment")
			return
		}
		facs, err := facilities.ListByApartment(ctx, id)
		if err != nil {
			writeServiceError(w, r, err, "apartment")
			return
		}

		resp := ApartmentResponse{
			ID:                 a.ID,
			PropertyID:         a.PropertyID,
			Name:               a.Name,
			Size:               a.Size,
			ApartmentType:      a.ApartmentType,
			CapacityAdults:     a.CapacityAdults,
			CapacityChildren:   a.CapacityChildren,
			BedsList:           search.SummarizeBeds(beds[id]),
			FacilityCategories: make(map[string][]string),
		}
		for _, f := range facs {
			var category string
			if f.Category != nil {
				category = *f.Category
			}
			resp.FacilityCategories[category] = append(resp.FacilityCategories[category], f.Name)
		}

		middleware.WriteJSON(w, http.StatusOK, resp)
	}
}

// PriceResponse is the quoted price of a stay.
type PriceResponse struct {
	Price int64 `json:"price"`
}

// GetApartmentPrice returns a handler quoting a stay given by the
// start_date and end_date parameters.
func GetApartmentPrice(prices *pricing.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		start, err := optDate(q, "start_date")
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}
		end, err := optDate(q, "end_date")
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}
		if start == nil || end == nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "start_date and end_date are required")
			return
		}

		price, err := prices.PriceForUnit(r.Context(), id, models.DateRange{Start: *start, End: *end})
		if err != nil {
			writeServiceError(w, r, err, "apartment")
			return
		}

		middleware.WriteJSON(w, http.StatusOK, PriceResponse{Price: price})
	}
}
