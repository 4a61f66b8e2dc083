package handlers

import (
	"net/http"

	"github.com/property-booking/backend/internal/api/middleware"
	"github.com/property-booking/backend/internal/booking"
	"github.com/property-booking/backend/internal/search"
	"github.com/property-booking/backend/internal/storage"
	"github.com/property-booking/backend/internal/storage/models"
)

// PropertyResponse is the property detail returned by the API.
type PropertyResponse struct {
	ID              int64                `json:"id"`
	OwnerID         int64                `json:"owner_id"`
	Name            string               `json:"name"`
	AddressStreet   string               `json:"address_street"`
	AddressPostcode string               `json:"address_postcode"`
	Lat             float64              `json:"lat"`
	Long            float64              `json:"long"`
	City            *models.City         `json:"city"`
	AvgRating       *float64             `json:"avg_rating"`
	RatingCount     int                  `json:"rating_count"`
	Facilities      []string             `json:"facilities"`
	Apartments      []search.UnitSummary `json:"apartments"`
}

// GetProperty returns a handler for the property detail. The adults and
// children parameters narrow the listed apartments to those that fit,
// smallest first.
func GetProperty(
	properties *storage.PropertyRepository,
	apartments *storage.ApartmentRepository,
	facilities *storage.FacilityRepository,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		id, ok := pathID(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		adults, err := optInt(q, "adults")
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}
		children, err := optInt(q, "children")
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}

		p, err := properties.GetByID(ctx, id)
		if err != nil {
			writeServiceError(w, r, err, "property")
			return
		}

		units, err := apartments.ListByProperties(ctx, []int64{id})
		if err != nil {
			writeServiceError(w, r, err, "property")
			return
		}
		if adults != nil || children != nil {
			req := booking.Request{}
			if adults != nil {
				req.Adults = *adults
			}
			if children != nil {
				req.Children = *children
			}
			units = booking.Qualifying(units, req)
		}

		unitIDs := make([]int64, len(units))
		for i, u := range units {
			unitIDs[i] = u.ID
		}
		beds, err := apartments.ListBeds(ctx, unitIDs)
		if err != nil {
			writeServiceError(w, r, err, "property")
			return
		}

		facs, err := facilities.ListByProperty(ctx, id)
		if err != nil {
			writeServiceError(w, r, err, "property")
			return
		}

		resp := PropertyResponse{
			ID:              p.ID,
			OwnerID:         p.OwnerID,
			Name:            p.Name,
			AddressStreet:   p.AddressStreet,
			AddressPostcode: p.AddressPostcode,
			Lat:             p.Lat,
			Long:            p.Long,
			City:            p.City,
			AvgRating:       p.AvgRating,
			RatingCount:     p.RatingCount,
			Facilities:      []string{},
			Apartments:      make([]search.UnitSummary, 0, len(units)),
		}
		for _, f := range facs {
			resp.Facilities = append(resp.Facilities, f.Name)
		}
		for _, u := range units {
			resp.Apartments = append(resp.Apartments, search.UnitSummary{
				ID:               u.ID,
				Name:             u.Name,
				Size:             u.Size,
				ApartmentType:    u.ApartmentType,
				CapacityAdults:   u.CapacityAdults,
				CapacityChildren: u.CapacityChildren,
				BedsList:         search.SummarizeBeds(beds[u.ID]),
			})
		}

		middleware.WriteJSON(w, http.StatusOK, resp)
	}
}
