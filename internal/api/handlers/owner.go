package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/property-booking/backend/internal/api/middleware"
	"github.com/property-booking/backend/internal/auth"
	"github.com/property-booking/backend/internal/storage"
	"github.com/property-booking/backend/internal/storage/models"
)

// CreatePropertyRequest is the body for creating a property.
type CreatePropertyRequest struct {
	Name            string  `json:"name" validate:"required,max=255"`
	CityID          int64   `json:"city_id" validate:"required,gt=0"`
	AddressStreet   string  `json:"address_street" validate:"required,max=255"`
	AddressPostcode string  `json:"address_postcode" validate:"required,max=32"`
	Lat             float64 `json:"lat" validate:"gte=-90,lte=90"`
	Long            float64 `json:"long" validate:"gte=-180,lte=180"`
	Facilities      []int64 `json:"facilities" validate:"dive,gt=0"`
}

// RoomRequest is a room with one entry per bed.
type RoomRequest struct {
	RoomTypeID int64   `json:"room_type_id" validate:"required,gt=0"`
	Name       string  `json:"name" validate:"required,max=255"`
	Beds       []int64 `json:"beds" validate:"dive,gt=0"`
}

// CreateApartmentRequest is the body for adding an apartment to a property.
type CreateApartmentRequest struct {
	Name             string        `json:"name" validate:"required,max=255"`
	CapacityAdults   int           `json:"capacity_adults" validate:"gte=0,lte=100"`
	CapacityChildren int           `json:"capacity_children" validate:"gte=0,lte=100"`
	Size             *int          `json:"size" validate:"omitempty,gt=0"`
	ApartmentType    *string       `json:"apartment_type" validate:"omitempty,max=64"`
	Facilities       []int64       `json:"facilities" validate:"dive,gt=0"`
	Rooms            []RoomRequest `json:"rooms" validate:"dive"`
}

// AddPriceRequest is the body for adding a pricing period.
type AddPriceRequest struct {
	StartDate models.Date `json:"start_date"`
	EndDate   models.Date `json:"end_date"`
	Price     int64       `json:"price" validate:"gte=0"`
}

// CreateProperty creates a property owned by the caller.
func CreateProperty(
	locations *storage.LocationRepository,
	properties *storage.PropertyRepository,
	inv Invalidator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.FromContext(ctx)

		var req CreatePropertyRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if _, err := locations.GetCity(ctx, req.CityID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				middleware.WriteError(w, http.StatusUnprocessableEntity, middleware.ErrValidation, "Unknown city")
				return
			}
			writeServiceError(w, r, err, "property")
			return
		}

		prop := &models.Property{
			OwnerID:         p.UserID,
			Name:            req.Name,
			CityID:          req.CityID,
			AddressStreet:   req.AddressStreet,
			AddressPostcode: req.AddressPostcode,
			Lat:             req.Lat,
			Long:            req.Long,
		}
		if err := properties.Create(ctx, prop, req.Facilities); err != nil {
			writeServiceError(w, r, err, "property")
			return
		}
		log.Printf("Property %d created by owner %d", prop.ID, p.UserID)

		created, err := properties.GetByID(ctx, prop.ID)
		if err != nil {
			writeServiceError(w, r, err, "property")
			return
		}

		invalidate(ctx, inv)
		middleware.WriteJSON(w, http.StatusCreated, created)
	}
}

// CreateApartment adds an apartment, with its rooms and beds, to one of the
// caller's properties.
func CreateApartment(
	properties *storage.PropertyRepository,
	apartments *storage.ApartmentRepository,
	inv Invalidator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.FromContext(ctx)

		propertyID, ok := pathID(w, r)
		if !ok {
			return
		}

		var req CreateApartmentRequest
		if !decodeBody(w, r, &req) {
			return
		}

		prop, err := properties.GetByID(ctx, propertyID)
		if err != nil {
			writeServiceError(w, r, err, "property")
			return
		}
		if prop.OwnerID != p.UserID {
			middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Property belongs to another owner")
			return
		}

		apt := &models.Apartment{
			PropertyID:       propertyID,
			Name:             req.Name,
			CapacityAdults:   req.CapacityAdults,
			CapacityChildren: req.CapacityChildren,
			Size:             req.Size,
			ApartmentType:    req.ApartmentType,
		}
		if err := apartments.Create(ctx, apt, req.Facilities); err != nil {
			writeServiceError(w, r, err, "apartment")
			return
		}

		for _, rr := range req.Rooms {
			room := &models.Room{ApartmentID: apt.ID, RoomTypeID: rr.RoomTypeID, Name: rr.Name}
			for _, bedTypeID := range rr.Beds {
				room.Beds = append(room.Beds, models.Bed{BedTypeID: bedTypeID})
			}
			if err := apartments.AddRoom(ctx, room); err != nil {
				writeServiceError(w, r, err, "apartment")
				return
			}
		}
		log.Printf("Apartment %d added to property %d with %d rooms", apt.ID, propertyID, len(req.Rooms))

		invalidate(ctx, inv)
		middleware.WriteJSON(w, http.StatusCreated, apt)
	}
}

// AddApartmentPrice adds a pricing period to an apartment of one of the
// caller's properties.
func AddApartmentPrice(
	properties *storage.PropertyRepository,
	apartments *storage.ApartmentRepository,
	inv Invalidator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := auth.FromContext(ctx)

		apartmentID, ok := pathID(w, r)
		if !ok {
			return
		}

		var req AddPriceRequest
		if !decodeBody(w, r, &req) {
			return
		}
		period := &models.PricingPeriod{
			ApartmentID: apartmentID,
			StartDate:   req.StartDate,
			EndDate:     req.EndDate,
			Price:       req.Price,
		}
		if !period.Range().Valid() {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrInvalidRange, "end_date must not be before start_date")
			return
		}

		apt, err := apartments.GetByID(ctx, apartmentID)
		if err != nil {
			writeServiceError(w, r, err, "apartment")
			return
		}
		prop, err := properties.GetByID(ctx, apt.PropertyID)
		if err != nil {
			writeServiceError(w, r, err, "property")
			return
		}
		if prop.OwnerID != p.UserID {
			middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Apartment belongs to another owner")
			return
		}

		if err := apartments.AddPrice(ctx, period); err != nil {
			writeServiceError(w, r, err, "price")
			return
		}

		invalidate(ctx, inv)
		middleware.WriteJSON(w, http.StatusCreated, period)
	}
}
