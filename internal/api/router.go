// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"github.com/gorilla/mux"

	"github.com/property-booking/backend/internal/api/handlers"
	"github.com/property-booking/backend/internal/api/middleware"
	"github.com/property-booking/backend/internal/auth"
	"github.com/property-booking/backend/internal/booking"
	"github.com/property-booking/backend/internal/pricing"
	"github.com/property-booking/backend/internal/search"
	"github.com/property-booking/backend/internal/storage"
	"github.com/property-booking/backend/internal/storage/models"
	"github.com/property-booking/backend/internal/websocket"
)

// Services bundles everything the handlers need.
type Services struct {
	DB     *storage.DB
	Hub    *websocket.Hub
	Tokens *auth.Tokens

	Users      *storage.UserRepository
	Locations  *storage.LocationRepository
	Properties *storage.PropertyRepository
	Apartments *storage.ApartmentRepository
	Facilities *storage.FacilityRepository

	Searcher search.Searcher
	Bookings *booking.Service
	Prices   *pricing.Service

	// Cache is invalidated after catalog and booking changes. It may be nil.
	Cache handlers.Invalidator
}

// NewServices builds the repositories and services over db. Searcher uses
// the uncached pipeline; callers may wrap it.
func NewServices(db *storage.DB, hub *websocket.Hub, tokens *auth.Tokens, queue booking.RatingQueue) *Services {
	s := &Services{
		DB:         db,
		Hub:        hub,
		Tokens:     tokens,
		Users:      storage.NewUserRepository(db),
		Locations:  storage.NewLocationRepository(db),
		Properties: storage.NewPropertyRepository(db),
		Apartments: storage.NewApartmentRepository(db),
		Facilities: storage.NewFacilityRepository(db),
	}
	bookings := storage.NewBookingRepository(db)

	var events booking.Notifier
	if hub != nil {
		events = websocket.NewEventBroadcaster(hub)
	}

	s.Searcher = search.NewPipeline(db, s.Locations, s.Properties, s.Apartments, bookings)
	s.Bookings = booking.NewService(s.Apartments, bookings, queue, events)
	s.Prices = pricing.NewService(s.Apartments)
	return s
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(s *Services) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(s.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(s.DB, s.Hub)).Methods("GET")

	// WebSocket endpoint
	if s.Hub != nil {
		api.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub)).Methods("GET")
	}

	// Public catalog endpoints
	api.HandleFunc("/search", handlers.Search(s.Searcher)).Methods("GET")
	api.HandleFunc("/properties/{id}", handlers.GetProperty(s.Properties, s.Apartments, s.Facilities)).Methods("GET")
	api.HandleFunc("/apartments/{id}", handlers.GetApartment(s.Apartments, s.Facilities)).Methods("GET")
	api.HandleFunc("/apartments/{id}/price", handlers.GetApartmentPrice(s.Prices)).Methods("GET")

	authenticate := middleware.Authenticate(s.Tokens, s.Users)

	// Guest endpoints
	user := api.PathPrefix("/user").Subrouter()
	user.Use(authenticate, middleware.RequirePermission(models.PermissionBookingsManage))
	user.HandleFunc("/bookings", handlers.ListBookings(s.Bookings)).Methods("GET")
	user.HandleFunc("/bookings", handlers.CreateBooking(s.Bookings, s.Cache)).Methods("POST")
	user.HandleFunc("/bookings/{id}", handlers.RateBooking(s.Bookings)).Methods("PATCH")
	user.HandleFunc("/bookings/{id}", handlers.CancelBooking(s.Bookings, s.Cache)).Methods("DELETE")

	// Owner endpoints
	owner := api.PathPrefix("/owner").Subrouter()
	owner.Use(authenticate, middleware.RequirePermission(models.PermissionPropertiesManage))
	owner.HandleFunc("/properties", handlers.CreateProperty(s.Locations, s.Properties, s.Cache)).Methods("POST")
	owner.HandleFunc("/properties/{id}/apartments", handlers.CreateApartment(s.Properties, s.Apartments, s.Cache)).Methods("POST")
	owner.HandleFunc("/apartments/{id}/prices", handlers.AddApartmentPrice(s.Properties, s.Apartments, s.Cache)).Methods("POST")

	return r
}
