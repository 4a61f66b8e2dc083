// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"net/http"

	"github.com/property-booking/backend/internal/api/middleware"
	"github.com/property-booking/backend/internal/storage"
	"github.com/property-booking/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
	Driver      string `json:"driver"`
	GeoSearch   bool   `json:"geo_search"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		// Check database connection
		dbConnected := db.PingContext(r.Context()) == nil

		status := "healthy"
		if !dbConnected {
			status = "degraded"
		}

		response := HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
			Driver:      db.Dialect().Name,
			GeoSearch:   db.Dialect().SupportsTrig,
		}

		code := http.StatusOK
		if !dbConnected {
			code = http.StatusServiceUnavailable
		}
		middleware.WriteJSON(w, code, response)
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	PropertiesCount   int    `json:"properties_count"`
	ApartmentsCount   int    `json:"apartments_count"`
	ActiveBookings    int    `json:"active_bookings"`
	PendingRatingJobs int    `json:"pending_rating_jobs"`
	FailingRatingJobs int    `json:"failing_rating_jobs"`
	WebSocketClients  int    `json:"websocket_clients"`
	SchemaVersion     string `json:"schema_version"`
}

// Status returns a handler that provides system status information.
func Status(db *storage.DB, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var response StatusResponse

		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM properties").Scan(&response.PropertiesCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM apartments").Scan(&response.ApartmentsCount)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM bookings WHERE deleted_at IS NULL").Scan(&response.ActiveBookings)

		// Jobs are only queued here with the database rating queue
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rating_jobs").Scan(&response.PendingRatingJobs)
		db.QueryRowContext(ctx, "SELECT COUNT(*) FROM rating_jobs WHERE attempts > 0").Scan(&response.FailingRatingJobs)

		if applied, err := storage.AppliedMigrations(ctx, db); err == nil && len(applied) > 0 {
			response.SchemaVersion = applied[len(applied)-1]
		}

		if hub != nil {
			response.WebSocketClients = hub.ClientCount()
		}

		middleware.WriteJSON(w, http.StatusOK, response)
	}
}
