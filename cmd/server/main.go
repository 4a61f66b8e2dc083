// Package main is the entry point for the property booking server.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/property-booking/backend/internal/api"
	"github.com/property-booking/backend/internal/auth"
	"github.com/property-booking/backend/internal/booking"
	"github.com/property-booking/backend/internal/config"
	"github.com/property-booking/backend/internal/rating"
	"github.com/property-booking/backend/internal/search"
	"github.com/property-booking/backend/internal/storage"
	"github.com/property-booking/backend/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	// Parse command-line flags
	configPath := flag.String("config", "", "Path to a YAML configuration file")
	envFile := flag.String("env", ".env", "Path to a dotenv file")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	dataDir := flag.String("data", "", "Data directory for the SQLite database (overrides config)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataDir != "" {
		cfg.Database.DataDir = *dataDir
	}

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.Server.Addr); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	// Allow overriding version via environment (e.g., injected by container build/runtime)
	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	log.Printf("Starting property booking server (version: %s)...", version)

	// Initialize database
	db, err := openDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := storage.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations complete")

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()
	events := websocket.NewEventBroadcaster(hub)

	// Search result cache
	var cache *search.Cache
	if cfg.Cache.Enabled {
		cache = search.NewCache(search.CacheOptions{
			LocalSize: cfg.Cache.LocalSize,
			LocalTTL:  cfg.Cache.LocalTTL,
			RemoteTTL: cfg.Cache.RemoteTTL,
			Servers:   cfg.Cache.MemcachedServers(),
		})
		defer cache.Close()
	}

	// Rating recalculation
	recalc := rating.NewRecalculator(storage.NewPropertyRepository(db), storage.NewBookingRepository(db))
	recalc.OnUpdate(events.BroadcastRatingUpdated)
	if cache != nil {
		recalc.OnUpdate(func(int64, *float64, int) {
			cache.Invalidate(context.Background())
		})
	}

	var (
		queue   booking.RatingQueue
		dbQueue *rating.DBQueue
	)
	switch cfg.Ratings.Queue {
	case config.QueueAMQP:
		amqpQueue, err := rating.NewAMQPQueue(cfg.Ratings.AMQPURL, cfg.Ratings.QueueName, recalc)
		if err != nil {
			log.Fatalf("Failed to connect to rating queue: %v", err)
		}
		defer amqpQueue.Close()
		if err := amqpQueue.Start(); err != nil {
			log.Fatalf("Failed to start rating consumer: %v", err)
		}
		queue = amqpQueue
	default:
		dbQueue = rating.NewDBQueue(storage.NewRatingJobRepository(db), recalc, rating.DefaultBatchSize)
		queue = dbQueue
	}

	ratingScheduler := rating.NewScheduler(dbQueue, recalc, cfg.Ratings.DrainInterval, cfg.Ratings.ResyncSpec)
	if err := ratingScheduler.Start(); err != nil {
		log.Fatalf("Failed to start rating scheduler: %v", err)
	}

	// Initialize HTTP router with services
	services := api.NewServices(db, hub, auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), queue)
	if cache != nil {
		services.Searcher = search.NewCachedSearcher(services.Searcher, cache)
		services.Cache = cache
	}
	router := api.NewRouter(services)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in background
	go func() {
		log.Printf("Server listening on %s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	// Stop background work
	ratingScheduler.Stop()
	hub.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

func openDatabase(cfg config.DatabaseConfig) (*storage.DB, error) {
	if cfg.Driver == storage.DriverPostgres {
		return storage.Open(storage.Options{Driver: storage.DriverPostgres, DSN: cfg.DSN})
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	return storage.Open(storage.Options{
		Driver:       storage.DriverSQLite,
		Path:         filepath.Join(cfg.DataDir, "property-booking.db"),
		GeoFunctions: cfg.GeoFunctions,
	})
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return http.ErrAbortHandler
	}
	return nil
}
