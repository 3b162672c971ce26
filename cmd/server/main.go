package main

import (
	"log"
	"log/slog"
	"net/http"

	"loremap-server/internal/middleware"
	"loremap-server/internal/place"
	"loremap-server/internal/region"
	"loremap-server/internal/server"
	"loremap-server/internal/shared/config"
	"loremap-server/internal/shared/database"
	"loremap-server/internal/shared/logger"
	"loremap-server/internal/shared/redis"
)

func main() {
	if err := config.Init(); err != nil {
		log.Fatal("Failed to initialize configuration:", err)
	}

	logger.Init()
	cfg := config.GlobalConfig

	db, err := database.Connect()
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("Failed to close database", "error", err)
		}
	}()

	if err := db.RunMigrations(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	cacheClient, err := redis.Connect()
	if err != nil {
		// The region cache is an optimization; the map still serves from
		// the database without it.
		slog.Warn("Redis unavailable, continuing without region cache", "error", err)
		cacheClient = nil
	}
	defer func() {
		if err := cacheClient.Close(); err != nil {
			slog.Error("Failed to close Redis client", "error", err)
		}
	}()

	appLogger := slog.Default()

	placeStore := place.NewPostgresStore(db, appLogger)
	placeService := place.NewService(placeStore, appLogger)

	regionStore := region.NewPostgresStore(db, appLogger)
	regionCache := region.NewCache(cacheClient, cfg.Redis.RegionTTL, appLogger)
	regionService := region.NewService(regionStore, placeService, regionCache, appLogger)

	routes := server.NewRoutes(db, cacheClient, regionService, appLogger)
	mux := routes.Setup()

	rateLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		Enabled:           cfg.RateLimit.Enabled,
		TrustProxy:        cfg.Server.Environment == "production",
	})
	corsMiddleware := middleware.NewCORS()

	handler := corsMiddleware.Middleware(rateLimiter.Middleware(mux))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	slog.Info("Loremap server starting",
		"port", cfg.Server.Port,
		"environment", cfg.Server.Environment,
	)
	log.Fatal(srv.ListenAndServe())
}
