package server

import (
	"log/slog"
	"net/http"

	"loremap-server/internal/middleware"
	placeHandlers "loremap-server/internal/place/handlers"
	"loremap-server/internal/region"
	regionHandlers "loremap-server/internal/region/handlers"
	serverHandlers "loremap-server/internal/server/handlers"
	"loremap-server/internal/shared/database"
	"loremap-server/internal/shared/redis"
)

type Routes struct {
	db            *database.DB
	cache         *redis.Client
	regionService *region.Service
	logger        *slog.Logger
}

func NewRoutes(db *database.DB, cache *redis.Client, regionService *region.Service, logger *slog.Logger) *Routes {
	return &Routes{
		db:            db,
		cache:         cache,
		regionService: regionService,
		logger:        logger,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := slog.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	healthHandler := serverHandlers.NewHealthHandler(r.db, r.cache)
	regionHandler := regionHandlers.NewRegionHandler(r.regionService)
	placesHandler := placeHandlers.NewPlacesHandler(r.regionService)

	// Public endpoints (reader map)
	mux.Handle("GET /api/server/health", healthHandler)
	mux.HandleFunc("GET /api/regions", regionHandler.List)
	mux.HandleFunc("GET /api/regions/{id}/places", placesHandler.GetByRegionID)

	// Admin-only endpoints (curation dashboard)
	mux.Handle("POST /api/regions", middleware.RequireAdmin(http.HandlerFunc(regionHandler.Create)))
	mux.Handle("POST /api/regions/bulk", middleware.RequireAdmin(http.HandlerFunc(regionHandler.Import)))
	mux.Handle("POST /api/regions/repair", middleware.RequireAdmin(http.HandlerFunc(regionHandler.Repair)))
	mux.Handle("GET /api/regions/isolated", middleware.RequireAdmin(http.HandlerFunc(regionHandler.Isolated)))
	mux.Handle("PUT /api/regions/{id}", middleware.RequireAdmin(http.HandlerFunc(regionHandler.Update)))
	mux.Handle("PUT /api/regions/{id}/visibility", middleware.RequireAdmin(http.HandlerFunc(regionHandler.UpdateVisibility)))
	mux.Handle("DELETE /api/regions/{id}", middleware.RequireAdmin(http.HandlerFunc(regionHandler.Delete)))

	logger.Info("Routes configured successfully",
		"public_endpoints", []string{"/api/server/health", "/api/regions", "/api/regions/{id}/places"},
		"admin_endpoints", []string{"/api/regions", "/api/regions/bulk", "/api/regions/repair", "/api/regions/isolated", "/api/regions/{id}", "/api/regions/{id}/visibility"},
	)

	return mux
}
