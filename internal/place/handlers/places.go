package handlers

import (
	"log/slog"
	"net/http"

	"loremap-server/internal/region"
	"loremap-server/internal/shared/errors"
	"loremap-server/internal/shared/response"
)

type PlacesHandler struct {
	regions *region.Service
}

func NewPlacesHandler(regions *region.Service) *PlacesHandler {
	return &PlacesHandler{regions: regions}
}

// GetByRegionID lists the places owned by a region.
func (h *PlacesHandler) GetByRegionID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "get_places_by_region")

	regionID := r.PathValue("id")
	if regionID == "" {
		response.Error(w, r, logger, errors.Validation("region id is required"))
		return
	}

	places, err := h.regions.Places(ctx, regionID)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]interface{}{"places": places})
}
