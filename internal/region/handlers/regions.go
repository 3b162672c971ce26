package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"loremap-server/internal/region"
	"loremap-server/internal/shared/errors"
	"loremap-server/internal/shared/response"
)

type RegionHandler struct {
	service *region.Service
}

func NewRegionHandler(service *region.Service) *RegionHandler {
	return &RegionHandler{service: service}
}

// List serves the map for a visibility tier. Tier comes from the
// userType query parameter, defaulting to free when omitted.
func (h *RegionHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "list_regions")

	userTypeParam := r.URL.Query().Get("userType")
	if userTypeParam == "" {
		userTypeParam = string(region.UserTypeFree)
	}

	userType, err := region.ParseUserType(userTypeParam)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	regions, err := h.service.List(ctx, userType)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]interface{}{"regions": regions})
}

func (h *RegionHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "create_region")

	var body struct {
		Region region.RegionInput `json:"region"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}

	result, err := h.service.Create(ctx, body.Region)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusCreated, result)
}

func (h *RegionHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "import_regions")

	var body struct {
		Regions []region.RegionInput `json:"regions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}

	result, err := h.service.Import(ctx, body.Regions)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, result)
}

func (h *RegionHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "update_region")

	id := r.PathValue("id")
	if id == "" {
		response.Error(w, r, logger, errors.Validation("region id is required"))
		return
	}

	var patch region.RegionPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}

	updated, err := h.service.Update(ctx, id, patch)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]interface{}{"region": updated})
}

func (h *RegionHandler) UpdateVisibility(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "update_region_visibility")

	id := r.PathValue("id")
	if id == "" {
		response.Error(w, r, logger, errors.Validation("region id is required"))
		return
	}

	var body struct {
		Visibility *region.VisibilityInput `json:"visibility"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}

	updated, err := h.service.UpdateVisibility(ctx, id, body.Visibility)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]interface{}{"region": updated})
}

func (h *RegionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "delete_region")

	id := r.PathValue("id")
	if id == "" {
		response.Error(w, r, logger, errors.Validation("region id is required"))
		return
	}

	if err := h.service.Delete(ctx, id); err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Isolated lists regions with no outgoing connections so the curation UI
// can flag floating nodes.
func (h *RegionHandler) Isolated(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "isolated_regions")

	isolated, err := h.service.Isolated(ctx)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	if isolated == nil {
		isolated = []region.Region{}
	}

	response.Success(w, http.StatusOK, map[string]interface{}{"regions": isolated})
}

// Repair drops dangling connection references across the whole region
// set, typically after a bulk import.
func (h *RegionHandler) Repair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "repair_regions")

	repaired, err := h.service.RepairConnections(ctx)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusOK, map[string]interface{}{"repaired": repaired})
}
