package region

import (
	"context"
	"log/slog"
	"slices"

	"loremap-server/internal/place"
	"loremap-server/internal/shared/errors"
)

// Service owns the authoritative region set: tiered visibility reads,
// curation writes with centralized default resolution, and bulk import
// with id normalization and dangling-reference repair.
type Service struct {
	store  Store
	places *place.Service
	cache  *Cache
	logger *slog.Logger
}

func NewService(store Store, places *place.Service, cache *Cache, logger *slog.Logger) *Service {
	logger.Debug("Initializing region service")

	return &Service{
		store:  store,
		places: places,
		cache:  cache,
		logger: logger,
	}
}

// CreateResult reports the created region together with any embedded
// places that could not be created; place failures do not roll back the
// region itself.
type CreateResult struct {
	Region      *Region      `json:"region"`
	PlaceErrors []PlaceError `json:"placeErrors,omitempty"`
}

// ImportResult is the per-item outcome of a bulk import: the batch never
// fails as a whole for a single bad item.
type ImportResult struct {
	Imported []Region      `json:"regions"`
	Errors   []ImportError `json:"results"`
}

// List returns the regions visible to the given tier, places included.
// Results are cached per tier; cache misses fall through to the store.
func (s *Service) List(ctx context.Context, userType UserType) ([]Region, error) {
	logger := s.logger.With("component", "region_service", "operation", "list", "user_type", userType)

	if _, err := ParseUserType(string(userType)); err != nil {
		return nil, err
	}

	if cached, ok := s.cache.Get(ctx, userType); ok {
		logger.Debug("Serving regions from cache", "count", len(cached))
		return cached, nil
	}

	regions, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.attachAllPlaces(ctx, regions); err != nil {
		return nil, err
	}

	visible, err := VisibleTo(regions, userType)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, userType, visible)

	logger.Debug("Regions listed", "total", len(regions), "visible", len(visible))
	return visible, nil
}

// Get returns one region with its places.
func (s *Service) Get(ctx context.Context, id string) (*Region, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	places, err := s.places.ListByRegion(ctx, id)
	if err != nil {
		return nil, err
	}
	if places == nil {
		places = []place.Place{}
	}
	r.Places = places

	return r, nil
}

// Create persists a new region. Missing ids are generated, position and
// visibility defaults are resolved up front, and connection ids that do
// not exist are dropped. Embedded places are created best-effort: a
// failed place is reported but never rolls back the region.
func (s *Service) Create(ctx context.Context, input RegionInput) (*CreateResult, error) {
	logger := s.logger.With("component", "region_service", "operation", "create")

	r, err := normalizeInput(input)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.IDs(ctx)
	if err != nil {
		return nil, err
	}
	r.Connections = filterConnections(r.Connections, existing)

	if err := s.store.Insert(ctx, r); err != nil {
		return nil, err
	}

	normalized, placeErrors := normalizeEmbeddedPlaces(input.Places, r.ID)
	for _, p := range normalized {
		p := p
		if err := s.places.Create(ctx, &p); err != nil {
			logger.Warn("Embedded place creation failed, continuing",
				"region_id", r.ID, "place_name", p.Name, "error", err)
			placeErrors = append(placeErrors, PlaceError{Name: p.Name, Reason: err.Error()})
			continue
		}
		r.Places = append(r.Places, p)
	}

	s.cache.Invalidate(ctx)

	logger.Info("Region created", "region_id", r.ID, "places", len(r.Places), "place_errors", len(placeErrors))
	return &CreateResult{Region: r, PlaceErrors: placeErrors}, nil
}

// Update applies a partial patch. Only fields present in the patch are
// touched; a connections patch keeps only ids that currently exist, so an
// update can never introduce a dangling reference.
func (s *Service) Update(ctx context.Context, id string, patch RegionPatch) (*Region, error) {
	logger := s.logger.With("component", "region_service", "operation", "update", "region_id", id)

	var existing map[string]struct{}
	if patch.Connections != nil {
		ids, err := s.store.IDs(ctx)
		if err != nil {
			return nil, err
		}
		existing = ids
	}

	updated, err := s.store.UpdateWith(ctx, id, func(r *Region) error {
		if patch.Connections != nil {
			filtered := filterConnections(*patch.Connections, existing)
			patch.Connections = &filtered
		}
		applyPatch(r, patch)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)

	logger.Info("Region updated")
	return s.Get(ctx, updated.ID)
}

// UpdateVisibility is the narrow patch behind the curation layer's
// per-tier toggles. Flags absent from the patch keep their current value.
func (s *Service) UpdateVisibility(ctx context.Context, id string, visibility *VisibilityInput) (*Region, error) {
	logger := s.logger.With("component", "region_service", "operation", "update_visibility", "region_id", id)

	if visibility == nil {
		return nil, errors.Validation("visibility payload is required")
	}

	updated, err := s.store.UpdateWith(ctx, id, func(r *Region) error {
		r.Visibility = applyVisibilityPatch(r.Visibility, visibility)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)

	logger.Info("Region visibility updated",
		"free", updated.Visibility.FreeUsers,
		"signed_in", updated.Visibility.SignedInUsers,
		"premium", updated.Visibility.PremiumUsers)
	return s.Get(ctx, updated.ID)
}

// Delete removes a region, cascades deletion of its places and prunes the
// id from every remaining region's connections.
func (s *Service) Delete(ctx context.Context, id string) error {
	logger := s.logger.With("component", "region_service", "operation", "delete", "region_id", id)

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}

	s.cache.Invalidate(ctx)

	logger.Info("Region deleted")
	return nil
}

// Import ingests a batch of raw region payloads. Items are atomic, the
// batch is best-effort; intra-batch connection references survive id
// assignment. A store-level failure still fails the whole batch.
func (s *Service) Import(ctx context.Context, items []RegionInput) (*ImportResult, error) {
	logger := s.logger.With("component", "region_service", "operation", "import", "batch_size", len(items))

	result := &ImportResult{Imported: []Region{}, Errors: []ImportError{}}
	if len(items) == 0 {
		return result, nil
	}

	existing, err := s.store.IDs(ctx)
	if err != nil {
		return nil, err
	}

	accepted, importErrors := resolveBatch(items, existing)
	result.Errors = append(result.Errors, importErrors...)

	for _, item := range accepted {
		if err := s.store.Insert(ctx, item.region); err != nil {
			if errors.IsConflict(err) {
				result.Errors = append(result.Errors, ImportError{Index: item.index, Reason: err.Error()})
				continue
			}
			// Store-level failures are not per-item problems.
			return nil, err
		}
		result.Imported = append(result.Imported, *item.region)
	}

	slices.SortStableFunc(result.Errors, func(a, b ImportError) int { return a.Index - b.Index })

	if len(result.Imported) > 0 {
		s.cache.Invalidate(ctx)
	}

	logger.Info("Bulk import completed", "imported", len(result.Imported), "errors", len(result.Errors))
	return result, nil
}

// Places returns the places owned by a region, or a not found error when
// the region does not exist.
func (s *Service) Places(ctx context.Context, regionID string) ([]place.Place, error) {
	if _, err := s.store.Get(ctx, regionID); err != nil {
		return nil, err
	}

	places, err := s.places.ListByRegion(ctx, regionID)
	if err != nil {
		return nil, err
	}
	if places == nil {
		places = []place.Place{}
	}
	return places, nil
}

// Isolated returns regions with no outgoing connections, used by the
// curation layer to flag floating nodes.
func (s *Service) Isolated(ctx context.Context) ([]Region, error) {
	regions, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	return FindIsolatedRegions(regions), nil
}

// RepairConnections drops dangling connection ids across the whole set.
// Best-effort: individual write failures are logged and skipped, never
// surfaced.
func (s *Service) RepairConnections(ctx context.Context) (int, error) {
	logger := s.logger.With("component", "region_service", "operation", "repair_connections")

	regions, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}

	cleaned := RepairDanglingConnections(regions)

	repaired := 0
	for i := range regions {
		if slices.Equal(regions[i].Connections, cleaned[i].Connections) {
			continue
		}
		kept := cleaned[i].Connections
		if _, err := s.store.UpdateWith(ctx, regions[i].ID, func(r *Region) error {
			r.Connections = kept
			return nil
		}); err != nil {
			logger.Warn("Failed to repair region connections, skipping",
				"region_id", regions[i].ID, "error", err)
			continue
		}
		repaired++
	}

	if repaired > 0 {
		s.cache.Invalidate(ctx)
	}

	logger.Info("Connection repair completed", "repaired", repaired)
	return repaired, nil
}

// AddConnection appends a single directed edge from one region to another.
// The edit happens under the store's per-region lock, so concurrent adds
// to the same region cannot overwrite each other.
func (s *Service) AddConnection(ctx context.Context, id, to string) (*Region, error) {
	existing, err := s.store.IDs(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := existing[to]; !ok {
		return nil, errors.NotFoundf("region %q not found", to)
	}

	updated, err := s.store.UpdateWith(ctx, id, func(r *Region) error {
		if !slices.Contains(r.Connections, to) {
			r.Connections = append(r.Connections, to)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.cache.Invalidate(ctx)
	return updated, nil
}

// ConnectRegions creates a bidirectional link by issuing two directed
// updates. Symmetry is caller policy; the core never enforces it.
func (s *Service) ConnectRegions(ctx context.Context, a, b string) error {
	if _, err := s.AddConnection(ctx, a, b); err != nil {
		return err
	}
	if _, err := s.AddConnection(ctx, b, a); err != nil {
		return err
	}
	return nil
}

// attachAllPlaces loads every place once and distributes them onto their
// owning regions, avoiding a query per region on list reads.
func (s *Service) attachAllPlaces(ctx context.Context, regions []Region) error {
	places, err := s.places.ListAll(ctx)
	if err != nil {
		return err
	}

	byRegion := make(map[string][]place.Place, len(regions))
	for _, p := range places {
		byRegion[p.RegionID] = append(byRegion[p.RegionID], p)
	}

	for i := range regions {
		owned := byRegion[regions[i].ID]
		if owned == nil {
			owned = []place.Place{}
		}
		regions[i].Places = owned
	}
	return nil
}
