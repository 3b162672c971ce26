package place

import (
	"context"
	"log/slog"
)

type Service struct {
	store  Store
	logger *slog.Logger
}

func NewService(store Store, logger *slog.Logger) *Service {
	logger.Debug("Initializing place service")

	return &Service{
		store:  store,
		logger: logger,
	}
}

// Create persists an already-normalized place.
func (s *Service) Create(ctx context.Context, p *Place) error {
	logger := s.logger.With("component", "place_service", "operation", "create", "place_id", p.ID, "region_id", p.RegionID)

	if err := s.store.Insert(ctx, p); err != nil {
		logger.Error("Failed to create place", "error", err)
		return err
	}

	logger.Debug("Place created")
	return nil
}

// ListByRegion returns the places owned by a region.
func (s *Service) ListByRegion(ctx context.Context, regionID string) ([]Place, error) {
	return s.store.ListByRegion(ctx, regionID)
}

// ListAll returns every place, used when assembling full region payloads.
func (s *Service) ListAll(ctx context.Context) ([]Place, error) {
	return s.store.ListAll(ctx)
}
