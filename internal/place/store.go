package place

import "context"

// Store is the persistence boundary for places. The service holds no
// state of its own; everything goes through an injected Store.
type Store interface {
	// Insert persists a place. Returns a conflict error when the id is taken.
	Insert(ctx context.Context, p *Place) error
	// ListByRegion returns the places owned by a region, oldest first.
	ListByRegion(ctx context.Context, regionID string) ([]Place, error)
	// ListAll returns every place across all regions.
	ListAll(ctx context.Context) ([]Place, error)
}
