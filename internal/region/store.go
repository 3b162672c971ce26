package region

import "context"

// Store is the persistence boundary for regions. The service holds no
// module-level mutable state; everything goes through an injected Store.
//
// Implementations must serialize UpdateWith per region id so that two
// concurrent read-modify-write updates to the same region cannot
// overwrite each other's connection edits.
type Store interface {
	// List returns all regions without their places, insertion order first.
	List(ctx context.Context) ([]Region, error)
	// Get returns one region without its places, or a not found error.
	Get(ctx context.Context, id string) (*Region, error)
	// IDs returns the set of existing region ids.
	IDs(ctx context.Context) (map[string]struct{}, error)
	// Insert persists a region and any embedded places atomically.
	// Returns a conflict error when the region id is taken.
	Insert(ctx context.Context, r *Region) error
	// UpdateWith loads the region, applies the mutation under a per-row
	// lock and persists the result. Returns a not found error when the id
	// does not exist; the mutation's error aborts the update unchanged.
	UpdateWith(ctx context.Context, id string, apply func(*Region) error) (*Region, error)
	// Delete removes the region, cascades deletion of its places and
	// prunes the id from every other region's connections. Returns a not
	// found error when the id does not exist.
	Delete(ctx context.Context, id string) error
}
