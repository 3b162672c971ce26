package region

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"loremap-server/internal/place"
	"loremap-server/internal/shared/errors"
)

// memStore is an in-memory Store used to exercise the service without a
// database. UpdateWith holds the store lock across the mutation, matching
// the per-region serialization the Postgres store provides via row locks.
type memStore struct {
	mu      sync.Mutex
	regions map[string]*Region
	order   []string
	places  map[string][]place.Place
}

func newMemStore() *memStore {
	return &memStore{
		regions: make(map[string]*Region),
		places:  make(map[string][]place.Place),
	}
}

func cloneRegion(r *Region) *Region {
	c := *r
	c.KeyLocations = append([]string{}, r.KeyLocations...)
	c.Connections = append([]string{}, r.Connections...)
	if r.Visibility != nil {
		v := *r.Visibility
		c.Visibility = &v
	}
	c.Places = nil
	return &c
}

func (m *memStore) List(ctx context.Context) ([]Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	regions := make([]Region, 0, len(m.order))
	for _, id := range m.order {
		regions = append(regions, *cloneRegion(m.regions[id]))
	}
	return regions, nil
}

func (m *memStore) Get(ctx context.Context, id string) (*Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.regions[id]
	if !ok {
		return nil, errors.NotFoundf("region %q not found", id)
	}
	return cloneRegion(r), nil
}

func (m *memStore) IDs(ctx context.Context) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make(map[string]struct{}, len(m.regions))
	for id := range m.regions {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *memStore) Insert(ctx context.Context, r *Region) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.regions[r.ID]; taken {
		return errors.Conflictf("region id %q already exists", r.ID)
	}

	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now

	stored := cloneRegion(r)
	m.regions[r.ID] = stored
	m.order = append(m.order, r.ID)

	for _, p := range r.Places {
		m.places[r.ID] = append(m.places[r.ID], p)
	}
	return nil
}

func (m *memStore) UpdateWith(ctx context.Context, id string, apply func(*Region) error) (*Region, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.regions[id]
	if !ok {
		return nil, errors.NotFoundf("region %q not found", id)
	}

	working := cloneRegion(stored)
	if err := apply(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()
	m.regions[id] = working

	return cloneRegion(working), nil
}

func (m *memStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.regions[id]; !ok {
		return errors.NotFoundf("region %q not found", id)
	}

	delete(m.regions, id)
	delete(m.places, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}

	for _, r := range m.regions {
		kept := r.Connections[:0]
		for _, conn := range r.Connections {
			if conn != id {
				kept = append(kept, conn)
			}
		}
		r.Connections = kept
	}
	return nil
}

type memPlaceStore struct {
	s *memStore
}

func (m *memPlaceStore) Insert(ctx context.Context, p *place.Place) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, owned := range m.s.places {
		for _, existing := range owned {
			if existing.ID == p.ID {
				return errors.Conflictf("place id %q already exists", p.ID)
			}
		}
	}

	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	m.s.places[p.RegionID] = append(m.s.places[p.RegionID], *p)
	return nil
}

func (m *memPlaceStore) ListByRegion(ctx context.Context, regionID string) ([]place.Place, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	return append([]place.Place{}, m.s.places[regionID]...), nil
}

func (m *memPlaceStore) ListAll(ctx context.Context) ([]place.Place, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var all []place.Place
	for _, id := range m.s.order {
		all = append(all, m.s.places[id]...)
	}
	return all, nil
}

func newTestService(t *testing.T) (*Service, *memStore) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := newMemStore()
	placeService := place.NewService(&memPlaceStore{s: store}, logger)

	return NewService(store, placeService, nil, logger), store
}

func TestServiceCreate_ResolvesDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Create(ctx, RegionInput{Name: "Ashlands", Subtitle: "The burnt coast"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	r := result.Region
	if r.ID == "" {
		t.Error("expected a generated id")
	}
	if r.Position.X != 0 || r.Position.Y != 0 {
		t.Errorf("position = %+v, want {0 0}", r.Position)
	}
	if r.Visibility == nil || !r.Visibility.FreeUsers || !r.Visibility.SignedInUsers || !r.Visibility.PremiumUsers {
		t.Errorf("visibility = %+v, want all true", r.Visibility)
	}
	if len(r.Connections) != 0 {
		t.Errorf("connections = %v, want empty", r.Connections)
	}
}

func TestServiceCreate_PartialPositionDefaultsMissingAxis(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	x := 42.5
	result, err := svc.Create(ctx, RegionInput{
		Name:     "Mistfen",
		Subtitle: "s",
		Position: &PositionInput{X: &x},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if result.Region.Position.X != 42.5 || result.Region.Position.Y != 0 {
		t.Errorf("position = %+v, want {42.5 0}", result.Region.Position)
	}
}

func TestServiceCreate_RequiresName(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), RegionInput{Subtitle: "s"})
	if err == nil || errors.GetType(err) != errors.ErrorTypeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceCreate_ExplicitIDCollisionConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, RegionInput{ID: "ash", Name: "A", Subtitle: "a"}); err != nil {
		t.Fatalf("first create: %v", err)
	}

	_, err := svc.Create(ctx, RegionInput{ID: "ash", Name: "B", Subtitle: "b"})
	if !errors.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}
}

func TestServiceCreate_DropsUnknownConnections(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, RegionInput{ID: "a", Name: "A", Subtitle: "a"}); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Create(ctx, RegionInput{
		ID: "b", Name: "B", Subtitle: "b",
		Connections: []string{"a", "ghost"},
	})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(result.Region.Connections, []string{"a"}) {
		t.Errorf("connections = %v, want [a]", result.Region.Connections)
	}
}

func TestServiceCreate_EmbeddedPlaceFailureDoesNotRollBackRegion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Create(ctx, RegionInput{
		ID: "ash", Name: "Ashlands", Subtitle: "s",
		Places: []place.PlaceInput{
			{Name: "Harbor"},
			{Name: ""}, // invalid, reported but not fatal
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if len(result.PlaceErrors) != 1 {
		t.Fatalf("place errors = %v, want 1", result.PlaceErrors)
	}
	if len(result.Region.Places) != 1 || result.Region.Places[0].Name != "Harbor" {
		t.Errorf("region places = %v, want only Harbor", result.Region.Places)
	}

	places, err := svc.Places(ctx, "ash")
	if err != nil {
		t.Fatal(err)
	}
	if len(places) != 1 {
		t.Errorf("persisted places = %d, want 1", len(places))
	}
}

func TestServiceUpdate_PartialPatchLeavesOtherFieldsAlone(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	x, y := 10.0, 20.0
	hidden := false
	created, err := svc.Create(ctx, RegionInput{
		ID: "ash", Name: "Ashlands", Subtitle: "The burnt coast",
		Position:    &PositionInput{X: &x, Y: &y},
		Connections: []string{},
		Visibility:  &VisibilityInput{PremiumUsers: &hidden},
	})
	if err != nil {
		t.Fatal(err)
	}

	threat := "Low"
	updated, err := svc.Update(ctx, "ash", RegionPatch{Threat: &threat})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if updated.Threat != "Low" {
		t.Errorf("threat = %q, want Low", updated.Threat)
	}
	if updated.Name != created.Region.Name {
		t.Errorf("name changed: %q", updated.Name)
	}
	if updated.Position != created.Region.Position {
		t.Errorf("position changed: %+v", updated.Position)
	}
	if !reflect.DeepEqual(updated.Connections, created.Region.Connections) {
		t.Errorf("connections changed: %v", updated.Connections)
	}
	if *updated.Visibility != *created.Region.Visibility {
		t.Errorf("visibility changed: %+v", updated.Visibility)
	}
}

func TestServiceUpdate_FiltersConnectionsToExistingRegions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if _, err := svc.Create(ctx, RegionInput{ID: id, Name: id, Subtitle: "s"}); err != nil {
			t.Fatal(err)
		}
	}

	conns := []string{"b", "ghost"}
	updated, err := svc.Update(ctx, "a", RegionPatch{Connections: &conns})
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(updated.Connections, []string{"b"}) {
		t.Errorf("connections = %v, want [b]", updated.Connections)
	}
}

func TestServiceUpdate_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	name := "Nowhere"
	_, err := svc.Update(context.Background(), "missing", RegionPatch{Name: &name})
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestServiceUpdateVisibility_TogglesSingleFlag(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, RegionInput{ID: "ash", Name: "A", Subtitle: "a"}); err != nil {
		t.Fatal(err)
	}

	off := false
	updated, err := svc.UpdateVisibility(ctx, "ash", &VisibilityInput{FreeUsers: &off})
	if err != nil {
		t.Fatalf("UpdateVisibility: %v", err)
	}

	if updated.Visibility.FreeUsers {
		t.Error("freeUsers still true after toggle")
	}
	if !updated.Visibility.SignedInUsers || !updated.Visibility.PremiumUsers {
		t.Errorf("other flags changed: %+v", updated.Visibility)
	}
}

func TestServiceUpdateVisibility_RequiresPayload(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.UpdateVisibility(context.Background(), "ash", nil)
	if err == nil || errors.GetType(err) != errors.ErrorTypeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServiceDelete_CascadesPlacesAndPrunesConnections(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, RegionInput{
		ID: "a", Name: "A", Subtitle: "a",
		Places: []place.PlaceInput{{Name: "Harbor"}},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, RegionInput{
		ID: "b", Name: "B", Subtitle: "b",
		Connections: []string{"a"},
	}); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, err := svc.Places(ctx, "a"); !errors.IsNotFound(err) {
		t.Errorf("expected not found for deleted region's places, got %v", err)
	}
	if got := store.places["a"]; len(got) != 0 {
		t.Errorf("places of deleted region still stored: %v", got)
	}

	b, err := svc.Get(ctx, "b")
	if err != nil {
		t.Fatal(err)
	}
	if len(b.Connections) != 0 {
		t.Errorf("b still references deleted region: %v", b.Connections)
	}
}

func TestServiceDelete_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.Delete(context.Background(), "missing")
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}

func TestServiceImport_EmptyBatch(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Import(context.Background(), nil)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.Imported) != 0 || len(result.Errors) != 0 {
		t.Errorf("result = %+v, want empty", result)
	}
}

func TestServiceImport_PartialSuccess(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.Import(context.Background(), []RegionInput{
		{Name: "A", Subtitle: "a"},
		{Subtitle: "missing name"},
		{Name: "C", Subtitle: "c"},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}

	if len(result.Imported) != 2 {
		t.Errorf("imported = %d, want 2", len(result.Imported))
	}
	if len(result.Errors) != 1 || result.Errors[0].Index != 1 {
		t.Errorf("errors = %v, want one at index 1", result.Errors)
	}
}

func TestServiceImport_IntraBatchConnectionsResolve(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Import(ctx, []RegionInput{
		{Name: "A", Subtitle: "a", Connections: []string{"B-temp-ref"}},
		{ID: "B-temp-ref", Name: "B", Subtitle: "b"},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.Imported) != 2 {
		t.Fatalf("imported = %d, want 2", len(result.Imported))
	}

	finalB := result.Imported[1].ID
	if !reflect.DeepEqual(result.Imported[0].Connections, []string{finalB}) {
		t.Errorf("A connections = %v, want [%s]", result.Imported[0].Connections, finalB)
	}

	a, err := svc.Get(ctx, result.Imported[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Connections, []string{finalB}) {
		t.Errorf("persisted A connections = %v, want [%s]", a.Connections, finalB)
	}
}

func TestServiceImport_CollisionWithExistingSet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, RegionInput{ID: "ash", Name: "Ashlands", Subtitle: "s"}); err != nil {
		t.Fatal(err)
	}

	result, err := svc.Import(ctx, []RegionInput{
		{ID: "ash", Name: "Impostor", Subtitle: "s"},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.Imported) != 0 {
		t.Errorf("imported = %d, want 0", len(result.Imported))
	}
	if len(result.Errors) != 1 || result.Errors[0].Index != 0 {
		t.Errorf("errors = %v, want one at index 0", result.Errors)
	}

	original, err := svc.Get(ctx, "ash")
	if err != nil {
		t.Fatal(err)
	}
	if original.Name != "Ashlands" {
		t.Errorf("existing region was overwritten: %q", original.Name)
	}
}

func TestServiceImport_ImportedWithNestedPlaces(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Import(ctx, []RegionInput{
		{Name: "A", Subtitle: "a", Places: []place.PlaceInput{{Name: "Harbor"}, {Name: "Keep"}}},
	})
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(result.Imported) != 1 {
		t.Fatalf("imported = %d, want 1", len(result.Imported))
	}

	places, err := svc.Places(ctx, result.Imported[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(places) != 2 {
		t.Errorf("nested places = %d, want 2", len(places))
	}
	for _, p := range places {
		if p.RegionID != result.Imported[0].ID {
			t.Errorf("place %s owned by %q, want %q", p.Name, p.RegionID, result.Imported[0].ID)
		}
	}
}

func TestServiceEndToEnd_ConnectionsAreDirectional(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, RegionInput{ID: "a", Name: "A", Subtitle: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, RegionInput{ID: "b", Name: "B", Subtitle: "b", Connections: []string{"a"}}); err != nil {
		t.Fatal(err)
	}

	// A has no outgoing connection even though B points at it.
	isolated, err := svc.Isolated(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(isolated) != 1 || isolated[0].ID != "a" {
		t.Fatalf("isolated = %v, want [a]", isolated)
	}

	if err := svc.Delete(ctx, "b"); err != nil {
		t.Fatal(err)
	}

	// A never referenced B, so repair has nothing to do.
	repaired, err := svc.RepairConnections(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if repaired != 0 {
		t.Errorf("repaired = %d, want 0", repaired)
	}
}

func TestServiceRepairConnections_DropsDanglingReferences(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if _, err := svc.Create(ctx, RegionInput{ID: id, Name: id, Subtitle: "s"}); err != nil {
			t.Fatal(err)
		}
	}

	// Corrupt the stored data directly, as a buggy client or an old
	// import without pruning would have.
	store.mu.Lock()
	store.regions["a"].Connections = []string{"b", "ghost"}
	store.mu.Unlock()

	repaired, err := svc.RepairConnections(ctx)
	if err != nil {
		t.Fatalf("RepairConnections: %v", err)
	}
	if repaired != 1 {
		t.Errorf("repaired = %d, want 1", repaired)
	}

	a, err := svc.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a.Connections, []string{"b"}) {
		t.Errorf("a connections = %v, want [b]", a.Connections)
	}
}

func TestServiceAddConnection_ConcurrentAddsDoNotClobber(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"hub", "east", "west"} {
		if _, err := svc.Create(ctx, RegionInput{ID: id, Name: id, Subtitle: "s"}); err != nil {
			t.Fatal(err)
		}
	}

	var wg sync.WaitGroup
	for _, to := range []string{"east", "west"} {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			if _, err := svc.AddConnection(ctx, "hub", to); err != nil {
				t.Errorf("AddConnection(hub, %s): %v", to, err)
			}
		}(to)
	}
	wg.Wait()

	hub, err := svc.Get(ctx, "hub")
	if err != nil {
		t.Fatal(err)
	}
	if len(hub.Connections) != 2 {
		t.Fatalf("hub connections = %v, want both east and west", hub.Connections)
	}
}

func TestServiceConnectRegions_IsSymmetric(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if _, err := svc.Create(ctx, RegionInput{ID: id, Name: id, Subtitle: "s"}); err != nil {
			t.Fatal(err)
		}
	}

	if err := svc.ConnectRegions(ctx, "a", "b"); err != nil {
		t.Fatalf("ConnectRegions: %v", err)
	}

	a, _ := svc.Get(ctx, "a")
	b, _ := svc.Get(ctx, "b")
	if !reflect.DeepEqual(a.Connections, []string{"b"}) {
		t.Errorf("a connections = %v, want [b]", a.Connections)
	}
	if !reflect.DeepEqual(b.Connections, []string{"a"}) {
		t.Errorf("b connections = %v, want [a]", b.Connections)
	}
}

func TestServiceList_FiltersByTierAndAttachesPlaces(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	off := false
	if _, err := svc.Create(ctx, RegionInput{
		ID: "open", Name: "Open", Subtitle: "s",
		Places: []place.PlaceInput{{Name: "Harbor"}},
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, RegionInput{
		ID: "members", Name: "Members", Subtitle: "s",
		Visibility: &VisibilityInput{FreeUsers: &off},
	}); err != nil {
		t.Fatal(err)
	}

	free, err := svc.List(ctx, UserTypeFree)
	if err != nil {
		t.Fatal(err)
	}
	if len(free) != 1 || free[0].ID != "open" {
		t.Fatalf("free tier regions = %v, want [open]", free)
	}
	if len(free[0].Places) != 1 || free[0].Places[0].Name != "Harbor" {
		t.Errorf("places not attached: %v", free[0].Places)
	}

	premium, err := svc.List(ctx, UserTypePremium)
	if err != nil {
		t.Fatal(err)
	}
	if len(premium) != 2 {
		t.Errorf("premium tier regions = %d, want 2", len(premium))
	}
}

func TestServiceList_RejectsUnknownUserType(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.List(context.Background(), UserType("vip"))
	if err == nil || errors.GetType(err) != errors.ErrorTypeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestServicePlaces_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Places(context.Background(), "missing")
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not found error, got %v", err)
	}
}
