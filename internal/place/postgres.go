package place

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"loremap-server/internal/shared/database"
	"loremap-server/internal/shared/errors"

	"github.com/lib/pq"
)

type PostgresStore struct {
	db     *database.DB
	logger *slog.Logger
}

func NewPostgresStore(db *database.DB, logger *slog.Logger) *PostgresStore {
	logger.Debug("Initializing place store")

	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

const placeColumns = `id, region_id, name, type, position_x, position_y, size, importance, connections, routes, created_at, updated_at`

func scanPlace(scanner interface{ Scan(...interface{}) error }) (*Place, error) {
	var p Place
	var routesJSON []byte

	err := scanner.Scan(
		&p.ID,
		&p.RegionID,
		&p.Name,
		&p.Type,
		&p.Position.X,
		&p.Position.Y,
		&p.Size,
		&p.Importance,
		pq.Array(&p.Connections),
		&routesJSON,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(routesJSON) > 0 {
		if err := json.Unmarshal(routesJSON, &p.Routes); err != nil {
			return nil, fmt.Errorf("failed to decode place routes: %w", err)
		}
	}
	if p.Connections == nil {
		p.Connections = []string{}
	}
	if p.Routes == nil {
		p.Routes = []Route{}
	}

	return &p, nil
}

func (s *PostgresStore) Insert(ctx context.Context, p *Place) error {
	logger := s.logger.With(
		"component", "place_store",
		"operation", "insert",
		"place_id", p.ID,
		"region_id", p.RegionID,
	)
	logger.Debug("Inserting place")

	routesJSON, err := json.Marshal(p.Routes)
	if err != nil {
		return errors.WrapInternal("failed to encode place routes", err)
	}

	query := `
		INSERT INTO places (id, region_id, name, type, position_x, position_y, size, importance, connections, routes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	err = s.db.QueryRowContext(ctx, query,
		p.ID,
		p.RegionID,
		p.Name,
		p.Type,
		p.Position.X,
		p.Position.Y,
		p.Size,
		p.Importance,
		pq.Array(p.Connections),
		routesJSON,
	).Scan(&p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.Conflictf("place id %q already exists", p.ID)
		}
		logger.Error("Failed to insert place", "error", err)
		return errors.WrapInternal("failed to insert place", err)
	}

	logger.Debug("Place inserted")
	return nil
}

func (s *PostgresStore) ListByRegion(ctx context.Context, regionID string) ([]Place, error) {
	logger := s.logger.With("component", "place_store", "operation", "list_by_region", "region_id", regionID)

	query := fmt.Sprintf(`
		SELECT %s
		FROM places
		WHERE region_id = $1
		ORDER BY created_at, id`, placeColumns)

	rows, err := s.db.QueryContext(ctx, query, regionID)
	if err != nil {
		logger.Error("Failed to query places", "error", err)
		return nil, errors.WrapInternal("failed to query places", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var places []Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			logger.Error("Failed to scan place row", "error", err)
			return nil, errors.WrapInternal("failed to scan place", err)
		}
		places = append(places, *p)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, errors.WrapInternal("error iterating places", err)
	}

	logger.Debug("Places retrieved", "count", len(places))
	return places, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Place, error) {
	logger := s.logger.With("component", "place_store", "operation", "list_all")

	query := fmt.Sprintf(`
		SELECT %s
		FROM places
		ORDER BY region_id, created_at, id`, placeColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		logger.Error("Failed to query places", "error", err)
		return nil, errors.WrapInternal("failed to query places", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var places []Place
	for rows.Next() {
		p, err := scanPlace(rows)
		if err != nil {
			logger.Error("Failed to scan place row", "error", err)
			return nil, errors.WrapInternal("failed to scan place", err)
		}
		places = append(places, *p)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, errors.WrapInternal("error iterating places", err)
	}

	return places, nil
}
