package region

import (
	"context"
	"database/sql"
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
	logger.Debug("Initializing region store")

	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

const regionColumns = `id, name, subtitle, description, position_x, position_y, color,
	key_locations, population, threat, connections,
	visible_free, visible_signed_in, visible_premium, created_at, updated_at`

func scanRegion(scanner interface{ Scan(...interface{}) error }) (*Region, error) {
	var r Region
	r.Visibility = &VisibilityFlags{}

	err := scanner.Scan(
		&r.ID,
		&r.Name,
		&r.Subtitle,
		&r.Description,
		&r.Position.X,
		&r.Position.Y,
		&r.Color,
		pq.Array(&r.KeyLocations),
		&r.Population,
		&r.Threat,
		pq.Array(&r.Connections),
		&r.Visibility.FreeUsers,
		&r.Visibility.SignedInUsers,
		&r.Visibility.PremiumUsers,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.KeyLocations == nil {
		r.KeyLocations = []string{}
	}
	if r.Connections == nil {
		r.Connections = []string{}
	}
	return &r, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Region, error) {
	logger := s.logger.With("component", "region_store", "operation", "list")

	query := fmt.Sprintf(`
		SELECT %s
		FROM regions
		ORDER BY created_at, id`, regionColumns)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		logger.Error("Failed to query regions", "error", err)
		return nil, errors.WrapInternal("failed to query regions", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logger.Error("Failed to close rows", "error", err)
		}
	}()

	var regions []Region
	for rows.Next() {
		r, err := scanRegion(rows)
		if err != nil {
			logger.Error("Failed to scan region row", "error", err)
			return nil, errors.WrapInternal("failed to scan region", err)
		}
		regions = append(regions, *r)
	}

	if err := rows.Err(); err != nil {
		logger.Error("Error during rows iteration", "error", err)
		return nil, errors.WrapInternal("error iterating regions", err)
	}

	logger.Debug("Regions retrieved", "count", len(regions))
	return regions, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*Region, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM regions
		WHERE id = $1`, regionColumns)

	r, err := scanRegion(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundf("region %q not found", id)
		}
		s.logger.Error("Failed to get region", "component", "region_store", "region_id", id, "error", err)
		return nil, errors.WrapInternal("failed to get region", err)
	}

	return r, nil
}

func (s *PostgresStore) IDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM regions`)
	if err != nil {
		s.logger.Error("Failed to query region ids", "component", "region_store", "error", err)
		return nil, errors.WrapInternal("failed to query region ids", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			s.logger.Error("Failed to close rows", "component", "region_store", "error", err)
		}
	}()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.WrapInternal("failed to scan region id", err)
		}
		ids[id] = struct{}{}
	}

	if err := rows.Err(); err != nil {
		return nil, errors.WrapInternal("error iterating region ids", err)
	}

	return ids, nil
}

func (s *PostgresStore) Insert(ctx context.Context, r *Region) error {
	logger := s.logger.With(
		"component", "region_store",
		"operation", "insert",
		"region_id", r.ID,
		"places", len(r.Places),
	)
	logger.Debug("Inserting region")

	tx, err := s.db.BeginTxContext(ctx)
	if err != nil {
		return errors.WrapInternal("failed to begin transaction", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logger.Error("Failed to rollback transaction", "error", err)
		}
	}()

	query := `
		INSERT INTO regions (id, name, subtitle, description, position_x, position_y, color,
			key_locations, population, threat, connections,
			visible_free, visible_signed_in, visible_premium)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at`

	err = tx.QueryRowContext(ctx, query,
		r.ID,
		r.Name,
		r.Subtitle,
		r.Description,
		r.Position.X,
		r.Position.Y,
		r.Color,
		pq.Array(r.KeyLocations),
		r.Population,
		r.Threat,
		pq.Array(r.Connections),
		r.Visibility.FreeUsers,
		r.Visibility.SignedInUsers,
		r.Visibility.PremiumUsers,
	).Scan(&r.CreatedAt, &r.UpdatedAt)

	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.Conflictf("region id %q already exists", r.ID)
		}
		logger.Error("Failed to insert region", "error", err)
		return errors.WrapInternal("failed to insert region", err)
	}

	for i := range r.Places {
		p := &r.Places[i]

		routesJSON, err := json.Marshal(p.Routes)
		if err != nil {
			return errors.WrapInternal("failed to encode place routes", err)
		}

		placeQuery := `
			INSERT INTO places (id, region_id, name, type, position_x, position_y, size, importance, connections, routes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at`

		err = tx.QueryRowContext(ctx, placeQuery,
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
			logger.Error("Failed to insert embedded place", "place_id", p.ID, "error", err)
			return errors.WrapInternal("failed to insert place", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapInternal("failed to commit region insert", err)
	}

	logger.Debug("Region inserted")
	return nil
}

// UpdateWith serializes concurrent edits to one region behind a row lock,
// so read-modify-write updates to connections cannot clobber each other.
func (s *PostgresStore) UpdateWith(ctx context.Context, id string, apply func(*Region) error) (*Region, error) {
	logger := s.logger.With("component", "region_store", "operation", "update", "region_id", id)

	tx, err := s.db.BeginTxContext(ctx)
	if err != nil {
		return nil, errors.WrapInternal("failed to begin transaction", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logger.Error("Failed to rollback transaction", "error", err)
		}
	}()

	query := fmt.Sprintf(`
		SELECT %s
		FROM regions
		WHERE id = $1
		FOR UPDATE`, regionColumns)

	r, err := scanRegion(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NotFoundf("region %q not found", id)
		}
		logger.Error("Failed to load region for update", "error", err)
		return nil, errors.WrapInternal("failed to load region for update", err)
	}

	if err := apply(r); err != nil {
		return nil, err
	}

	updateQuery := `
		UPDATE regions
		SET name = $2, subtitle = $3, description = $4, position_x = $5, position_y = $6,
			color = $7, key_locations = $8, population = $9, threat = $10, connections = $11,
			visible_free = $12, visible_signed_in = $13, visible_premium = $14, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err = tx.QueryRowContext(ctx, updateQuery,
		r.ID,
		r.Name,
		r.Subtitle,
		r.Description,
		r.Position.X,
		r.Position.Y,
		r.Color,
		pq.Array(r.KeyLocations),
		r.Population,
		r.Threat,
		pq.Array(r.Connections),
		r.Visibility.FreeUsers,
		r.Visibility.SignedInUsers,
		r.Visibility.PremiumUsers,
	).Scan(&r.UpdatedAt)

	if err != nil {
		logger.Error("Failed to update region", "error", err)
		return nil, errors.WrapInternal("failed to update region", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.WrapInternal("failed to commit region update", err)
	}

	logger.Debug("Region updated")
	return r, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	logger := s.logger.With("component", "region_store", "operation", "delete", "region_id", id)

	tx, err := s.db.BeginTxContext(ctx)
	if err != nil {
		return errors.WrapInternal("failed to begin transaction", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			logger.Error("Failed to rollback transaction", "error", err)
		}
	}()

	// The FK on places is ON DELETE CASCADE; the explicit delete mirrors
	// the cascade at the application layer so the contract holds even on
	// stores that lack it.
	if _, err := tx.ExecContext(ctx, `DELETE FROM places WHERE region_id = $1`, id); err != nil {
		logger.Error("Failed to delete places for region", "error", err)
		return errors.WrapInternal("failed to delete places", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM regions WHERE id = $1`, id)
	if err != nil {
		logger.Error("Failed to delete region", "error", err)
		return errors.WrapInternal("failed to delete region", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.WrapInternal("failed to read delete result", err)
	}
	if affected == 0 {
		return errors.NotFoundf("region %q not found", id)
	}

	pruneQuery := `
		UPDATE regions
		SET connections = array_remove(connections, $1), updated_at = NOW()
		WHERE $1 = ANY(connections)`

	pruned, err := tx.ExecContext(ctx, pruneQuery, id)
	if err != nil {
		logger.Error("Failed to prune connections to deleted region", "error", err)
		return errors.WrapInternal("failed to prune connections", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.WrapInternal("failed to commit region delete", err)
	}

	prunedCount, _ := pruned.RowsAffected()
	logger.Info("Region deleted", "pruned_regions", prunedCount)
	return nil
}
