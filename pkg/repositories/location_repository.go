package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

// LocationRepository reads and seeds the district/tehsil/village hierarchy.
type LocationRepository interface {
	ListDistricts(ctx context.Context) ([]*models.District, error)
	ListTehsils(ctx context.Context, districtID uuid.UUID) ([]*models.Tehsil, error)
	ListVillages(ctx context.Context, tehsilID uuid.UUID) ([]*models.Village, error)
	// ResolveVillage returns the tehsil and district a village belongs to.
	ResolveVillage(ctx context.Context, villageID uuid.UUID) (*models.VillageLocation, error)

	// Upsert methods are idempotent on name within the parent and return the row id.
	UpsertDistrict(ctx context.Context, name string) (uuid.UUID, error)
	UpsertTehsil(ctx context.Context, districtID uuid.UUID, name string) (uuid.UUID, error)
	UpsertVillage(ctx context.Context, tehsilID uuid.UUID, name string, population int) (uuid.UUID, error)
}

type locationRepository struct{}

// NewLocationRepository creates a new LocationRepository.
func NewLocationRepository() LocationRepository {
	return &locationRepository{}
}

var _ LocationRepository = (*locationRepository)(nil)

func (r *locationRepository) ListDistricts(ctx context.Context) ([]*models.District, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `SELECT id, name FROM districts ORDER BY name`)
	if err != nil {
		return nil, wrap("list districts", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.District, error) {
		var d models.District
		return &d, row.Scan(&d.ID, &d.Name)
	})
}

func (r *locationRepository) ListTehsils(ctx context.Context, districtID uuid.UUID) ([]*models.Tehsil, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `SELECT id, district_id, name FROM tehsils WHERE district_id = $1 ORDER BY name`, districtID)
	if err != nil {
		return nil, wrap("list tehsils", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Tehsil, error) {
		var t models.Tehsil
		return &t, row.Scan(&t.ID, &t.DistrictID, &t.Name)
	})
}

func (r *locationRepository) ListVillages(ctx context.Context, tehsilID uuid.UUID) ([]*models.Village, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := scope.Conn.Query(ctx, `SELECT id, tehsil_id, name, population FROM villages WHERE tehsil_id = $1 ORDER BY name`, tehsilID)
	if err != nil {
		return nil, wrap("list villages", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Village, error) {
		var v models.Village
		return &v, row.Scan(&v.ID, &v.TehsilID, &v.Name, &v.Population)
	})
}

func (r *locationRepository) ResolveVillage(ctx context.Context, villageID uuid.UUID) (*models.VillageLocation, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	var loc models.VillageLocation
	err = scope.Conn.QueryRow(ctx, `
		SELECT v.id, t.id, t.district_id
		FROM villages v
		JOIN tehsils t ON t.id = v.tehsil_id
		WHERE v.id = $1`, villageID).Scan(&loc.VillageID, &loc.TehsilID, &loc.DistrictID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: village %s", apperrors.ErrNotFound, villageID)
		}
		return nil, wrap("resolve village", err)
	}
	return &loc, nil
}

func (r *locationRepository) upsert(ctx context.Context, query string, args ...any) (uuid.UUID, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	var id uuid.UUID
	if err := scope.Conn.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return uuid.Nil, wrap("upsert location", err)
	}
	return id, nil
}

// The no-op DO UPDATE makes RETURNING yield the existing id on conflict.

func (r *locationRepository) UpsertDistrict(ctx context.Context, name string) (uuid.UUID, error) {
	return r.upsert(ctx, `
		INSERT INTO districts (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, name)
}

func (r *locationRepository) UpsertTehsil(ctx context.Context, districtID uuid.UUID, name string) (uuid.UUID, error) {
	return r.upsert(ctx, `
		INSERT INTO tehsils (district_id, name) VALUES ($1, $2)
		ON CONFLICT (district_id, name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, districtID, name)
}

func (r *locationRepository) UpsertVillage(ctx context.Context, tehsilID uuid.UUID, name string, population int) (uuid.UUID, error) {
	return r.upsert(ctx, `
		INSERT INTO villages (tehsil_id, name, population) VALUES ($1, $2, $3)
		ON CONFLICT (tehsil_id, name) DO UPDATE SET population = EXCLUDED.population
		RETURNING id`, tehsilID, name, population)
}
