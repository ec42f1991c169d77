package services

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
	"github.com/fiscal-tracker/fiscal-engine/pkg/repositories"
)

// LocationSeed is the YAML document accepted by LocationService.Seed.
//
//	districts:
//	  - name: Jaipur
//	    tehsils:
//	      - name: Amer
//	        villages:
//	          - name: Kookas
//	            population: 5200
type LocationSeed struct {
	Districts []DistrictSeed `yaml:"districts"`
}

// DistrictSeed is a district with its tehsils.
type DistrictSeed struct {
	models.District `yaml:",inline"`
	Tehsils         []TehsilSeed `yaml:"tehsils"`
}

// TehsilSeed is a tehsil with its villages.
type TehsilSeed struct {
	models.Tehsil `yaml:",inline"`
	Villages      []models.Village `yaml:"villages"`
}

// SeedStats counts rows touched by a seed run.
type SeedStats struct {
	Districts int
	Tehsils   int
	Villages  int
}

// LocationService serves the district/tehsil/village hierarchy.
type LocationService interface {
	ListDistricts(ctx context.Context) ([]*models.District, error)
	ListTehsils(ctx context.Context, districtID uuid.UUID) ([]*models.Tehsil, error)
	ListVillages(ctx context.Context, tehsilID uuid.UUID) ([]*models.Village, error)
	// Seed upserts a YAML hierarchy. Running it twice is harmless.
	Seed(ctx context.Context, r io.Reader) (*SeedStats, error)
}

type locationService struct {
	repo   repositories.LocationRepository
	logger *zap.Logger
}

// NewLocationService creates a new LocationService.
func NewLocationService(repo repositories.LocationRepository, logger *zap.Logger) LocationService {
	return &locationService{
		repo:   repo,
		logger: logger.Named("locations"),
	}
}

var _ LocationService = (*locationService)(nil)

func (s *locationService) ListDistricts(ctx context.Context) ([]*models.District, error) {
	return s.repo.ListDistricts(ctx)
}

func (s *locationService) ListTehsils(ctx context.Context, districtID uuid.UUID) ([]*models.Tehsil, error) {
	return s.repo.ListTehsils(ctx, districtID)
}

func (s *locationService) ListVillages(ctx context.Context, tehsilID uuid.UUID) ([]*models.Village, error) {
	return s.repo.ListVillages(ctx, tehsilID)
}

// ParseLocationSeed decodes and checks a seed document.
func ParseLocationSeed(r io.Reader) (*LocationSeed, error) {
	var seed LocationSeed
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if err == io.EOF {
			return &seed, nil
		}
		return nil, fmt.Errorf("%w: parse location seed: %v", apperrors.ErrValidation, err)
	}

	for i, d := range seed.Districts {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("%w: district %d has no name", apperrors.ErrValidation, i)
		}
		for j, t := range d.Tehsils {
			if strings.TrimSpace(t.Name) == "" {
				return nil, fmt.Errorf("%w: tehsil %d of %s has no name", apperrors.ErrValidation, j, d.Name)
			}
			for k, v := range t.Villages {
				if strings.TrimSpace(v.Name) == "" {
					return nil, fmt.Errorf("%w: village %d of %s has no name", apperrors.ErrValidation, k, t.Name)
				}
				if v.Population < 0 {
					return nil, fmt.Errorf("%w: village %s has negative population", apperrors.ErrValidation, v.Name)
				}
			}
		}
	}
	return &seed, nil
}

func (s *locationService) Seed(ctx context.Context, r io.Reader) (*SeedStats, error) {
	seed, err := ParseLocationSeed(r)
	if err != nil {
		return nil, err
	}

	stats := &SeedStats{}
	for _, d := range seed.Districts {
		districtID, err := s.repo.UpsertDistrict(ctx, strings.TrimSpace(d.Name))
		if err != nil {
			return stats, fmt.Errorf("district %s: %w", d.Name, err)
		}
		stats.Districts++

		for _, t := range d.Tehsils {
			tehsilID, err := s.repo.UpsertTehsil(ctx, districtID, strings.TrimSpace(t.Name))
			if err != nil {
				return stats, fmt.Errorf("tehsil %s: %w", t.Name, err)
			}
			stats.Tehsils++

			for _, v := range t.Villages {
				if _, err := s.repo.UpsertVillage(ctx, tehsilID, strings.TrimSpace(v.Name), v.Population); err != nil {
					return stats, fmt.Errorf("village %s: %w", v.Name, err)
				}
				stats.Villages++
			}
		}
	}

	s.logger.Info("Location hierarchy seeded",
		zap.Int("districts", stats.Districts),
		zap.Int("tehsils", stats.Tehsils),
		zap.Int("villages", stats.Villages))
	return stats, nil
}
