package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/pkg/apperrors"
)

const testLocationSeed = `
districts:
  - name: Jaipur
    tehsils:
      - name: Amer
        villages:
          - name: Kookas
            population: 5200
          - name: Kunda
      - name: Sanganer
  - name: Ajmer
`

func TestParseLocationSeed(t *testing.T) {
	seed, err := ParseLocationSeed(strings.NewReader(testLocationSeed))
	require.NoError(t, err)
	require.Len(t, seed.Districts, 2)
	assert.Equal(t, "Jaipur", seed.Districts[0].Name)
	require.Len(t, seed.Districts[0].Tehsils, 2)
	require.Len(t, seed.Districts[0].Tehsils[0].Villages, 2)
	assert.Equal(t, 5200, seed.Districts[0].Tehsils[0].Villages[0].Population)

	empty, err := ParseLocationSeed(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, empty.Districts)
}

func TestParseLocationSeed_Invalid(t *testing.T) {
	tests := map[string]string{
		"unknown field":       "districts:\n  - name: A\n    capital: B\n",
		"nameless tehsil":     "districts:\n  - name: A\n    tehsils:\n      - villages: []\n",
		"negative population": "districts:\n  - name: A\n    tehsils:\n      - name: T\n        villages:\n          - name: V\n            population: -3\n",
		"not yaml":            "districts: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseLocationSeed(strings.NewReader(doc))
			assert.ErrorIs(t, err, apperrors.ErrValidation)
		})
	}
}

func TestLocationService_Seed_Idempotent(t *testing.T) {
	repo := newMemLocationRepo()
	svc := NewLocationService(repo, zap.NewNop())
	ctx := context.Background()

	stats, err := svc.Seed(ctx, strings.NewReader(testLocationSeed))
	require.NoError(t, err)
	assert.Equal(t, &SeedStats{Districts: 2, Tehsils: 2, Villages: 2}, stats)

	_, err = svc.Seed(ctx, strings.NewReader(testLocationSeed))
	require.NoError(t, err)

	districts, err := svc.ListDistricts(ctx)
	require.NoError(t, err)
	assert.Len(t, districts, 2)
	assert.Len(t, repo.tehsils, 2)
	assert.Equal(t, 2, repo.upserted["village:Kookas"])
}
