package auth

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiscal-tracker/fiscal-engine/pkg/models"
)

func TestGetClaims_Success(t *testing.T) {
	claims := &Claims{Role: "tehsil"}
	ctx := WithClaims(context.Background(), claims, "tok")

	got, ok := GetClaims(ctx)
	require.True(t, ok)
	assert.Same(t, claims, got)

	token, ok := GetToken(ctx)
	require.True(t, ok)
	assert.Equal(t, "tok", token)
}

func TestGetClaims_NotFound(t *testing.T) {
	_, ok := GetClaims(context.Background())
	assert.False(t, ok)

	_, ok = GetToken(context.Background())
	assert.False(t, ok)
}

func TestGetClaims_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), ClaimsKey, "not-claims")
	_, ok := GetClaims(ctx)
	assert.False(t, ok)
}

func TestNewClaims_CopiesJurisdiction(t *testing.T) {
	district := uuid.New()
	tehsil := uuid.New()
	user := &models.User{ID: uuid.New(), Role: models.RoleTehsil, DistrictID: &district, TehsilID: &tehsil}

	c := NewClaims(user)

	assert.Equal(t, user.ID.String(), c.Subject)
	assert.Equal(t, models.RoleTehsil, c.UserRole())
	assert.Equal(t, district.String(), c.Jurisdiction().DistrictID)
	assert.Equal(t, tehsil.String(), c.Jurisdiction().TehsilID)
	assert.Empty(t, c.VillageID)
}

func TestClaims_UserID(t *testing.T) {
	id := uuid.New()
	c := &Claims{}
	c.Subject = id.String()

	got, err := c.UserID()
	require.NoError(t, err)
	assert.Equal(t, id, got)

	c.Subject = "not-a-uuid"
	_, err = c.UserID()
	assert.Error(t, err)

	c.Subject = ""
	_, err = c.UserID()
	assert.Error(t, err)
}
