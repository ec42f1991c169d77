//go:build integration

package testhelpers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestDB_MigrationsApplied(t *testing.T) {
	tdb := GetTestDB(t)

	var tableCount int
	err := tdb.DB.QueryRow(context.Background(), `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = 'public'
		  AND table_name IN ('districts', 'tehsils', 'villages', 'users', 'projects',
		                     'approval_workflow', 'approval_history', 'notifications',
		                     'grievances', 'audit_log', 'fund_transactions')`).Scan(&tableCount)
	require.NoError(t, err)
	assert.Equal(t, 11, tableCount)
}

func TestTestDB_SeedHelpers(t *testing.T) {
	tdb := GetTestDB(t)
	tdb.Reset(t)

	loc := tdb.SeedLocation(t, "Helper")
	userID := tdb.SeedUser(t, "helper.sarpanch", "sarpanch", &loc)

	var role string
	err := tdb.DB.QueryRow(context.Background(), "SELECT role FROM users WHERE id = $1", userID).Scan(&role)
	require.NoError(t, err)
	assert.Equal(t, "sarpanch", role)
}
