package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/fiscal-tracker/fiscal-engine/migrations"
	"github.com/fiscal-tracker/fiscal-engine/pkg/database"
)

// PostgresImage is the image used for integration tests.
const PostgresImage = "postgres:16-alpine"

// TestDB holds a shared PostgreSQL container with migrations applied.
type TestDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedTestDB     *TestDB
	sharedTestDBOnce sync.Once
	sharedTestDBErr  error
)

// GetTestDB returns a shared PostgreSQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetTestDB(t *testing.T) *TestDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedTestDBOnce.Do(func() {
		sharedTestDB, sharedTestDBErr = setupTestDB()
	})

	if sharedTestDBErr != nil {
		t.Fatalf("Failed to setup test database: %v", sharedTestDBErr)
	}

	return sharedTestDB
}

func setupTestDB() (*TestDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "fiscal_test",
			"POSTGRES_USER":     "fiscal",
			"POSTGRES_PASSWORD": "test_password",
		},
		// Postgres logs readiness twice: once for the init server, once for the real one.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://fiscal:test_password@%s:%s/fiscal_test?sslmode=disable",
		host, port.Port())

	db, err := database.NewConnection(ctx, &database.Config{
		URL:            connStr,
		MaxConnections: 10,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test database: %w", err)
	}

	sqlDB, err := database.OpenSQL(connStr)
	if err != nil {
		return nil, err
	}
	defer sqlDB.Close()

	if err := database.RunMigrations(sqlDB, migrations.FS, zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// Context returns a context carrying a scoped connection. The cleanup
// function must be called when the test is done with it.
func (tdb *TestDB) Context(t *testing.T) (context.Context, func()) {
	t.Helper()
	ctx := context.Background()
	scope, err := tdb.DB.Acquire(ctx)
	if err != nil {
		t.Fatalf("failed to acquire scope: %v", err)
	}
	return database.SetScope(ctx, scope), scope.Close
}

// Reset empties every table so each test starts from a clean schema.
// approval_history is append-only, so it is truncated rather than deleted.
func (tdb *TestDB) Reset(t *testing.T) {
	t.Helper()
	_, err := tdb.DB.Exec(context.Background(), `
		TRUNCATE audit_log, fund_transactions, grievances, notifications, approval_history,
		         approval_workflow, projects, users, villages, tehsils, districts`)
	if err != nil {
		t.Fatalf("failed to reset database: %v", err)
	}
}

// Location is a seeded district/tehsil/village chain.
type Location struct {
	DistrictID uuid.UUID
	TehsilID   uuid.UUID
	VillageID  uuid.UUID
}

// SeedLocation inserts one district, tehsil and village with the given name prefix.
func (tdb *TestDB) SeedLocation(t *testing.T, prefix string) Location {
	t.Helper()
	ctx := context.Background()
	loc := Location{DistrictID: uuid.New(), TehsilID: uuid.New(), VillageID: uuid.New()}

	stmts := []struct {
		sql  string
		args []any
	}{
		{`INSERT INTO districts (id, name) VALUES ($1, $2)`, []any{loc.DistrictID, prefix + " District"}},
		{`INSERT INTO tehsils (id, district_id, name) VALUES ($1, $2, $3)`, []any{loc.TehsilID, loc.DistrictID, prefix + " Tehsil"}},
		{`INSERT INTO villages (id, tehsil_id, name, population) VALUES ($1, $2, $3, 1200)`, []any{loc.VillageID, loc.TehsilID, prefix + " Village"}},
	}
	for _, s := range stmts {
		if _, err := tdb.DB.Exec(ctx, s.sql, s.args...); err != nil {
			t.Fatalf("failed to seed location: %v", err)
		}
	}
	return loc
}

// SeedUser inserts an active user with the given role and a throwaway password hash.
func (tdb *TestDB) SeedUser(t *testing.T, loginID, role string, loc *Location) uuid.UUID {
	t.Helper()
	id := uuid.New()
	var districtID, tehsilID, villageID *uuid.UUID
	if loc != nil {
		districtID, tehsilID, villageID = &loc.DistrictID, &loc.TehsilID, &loc.VillageID
	}
	_, err := tdb.DB.Exec(context.Background(), `
		INSERT INTO users (id, login_id, display_name, role, password_hash, district_id, tehsil_id, village_id)
		VALUES ($1, $2, $3, $4, 'x', $5, $6, $7)`,
		id, loginID, loginID, role, districtID, tehsilID, villageID)
	if err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return id
}
