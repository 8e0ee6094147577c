package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pneumo/pneumo/internal/domain/user"
	"github.com/pneumo/pneumo/internal/platform/auth"
	"github.com/pneumo/pneumo/internal/platform/db"
)

// testDB holds the shared database infrastructure for integration tests.
type testDB struct {
	Pool          *pgxpool.Pool
	ConnStr       string
	MigrationsDir string
}

// globalDB is the package-level test database, initialized once in TestMain.
var globalDB *testDB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to setup postgres container: %v\n", err)
		os.Exit(1)
	}

	migrator := db.NewMigrator(tdb.Pool, tdb.MigrationsDir)
	if _, err := migrator.Up(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		cleanup()
		os.Exit(1)
	}

	globalDB = tdb
	code := m.Run()
	cleanup()
	os.Exit(code)
}

func setupPostgres(ctx context.Context) (*testDB, func(), error) {
	connStr, cleanup, err := startPostgresContainer(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("start postgres container: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		cleanup()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	return &testDB{
			Pool:          pool,
			ConnStr:       connStr,
			MigrationsDir: findMigrationsDir(),
		}, func() {
			pool.Close()
			cleanup()
		}, nil
}

// findMigrationsDir locates the migrations directory relative to this test file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	dir := filepath.Dir(filename)
	// test/integration -> repo root
	return filepath.Join(dir, "..", "..", "migrations")
}

// resetCases empties the cases table so each test starts from a clean slate.
// User accounts persist across tests; they are created with unique names.
func resetCases(t *testing.T, ctx context.Context) {
	t.Helper()
	if _, err := globalDB.Pool.Exec(ctx, "TRUNCATE cases RESTART IDENTITY"); err != nil {
		t.Fatalf("truncate cases: %v", err)
	}
}

// createTestUser provisions an account through the user service and returns
// its principal for service calls.
func createTestUser(t *testing.T, ctx context.Context, username string, role auth.Role) *auth.Principal {
	t.Helper()
	svc := user.NewService(user.NewUserRepoPG(globalDB.Pool))
	u, err := svc.Create(ctx, user.CreateUserInput{
		Username: username,
		Password: "integration-pass",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("create test user %s: %v", username, err)
	}
	return &auth.Principal{ID: u.ID, Role: u.Role}
}
