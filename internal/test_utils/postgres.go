package test_utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klokku/consolecal/internal/config"
	"github.com/klokku/consolecal/internal/database"
	log "github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	testDbName     = "consolecal"
	testDbUser     = "test_consolecal"
	testDbPassword = "test_consolecal"
	snapshotName   = "postgres-test-snapshot"
)

var (
	startOnce sync.Once
	container *postgres.PostgresContainer
	dbConfig  config.Database
	startErr  error
)

func preparePostgresContainer(ctx context.Context) (*postgres.PostgresContainer, error) {
	projectRoot, err := findProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to find project root: %v", err)
	}

	pgContainer, err := postgres.Run(
		ctx, "postgres:18.1-alpine",
		postgres.WithInitScripts(filepath.Join(projectRoot, "dev", "init.sql")),
		postgres.WithDatabase(testDbName),
		postgres.WithUsername(testDbUser),
		postgres.WithPassword(testDbPassword),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		log.Printf("failed to start container: %s", err)
		return nil, err
	}
	return pgContainer, nil
}

// startPostgres runs the container, applies all migrations and snapshots the migrated schema.
func startPostgres() (*postgres.PostgresContainer, config.Database, error) {
	ctx := context.Background()

	pgContainer, err := preparePostgresContainer(ctx)
	if err != nil {
		return nil, config.Database{}, err
	}

	host, err := pgContainer.Host(ctx)
	if err != nil {
		return pgContainer, config.Database{}, err
	}
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return pgContainer, config.Database{}, err
	}
	log.Infof("Postgres container started at %s:%d", host, port.Int())

	cfg := config.Database{
		Host:   host,
		Port:   port.Int(),
		User:   testDbUser,
		Pass:   testDbPassword,
		Name:   testDbName,
		Schema: "consolecal",
	}

	if err := database.Migrate(cfg); err != nil {
		return pgContainer, config.Database{}, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err := pgContainer.Snapshot(ctx, postgres.WithSnapshotName(snapshotName)); err != nil {
		return pgContainer, config.Database{}, fmt.Errorf("failed to snapshot postgres container: %w", err)
	}
	return pgContainer, cfg, nil
}

// TestWithDB returns a pool on a migrated Postgres database. The container is started once
// per test binary; the database is restored to the migrated snapshot when the test ends.
// Tests are skipped when no container provider is available.
func TestWithDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	startOnce.Do(func() {
		container, dbConfig, startErr = startPostgres()
	})
	if startErr != nil {
		t.Fatalf("failed to start postgres: %v", startErr)
	}

	ctx := context.Background()
	db, err := database.Open(ctx, dbConfig)
	if err != nil {
		t.Fatalf("failed to open database connection: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		if err := container.Restore(ctx, postgres.WithSnapshotName(snapshotName)); err != nil {
			t.Errorf("failed to restore database snapshot: %v", err)
		}
	})
	return db
}

// TerminatePostgres stops the shared container, if one was started. Call it from TestMain.
func TerminatePostgres() {
	if container == nil {
		return
	}
	if err := testcontainers.TerminateContainer(container); err != nil {
		log.Errorf("failed to terminate container: %s", err)
	}
}

// findProjectRoot attempts to locate the project root directory
// It looks for .git directory or go.mod file
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if fileExists(filepath.Join(dir, ".git")) || fileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root")
		}
		dir = parent
	}
}

// fileExists checks if a file or directory exists
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
