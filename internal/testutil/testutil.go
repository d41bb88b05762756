package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcmariadb "github.com/testcontainers/testcontainers-go/modules/mariadb"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"charter-reporter/internal/config"
	"charter-reporter/internal/mariadb"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)

// TestContainers holds references to test containers
type TestContainers struct {
	PostgresContainer *postgres.PostgresContainer
	MariaDBContainer  *tcmariadb.MariaDBContainer
	DB                *sql.DB
	SourceDB          *sql.DB
	SourceFactory     *mariadb.Factory
	DBConnString      string
}

// SetupTestContainers starts a PostgreSQL container for the application
// database and a MariaDB container hosting both report sources. The Moodle
// and WooCommerce tables share one schema, told apart by their prefixes,
// the same way a staging copy of both sources would be loaded side by side.
func SetupTestContainers(t *testing.T) *TestContainers {
	t.Helper()
	ctx := context.Background()

	postgresContainer, err := postgres.Run(ctx,
		"postgres:18",
		postgres.WithDatabase("charter_test"),
		postgres.WithUsername("charter_test"),
		postgres.WithPassword("charter_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.Ping(); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := runMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	mariadbContainer, err := tcmariadb.Run(ctx,
		"mariadb:11",
		tcmariadb.WithDatabase("sources_test"),
		tcmariadb.WithUsername("sources_test"),
		tcmariadb.WithPassword("sources_test"),
	)
	if err != nil {
		t.Fatalf("Failed to start MariaDB container: %v", err)
	}

	sourceConnStr, err := mariadbContainer.ConnectionString(ctx, "parseTime=true")
	if err != nil {
		t.Fatalf("Failed to get MariaDB connection string: %v", err)
	}

	sourceDB, err := sql.Open("mysql", sourceConnStr)
	if err != nil {
		t.Fatalf("Failed to connect to MariaDB: %v", err)
	}

	if err := sourceDB.Ping(); err != nil {
		t.Fatalf("Failed to ping MariaDB: %v", err)
	}

	if err := createSourceSchema(sourceDB); err != nil {
		t.Fatalf("Failed to create source schema: %v", err)
	}

	host, err := mariadbContainer.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get MariaDB host: %v", err)
	}
	port, err := mariadbContainer.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("Failed to get MariaDB port: %v", err)
	}

	moodleCfg := sourceConfig(host, port.Port(), "mdl")
	wooCfg := sourceConfig(host, port.Port(), "wp")

	factory, err := mariadb.NewFactory(moodleCfg, wooCfg)
	if err != nil {
		t.Fatalf("Failed to open source factory: %v", err)
	}

	return &TestContainers{
		PostgresContainer: postgresContainer,
		MariaDBContainer:  mariadbContainer,
		DB:                db,
		SourceDB:          sourceDB,
		SourceFactory:     factory,
		DBConnString:      connStr,
	}
}

func sourceConfig(host, port, prefix string) *config.SourceConfig {
	return &config.SourceConfig{
		Host:        host,
		Port:        port,
		User:        "sources_test",
		Password:    "sources_test",
		Name:        "sources_test",
		TablePrefix: prefix,
		Timeout:     30 * time.Second,
	}
}

// Cleanup terminates all test containers
func (tc *TestContainers) Cleanup(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	if tc.SourceFactory != nil {
		tc.SourceFactory.Close()
	}
	if tc.SourceDB != nil {
		tc.SourceDB.Close()
	}
	if tc.DB != nil {
		tc.DB.Close()
	}

	if tc.PostgresContainer != nil {
		if err := tc.PostgresContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	}

	if tc.MariaDBContainer != nil {
		if err := tc.MariaDBContainer.Terminate(ctx); err != nil {
			t.Errorf("Failed to terminate MariaDB container: %v", err)
		}
	}
}

// runMigrations executes SQL migrations
func runMigrations(db *sql.DB) error {
	// Get migrations directory relative to the project root
	migrationsDir := filepath.Join("..", "..", "migrations")

	// Check if running from test directory
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		migrationsDir = filepath.Join("..", "..", "..", "migrations")
	}

	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("failed to find migration files: %w", err)
	}

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", file, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", file, err)
		}
	}

	return nil
}
