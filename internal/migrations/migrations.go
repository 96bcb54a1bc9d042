package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"

	"github.com/longcipher/sui-indexer/internal/db"
	"github.com/longcipher/sui-indexer/internal/logger"
	"github.com/longcipher/sui-indexer/pkg/config"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// Prefix namespaces the migration ids in the migration bookkeeping table.
const Prefix = "sui_indexer_"

// For returns the ordered schema migrations for a database/sql driver name.
func For(driver string) ([]db.Migration, error) {
	dir := "sqlite"
	if driver == config.DriverPostgres {
		dir = "postgres"
	}

	entries, err := files.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s migrations: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	migrations := make([]db.Migration, 0, len(names))
	for _, name := range names {
		body, err := files.ReadFile(path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		migrations = append(migrations, db.Migration{ID: name, SQL: string(body), Prefix: Prefix})
	}

	return migrations, nil
}

// Run applies every pending migration for driver.
func Run(log *logger.Logger, sqlDB *sql.DB, driver string) error {
	migrations, err := For(driver)
	if err != nil {
		return err
	}

	return db.RunMigrationsDB(log, sqlDB, driver, migrations)
}
