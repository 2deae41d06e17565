package db

import (
	"database/sql"
	"embed"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/logger"
)

//go:embed sqlite/migrations/*.sql
var migrations embed.FS

const migrationsDir = "sqlite/migrations"

// Migrate applies every pending migration in filename order. Migration 000
// creates the schema_migrations ledger, so it is the only file allowed to
// run before the ledger exists. A nil log applies silently.
func Migrate(db *sql.DB, log *zap.SugaredLogger) error {
	files, err := migrationFiles()
	if err != nil {
		return err
	}

	for _, filename := range files {
		version := strings.Split(filename, "_")[0]

		applied, err := versionApplied(db, version)
		if err != nil {
			if version != "000" {
				return errors.Newf("schema_migrations table missing, but migration is not 000: %s", filename)
			}
		} else if applied {
			if log != nil {
				log.Debugw("Skipping migration (already applied)",
					"migration", filename,
					logger.FieldVersion, version,
				)
			}
			continue
		}

		if log != nil {
			log.Infow("Applying migration",
				"migration", filename,
				logger.FieldVersion, version,
			)
		}
		if err := apply(db, filename, version); err != nil {
			return err
		}
	}

	if log != nil {
		log.Infow("Migrations complete",
			logger.FieldComponent, "db",
			logger.FieldCount, len(files),
		)
	}
	return nil
}

// migrationFiles lists the embedded .sql files sorted so numeric prefixes
// decide order.
func migrationFiles() ([]string, error) {
	entries, err := migrations.ReadDir(migrationsDir)
	if err != nil {
		return nil, errors.Wrap(err, "read migrations")
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// versionApplied errs when the ledger table itself is missing.
func versionApplied(db *sql.DB, version string) (bool, error) {
	var applied bool
	err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version).Scan(&applied)
	return applied, err
}

// apply executes one migration file and records its version in the same
// transaction, so a failed migration leaves no ledger entry behind.
func apply(db *sql.DB, filename, version string) error {
	script, err := migrations.ReadFile(filepath.Join(migrationsDir, filename))
	if err != nil {
		return errors.Wrapf(err, "read %s", filename)
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.Wrapf(err, "begin tx for %s", filename)
	}
	if _, err := tx.Exec(string(script)); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "execute %s", filename)
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		tx.Rollback()
		return errors.Wrapf(err, "record %s", filename)
	}
	return errors.Wrapf(tx.Commit(), "commit %s", filename)
}
