package commands

import (
	"database/sql"

	"github.com/spf13/cobra"

	"github.com/stratumdb/stratum/config"
	"github.com/stratumdb/stratum/db"
	"github.com/stratumdb/stratum/errors"
	"github.com/stratumdb/stratum/logger"
)

// databasePath resolves the database path: the --db flag when given,
// otherwise the configured path.
func databasePath(cmd *cobra.Command) (string, error) {
	if flagPath, _ := cmd.Flags().GetString("db"); flagPath != "" {
		return flagPath, nil
	}
	path, err := config.GetDatabasePath()
	if err != nil {
		return "", errors.Wrap(err, "failed to get database path")
	}
	return path, nil
}

// openDatabase opens the database at the resolved path and brings its schema
// up to date.
func openDatabase(cmd *cobra.Command) (*sql.DB, string, error) {
	path, err := databasePath(cmd)
	if err != nil {
		return nil, "", err
	}

	database, err := db.Open(path, logger.Logger)
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to open database at %s", path)
	}

	if err := db.Migrate(database, logger.Logger); err != nil {
		database.Close()
		return nil, "", errors.Wrapf(err, "failed to run migrations on %s", path)
	}

	return database, path, nil
}
